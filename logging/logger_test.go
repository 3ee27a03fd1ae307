package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, slog.LevelInfo)

	l.Debug("hidden")
	l.Info("visible", "provider", "claude")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "visible", record["msg"])
	assert.Equal(t, "claude", record["provider"])
}

func TestLogInvocation(t *testing.T) {
	var buf bytes.Buffer
	l := NewTextLogger(&buf, slog.LevelDebug)

	LogInvocation(l, "openai", "inv-1", 250*time.Millisecond, nil)
	assert.Contains(t, buf.String(), "invocation completed")
	assert.Contains(t, buf.String(), "inv-1")

	buf.Reset()
	LogInvocation(l, "openai", "inv-2", time.Second, errors.New("boom"))
	assert.Contains(t, buf.String(), "invocation failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestLogProcessExit(t *testing.T) {
	var buf bytes.Buffer
	l := NewTextLogger(&buf, slog.LevelDebug)

	LogProcessExit(l, 1234, false, nil)
	assert.Contains(t, buf.String(), "pid=1234")

	buf.Reset()
	LogProcessExit(l, 1234, true, errors.New("killed"))
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	l.Debug("a")
	l.Info("b")
	l.Warn("c")
	l.Error("d")
}
