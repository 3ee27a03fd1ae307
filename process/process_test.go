package process

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRegistry struct {
	mu           sync.Mutex
	registered   []int
	unregistered []int
}

func (r *recordingRegistry) Register(pid int, group bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, pid)
}

func (r *recordingRegistry) Unregister(pid int, group bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregistered = append(r.unregistered, pid)
}

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process-group tests require a unix platform")
	}
}

func TestBuildCmd_MergedStdioSharesDescriptor(t *testing.T) {
	cmd, reader, logFile, err := buildCmd(Spec{Path: "echo", Args: []string{"hi"}})
	require.NoError(t, err)
	defer reader.Close()

	// The defining property of the merged stream: both stdio handles given
	// to process creation are the same descriptor.
	assert.Same(t, cmd.Stdout, cmd.Stderr)
	assert.Nil(t, logFile)
	if w, ok := cmd.Stdout.(*os.File); ok {
		w.Close()
	}
}

func TestBuildCmd_OpensLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "agent.log")
	cmd, reader, logFile, err := buildCmd(Spec{Path: "echo", LogPath: logPath})
	require.NoError(t, err)
	defer reader.Close()
	require.NotNil(t, logFile)
	logFile.Close()
	if w, ok := cmd.Stdout.(*os.File); ok {
		w.Close()
	}

	_, err = os.Stat(logPath)
	assert.NoError(t, err)
}

func TestManagerStart_StreamsAndUnregistersOnce(t *testing.T) {
	requireUnix(t)

	registry := &recordingRegistry{}
	m := NewManager(func(o *Options) { o.Registry = registry })

	var mu sync.Mutex
	var output strings.Builder
	h, err := m.Start(context.Background(), Spec{Path: "echo", Args: []string{"hello", "world"}}, func(chunk []byte) {
		mu.Lock()
		output.Write(chunk)
		mu.Unlock()
	})
	require.NoError(t, err)
	require.NoError(t, h.Wait())

	mu.Lock()
	assert.Contains(t, output.String(), "hello world")
	mu.Unlock()

	registry.mu.Lock()
	defer registry.mu.Unlock()
	assert.Equal(t, []int{h.PID()}, registry.registered)
	assert.Equal(t, []int{h.PID()}, registry.unregistered)
}

func TestManagerStart_WritesLog(t *testing.T) {
	requireUnix(t)

	logPath := filepath.Join(t.TempDir(), "run.log")
	m := NewManager()

	h, err := m.Start(context.Background(), Spec{Path: "echo", Args: []string{"logged"}, LogPath: logPath}, nil)
	require.NoError(t, err)
	require.NoError(t, h.Wait())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "logged")
}

func TestManagerStart_MissingBinary(t *testing.T) {
	m := NewManager()
	_, err := m.Start(context.Background(), Spec{Path: "definitely-not-a-real-binary-xyz"}, nil)
	require.Error(t, err)
}

func TestHandleKill_Idempotent(t *testing.T) {
	requireUnix(t)

	m := NewManager(func(o *Options) { o.GracePeriod = 200 * time.Millisecond })
	h, err := m.Start(context.Background(), Spec{Path: "sleep", Args: []string{"30"}}, nil)
	require.NoError(t, err)

	// Double cancel must not panic or double-release.
	h.Kill()
	h.Kill()

	err = h.Wait()
	assert.ErrorIs(t, err, ErrKilled)
	assert.True(t, h.Killed())

	h.Kill() // still safe after exit
}

func TestManagerStart_ContextCancelKills(t *testing.T) {
	requireUnix(t)

	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(func(o *Options) { o.GracePeriod = 200 * time.Millisecond })
	h, err := m.Start(ctx, Spec{Path: "sleep", Args: []string{"30"}}, nil)
	require.NoError(t, err)

	cancel()

	done := make(chan error, 1)
	go func() { done <- h.Wait() }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrKilled)
	case <-time.After(10 * time.Second):
		t.Fatal("pending completion did not resolve after cancellation")
	}
}

func TestHandleKill_CallableWhileAnotherGoroutineWaits(t *testing.T) {
	requireUnix(t)

	m := NewManager(func(o *Options) { o.GracePeriod = 200 * time.Millisecond })
	h, err := m.Start(context.Background(), Spec{Path: "sleep", Args: []string{"30"}}, nil)
	require.NoError(t, err)

	waited := make(chan error, 1)
	go func() { waited <- h.Wait() }()

	time.Sleep(50 * time.Millisecond)
	h.Kill()

	select {
	case err := <-waited:
		assert.ErrorIs(t, err, ErrKilled)
	case <-time.After(10 * time.Second):
		t.Fatal("waiter hung after external kill")
	}
}
