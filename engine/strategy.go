package engine

import (
	"context"
	"strings"

	"github.com/hupe1980/taskmesh/core"
)

// runSpec is the normalized input handed to a strategy, independent of
// whether it came from Invoke or RunTask.
type runSpec struct {
	model   string
	command string // custom provider only
	prompt  string
	system  string
	turns   []core.Turn
	workDir string
	logPath string
	// longRunning selects the provider's streaming task mode (e.g. the
	// claude CLI's stream-json output).
	longRunning bool
	maxBytes    int
}

// attempt is one in-flight execution. Cancellation happens through the
// launch context; the manager and the SDK streams both honor it.
type attempt struct {
	// pid is 0 for API-backed attempts.
	pid int
	// wait blocks until the attempt finishes and returns the accumulated
	// content. Content may be non-empty even on error.
	wait func() (string, error)
}

// strategy is one provider implementation. The engine holds exactly one per
// provider tag, fixed at construction.
type strategy interface {
	provider() core.Provider
	// keyName names the environment variable carrying the provider
	// credential; empty when the provider is not credential-scoped.
	keyName() string
	// validate rejects misconfiguration before anything starts.
	validate(cfg core.AgentConfig) error
	// launch begins one attempt, streaming increments to emit as they
	// arrive. key may be empty, in which case the provider falls back to
	// its process-level environment variable.
	launch(ctx context.Context, run runSpec, key string, emit core.OutputSink) (*attempt, error)
}

// boundedBuffer accumulates output up to a byte limit, dropping the excess.
type boundedBuffer struct {
	limit     int
	b         strings.Builder
	truncated bool
}

func newBoundedBuffer(limit int) *boundedBuffer {
	return &boundedBuffer{limit: limit}
}

func (bb *boundedBuffer) Write(p []byte) (int, error) {
	bb.WriteString(string(p))
	return len(p), nil
}

func (bb *boundedBuffer) WriteString(s string) {
	if bb.truncated {
		return
	}
	if remaining := bb.limit - bb.b.Len(); len(s) > remaining {
		s = s[:remaining]
		bb.truncated = true
	}
	bb.b.WriteString(s)
}

func (bb *boundedBuffer) String() string { return bb.b.String() }

func (bb *boundedBuffer) Truncated() bool { return bb.truncated }

// conversationPrompt flattens a system prompt, prior turns and the current
// prompt into the human/assistant turn format command-line agents expect.
func conversationPrompt(system string, turns []core.Turn, prompt string) string {
	var parts []string
	if system != "" {
		parts = append(parts, system)
	}
	for _, turn := range turns {
		switch turn.Role {
		case "assistant":
			parts = append(parts, "Assistant: "+turn.Content)
		default:
			parts = append(parts, "Human: "+turn.Content)
		}
	}
	parts = append(parts, "Human: "+prompt)
	return strings.Join(parts, "\n\n")
}
