package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/credential"
	"github.com/hupe1980/taskmesh/process"
)

// fakeResolver hands out keys in order and records bookkeeping calls.
type fakeResolver struct {
	mu      sync.Mutex
	keys    []credential.Key
	fetched []string
	limited []string
	cleared []string
}

func (f *fakeResolver) GetNextKey(_ context.Context, _, _ string) (credential.Key, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.keys) == 0 {
		return credential.Key{}, errors.New("no keys left")
	}
	key := f.keys[0]
	f.keys = f.keys[1:]
	f.fetched = append(f.fetched, key.ID)
	return key, nil
}

func (f *fakeResolver) RecordLimitHit(_ context.Context, _, _, id string, _ credential.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limited = append(f.limited, id)
	return nil
}

func (f *fakeResolver) ClearLimitHit(_ context.Context, _, _, id string, _ credential.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, id)
	return nil
}

// fakeStrategy scripts one outcome per launch.
type fakeStrategy struct {
	tag     core.Provider
	key     string
	content string
	results []error
	deltas  []string

	mu       sync.Mutex
	launches []string // keys seen, in order
	blocking bool     // wait blocks until ctx is done, then reports a kill
}

func (f *fakeStrategy) provider() core.Provider         { return f.tag }
func (f *fakeStrategy) keyName() string                 { return f.key }
func (f *fakeStrategy) validate(core.AgentConfig) error { return nil }

func (f *fakeStrategy) launch(ctx context.Context, _ runSpec, key string, emit core.OutputSink) (*attempt, error) {
	f.mu.Lock()
	n := len(f.launches)
	f.launches = append(f.launches, key)
	f.mu.Unlock()

	var err error
	if n < len(f.results) {
		err = f.results[n]
	}
	return &attempt{
		wait: func() (string, error) {
			if f.blocking {
				<-ctx.Done()
				return "", process.ErrKilled
			}
			for _, d := range f.deltas {
				if emit != nil {
					emit(d)
				}
			}
			if err != nil {
				return "", err
			}
			return f.content, nil
		},
	}, nil
}

func (f *fakeStrategy) seenKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.launches...)
}

func rateLimited(p core.Provider) error {
	return core.NewInvocationError(core.FailureRateLimit, p, "429 too many requests")
}

type countingRegistry struct {
	mu    sync.Mutex
	count int
}

func (r *countingRegistry) Register(int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
}

func (r *countingRegistry) Unregister(int, bool) {}

func (r *countingRegistry) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func writeTask(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "task.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("subprocess tests require a unix platform")
	}
}

func TestInvoke_UnsupportedProvider(t *testing.T) {
	e := New()
	_, err := e.Invoke(context.Background(), core.InvocationRequest{
		Config: core.AgentConfig{Provider: "gemini"},
		Prompt: "hi",
	})
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.FailureConfiguration))
}

func TestInvoke_CustomWithoutCommandFailsBeforeSpawn(t *testing.T) {
	registry := &countingRegistry{}
	e := New(func(o *Options) { o.Registry = registry })

	_, err := e.Invoke(context.Background(), core.InvocationRequest{
		Config: core.AgentConfig{Provider: core.ProviderCustom},
		Prompt: "hi",
	})

	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.FailureConfiguration))
	assert.Zero(t, registry.total(), "no subprocess may be observed")
}

func TestInvoke_RotatesOnceOnRateLimit(t *testing.T) {
	resolver := &fakeResolver{keys: []credential.Key{
		{ID: "k1", Value: "sk-1", Source: credential.SourceProject},
		{ID: "k2", Value: "sk-2", Source: credential.SourceGlobal},
	}}
	e := New(func(o *Options) { o.Credentials = resolver })

	strat := &fakeStrategy{
		tag:     core.ProviderOpenAI,
		key:     "OPENAI_API_KEY",
		content: "done",
		results: []error{rateLimited(core.ProviderOpenAI), nil},
	}
	e.strategies[core.ProviderOpenAI] = strat

	outcome, err := e.Invoke(context.Background(), core.InvocationRequest{
		Config:    core.AgentConfig{Provider: core.ProviderOpenAI, Model: "gpt-4o"},
		Prompt:    "hi",
		ProjectID: "proj-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "done", outcome.Content)
	assert.Equal(t, []string{"sk-1", "sk-2"}, strat.seenKeys())
	assert.Equal(t, []string{"k1"}, resolver.limited)
	assert.Equal(t, []string{"k2"}, resolver.cleared)
}

func TestInvoke_NoProjectSkipsRotation(t *testing.T) {
	resolver := &fakeResolver{keys: []credential.Key{{ID: "k1", Value: "sk-1"}}}
	e := New(func(o *Options) { o.Credentials = resolver })

	strat := &fakeStrategy{tag: core.ProviderOpenAI, key: "OPENAI_API_KEY", content: "ok"}
	e.strategies[core.ProviderOpenAI] = strat

	_, err := e.Invoke(context.Background(), core.InvocationRequest{
		Config: core.AgentConfig{Provider: core.ProviderOpenAI},
		Prompt: "hi",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{""}, strat.seenKeys(), "environment fallback, no resolver fetch")
	assert.Empty(t, resolver.fetched)
}

func TestInvoke_DeliversDeltasAndAccumulates(t *testing.T) {
	e := New()
	strat := &fakeStrategy{tag: core.ProviderOpenAI, content: "hello world", deltas: []string{"hello ", "world"}}
	e.strategies[core.ProviderOpenAI] = strat

	var streamed []string
	outcome, err := e.Invoke(context.Background(), core.InvocationRequest{
		Config: core.AgentConfig{Provider: core.ProviderOpenAI},
		Prompt: "hi",
		Sink:   func(delta string) { streamed = append(streamed, delta) },
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"hello ", "world"}, streamed, "increments delivered in generation order")
	assert.Equal(t, "hello world", outcome.Content)
}

func TestRunTask_CompletesOverRealProcess(t *testing.T) {
	requireUnix(t)

	e := New()
	taskPath := writeTask(t, "print this back")

	h, err := e.RunTask(context.Background(), core.AgentConfig{
		Provider: core.ProviderCustom,
		Command:  "echo",
	}, RunTaskOptions{TaskPath: taskPath})
	require.NoError(t, err)
	assert.Greater(t, h.PID(), 0, "subprocess-backed run exposes a pid")

	var output string
	var exit *ExitResult
	for ev := range h.Events() {
		switch ev.Type {
		case EventOutput:
			output += ev.Output
		case EventExit:
			exit = ev.Result
		}
	}

	require.NotNil(t, exit, "stream must terminate with an exit event")
	assert.Equal(t, RunCompleted, exit.State)
	assert.Contains(t, output, "print this back")
	assert.Contains(t, exit.Content, "print this back")
}

func TestRunTask_MissingTaskFile(t *testing.T) {
	e := New()
	_, err := e.RunTask(context.Background(), core.AgentConfig{
		Provider: core.ProviderCustom,
		Command:  "echo",
	}, RunTaskOptions{TaskPath: filepath.Join(t.TempDir(), "absent.md")})

	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.FailureConfiguration))
}

func TestRunTask_CancelResolvesAsKilled(t *testing.T) {
	e := New()
	strat := &fakeStrategy{tag: core.ProviderClaude, blocking: true}
	e.strategies[core.ProviderClaude] = strat

	h, err := e.RunTask(context.Background(), core.AgentConfig{Provider: core.ProviderClaude},
		RunTaskOptions{TaskPath: writeTask(t, "long task")})
	require.NoError(t, err)

	// Cancel from a different goroutine than the consumer; twice.
	go func() {
		h.Cancel()
		h.Cancel()
	}()

	var exit *ExitResult
	deadline := time.After(10 * time.Second)
	for exit == nil {
		select {
		case ev, ok := <-h.Events():
			if !ok {
				t.Fatal("stream closed without an exit event")
			}
			if ev.Type == EventExit {
				exit = ev.Result
			}
		case <-deadline:
			t.Fatal("pending completion did not resolve after cancellation")
		}
	}
	assert.Equal(t, RunKilled, exit.State)
}

func TestRunTask_TimeoutMapsToTimedOut(t *testing.T) {
	e := New(func(o *Options) { o.Timeout = 50 * time.Millisecond })
	strat := &fakeStrategy{tag: core.ProviderClaude, blocking: true}
	e.strategies[core.ProviderClaude] = strat

	h, err := e.RunTask(context.Background(), core.AgentConfig{Provider: core.ProviderClaude},
		RunTaskOptions{TaskPath: writeTask(t, "slow task")})
	require.NoError(t, err)

	var exit *ExitResult
	for ev := range h.Events() {
		if ev.Type == EventExit {
			exit = ev.Result
		}
	}
	require.NotNil(t, exit)
	assert.Equal(t, RunTimedOut, exit.State)
	assert.True(t, core.IsKind(exit.Err, core.FailureTimeout))
}

func TestRunTask_RotatesOnRateLimitedExit(t *testing.T) {
	resolver := &fakeResolver{keys: []credential.Key{
		{ID: "k1", Value: "sk-1", Source: credential.SourceProject},
		{ID: "k2", Value: "sk-2", Source: credential.SourceProject},
	}}
	e := New(func(o *Options) { o.Credentials = resolver })

	strat := &fakeStrategy{
		tag:     core.ProviderAnthropic,
		key:     "ANTHROPIC_API_KEY",
		content: "task done",
		results: []error{rateLimited(core.ProviderAnthropic), nil},
	}
	e.strategies[core.ProviderAnthropic] = strat

	h, err := e.RunTask(context.Background(), core.AgentConfig{Provider: core.ProviderAnthropic},
		RunTaskOptions{TaskPath: writeTask(t, "work"), ProjectID: "proj-1"})
	require.NoError(t, err)

	var exit *ExitResult
	for ev := range h.Events() {
		if ev.Type == EventExit {
			exit = ev.Result
		}
	}
	require.NotNil(t, exit)
	assert.Equal(t, RunCompleted, exit.State)
	assert.Equal(t, "task done", exit.Content)
	assert.Equal(t, []string{"sk-1", "sk-2"}, strat.seenKeys())
	assert.Equal(t, []string{"k1"}, resolver.limited)
	assert.Equal(t, []string{"k2"}, resolver.cleared)
}

func TestCancel_UnknownRun(t *testing.T) {
	e := New()
	assert.Error(t, e.Cancel("no-such-run"))
}

func TestTaskPrompt(t *testing.T) {
	assert.Equal(t, "body", taskPrompt("", "body"))
	assert.Equal(t, "You are acting as the reviewer agent for this task.\n\nbody",
		taskPrompt("reviewer", "body"))
}
