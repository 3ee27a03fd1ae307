package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/credential"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/process"
)

const (
	// DefaultTimeout is the hard ceiling applied to every attempt
	// regardless of provider.
	DefaultTimeout = 120 * time.Second
	// DefaultMaxOutputBytes caps accumulated output to protect memory.
	DefaultMaxOutputBytes = 10 << 20
)

// Options holds dependency and configuration overrides passed to New.
type Options struct {
	// Credentials enables project-scoped credential rotation when set.
	Credentials credential.Resolver
	// Registry receives process bookkeeping for subprocess attempts.
	// Owned by the caller; defaults to a no-op registry.
	Registry core.ProcessRegistry
	// Logger for engine events. Defaults to no-op.
	Logger logging.Logger
	// Timeout overrides the hard per-attempt ceiling.
	Timeout time.Duration
	// MaxOutputBytes overrides the accumulated-output cap.
	MaxOutputBytes int
	// GracePeriod between graceful and forceful process termination.
	GracePeriod time.Duration
	// ClaudeBinary and CursorBinary override the CLI executables.
	ClaudeBinary string
	CursorBinary string
}

// Engine is the public entry point for agent execution. It dispatches each
// request to the provider strategy fixed at construction time and owns
// nothing beyond invocation bookkeeping: the process registry and the
// credential resolver are injected collaborators. Safe for concurrent use.
type Engine struct {
	strategies map[core.Provider]strategy
	rotator    *credential.Rotator
	logger     logging.Logger
	timeout    time.Duration
	maxOutput  int

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// New constructs an Engine with optional overrides.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Registry:       core.NoopProcessRegistry{},
		Logger:         logging.NoOpLogger{},
		Timeout:        DefaultTimeout,
		MaxOutputBytes: DefaultMaxOutputBytes,
		GracePeriod:    process.DefaultGracePeriod,
		ClaudeBinary:   "claude",
		CursorBinary:   "cursor-agent",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	procs := process.NewManager(func(o *process.Options) {
		o.Registry = opts.Registry
		o.Logger = opts.Logger
		o.GracePeriod = opts.GracePeriod
	})
	runner := &cliRunner{procs: procs, maxOutput: opts.MaxOutputBytes}

	e := &Engine{
		logger:    opts.Logger,
		timeout:   opts.Timeout,
		maxOutput: opts.MaxOutputBytes,
		active:    make(map[string]context.CancelFunc),
	}
	if opts.Credentials != nil {
		e.rotator = credential.NewRotator(opts.Credentials, func(o *credential.Options) {
			o.Logger = opts.Logger
		})
	}

	// The provider set is closed: one strategy per tag, selected here and
	// never extended at runtime.
	e.strategies = map[core.Provider]strategy{
		core.ProviderClaude:    &claudeStrategy{runner: runner, binary: opts.ClaudeBinary},
		core.ProviderCursor:    &cursorStrategy{runner: runner, binary: opts.CursorBinary},
		core.ProviderOpenAI:    &openaiStrategy{maxOutput: opts.MaxOutputBytes},
		core.ProviderAnthropic: &anthropicStrategy{maxOutput: opts.MaxOutputBytes},
		core.ProviderCustom:    &customStrategy{runner: runner},
	}
	return e
}

// strategyFor resolves and validates the strategy for a config. Every
// failure here is a ConfigurationError raised before any process or call
// starts.
func (e *Engine) strategyFor(cfg core.AgentConfig) (strategy, error) {
	strat, ok := e.strategies[cfg.Provider]
	if !ok {
		return nil, core.NewInvocationError(core.FailureConfiguration, cfg.Provider,
			"unsupported provider %q", cfg.Provider)
	}
	if err := strat.validate(cfg); err != nil {
		return nil, err
	}
	return strat, nil
}

// Invoke executes one synchronous exchange: it builds the provider payload,
// runs the attempt under the hard timeout, and returns the collected
// response. When req.ProjectID is set and the provider is credential-scoped,
// the attempt is wrapped by the rotation policy.
func (e *Engine) Invoke(ctx context.Context, req core.InvocationRequest) (*core.Outcome, error) {
	strat, err := e.strategyFor(req.Config)
	if err != nil {
		return nil, err
	}

	invocationID := uuid.NewString()
	run := runSpec{
		model:    req.Config.Model,
		command:  req.Config.Command,
		prompt:   req.Prompt,
		system:   req.SystemPrompt,
		turns:    req.Turns,
		workDir:  req.WorkDir,
		maxBytes: e.maxOutput,
	}

	start := time.Now()
	var content string
	attempt := func(ctx context.Context, key credential.Key) error {
		c, err := e.attemptOnce(ctx, strat, run, key.Value, req.Sink)
		if err != nil {
			return err
		}
		content = c
		return nil
	}

	if e.rotates(strat, req.ProjectID) {
		err = e.rotator.Do(ctx, req.ProjectID, strat.keyName(), attempt)
	} else {
		// Provider credentials fall back to process-level environment
		// variables when no project-scoped credential applies.
		err = attempt(ctx, credential.Key{})
	}

	logging.LogInvocation(e.logger, string(req.Config.Provider), invocationID, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &core.Outcome{Content: content}, nil
}

// attemptOnce runs a single attempt under the hard timeout.
func (e *Engine) attemptOnce(
	ctx context.Context,
	strat strategy,
	run runSpec,
	key string,
	sink core.OutputSink,
) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	att, err := strat.launch(ctx, run, key, sink)
	if err != nil {
		return "", err
	}
	content, err := att.wait()
	if err != nil {
		// Output already delivered through the sink remains valid; only
		// the outcome is reclassified.
		if ctx.Err() == context.DeadlineExceeded {
			return content, timeoutError(strat.provider(), e.timeout)
		}
		return content, err
	}
	return content, nil
}

func (e *Engine) rotates(strat strategy, projectID string) bool {
	return e.rotator != nil && projectID != "" && strat.keyName() != ""
}

func timeoutError(provider core.Provider, timeout time.Duration) *core.InvocationError {
	err := core.NewInvocationError(core.FailureTimeout, provider,
		"invocation exceeded the %s timeout", timeout)
	err.Hint = "Increase the engine timeout or split the task into smaller steps."
	err.Err = context.DeadlineExceeded
	return err
}

// Cancel aborts a running task execution by invocation id.
func (e *Engine) Cancel(invocationID string) error {
	e.mu.Lock()
	cancel, ok := e.active[invocationID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("run %s not found", invocationID)
	}
	cancel()
	return nil
}

// RunTaskOptions parameterizes a long-running task execution.
type RunTaskOptions struct {
	// TaskPath is the file whose contents become the prompt body.
	TaskPath string
	// WorkDir is the agent's working directory.
	WorkDir string
	// Role, when set, prefixes the prompt with a role instruction.
	Role string
	// LogPath, when set, receives the merged output stream for post-hoc
	// inspection.
	LogPath string
	// ProjectID enables credential rotation for scoped providers.
	ProjectID string
}

// RunTask starts a long-running task execution and returns immediately with
// a live handle. Output increments and exactly one terminal exit event are
// delivered on the handle's event stream, which is closed afterwards.
func (e *Engine) RunTask(ctx context.Context, cfg core.AgentConfig, opts RunTaskOptions) (*RunHandle, error) {
	strat, err := e.strategyFor(cfg)
	if err != nil {
		return nil, err
	}

	taskContent, err := os.ReadFile(opts.TaskPath)
	if err != nil {
		return nil, core.NewInvocationError(core.FailureConfiguration, cfg.Provider,
			"failed to read task content from %s: %v", opts.TaskPath, err)
	}

	invocationID := uuid.NewString()
	run := runSpec{
		model:       cfg.Model,
		command:     cfg.Command,
		prompt:      taskPrompt(opts.Role, string(taskContent)),
		workDir:     opts.WorkDir,
		logPath:     opts.LogPath,
		longRunning: true,
		maxBytes:    e.maxOutput,
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	e.mu.Lock()
	e.active[invocationID] = cancel
	e.mu.Unlock()

	release := func() {
		cancel()
		e.mu.Lock()
		delete(e.active, invocationID)
		e.mu.Unlock()
	}

	scoped := e.rotates(strat, opts.ProjectID)
	var key credential.Key
	if scoped {
		key, err = e.rotator.Acquire(runCtx, opts.ProjectID, strat.keyName())
		if err != nil {
			release()
			return nil, err
		}
	}

	events := make(chan StreamEvent, 64)
	emit := func(delta string) {
		select {
		case events <- StreamEvent{Type: EventOutput, Output: delta}:
		case <-runCtx.Done():
		}
	}

	att, err := strat.launch(runCtx, run, key.Value, emit)
	if err != nil {
		release()
		return nil, err
	}

	handle := &RunHandle{ID: invocationID, pid: att.pid, events: events, cancel: cancel}
	e.logger.Info("task execution started",
		"invocation_id", invocationID, "provider", string(cfg.Provider), "pid", att.pid)

	go func() {
		defer release()
		defer close(events)

		content, waitErr := att.wait()

		// At most one rotation per execution: a rate-limited first attempt
		// restarts once with a fresh credential on the same event stream.
		if scoped && waitErr != nil && runCtx.Err() == nil && core.IsKind(waitErr, core.FailureRateLimit) {
			next, rotErr := e.rotator.RateLimited(runCtx, opts.ProjectID, strat.keyName(), key)
			if rotErr == nil {
				key = next
				if retry, launchErr := strat.launch(runCtx, run, key.Value, emit); launchErr == nil {
					content, waitErr = retry.wait()
				} else {
					waitErr = launchErr
				}
			}
		}
		if scoped && waitErr == nil {
			e.rotator.Success(context.Background(), opts.ProjectID, strat.keyName(), key)
		}

		result := e.exitResult(runCtx, strat.provider(), content, waitErr)
		e.logger.Info("task execution finished",
			"invocation_id", invocationID, "state", string(result.State))
		events <- StreamEvent{Type: EventExit, Result: &result}
	}()

	return handle, nil
}

// exitResult maps a terminal attempt error onto the run state machine.
func (e *Engine) exitResult(ctx context.Context, provider core.Provider, content string, err error) ExitResult {
	switch {
	case err == nil:
		return ExitResult{State: RunCompleted, Content: content}
	case errors.Is(err, process.ErrKilled) && ctx.Err() == context.DeadlineExceeded,
		core.IsKind(err, core.FailureTimeout):
		return ExitResult{State: RunTimedOut, Content: content, Err: timeoutError(provider, e.timeout)}
	case errors.Is(err, process.ErrKilled):
		return ExitResult{State: RunKilled, Content: content, Err: err}
	default:
		return ExitResult{State: RunFailed, Content: content, Err: err}
	}
}

// taskPrompt builds the prompt body for a task run.
func taskPrompt(role, content string) string {
	if role == "" {
		return content
	}
	return fmt.Sprintf("You are acting as the %s agent for this task.\n\n%s", role, content)
}
