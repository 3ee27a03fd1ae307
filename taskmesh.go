// Package taskmesh provides a high-level façade over the invocation engine
// and the readiness resolver, enabling an external orchestrator to drive
// coding agents with minimal setup. Most applications interact with this
// package by:
//  1. Creating a TaskMesh via New() (optionally supplying a config file,
//     credential resolver and process registry)
//  2. Resolving kanban columns to pick eligible tasks
//  3. Invoking agents synchronously (Invoke) or starting long-running task
//     executions (RunTask)
//
// The façade delegates execution to engine.Engine while keeping setup
// concise. All defaults are safe for local development; production
// deployments typically supply a durable credential resolver, a crash-safe
// process registry and a structured logger.
package taskmesh

import (
	"context"

	"github.com/hupe1980/taskmesh/board"
	"github.com/hupe1980/taskmesh/config"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/credential"
	"github.com/hupe1980/taskmesh/engine"
	"github.com/hupe1980/taskmesh/logging"
)

// Options configures the TaskMesh instance.
type Options struct {
	// Config carries binaries, limits and defaults. Defaults to
	// config.Default().
	Config config.Config
	// Credentials enables project-scoped credential rotation when set.
	Credentials credential.Resolver
	// Registry receives process bookkeeping. Owned by the caller; defaults
	// to a no-op registry.
	Registry core.ProcessRegistry
	// Logger defaults to the no-op logger.
	Logger logging.Logger
}

// TaskMesh aggregates the invocation engine and the readiness resolver.
type TaskMesh struct {
	cfg    config.Config
	engine *engine.Engine
}

// New creates a TaskMesh instance with optional overrides.
func New(optFns ...func(o *Options)) *TaskMesh {
	opts := Options{
		Config:   config.Default(),
		Registry: core.NoopProcessRegistry{},
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	eng := engine.New(func(o *engine.Options) {
		o.Credentials = opts.Credentials
		o.Registry = opts.Registry
		o.Logger = opts.Logger
		o.Timeout = opts.Config.Timeout()
		o.GracePeriod = opts.Config.GracePeriod()
		o.MaxOutputBytes = opts.Config.Execution.MaxOutputBytes
		o.ClaudeBinary = opts.Config.Providers.ClaudeBinary
		o.CursorBinary = opts.Config.Providers.CursorBinary
	})

	return &TaskMesh{cfg: opts.Config, engine: eng}
}

// Engine exposes the underlying invocation engine.
func (m *TaskMesh) Engine() *engine.Engine { return m.engine }

// Invoke executes one synchronous exchange, filling in the configured
// default model when the agent config carries none.
func (m *TaskMesh) Invoke(ctx context.Context, req core.InvocationRequest) (*core.Outcome, error) {
	if req.Config.Model == "" {
		req.Config.Model = m.cfg.DefaultModel(string(req.Config.Provider))
	}
	return m.engine.Invoke(ctx, req)
}

// RunTask starts a long-running task execution and returns a live handle.
func (m *TaskMesh) RunTask(ctx context.Context, cfg core.AgentConfig, opts engine.RunTaskOptions) (*engine.RunHandle, error) {
	if cfg.Model == "" {
		cfg.Model = m.cfg.DefaultModel(string(cfg.Provider))
	}
	return m.engine.RunTask(ctx, cfg, opts)
}

// ResolveColumn derives the kanban column for one task.
func (m *TaskMesh) ResolveColumn(task core.Task, all []core.Task, ready board.ReadySet) core.KanbanColumn {
	return board.ResolveColumn(task, all, ready)
}
