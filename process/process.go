package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
)

// ErrKilled is reported by Handle.Wait when the process was terminated
// through Kill rather than exiting on its own.
var ErrKilled = errors.New("process killed")

// DefaultGracePeriod is how long a termination signal may go unanswered
// before the kill escalates to a forceful signal.
const DefaultGracePeriod = 5 * time.Second

// Spec describes one agent process to launch. The argument vector is passed
// to the OS verbatim; nothing is ever interpreted by a shell.
type Spec struct {
	Path string
	Args []string
	Dir  string
	// Env entries are appended to the parent environment.
	Env []string
	// LogPath, when set, receives the merged stdout/stderr stream.
	LogPath string
}

// Sink receives merged output chunks in generation order. The chunk slice is
// only valid for the duration of the call.
type Sink func(chunk []byte)

// Options holds dependency overrides passed to NewManager.
type Options struct {
	// Registry receives register/unregister bookkeeping for every spawned
	// process. Defaults to a no-op registry.
	Registry core.ProcessRegistry
	// Logger for lifecycle events. Defaults to no-op.
	Logger logging.Logger
	// GracePeriod between the graceful and the forceful termination signal.
	GracePeriod time.Duration
}

// Manager spawns, tracks and terminates agent processes. Safe for concurrent
// use; each Start is independent.
type Manager struct {
	registry core.ProcessRegistry
	logger   logging.Logger
	grace    time.Duration
}

// NewManager constructs a Manager with optional overrides.
func NewManager(optFns ...func(o *Options)) *Manager {
	opts := Options{
		Registry:    core.NoopProcessRegistry{},
		Logger:      logging.NoOpLogger{},
		GracePeriod: DefaultGracePeriod,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{registry: opts.Registry, logger: opts.Logger, grace: opts.GracePeriod}
}

// Start launches the process described by spec detached in its own process
// group and begins streaming merged output to sink. It returns immediately
// with a live handle. Cancelling ctx triggers the same graceful-then-forceful
// termination path as Handle.Kill.
func (m *Manager) Start(ctx context.Context, spec Spec, sink Sink) (*Handle, error) {
	cmd, reader, logFile, err := buildCmd(spec)
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		reader.Close()
		if w, ok := cmd.Stdout.(*os.File); ok {
			w.Close()
		}
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("failed to start %s: %w", spec.Path, err)
	}
	// Close the parent's copy of the write end so the reader sees EOF once
	// the child (and its group) stops writing.
	if w, ok := cmd.Stdout.(*os.File); ok {
		w.Close()
	}

	pid := cmd.Process.Pid
	m.registry.Register(pid, true)
	m.logger.Debug("agent process started", "pid", pid, "path", spec.Path)

	h := &Handle{pid: pid, grace: m.grace, done: make(chan struct{})}

	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, rerr := reader.Read(buf)
			if n > 0 {
				if logFile != nil {
					_, _ = logFile.Write(buf[:n])
				}
				if sink != nil {
					sink(buf[:n])
				}
			}
			if rerr != nil {
				break
			}
		}
		reader.Close()
		if logFile != nil {
			logFile.Close()
		}

		werr := cmd.Wait()
		if h.killed.Load() {
			h.err = ErrKilled
		} else {
			h.err = werr
		}
		m.registry.Unregister(pid, true)
		logging.LogProcessExit(m.logger, pid, h.killed.Load(), werr)
		close(h.done)
	}()

	go func() {
		select {
		case <-ctx.Done():
			h.Kill()
		case <-h.done:
		}
	}()

	return h, nil
}

// buildCmd assembles the exec.Cmd with merged stdio. Stdout and stderr share
// one pipe write end so the ordering of the merged stream matches what the
// process actually emitted.
func buildCmd(spec Spec) (cmd *exec.Cmd, reader, logFile *os.File, err error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create output pipe: %w", err)
	}

	if spec.LogPath != "" {
		logFile, err = os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			pr.Close()
			pw.Close()
			return nil, nil, nil, fmt.Errorf("failed to open output log: %w", err)
		}
	}

	cmd = exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw
	detach(cmd)

	return cmd, pr, logFile, nil
}

// Handle is the cancellation capability for a running agent process. It is
// owned by the Manager for its lifetime; callers receive it only to observe
// completion and to cancel.
type Handle struct {
	pid   int
	grace time.Duration

	done     chan struct{}
	killOnce sync.Once
	killed   atomic.Bool
	err      error // valid once done is closed
}

// PID returns the operating-system process identifier.
func (h *Handle) PID() int { return h.pid }

// Done is closed after the process has exited and all output has been
// delivered.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the process exits. It returns nil on clean exit,
// ErrKilled after a Kill, or the exec error otherwise.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Killed reports whether Kill was invoked.
func (h *Handle) Killed() bool { return h.killed.Load() }

// Kill terminates the whole process group: a graceful signal first, then a
// forceful one after the grace period if the process has not exited. It is
// safe to call multiple times and never blocks on the escalation timer.
func (h *Handle) Kill() {
	h.killOnce.Do(func() {
		h.killed.Store(true)
		_ = terminate(h.pid)
		go func() {
			timer := time.NewTimer(h.grace)
			defer timer.Stop()
			select {
			case <-h.done:
			case <-timer.C:
				_ = forceKill(h.pid)
			}
		}()
	})
}
