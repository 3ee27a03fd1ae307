package engine

import "sync"

// EventType discriminates stream events.
type EventType string

const (
	// EventOutput carries one output increment, delivered in generation
	// order as it arrives.
	EventOutput EventType = "output"
	// EventExit is the terminal event; exactly one is delivered per run and
	// the stream is closed afterwards.
	EventExit EventType = "exit"
)

// RunState is the terminal state of a task execution.
type RunState string

const (
	// RunCompleted marks a clean exit.
	RunCompleted RunState = "completed"
	// RunFailed marks a classified failure.
	RunFailed RunState = "failed"
	// RunTimedOut marks expiry of the hard ceiling.
	RunTimedOut RunState = "timed_out"
	// RunKilled marks termination through an external cancellation. It is
	// reachable only for command-line attempts.
	RunKilled RunState = "killed"
)

// StreamEvent is one element of a run's event stream.
type StreamEvent struct {
	Type EventType
	// Output is set on EventOutput.
	Output string
	// Result is set on EventExit.
	Result *ExitResult
}

// ExitResult describes how a run ended. Content holds the accumulated text,
// which remains valid even when the run timed out or failed mid-stream.
type ExitResult struct {
	State   RunState
	Content string
	Err     error
}

// RunHandle is the live handle returned by RunTask.
type RunHandle struct {
	// ID is the invocation identifier.
	ID string

	pid        int
	events     chan StreamEvent
	cancel     func()
	cancelOnce sync.Once
}

// PID returns the operating-system process id of the agent subprocess, or 0
// when the execution is API-backed.
func (h *RunHandle) PID() int { return h.pid }

// Events returns the run's event stream. The channel delivers output events
// in generation order followed by exactly one exit event, then closes; the
// pending completion resolves even after cancellation.
func (h *RunHandle) Events() <-chan StreamEvent { return h.events }

// Cancel aborts the run. Safe to call multiple times and from any goroutine,
// including while another goroutine consumes the event stream.
func (h *RunHandle) Cancel() {
	h.cancelOnce.Do(h.cancel)
}
