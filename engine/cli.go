package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/process"
)

// cliRunner executes command-line provider attempts through the process
// manager. It is shared by every subprocess strategy so they differ only in
// argument-vector construction.
type cliRunner struct {
	procs     *process.Manager
	maxOutput int
}

// accumulator collects the attempt's canonical content from the merged
// output stream. The plain accumulator keeps raw bytes; the claude
// long-running mode substitutes a stream-json parser.
type accumulator interface {
	feed(chunk []byte)
	content() string
}

type rawAccumulator struct{ out *boundedBuffer }

func (a *rawAccumulator) feed(chunk []byte) { a.out.Write(chunk) }
func (a *rawAccumulator) content() string   { return a.out.String() }

// run starts the CLI attempt. The prompt always travels as a single argv
// element; nothing is ever passed through a shell.
func (c *cliRunner) run(
	ctx context.Context,
	provider core.Provider,
	path string,
	args []string,
	env []string,
	spec runSpec,
	emit core.OutputSink,
	acc accumulator,
) (*attempt, error) {
	if acc == nil {
		acc = &rawAccumulator{out: newBoundedBuffer(spec.maxBytes)}
	}

	sink := func(chunk []byte) {
		acc.feed(chunk)
		if emit != nil {
			emit(string(chunk))
		}
	}

	h, err := c.procs.Start(ctx, process.Spec{
		Path:    path,
		Args:    args,
		Dir:     spec.workDir,
		Env:     env,
		LogPath: spec.logPath,
	}, sink)
	if err != nil {
		return nil, classify(provider, err, "")
	}

	return &attempt{
		pid: h.PID(),
		wait: func() (string, error) {
			werr := h.Wait()
			content := acc.content()
			if werr == nil {
				return content, nil
			}
			if errors.Is(werr, process.ErrKilled) {
				// The engine distinguishes timeout kills from external
				// cancellation via the attempt context.
				return content, werr
			}
			return content, classify(provider, fmt.Errorf("%s exited: %w", path, werr), content)
		},
	}, nil
}

// keyEnv renders a credential as a process environment entry, or nil when no
// project-scoped key applies (the child then inherits the parent variable).
func keyEnv(name, key string) []string {
	if name == "" || key == "" {
		return nil
	}
	return []string{name + "=" + key}
}
