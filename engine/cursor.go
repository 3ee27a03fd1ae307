package engine

import (
	"context"

	"github.com/hupe1980/taskmesh/core"
)

// cursorStrategy runs the cursor-agent CLI as a detached subprocess.
type cursorStrategy struct {
	runner *cliRunner
	binary string
}

func (s *cursorStrategy) provider() core.Provider { return core.ProviderCursor }

func (s *cursorStrategy) keyName() string { return "CURSOR_API_KEY" }

func (s *cursorStrategy) validate(core.AgentConfig) error { return nil }

func (s *cursorStrategy) launch(ctx context.Context, run runSpec, key string, emit core.OutputSink) (*attempt, error) {
	args := s.buildArgs(run)
	return s.runner.run(ctx, s.provider(), s.binary, args, keyEnv(s.keyName(), key), run, emit, nil)
}

// buildArgs constructs the cursor-agent argument vector with the prompt as
// one final non-interpreted argument.
func (s *cursorStrategy) buildArgs(run runSpec) []string {
	args := []string{"-p", "--output-format", "text", "--force"}
	if run.model != "" {
		args = append(args, "--model", run.model)
	}
	return append(args, conversationPrompt(run.system, run.turns, run.prompt))
}
