package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/taskmesh/core"
)

// customStrategy executes an arbitrary user-supplied CLI. The configured
// command string is split shell-style (quotes honored) but never handed to a
// shell; the prompt is appended as a single argument. Custom commands are
// not credential-scoped.
type customStrategy struct {
	runner *cliRunner
}

func (s *customStrategy) provider() core.Provider { return core.ProviderCustom }

func (s *customStrategy) keyName() string { return "" }

func (s *customStrategy) validate(cfg core.AgentConfig) error {
	if strings.TrimSpace(cfg.Command) == "" {
		err := core.NewInvocationError(core.FailureConfiguration, core.ProviderCustom,
			"custom provider requires a CLI command")
		err.Hint = "Set the agent's command, e.g. \"aider --yes\"."
		return err
	}
	return nil
}

func (s *customStrategy) launch(ctx context.Context, run runSpec, _ string, emit core.OutputSink) (*attempt, error) {
	argv, err := splitCommand(run.command)
	if err != nil {
		return nil, core.NewInvocationError(core.FailureConfiguration, core.ProviderCustom,
			"invalid custom command: %v", err)
	}
	args := append(argv[1:], conversationPrompt(run.system, run.turns, run.prompt))
	return s.runner.run(ctx, s.provider(), argv[0], args, nil, run, emit, nil)
}

// splitCommand splits a command line into an argument vector, honoring
// single and double quotes. It performs no expansion of any kind.
func splitCommand(command string) ([]string, error) {
	var argv []string
	var current strings.Builder
	var quote rune
	inToken := false

	for _, r := range command {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			if inToken {
				argv = append(argv, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", command)
	}
	if inToken {
		argv = append(argv, current.String())
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return argv, nil
}
