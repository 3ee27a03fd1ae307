package engine

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/hupe1980/taskmesh/core"
)

// classify maps a raw provider failure onto the failure taxonomy, attaching
// a remediation hint when the kind is recognizable from the error text or
// the process output. Unclassifiable failures pass the raw message through
// unchanged as FailureProvider.
func classify(provider core.Provider, err error, output string) *core.InvocationError {
	var ie *core.InvocationError
	if errors.As(err, &ie) {
		return ie
	}

	ie = &core.InvocationError{Provider: provider, Message: err.Error(), Err: err}

	switch {
	case errors.Is(err, exec.ErrNotFound):
		ie.Kind = core.FailureBinaryNotFound
		ie.Hint = installHint(provider)
	case errors.Is(err, context.DeadlineExceeded):
		ie.Kind = core.FailureTimeout
		ie.Hint = "Increase the engine timeout or split the task into smaller steps."
	default:
		text := strings.ToLower(err.Error() + "\n" + output)
		switch {
		case containsAny(text, "rate limit", "rate_limit", "too many requests", "429", "overloaded"):
			ie.Kind = core.FailureRateLimit
			ie.Hint = rateLimitHint(provider)
		case containsAny(text, "unauthorized", "authentication", "invalid api key", "invalid x-api-key", "401", "403"):
			ie.Kind = core.FailureAuthentication
			ie.Hint = authHint(provider)
		case containsAny(text, "model not found", "unknown model", "invalid model", "model_not_found"):
			ie.Kind = core.FailureModel
			ie.Hint = modelHint(provider)
		default:
			ie.Kind = core.FailureProvider
		}
	}
	return ie
}

// classifyStatus maps an HTTP status from a hosted provider SDK onto a
// failure kind, or FailureProvider when the status is not specific.
func classifyStatus(provider core.Provider, status int, err error) *core.InvocationError {
	ie := &core.InvocationError{Provider: provider, Message: err.Error(), Err: err}
	switch status {
	case 401, 403:
		ie.Kind = core.FailureAuthentication
		ie.Hint = authHint(provider)
	case 404:
		ie.Kind = core.FailureModel
		ie.Hint = modelHint(provider)
	case 429:
		ie.Kind = core.FailureRateLimit
		ie.Hint = rateLimitHint(provider)
	default:
		return classify(provider, err, "")
	}
	return ie
}

func containsAny(text string, markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func installHint(provider core.Provider) string {
	switch provider {
	case core.ProviderClaude:
		return "Install the claude CLI: npm install -g @anthropic-ai/claude-code"
	case core.ProviderCursor:
		return "Install the cursor agent CLI: curl https://cursor.com/install -fsS | bash"
	default:
		return "Check that the configured command is installed and on PATH."
	}
}

func authHint(provider core.Provider) string {
	switch provider {
	case core.ProviderClaude, core.ProviderAnthropic:
		return "Set ANTHROPIC_API_KEY or store a project-scoped Anthropic credential."
	case core.ProviderOpenAI:
		return "Set OPENAI_API_KEY or store a project-scoped OpenAI credential."
	case core.ProviderCursor:
		return "Set CURSOR_API_KEY or run `cursor-agent login`."
	default:
		return "Check the credentials required by the configured command."
	}
}

func rateLimitHint(provider core.Provider) string {
	switch provider {
	case core.ProviderCustom:
		return "The command reported a rate limit; retry after the limit window resets."
	default:
		return "Add additional project credentials to enable rotation, or wait for the limit window to reset."
	}
}

func modelHint(provider core.Provider) string {
	switch provider {
	case core.ProviderClaude:
		return "Check the model id; run `claude --help` for the supported aliases."
	case core.ProviderOpenAI:
		return "Check the model id; list available models with `openai api models.list`."
	case core.ProviderAnthropic:
		return "Check the model id against the Anthropic models documentation."
	default:
		return "Check the model id supported by the configured agent."
	}
}
