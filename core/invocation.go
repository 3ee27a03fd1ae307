package core

// Provider identifies the agent backend an invocation targets. The set is
// closed: the engine maps every tag to exactly one strategy at construction
// time and rejects anything else with a ConfigurationError.
type Provider string

const (
	// ProviderClaude runs the claude CLI as a detached subprocess.
	ProviderClaude Provider = "claude"
	// ProviderCursor runs the cursor-agent CLI as a detached subprocess.
	ProviderCursor Provider = "cursor"
	// ProviderOpenAI calls the hosted OpenAI API (chat or responses
	// surface, selected by the model id).
	ProviderOpenAI Provider = "openai"
	// ProviderAnthropic calls the hosted Anthropic Messages API.
	ProviderAnthropic Provider = "anthropic"
	// ProviderCustom executes an arbitrary user-supplied CLI.
	ProviderCustom Provider = "custom"
)

// AgentConfig selects and parameterizes a provider. It is immutable per
// invocation.
type AgentConfig struct {
	Provider Provider `json:"provider"`
	// Model is the provider-specific model identifier. Optional; providers
	// fall back to their own defaults.
	Model string `json:"model,omitempty"`
	// Command is the CLI command line for ProviderCustom. Required for that
	// provider and ignored by all others.
	Command string `json:"command,omitempty"`
}

// Turn is one prior exchange in a conversation, ordered oldest first.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// OutputSink receives streaming deltas as they arrive. Implementations must
// not block for long periods; delivery happens on the invocation's own
// goroutine in generation order.
type OutputSink func(delta string)

// InvocationRequest carries everything needed for one synchronous exchange.
type InvocationRequest struct {
	Config       AgentConfig
	Prompt       string
	SystemPrompt string
	Turns        []Turn
	WorkDir      string
	// ProjectID enables project-scoped credential rotation when set.
	ProjectID string
	// Sink, when non-nil, receives streaming deltas while the engine
	// accumulates the full response for the outcome.
	Sink OutputSink
}

// Outcome is the successful result of an invocation. Failures are reported
// as *InvocationError instead. Outcomes are ephemeral; nothing in this core
// persists them.
type Outcome struct {
	Content string `json:"content"`
}

// ProcessRegistry is the external crash-recovery bookkeeping for spawned
// agent processes. Implementations must be safe for concurrent use from
// unrelated invocations.
type ProcessRegistry interface {
	// Register records a started process and whether it leads its own
	// process group.
	Register(pid int, processGroup bool)
	// Unregister removes a process. Called exactly once per registered pid,
	// on normal exit or kill.
	Unregister(pid int, processGroup bool)
}

// NoopProcessRegistry discards all registrations. Useful default for tests
// and callers without crash-recovery bookkeeping.
type NoopProcessRegistry struct{}

// Register implements ProcessRegistry.
func (NoopProcessRegistry) Register(int, bool) {}

// Unregister implements ProcessRegistry.
func (NoopProcessRegistry) Unregister(int, bool) {}
