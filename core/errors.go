package core

import (
	"errors"
	"fmt"
)

// FailureKind classifies an invocation failure. RateLimit is the only kind
// that triggers credential rotation; Configuration is detected before any
// process or call starts and is never retried.
type FailureKind string

const (
	// FailureConfiguration marks an unsupported provider tag or a missing
	// required CLI command.
	FailureConfiguration FailureKind = "configuration"
	// FailureBinaryNotFound marks a missing provider executable.
	FailureBinaryNotFound FailureKind = "binary_not_found"
	// FailureAuthentication marks rejected or missing credentials.
	FailureAuthentication FailureKind = "authentication"
	// FailureRateLimit marks a provider rate limit.
	FailureRateLimit FailureKind = "rate_limit"
	// FailureModel marks an unknown or invalid model identifier.
	FailureModel FailureKind = "model"
	// FailureTimeout marks expiry of the hard invocation ceiling.
	FailureTimeout FailureKind = "timeout"
	// FailureProvider is the unclassified passthrough kind.
	FailureProvider FailureKind = "provider"
)

// InvocationError is the classified failure surfaced by the engine. Message
// preserves the raw provider text; Hint, when classifiable, carries a
// human-actionable remediation appended by Error().
type InvocationError struct {
	Kind     FailureKind
	Provider Provider
	Message  string
	Hint     string
	Err      error // wrapped cause, may be nil
}

// Error implements the error interface. The raw message always passes
// through unchanged; the hint is appended when present.
func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Message)
	if e.Hint != "" {
		msg += "\n" + e.Hint
	}
	return msg
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *InvocationError) Unwrap() error { return e.Err }

// NewInvocationError builds a classified failure without a hint.
func NewInvocationError(kind FailureKind, provider Provider, format string, args ...any) *InvocationError {
	return &InvocationError{Kind: kind, Provider: provider, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the failure kind of err, or FailureProvider when err is not
// a classified invocation error. Returns "" for nil.
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	var ie *InvocationError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return FailureProvider
}

// IsKind reports whether err carries the given failure kind.
func IsKind(err error, kind FailureKind) bool {
	var ie *InvocationError
	return errors.As(err, &ie) && ie.Kind == kind
}
