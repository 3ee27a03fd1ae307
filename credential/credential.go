package credential

import "context"

// Source tags where a key was resolved from.
type Source string

const (
	// SourceProject marks a key scoped to a single project.
	SourceProject Source = "project"
	// SourceGlobal marks a shared fallback key.
	SourceGlobal Source = "global"
)

// Key is one usable credential handed out by a Resolver.
type Key struct {
	ID     string
	Value  string
	Source Source
}

// Resolver is the external credential store. Implementations are shared
// across concurrent invocations and must be safe for concurrent use; callers
// must not assume exclusive access to a key beyond a single attempt.
type Resolver interface {
	// GetNextKey returns a currently usable key for the project and
	// provider key name, preferring keys without a recent limit hit.
	GetNextKey(ctx context.Context, projectID, keyName string) (Key, error)
	// RecordLimitHit marks a key as rate-limited.
	RecordLimitHit(ctx context.Context, projectID, keyName, id string, source Source) error
	// ClearLimitHit marks a key as usable again.
	ClearLimitHit(ctx context.Context, projectID, keyName, id string, source Source) error
}
