package credential

import (
	"context"
	"fmt"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
)

// Options configures a Rotator.
type Options struct {
	// Logger receives rotation bookkeeping at debug level.
	Logger logging.Logger
}

// Rotator wraps one invocation attempt with the rotation policy. It performs
// at most one rotation per invocation: a second failure of any kind is
// surfaced to the caller without further retries.
type Rotator struct {
	resolver Resolver
	logger   logging.Logger
}

// NewRotator constructs a Rotator over an external resolver.
func NewRotator(resolver Resolver, optFns ...func(o *Options)) *Rotator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Rotator{resolver: resolver, logger: opts.Logger}
}

// Do fetches a key, runs attempt with it and applies the policy:
//
//   - success: the key's limit hit is cleared and nil returns
//   - rate-limit failure: the limit hit is recorded, a fresh key is fetched
//     and attempt runs exactly once more
//   - any other failure: surfaced immediately, no rotation
//
// Bookkeeping calls are best-effort; a failing RecordLimitHit never masks
// the attempt's own error.
func (r *Rotator) Do(
	ctx context.Context,
	projectID, keyName string,
	attempt func(ctx context.Context, key Key) error,
) error {
	key, err := r.Acquire(ctx, projectID, keyName)
	if err != nil {
		return err
	}

	attemptErr := attempt(ctx, key)
	if attemptErr == nil {
		r.Success(ctx, projectID, keyName, key)
		return nil
	}
	if !core.IsKind(attemptErr, core.FailureRateLimit) {
		return attemptErr
	}

	next, err := r.RateLimited(ctx, projectID, keyName, key)
	if err != nil {
		return err
	}

	if retryErr := attempt(ctx, next); retryErr != nil {
		return retryErr
	}
	r.Success(ctx, projectID, keyName, next)
	return nil
}

// Acquire fetches a currently usable key.
func (r *Rotator) Acquire(ctx context.Context, projectID, keyName string) (Key, error) {
	key, err := r.resolver.GetNextKey(ctx, projectID, keyName)
	if err != nil {
		return Key{}, fmt.Errorf("failed to resolve credential %s: %w", keyName, err)
	}
	return key, nil
}

// Success clears any limit hit recorded against the key. Best effort.
func (r *Rotator) Success(ctx context.Context, projectID, keyName string, key Key) {
	if err := r.resolver.ClearLimitHit(ctx, projectID, keyName, key.ID, key.Source); err != nil {
		r.logger.Warn("failed to clear limit hit", "key_id", key.ID, "error", err.Error())
	}
}

// RateLimited records a limit hit against the key and fetches a replacement.
func (r *Rotator) RateLimited(ctx context.Context, projectID, keyName string, key Key) (Key, error) {
	r.logger.Debug("credential rate limited, rotating",
		"project_id", projectID, "key_name", keyName, "key_id", key.ID)
	if err := r.resolver.RecordLimitHit(ctx, projectID, keyName, key.ID, key.Source); err != nil {
		r.logger.Warn("failed to record limit hit", "key_id", key.ID, "error", err.Error())
	}
	next, err := r.resolver.GetNextKey(ctx, projectID, keyName)
	if err != nil {
		return Key{}, fmt.Errorf("failed to rotate credential %s: %w", keyName, err)
	}
	return next, nil
}
