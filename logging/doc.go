// Package logging provides a tiny abstraction over slog so taskmesh
// components can depend on a minimal interface (Logger) while callers plug
// in any structured logger. A no-op implementation keeps logging optional.
package logging
