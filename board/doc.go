// Package board derives kanban columns from task status and the dependency
// graph. Resolution is a pure function: no external calls, no mutable state,
// no caching. It is cheap enough to run on every task on every read, which
// is exactly how callers are expected to use it.
package board
