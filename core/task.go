package core

import "strings"

// TaskStatus is the authoritative lifecycle state of a task as reported by
// the external issue tracker.
type TaskStatus string

const (
	// TaskStatusOpen marks a task that has not been started.
	TaskStatusOpen TaskStatus = "open"
	// TaskStatusInProgress marks a task an agent or human is working on.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusClosed marks a finished task.
	TaskStatusClosed TaskStatus = "closed"
)

// DependencyKind categorizes an edge between two tasks. Only "blocks" edges
// affect readiness; the other kinds are carried for completeness so callers
// can hand over the full edge set unfiltered.
type DependencyKind string

const (
	// DependencyBlocks prevents the source task from running until the
	// target is closed.
	DependencyBlocks DependencyKind = "blocks"
	// DependencyParentChild records hierarchical structure.
	DependencyParentChild DependencyKind = "parent-child"
	// DependencyRelated is an informational link.
	DependencyRelated DependencyKind = "related"
)

// Dependency is a directed edge from a task to a target task.
type Dependency struct {
	TargetID string         `json:"target_id"`
	Kind     DependencyKind `json:"kind"`
}

// KanbanColumn is the derived eligibility/progress state of a task. It is
// never authoritative: it is recomputed on every read from status, the
// dependency graph and the externally supplied ready set.
type KanbanColumn string

const (
	// ColumnPlanning holds tasks blocked behind an approval gate.
	ColumnPlanning KanbanColumn = "planning"
	// ColumnBacklog holds tasks that are not yet eligible to run.
	ColumnBacklog KanbanColumn = "backlog"
	// ColumnReady holds tasks eligible for dispatch.
	ColumnReady KanbanColumn = "ready"
	// ColumnInProgress holds tasks with an active assignee.
	ColumnInProgress KanbanColumn = "in_progress"
	// ColumnDone holds closed tasks.
	ColumnDone KanbanColumn = "done"
	// ColumnBlocked is reserved for externally flagged tasks; the resolver
	// never produces it.
	ColumnBlocked KanbanColumn = "blocked"
)

// Task is a read-only view of a tracker issue. The core never mutates tasks;
// it only derives columns from them.
type Task struct {
	ID           string       `json:"id"`
	ProjectID    string       `json:"project_id"`
	Title        string       `json:"title"`
	Status       TaskStatus   `json:"status"`
	Priority     int          `json:"priority"`           // 0 (highest) .. 4
	Assignee     string       `json:"assignee,omitempty"` // empty when unassigned
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

// Epic returns the epic identifier derived from the task id structure: the
// id up to its last dot separator. A task without a dot is its own epic.
func (t Task) Epic() string {
	if i := strings.LastIndex(t.ID, "."); i > 0 {
		return t.ID[:i]
	}
	return t.ID
}
