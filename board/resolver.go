package board

import (
	"strings"

	"github.com/hupe1980/taskmesh/core"
)

// Gate naming convention. A blocking target is a gate when its id carries
// the reserved suffix or its title matches the reserved title.
const (
	// GateSuffix is the reserved id suffix marking approval-gate tasks.
	GateSuffix = ".gate"
	// GateTitle is the reserved title marking approval-gate tasks.
	GateTitle = "Plan approval gate"
)

// ReadySet is the externally precomputed set of task ids eligible to run.
type ReadySet map[string]struct{}

// NewReadySet builds a ReadySet from task ids.
func NewReadySet(ids ...string) ReadySet {
	rs := make(ReadySet, len(ids))
	for _, id := range ids {
		rs[id] = struct{}{}
	}
	return rs
}

// Contains reports membership. Safe on a nil set.
func (rs ReadySet) Contains(id string) bool {
	_, ok := rs[id]
	return ok
}

// ResolveColumn maps one task to exactly one kanban column given all tasks
// in its project (for dependency lookups) and the ready set.
//
// Closed tasks are done. In-progress tasks with an assignee are in_progress;
// without one, the status alone proves nothing and the open-task rules
// apply. An open task sits behind its first unresolved "blocks" edge: in
// planning when the blocker is a gate, otherwise in backlog. A dangling
// target is treated as already resolved and skipped. With no unresolved
// blocker, ready-set membership decides between ready and backlog.
func ResolveColumn(task core.Task, all []core.Task, ready ReadySet) core.KanbanColumn {
	if task.Status == core.TaskStatusClosed {
		return core.ColumnDone
	}
	if task.Status == core.TaskStatusInProgress && task.Assignee != "" {
		return core.ColumnInProgress
	}

	byID := make(map[string]core.Task, len(all))
	for _, t := range all {
		byID[t.ID] = t
	}

	for _, dep := range task.Dependencies {
		if dep.Kind != core.DependencyBlocks {
			continue
		}
		target, ok := byID[dep.TargetID]
		if !ok {
			continue // dangling edge, treated as resolved
		}
		if target.Status == core.TaskStatusClosed {
			continue
		}
		if IsGate(target) {
			return core.ColumnPlanning
		}
		return core.ColumnBacklog
	}

	if ready.Contains(task.ID) {
		return core.ColumnReady
	}
	return core.ColumnBacklog
}

// IsGate reports whether a task follows the gate naming convention.
func IsGate(t core.Task) bool {
	return strings.HasSuffix(t.ID, GateSuffix) || strings.EqualFold(t.Title, GateTitle)
}

// Columns resolves every task in a project in one pass, returning a map of
// task id to column. Recomputation is idempotent; callers may invoke this on
// every read.
func Columns(all []core.Task, ready ReadySet) map[string]core.KanbanColumn {
	cols := make(map[string]core.KanbanColumn, len(all))
	for _, t := range all {
		cols[t.ID] = ResolveColumn(t, all, ready)
	}
	return cols
}
