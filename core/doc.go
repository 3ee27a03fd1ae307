// Package core provides the foundational domain types shared by the
// taskmesh components. It defines:
//
//   - Tasks, dependency edges and derived kanban columns
//   - Agent configurations and the closed provider set
//   - Invocation requests and outcomes
//   - The failure taxonomy (InvocationError / FailureKind)
//   - Small interfaces consumed from external collaborators
//     (process registry, task source)
//
// The package intentionally keeps implementation concerns (process
// management, provider SDKs, rotation policy) out of scope, exposing small
// interfaces so the engine and resolver remain decoupled from their
// collaborators.
package core
