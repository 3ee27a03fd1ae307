// Package engine executes agent invocations across heterogeneous providers:
// command-line agents run as detached subprocesses, hosted model APIs are
// streamed through their official SDKs, and arbitrary user CLIs execute with
// the same lifecycle guarantees. One strategy per provider tag is fixed at
// construction; dispatch is a closed mapping and an unrecognized tag fails
// with a configuration error before anything starts.
//
// Two entry points cover the two usage shapes:
//
//   - Invoke: synchronous, collects the full response, used for short
//     conversational exchanges
//   - RunTask: non-blocking, returns a live handle whose event stream
//     delivers output increments and exactly one terminal exit event
//
// All strategies share the hard timeout, the output size cap, failure
// classification with remediation hints, and rate-limit-aware credential
// rotation when a project id is supplied.
package engine
