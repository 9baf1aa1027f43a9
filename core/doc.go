// Package core provides the foundational domain types used by Planmesh. It
// defines the core abstractions for:
//
//   - State (the mutable execution context threaded through every node)
//   - Plan / Step / Task (the structured decomposition the planner maintains)
//   - Messages (role-based content with a closed Part union)
//   - Roles (planner, worker, reporter, react) and per-role accounting
//   - Result extraction (answer, token usage, training captures)
//
// The package intentionally keeps implementation concerns (graph execution,
// model providers, tool backends) out of scope, exposing plain data types so
// higher layers remain decoupled. All exported identifiers include concise
// documentation to aid discoverability and external consumption.
package core
