// Package model defines the provider‑agnostic abstractions and concrete
// helpers for interacting with language / reasoning models inside Planmesh.
//
// Core goals:
//   - One blocking Generate call per exchange, no streaming surface
//   - Normalize tool / function call representation (ToolDefinition, ToolChoice)
//   - Route orchestration roles to different models (Resolver)
//   - Bound total model calls per run (CallLimiter)
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so the orchestration nodes remain decoupled from vendor SDKs.
package model
