// Package logging provides a minimal logging interface and adapters for Planmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the graph engine and nodes use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	orch, err := planmesh.New(planmesh.StrategyPlanAndExecute, models, tools, planmesh.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
