// Package runner executes many independent orchestration cases with a
// bounded worker pool. Each case gets its own orchestrator instance and its
// own state, so cases share nothing at run time; the pool only bounds how
// many execute at once.
//
// Outcomes land in a thread-safe store that clones on read, keeping
// collected states safe from later caller mutation.
package runner
