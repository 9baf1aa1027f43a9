// Package react implements the reasoning-action strategy: a single loop
// alternating one reasoning model call with one tool invocation until the
// model finishes or the iteration cap forces it to.
//
// The reasoning node asks the model for a JSON decision document naming the
// next action; the action node executes the named tool and feeds the
// observation back into the conversation. Tool failures become observation
// text, never run failures, and an unparseable decision degrades to an
// implicit finish carrying the raw response as the answer. The loop is
// bounded by a configured maximum of reasoning passes (default 15).
package react
