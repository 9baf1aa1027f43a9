// Package subagent provides the one-exchange executor that task nodes
// delegate to.
//
// An Executor performs exactly one model call over a system prompt and
// a message history with the registry's tool schemas bound, then
// executes every tool call the model returned. Tool calls run
// concurrently, bounded by MaxParallelTools, and their responses are
// emitted in call order so the transcript stays deterministic. Tool
// failures never fail the exchange: an unknown tool or a tool error is
// converted into an error-text tool response the model's caller can
// inspect. Only a failed model call surfaces as an error.
//
// The executor does not loop back to the model after tool execution;
// deciding what to do with tool output is the calling node's concern.
package subagent
