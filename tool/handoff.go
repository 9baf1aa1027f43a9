package tool

import "strings"

// Flow control tool names. Models sometimes emit calls to these to steer
// orchestration; they are routing signals, not executable tools, and workers
// reject tasks that lead with them.
const (
	// HandoffToPlanner requests control return to the planner.
	HandoffToPlanner = "handoff_to_planner"
	// HandoffToReporter requests control jump to the reporter.
	HandoffToReporter = "handoff_to_reporter"
)

// FlowControlToolNames returns the flow control tool names in declaration order.
func FlowControlToolNames() []string {
	return []string{HandoffToPlanner, HandoffToReporter}
}

// IsFlowControl reports whether name identifies a flow control tool.
func IsFlowControl(name string) bool {
	return name == HandoffToPlanner || name == HandoffToReporter
}

// FlowControlToolList renders the flow control tool names for diagnostics,
// joined with ", ".
func FlowControlToolList() string {
	return strings.Join(FlowControlToolNames(), ", ")
}
