package core

// Role identifies which orchestration role issued a model call. Roles drive
// model routing, prompt selection and per-role accounting.
type Role string

const (
	// RolePlanner generates and advances the plan.
	RolePlanner Role = "planner"
	// RoleWorker executes a single task through the sub-agent.
	RoleWorker Role = "worker"
	// RoleReporter synthesizes the final report.
	RoleReporter Role = "reporter"
	// RoleReact drives the single-loop reasoning strategy.
	RoleReact Role = "react"
)

// Roles returns all known roles in a stable order.
func Roles() []Role {
	return []Role{RolePlanner, RoleWorker, RoleReporter, RoleReact}
}

// Strategy identifies an orchestration architecture.
type Strategy string

const (
	// StrategyPlanExecute runs the planner, worker fan-out, reporter pipeline.
	StrategyPlanExecute Strategy = "plan_and_execute"
	// StrategyReact runs the single reasoning-action loop.
	StrategyReact Strategy = "react"
)
