package testutil

import (
	"fmt"

	"github.com/hupe1980/planmesh/core"
)

// PlanBuilder helps construct plans with fluent chaining for tests.
// Example:
//
//	plan := NewPlanBuilder().
//		Step("find the station").
//		StepWithTasks("routes", "driving route", "walking route").
//		Cursor(1).
//		Build()
type PlanBuilder struct {
	plan   *core.Plan
	nextID int
}

// NewPlanBuilder creates a builder for an empty pending plan.
func NewPlanBuilder() *PlanBuilder {
	return &PlanBuilder{plan: &core.Plan{Status: core.StatusPending}}
}

// Step appends a step carrying one pending task with the same description
// (chainable).
func (b *PlanBuilder) Step(desc string) *PlanBuilder {
	return b.StepWithTasks(desc, desc)
}

// StepWithTasks appends a step with one pending task per description
// (chainable).
func (b *PlanBuilder) StepWithTasks(desc string, taskDescs ...string) *PlanBuilder {
	step := &core.Step{Description: desc, Status: core.StatusPending}
	for _, td := range taskDescs {
		b.nextID++
		step.Tasks = append(step.Tasks, &core.Task{
			ID:          fmt.Sprintf("task-%d", b.nextID),
			Description: td,
			Status:      core.StatusPending,
		})
	}
	b.plan.Steps = append(b.plan.Steps, step)
	return b
}

// TaskStatus sets the status of one task addressed by step and task index
// (chainable).
func (b *PlanBuilder) TaskStatus(stepIdx, taskIdx int, status core.Status) *PlanBuilder {
	b.plan.Steps[stepIdx].Tasks[taskIdx].Status = status
	return b
}

// StepStatus sets the status of one step (chainable).
func (b *PlanBuilder) StepStatus(stepIdx int, status core.Status) *PlanBuilder {
	b.plan.Steps[stepIdx].Status = status
	return b
}

// Cursor sets the current step index (chainable).
func (b *PlanBuilder) Cursor(idx int) *PlanBuilder {
	b.plan.CurrentStepIndex = idx
	return b
}

// Build returns the constructed *core.Plan.
func (b *PlanBuilder) Build() *core.Plan {
	return b.plan
}
