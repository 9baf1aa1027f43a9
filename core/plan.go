package core

import (
	"fmt"
	"strings"
)

// Status tracks the lifecycle of plans, steps and tasks.
type Status string

const (
	// StatusPending marks work that has not been dispatched yet.
	StatusPending Status = "pending"
	// StatusExecuting marks work that has been dispatched and not settled.
	StatusExecuting Status = "executing"
	// StatusCompleted marks successfully settled work.
	StatusCompleted Status = "completed"
	// StatusFailed marks unsuccessfully settled work.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is a settled end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ToolRecord logs one tool invocation made on behalf of a task. It is a log
// entry, not a live handle.
type ToolRecord struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // Serialized argument payload (JSON)
}

// Task is an atomic unit of work dispatched to exactly one worker. Its
// terminal status is set exactly once by that worker.
type Task struct {
	ID              string       `json:"task_id"`
	Description     string       `json:"description"`
	Status          Status       `json:"status"`
	ExecutionResult string       `json:"execution_result,omitempty"`
	Tools           []ToolRecord `json:"tools,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Tools = append([]ToolRecord(nil), t.Tools...)
	return &cp
}

// ShortID returns the last eight characters of the task id, used when
// announcing tasks in the message log.
func (t *Task) ShortID() string {
	if len(t.ID) <= 8 {
		return t.ID
	}
	return t.ID[len(t.ID)-8:]
}

// Step is one stage of the plan, holding one or more tasks. Steps execute in
// strict declaration order; a step completes only if not all of its tasks
// failed.
type Step struct {
	Description string  `json:"description"`
	Status      Status  `json:"status"`
	Tasks       []*Task `json:"tasks"`
}

// PendingTasks returns the tasks of the step that have not been dispatched.
func (s *Step) PendingTasks() []*Task {
	var pending []*Task
	for _, t := range s.Tasks {
		if t.Status == StatusPending {
			pending = append(pending, t)
		}
	}
	return pending
}

// Settled reports whether every task of the step reached a terminal status.
func (s *Step) Settled() bool {
	for _, t := range s.Tasks {
		if !t.Status.Terminal() {
			return false
		}
	}
	return true
}

// AllFailed reports whether the step has tasks and every one of them failed.
func (s *Step) AllFailed() bool {
	if len(s.Tasks) == 0 {
		return false
	}
	for _, t := range s.Tasks {
		if t.Status != StatusFailed {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the step.
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}
	cp := &Step{Description: s.Description, Status: s.Status, Tasks: make([]*Task, 0, len(s.Tasks))}
	for _, t := range s.Tasks {
		cp.Tasks = append(cp.Tasks, t.Clone())
	}
	return cp
}

// Plan is the structured decomposition of a request into ordered steps with a
// monotonic cursor. Invariant: 0 <= CurrentStepIndex <= len(Steps); the plan
// is complete when the cursor equals the step count.
type Plan struct {
	Status           Status  `json:"status"`
	Steps            []*Step `json:"steps"`
	CurrentStepIndex int     `json:"current_step_index"`
}

// CurrentStep returns the step under the cursor, or nil when the plan is
// complete.
func (p *Plan) CurrentStep() *Step {
	if p == nil || p.CurrentStepIndex < 0 || p.CurrentStepIndex >= len(p.Steps) {
		return nil
	}
	return p.Steps[p.CurrentStepIndex]
}

// Complete reports whether every step has been consumed.
func (p *Plan) Complete() bool {
	return p != nil && p.CurrentStepIndex >= len(p.Steps)
}

// AdvanceStep marks the current step completed and moves the cursor forward
// by exactly one. The cursor never decreases and never exceeds the step
// count; violations surface as ErrMalformedPlan.
func (p *Plan) AdvanceStep() error {
	if p == nil || p.CurrentStepIndex >= len(p.Steps) {
		return fmt.Errorf("%w: advance beyond final step", ErrMalformedPlan)
	}
	p.Steps[p.CurrentStepIndex].Status = StatusCompleted
	p.CurrentStepIndex++
	if p.Complete() {
		p.Status = StatusCompleted
	}
	return nil
}

// TaskByID locates a task anywhere in the plan.
func (p *Plan) TaskByID(id string) *Task {
	if p == nil {
		return nil
	}
	for _, s := range p.Steps {
		for _, t := range s.Tasks {
			if t.ID == id {
				return t
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	cp := &Plan{Status: p.Status, CurrentStepIndex: p.CurrentStepIndex, Steps: make([]*Step, 0, len(p.Steps))}
	for _, s := range p.Steps {
		cp.Steps = append(cp.Steps, s.Clone())
	}
	return cp
}

// Validate checks the plan's structural invariants.
func (p *Plan) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil plan", ErrMalformedPlan)
	}
	if p.CurrentStepIndex < 0 || p.CurrentStepIndex > len(p.Steps) {
		return fmt.Errorf("%w: step index %d out of range [0,%d]", ErrMalformedPlan, p.CurrentStepIndex, len(p.Steps))
	}
	seen := make(map[string]struct{})
	for i, s := range p.Steps {
		for _, t := range s.Tasks {
			if t.ID == "" {
				return fmt.Errorf("%w: step %d has task without id", ErrMalformedPlan, i)
			}
			if _, dup := seen[t.ID]; dup {
				return fmt.Errorf("%w: duplicate task id %s", ErrMalformedPlan, t.ID)
			}
			seen[t.ID] = struct{}{}
		}
	}
	return nil
}

// String renders the plan as a compact todo list for debug logging.
func (p *Plan) String() string {
	if p == nil {
		return "<no plan>"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "plan status=%s step=%d/%d", p.Status, p.CurrentStepIndex, len(p.Steps))
	for i, s := range p.Steps {
		marker := "  "
		if i == p.CurrentStepIndex {
			marker = ">>"
		}
		fmt.Fprintf(&sb, "\n%s [%s] step %d", marker, s.Status, i)
		for j, t := range s.Tasks {
			fmt.Fprintf(&sb, "\n     [%s] %d. %s", t.Status, j+1, t.Description)
		}
	}
	return sb.String()
}

// RawPlan is the unstructured planning output produced by the model before it
// is converted into a structured Plan.
type RawPlan struct {
	Thinking string   `json:"thinking" description:"Reasoning behind the plan"`
	Intent   string   `json:"intent" description:"One sentence statement of the user's goal"`
	Steps    []string `json:"steps" description:"Ordered step descriptions, one atomic action each"`
}

// NewPlanFromRaw converts a RawPlan into a structured Plan, seeding exactly
// one pending task per declared step.
func NewPlanFromRaw(raw RawPlan) *Plan {
	plan := &Plan{Status: StatusPending, Steps: make([]*Step, 0, len(raw.Steps))}
	for _, desc := range raw.Steps {
		step := &Step{
			Description: desc,
			Status:      StatusPending,
			Tasks: []*Task{{
				ID:          NewID(),
				Description: desc,
				Status:      StatusPending,
			}},
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan
}
