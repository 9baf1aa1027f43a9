package core

import "strings"

// Well-known state keys. Node updates address these keys directly; the merge
// is a flat key overwrite, so concurrent writers must use disjoint keys (see
// TaskResultKey).
const (
	KeyQuery           = "query"
	KeyContext         = "context"
	KeyMessages        = "messages"
	KeyPOIMap          = "poi_map"
	KeyCurrentPlan     = "current_plan"
	KeyPlanIterations  = "plan_iterations"
	KeyCurrentTask     = "current_task"
	KeyPlannerThinking = "planner_thinking"
	KeyPlannerIntent   = "planner_intent"
	KeyPlanResult      = "plan_result"
	KeyReactIterations = "react_iterations"
	KeyReactThoughts   = "react_thoughts"
	KeyReactActions    = "react_actions"
	KeyReactFinish     = "react_finish"
	KeyReactAction     = "react_current_action"
	KeyReactToolName   = "react_current_tool_name"
	KeyReactToolArgs   = "react_current_tool_args"
	KeyTokenUsage      = "token_usage"
	KeyTraining        = "training"

	taskResultPrefix = "task_result:"
)

// TaskResultKey returns the task-scoped state key a worker branch writes its
// TaskResult under. Keys are unique per task, so fan-out merges never clash.
func TaskResultKey(taskID string) string {
	return taskResultPrefix + taskID
}

// IsTaskResultKey reports whether the key carries a worker branch result.
func IsTaskResultKey(key string) bool {
	return strings.HasPrefix(key, taskResultPrefix)
}

// State is the mutable execution context threaded through every node. It is
// exclusively owned by one run. Updates returned by nodes merge in as flat
// key overwrites; the last writer for a key wins and values are never deep
// merged. Fan-out branches operate on private clones and communicate back
// exclusively through their returned updates.
type State map[string]any

// NewState prepares the initial state for a run from the user query, optional
// context and any extra seed entries. Strategy-specific seeds are merged in
// by the strategy's prepare step; extra maps merge flat without overriding
// the seeded keys.
func NewState(query, context string, extras ...map[string]any) State {
	s := State{
		KeyQuery:    query,
		KeyContext:  context,
		KeyMessages: []Message{},
	}

	poi := map[string]any{}
	for _, extra := range extras {
		if m, ok := extra[KeyPOIMap].(map[string]any); ok {
			poi = m
			break
		}
	}
	s[KeyPOIMap] = poi

	for _, extra := range extras {
		for k, v := range extra {
			if _, seeded := s[k]; !seeded {
				s[k] = v
			}
		}
	}
	return s
}

// Merge applies an update as a flat key overwrite.
func (s State) Merge(update map[string]any) {
	for k, v := range update {
		s[k] = v
	}
}

// Clone returns a copy safe to hand to a concurrent branch. Map and slice
// values of the well-known keys are copied; the plan and current task are
// deep copies so branch-local mutation never leaks into the authoritative
// state.
func (s State) Clone() State {
	cp := make(State, len(s))
	for k, v := range s {
		cp[k] = v
	}
	cp[KeyMessages] = append([]Message(nil), s.Messages()...)
	if plan := s.Plan(); plan != nil {
		cp[KeyCurrentPlan] = plan.Clone()
	}
	if task := s.CurrentTask(); task != nil {
		cp[KeyCurrentTask] = task.Clone()
	}
	if poi, ok := s[KeyPOIMap].(map[string]any); ok {
		poiCp := make(map[string]any, len(poi))
		for k, v := range poi {
			poiCp[k] = v
		}
		cp[KeyPOIMap] = poiCp
	}
	if thoughts := s.Thoughts(); thoughts != nil {
		cp[KeyReactThoughts] = append([]string(nil), thoughts...)
	}
	if actions := s.Actions(); actions != nil {
		cp[KeyReactActions] = append([]ActionRecord(nil), actions...)
	}
	cp[KeyTokenUsage] = s.usageCopy()
	cp[KeyTraining] = s.trainingCopy()
	return cp
}

// Query returns the user query the run was started with.
func (s State) Query() string { return s.stringVal(KeyQuery) }

// Context returns the optional background context of the run.
func (s State) Context() string { return s.stringVal(KeyContext) }

// PlanResult returns the final synthesized answer, if any.
func (s State) PlanResult() string { return s.stringVal(KeyPlanResult) }

// PlannerThinking returns the reasoning behind the current plan.
func (s State) PlannerThinking() string { return s.stringVal(KeyPlannerThinking) }

// PlannerIntent returns the planner's statement of the user goal.
func (s State) PlannerIntent() string { return s.stringVal(KeyPlannerIntent) }

// Messages returns the ordered message log. Treat the returned slice as
// read-only; use AppendedMessages to build updates.
func (s State) Messages() []Message {
	if msgs, ok := s[KeyMessages].([]Message); ok {
		return msgs
	}
	return nil
}

// AppendedMessages returns a fresh slice holding the current log plus the
// given messages, suitable for a state update value.
func (s State) AppendedMessages(msgs ...Message) []Message {
	existing := s.Messages()
	out := make([]Message, 0, len(existing)+len(msgs))
	out = append(out, existing...)
	out = append(out, msgs...)
	return out
}

// Plan returns the current plan or nil when none has been generated.
func (s State) Plan() *Plan {
	if p, ok := s[KeyCurrentPlan].(*Plan); ok {
		return p
	}
	return nil
}

// CurrentTask returns the task bound to a worker branch, or nil outside one.
func (s State) CurrentTask() *Task {
	if t, ok := s[KeyCurrentTask].(*Task); ok {
		return t
	}
	return nil
}

// PlanIterations returns the number of completed planning passes.
func (s State) PlanIterations() int { return s.intVal(KeyPlanIterations) }

// ReactIterations returns the number of completed reasoning passes.
func (s State) ReactIterations() int { return s.intVal(KeyReactIterations) }

// ReactFinished reports whether the reasoning loop has settled.
func (s State) ReactFinished() bool {
	v, ok := s[KeyReactFinish].(bool)
	return ok && v
}

// Thoughts returns the accumulated reasoning thought trace.
func (s State) Thoughts() []string {
	if v, ok := s[KeyReactThoughts].([]string); ok {
		return v
	}
	return nil
}

// AppendedThoughts returns a fresh slice holding the trace plus the given
// thought, suitable for a state update value.
func (s State) AppendedThoughts(thought string) []string {
	existing := s.Thoughts()
	out := make([]string, 0, len(existing)+1)
	out = append(out, existing...)
	return append(out, thought)
}

// Actions returns the accumulated reasoning action trace.
func (s State) Actions() []ActionRecord {
	if v, ok := s[KeyReactActions].([]ActionRecord); ok {
		return v
	}
	return nil
}

// AppendedActions returns a fresh slice holding the trace plus the given
// action, suitable for a state update value.
func (s State) AppendedActions(action ActionRecord) []ActionRecord {
	existing := s.Actions()
	out := make([]ActionRecord, 0, len(existing)+1)
	out = append(out, existing...)
	return append(out, action)
}

// CurrentAction returns the pending reasoning decision.
func (s State) CurrentAction() ActionRecord {
	rec := ActionRecord{Action: s.stringVal(KeyReactAction)}
	rec.ToolName = s.stringVal(KeyReactToolName)
	if args, ok := s[KeyReactToolArgs].(map[string]any); ok {
		rec.ToolArgs = args
	}
	return rec
}

// POIMap returns the name to info side-table seeded into the run.
func (s State) POIMap() map[string]any {
	if m, ok := s[KeyPOIMap].(map[string]any); ok {
		return m
	}
	return nil
}

// TaskResult returns the merged worker branch result for a task, if present.
func (s State) TaskResult(taskID string) (*TaskResult, bool) {
	tr, ok := s[TaskResultKey(taskID)].(*TaskResult)
	return tr, ok && tr != nil
}

// Usage returns the per-role token accounting. Treat as read-only; use
// MergedUsage to build updates.
func (s State) Usage() map[Role]TokenUsage {
	if u, ok := s[KeyTokenUsage].(map[Role]TokenUsage); ok {
		return u
	}
	return nil
}

// MergedUsage returns a fresh usage map with the given record added to the
// role's running total, suitable for a state update value.
func (s State) MergedUsage(role Role, usage TokenUsage) map[Role]TokenUsage {
	out := s.usageCopy()
	out[role] = out[role].Add(usage)
	return out
}

// Training returns the per-role capture records. Treat as read-only; use
// AppendedTraining to build updates.
func (s State) Training() map[Role][]TrainingRecord {
	if t, ok := s[KeyTraining].(map[Role][]TrainingRecord); ok {
		return t
	}
	return nil
}

// AppendedTraining returns a fresh capture map with the records appended to
// their roles, suitable for a state update value.
func (s State) AppendedTraining(recs ...TrainingRecord) map[Role][]TrainingRecord {
	out := s.trainingCopy()
	for _, rec := range recs {
		out[rec.Role] = append(out[rec.Role], rec)
	}
	return out
}

func (s State) usageCopy() map[Role]TokenUsage {
	existing := s.Usage()
	out := make(map[Role]TokenUsage, len(existing)+1)
	for k, v := range existing {
		out[k] = v
	}
	return out
}

func (s State) trainingCopy() map[Role][]TrainingRecord {
	existing := s.Training()
	out := make(map[Role][]TrainingRecord, len(existing)+1)
	for k, v := range existing {
		out[k] = append([]TrainingRecord(nil), v...)
	}
	return out
}

func (s State) stringVal(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

func (s State) intVal(key string) int {
	if v, ok := s[key].(int); ok {
		return v
	}
	return 0
}
