package core

// TokenUsage accumulates token statistics for model calls.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the element-wise sum of two usage records.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// TrainingRecord captures one model exchange for offline dataset
// construction. Fields not applicable to a role stay empty; persistence is
// the caller's concern.
type TrainingRecord struct {
	Role        Role              `json:"role"`
	TaskID      string            `json:"task_id,omitempty"`
	System      string            `json:"system"`
	Human       string            `json:"human"`
	ToolCalls   []FunctionCall    `json:"tool_calls,omitempty"`
	ToolResults map[string]string `json:"tool_results,omitempty"` // call id -> result text
	Response    string            `json:"ai_response,omitempty"`
	Thinking    string            `json:"thinking,omitempty"`
	Intent      string            `json:"intent,omitempty"`
	Steps       []string          `json:"steps,omitempty"`
}

// TaskResult carries one worker branch's complete outcome back across the
// fan-out merge: the settled task, the messages to fold into the log, and the
// branch's accounting. Each result occupies its own task-scoped state key so
// parallel branches never overwrite each other.
type TaskResult struct {
	Task     *Task            `json:"task"`
	Messages []Message        `json:"messages,omitempty"`
	Usage    TokenUsage       `json:"usage"`
	Training []TrainingRecord `json:"training,omitempty"`
}

// ActionRecord logs one reasoning decision of a reasoning-action loop.
type ActionRecord struct {
	Action   string         `json:"action"`
	ToolName string         `json:"tool_name,omitempty"`
	ToolArgs map[string]any `json:"tool_args,omitempty"`
}

// Result is the consumable outcome of a finished run. Strategy-specific
// fields stay zero for the other strategy.
type Result struct {
	Answer     string                    `json:"answer"`
	Thinking   string                    `json:"thinking,omitempty"` // Planner reasoning for the final plan
	Intent     string                    `json:"intent,omitempty"`   // Planner statement of the user goal
	Thoughts   []string                  `json:"thoughts,omitempty"` // Reasoning loop thought trace
	Actions    []ActionRecord            `json:"actions,omitempty"`  // Reasoning loop action trace
	Iterations map[Role]int              `json:"iterations,omitempty"`
	TokenUsage map[Role]TokenUsage       `json:"token_usage"`
	Training   map[Role][]TrainingRecord `json:"training"`
}
