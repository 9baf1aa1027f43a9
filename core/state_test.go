package core

import "testing"

func TestNewState_SeedsAndExtras(t *testing.T) {
	extras := map[string]any{
		"poi_map": map[string]any{"museum": "downtown"},
		"query":   "should not override",
		"custom":  42,
	}

	s := NewState("find the museum", "city guide", extras)

	if s.Query() != "find the museum" {
		t.Errorf("extras must not override the seeded query, got %q", s.Query())
	}
	if s.Context() != "city guide" {
		t.Errorf("context = %q", s.Context())
	}
	if s.Messages() == nil || len(s.Messages()) != 0 {
		t.Error("messages should seed as an empty slice")
	}
	if s.PlanIterations() != 0 {
		t.Errorf("plan iterations should seed as 0, got %d", s.PlanIterations())
	}
	if s.Plan() != nil {
		t.Error("no plan should exist before the first planning pass")
	}
	if v, ok := s["custom"]; !ok || v.(int) != 42 {
		t.Error("unseeded extra keys should merge in")
	}
	if s.POIMap()["museum"] != "downtown" {
		t.Errorf("poi_map from extras not applied: %+v", s.POIMap())
	}
}

func TestState_MergeOverwrites(t *testing.T) {
	s := NewState("q", "")
	s.Merge(map[string]any{KeyPlanIterations: 2, "note": "a"})
	s.Merge(map[string]any{"note": "b"})

	if s.PlanIterations() != 2 {
		t.Errorf("plan iterations = %d, want 2", s.PlanIterations())
	}
	if s["note"] != "b" {
		t.Error("merge should be a flat overwrite, last writer wins")
	}
}

func TestState_CloneIsolation(t *testing.T) {
	s := NewState("q", "c")
	s.Merge(map[string]any{
		KeyMessages:    []Message{NewUserMessage("hello")},
		KeyCurrentPlan: NewPlanFromRaw(RawPlan{Steps: []string{"one"}}),
	})

	clone := s.Clone()
	clone.Merge(map[string]any{KeyQuery: "changed"})
	clone.Plan().Steps[0].Status = StatusFailed
	clone.Merge(map[string]any{KeyMessages: clone.AppendedMessages(NewUserMessage("extra"))})
	clone.POIMap()["new"] = true

	if s.Query() != "q" {
		t.Error("clone key overwrite leaked into original")
	}
	if s.Plan().Steps[0].Status != StatusPending {
		t.Error("clone plan mutation leaked into original")
	}
	if len(s.Messages()) != 1 {
		t.Errorf("clone append leaked into original, len = %d", len(s.Messages()))
	}
	if _, ok := s.POIMap()["new"]; ok {
		t.Error("clone poi_map mutation leaked into original")
	}
}

func TestState_AppendedMessages(t *testing.T) {
	s := NewState("q", "")
	first := NewUserMessage("one")
	s.Merge(map[string]any{KeyMessages: s.AppendedMessages(first)})

	out := s.AppendedMessages(NewAssistantMessage("two"))
	if len(out) != 2 {
		t.Fatalf("appended slice len = %d, want 2", len(out))
	}
	if len(s.Messages()) != 1 {
		t.Error("AppendedMessages must not mutate the stored log")
	}
	if out[0].Text() != "one" || out[1].Text() != "two" {
		t.Error("appended slice should preserve order")
	}
}

func TestState_UsageAccounting(t *testing.T) {
	s := NewState("q", "")
	s.Merge(map[string]any{KeyTokenUsage: s.MergedUsage(RoleWorker, TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})})
	s.Merge(map[string]any{KeyTokenUsage: s.MergedUsage(RoleWorker, TokenUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3})})
	s.Merge(map[string]any{KeyTokenUsage: s.MergedUsage(RolePlanner, TokenUsage{TotalTokens: 7})})

	usage := s.Usage()
	if got := usage[RoleWorker]; got.TotalTokens != 18 || got.PromptTokens != 11 || got.CompletionTokens != 7 {
		t.Errorf("worker usage = %+v", got)
	}
	if usage[RolePlanner].TotalTokens != 7 {
		t.Errorf("planner usage = %+v", usage[RolePlanner])
	}
}

func TestState_TrainingAccumulation(t *testing.T) {
	s := NewState("q", "")
	s.Merge(map[string]any{KeyTraining: s.AppendedTraining(TrainingRecord{Role: RolePlanner, Response: "plan"})})
	s.Merge(map[string]any{KeyTraining: s.AppendedTraining(TrainingRecord{Role: RoleWorker, TaskID: "t1", Response: "done"})})
	s.Merge(map[string]any{KeyTraining: s.AppendedTraining(TrainingRecord{Role: RoleWorker, TaskID: "t2", Response: "done"})})

	training := s.Training()
	if len(training[RolePlanner]) != 1 {
		t.Errorf("planner records = %d, want 1", len(training[RolePlanner]))
	}
	if len(training[RoleWorker]) != 2 {
		t.Errorf("worker records = %d, want 2", len(training[RoleWorker]))
	}
	if training[RoleWorker][1].TaskID != "t2" {
		t.Error("records should append in order")
	}
}

func TestState_TaskResultKeys(t *testing.T) {
	key := TaskResultKey("abc123")
	if !IsTaskResultKey(key) {
		t.Errorf("%q should be recognized as a task result key", key)
	}
	if IsTaskResultKey(KeyMessages) {
		t.Error("regular keys must not look like task result keys")
	}

	s := NewState("q", "")
	want := &TaskResult{Task: &Task{ID: "abc123", Status: StatusCompleted}}
	s.Merge(map[string]any{key: want})

	got, ok := s.TaskResult("abc123")
	if !ok || got != want {
		t.Fatalf("TaskResult lookup failed: %v %v", got, ok)
	}
	if _, ok := s.TaskResult("missing"); ok {
		t.Error("missing task result should report false")
	}
}
