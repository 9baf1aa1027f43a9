package core

import "testing"

func TestMessage_Text(t *testing.T) {
	msg := Message{Role: MessageRoleAssistant, Parts: []Part{
		TextPart{Text: "hello"},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "search", Arguments: "{}"}},
		TextPart{Text: "world"},
	}}
	if got := msg.Text(); got != "hello\nworld" {
		t.Errorf("Text() = %q", got)
	}
}

func TestMessage_FunctionCallsAndResponses(t *testing.T) {
	call := FunctionCall{ID: "c1", Name: "search", Arguments: `{"q":"x"}`}
	msg := NewToolCallMessage(call)

	calls := msg.FunctionCalls()
	if len(calls) != 1 || calls[0].Name != "search" {
		t.Fatalf("FunctionCalls = %+v", calls)
	}
	if msg.Role != MessageRoleAssistant {
		t.Errorf("tool call messages carry the assistant role, got %s", msg.Role)
	}

	resp := NewToolResponseMessage(FunctionResponse{ID: "c1", Name: "search", Response: "found"})
	responses := resp.FunctionResponses()
	if len(responses) != 1 || responses[0].Response != "found" {
		t.Fatalf("FunctionResponses = %+v", responses)
	}
	if resp.Role != MessageRoleTool {
		t.Errorf("tool response messages carry the tool role, got %s", resp.Role)
	}
}

func TestMessage_Constructors(t *testing.T) {
	cases := []struct {
		msg  Message
		role string
		text string
	}{
		{NewSystemMessage("sys"), MessageRoleSystem, "sys"},
		{NewUserMessage("usr"), MessageRoleUser, "usr"},
		{NewAssistantMessage("ast"), MessageRoleAssistant, "ast"},
	}
	for _, tc := range cases {
		if tc.msg.Role != tc.role {
			t.Errorf("role = %s, want %s", tc.msg.Role, tc.role)
		}
		if tc.msg.Text() != tc.text {
			t.Errorf("text = %q, want %q", tc.msg.Text(), tc.text)
		}
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		if id == "" || seen[id] {
			t.Fatalf("IDs must be unique and non-empty, got %q", id)
		}
		seen[id] = true
	}
}
