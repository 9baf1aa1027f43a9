package core

import (
	"fmt"
	"strings"
)

// Conversation roles used on messages. These mirror the provider chat roles.
const (
	MessageRoleSystem    = "system"
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleTool      = "tool"
)

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string // Plain UTF-8 text
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// FunctionCall describes a tool/function invocation request.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Optional stable id (can be supplied later)
	Name      string `json:"name"`                // Tool / function name
	Arguments string `json:"arguments,omitempty"` // Serialized argument payload (e.g. JSON)
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
}

// isPart implements the Part interface for FunctionCallPart.
func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"`       // Matches originating FunctionCall ID
	Name     string `json:"name"`               // Function name
	Response string `json:"response,omitempty"` // Successful result text
	Error    string `json:"error,omitempty"`    // Populated on failure
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
}

// isPart implements the Part interface for FunctionResponsePart.
func (FunctionResponsePart) isPart() {}

// Message holds role + ordered parts. It is the unit of the state's message
// log and of every model exchange.
type Message struct {
	Role  string `json:"role"`  // Conversation role (system, user, assistant, tool)
	Parts []Part `json:"parts"` // Ordered heterogeneous parts
}

// NewSystemMessage builds a system role message from plain text.
func NewSystemMessage(text string) Message {
	return Message{Role: MessageRoleSystem, Parts: []Part{TextPart{Text: text}}}
}

// NewUserMessage builds a user role message from plain text.
func NewUserMessage(text string) Message {
	return Message{Role: MessageRoleUser, Parts: []Part{TextPart{Text: text}}}
}

// NewAssistantMessage builds an assistant role message from plain text.
func NewAssistantMessage(text string) Message {
	return Message{Role: MessageRoleAssistant, Parts: []Part{TextPart{Text: text}}}
}

// NewToolCallMessage builds an assistant message carrying function calls.
func NewToolCallMessage(calls ...FunctionCall) Message {
	parts := make([]Part, 0, len(calls))
	for _, fc := range calls {
		parts = append(parts, FunctionCallPart{FunctionCall: fc})
	}
	return Message{Role: MessageRoleAssistant, Parts: parts}
}

// NewToolResponseMessage builds a tool role message for one function response.
func NewToolResponseMessage(fr FunctionResponse) Message {
	return Message{Role: MessageRoleTool, Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
}

// Text joins all text parts of the message with newlines.
func (m Message) Text() string {
	var texts []string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			texts = append(texts, tp.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// FunctionCalls returns all function call parts of the message.
func (m Message) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range m.Parts {
		if fcp, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fcp.FunctionCall)
		}
	}
	return calls
}

// FunctionResponses returns all function response parts of the message.
func (m Message) FunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range m.Parts {
		if frp, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, frp.FunctionResponse)
		}
	}
	return responses
}

// String renders a compact debug representation of the message.
func (m Message) String() string {
	summaries := make([]string, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch v := p.(type) {
		case TextPart:
			summaries = append(summaries, v.Text)
		case FunctionCallPart:
			summaries = append(summaries, fmt.Sprintf("call:%s", v.FunctionCall.Name))
		case FunctionResponsePart:
			summaries = append(summaries, fmt.Sprintf("response:%s", v.FunctionResponse.Name))
		}
	}
	return fmt.Sprintf("%s: %s", m.Role, strings.Join(summaries, " | "))
}
