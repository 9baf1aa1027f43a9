package testutil

import "github.com/hupe1980/planmesh/core"

// MessageBuilder helps construct message logs with fluent chaining for
// tests. Example:
//
//	msgs := NewMessageBuilder().
//		User("find the station").
//		ToolCall("query_poi", `{"name":"central"}`).
//		ToolResponse("query_poi", `{"lon":1,"lat":2}`).
//		Build()
type MessageBuilder struct {
	msgs []core.Message
}

// NewMessageBuilder creates an empty message log builder.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{}
}

// User appends a user text message (chainable).
func (b *MessageBuilder) User(text string) *MessageBuilder {
	b.msgs = append(b.msgs, core.NewUserMessage(text))
	return b
}

// Assistant appends an assistant text message (chainable).
func (b *MessageBuilder) Assistant(text string) *MessageBuilder {
	b.msgs = append(b.msgs, core.NewAssistantMessage(text))
	return b
}

// ToolCall appends an assistant message carrying one function call
// (chainable). The call id equals the tool name.
func (b *MessageBuilder) ToolCall(name, args string) *MessageBuilder {
	b.msgs = append(b.msgs, core.NewToolCallMessage(core.FunctionCall{
		ID:        name,
		Name:      name,
		Arguments: args,
	}))
	return b
}

// ToolResponse appends a tool response message (chainable). The response id
// equals the tool name, matching ToolCall.
func (b *MessageBuilder) ToolResponse(name, response string) *MessageBuilder {
	b.msgs = append(b.msgs, core.NewToolResponseMessage(core.FunctionResponse{
		ID:       name,
		Name:     name,
		Response: response,
	}))
	return b
}

// Build returns the constructed message log.
func (b *MessageBuilder) Build() []core.Message {
	return b.msgs
}
