package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/planmesh/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// ToolChoice steers whether the model may, must or must not call a tool.
type ToolChoice string

const (
	// ToolChoiceAuto lets the model decide freely.
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceRequired forces the model to call one of the offered tools.
	ToolChoiceRequired ToolChoice = "required"
	// ToolChoiceNone forbids tool calls for this request.
	ToolChoiceNone ToolChoice = "none"
)

// Request captures the normalized model input produced by the orchestration
// nodes.
type Request struct {
	Instructions string           `json:"instructions"` // System instructions for the model
	Messages     []core.Message   `json:"messages"`     // Conversation converted to provider messages
	Tools        []ToolDefinition `json:"tools,omitempty"`
	ToolChoice   ToolChoice       `json:"tool_choice,omitempty"`
}

// Response is the complete result of one generation call.
type Response struct {
	ID           string           `json:"id"`
	Message      core.Message     `json:"message"`       // Assistant message (text and/or function calls)
	FinishReason string           `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *core.TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the orchestration nodes to
// drive generation. One call, one complete response.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in‑memory Model useful for tests & examples.
// Responses dequeue in FIFO order; a handler, when set, takes precedence.
// Safe for concurrent use so parallel worker branches can share one mock.
type MockModel struct {
	mu       sync.Mutex
	info     Info
	queue    []*Response
	handler  func(req Request) (*Response, error)
	requests []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
	}
}

// AddResponse enqueues a canned response returned by a later Generate call.
func (m *MockModel) AddResponse(resp *Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resp)
}

// AddTextResponse enqueues a plain text assistant response.
func (m *MockModel) AddTextResponse(text string) {
	m.AddResponse(&Response{
		Message:      core.NewAssistantMessage(text),
		FinishReason: "stop",
	})
}

// AddToolCallResponse enqueues an assistant response carrying function calls.
func (m *MockModel) AddToolCallResponse(calls ...core.FunctionCall) {
	m.AddResponse(&Response{
		Message:      core.NewToolCallMessage(calls...),
		FinishReason: "tool_calls",
	})
}

// SetHandler installs a function answering every Generate call. The queue is
// ignored while a handler is set.
func (m *MockModel) SetHandler(fn func(req Request) (*Response, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// Requests returns a copy of every request seen so far, in call order.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model; answers from the handler or the queue, falling
// back to echoing the last message.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	handler := m.handler
	var queued *Response
	if handler == nil && len(m.queue) > 0 {
		queued = m.queue[0]
		m.queue = m.queue[1:]
	}
	m.mu.Unlock()

	if handler != nil {
		return handler(req)
	}
	if queued != nil {
		return queued, nil
	}

	var inputText string
	if len(req.Messages) > 0 {
		inputText = req.Messages[len(req.Messages)-1].Text()
	}
	return &Response{
		Message:      core.NewAssistantMessage(fmt.Sprintf("Mock response to: %s", inputText)),
		FinishReason: "stop",
	}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
