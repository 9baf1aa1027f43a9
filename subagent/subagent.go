package subagent

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/logging"
	"github.com/hupe1980/planmesh/model"
	"github.com/hupe1980/planmesh/tool"
)

// Options configures an Executor.
type Options struct {
	// Logger receives structured execution logs. Defaults to a no-op
	// logger.
	Logger logging.Logger

	// MaxParallelTools bounds concurrent tool execution within one
	// exchange. Zero or negative runs every call at once.
	MaxParallelTools int

	// HistoryWindow limits how many trailing messages of the history
	// are sent to the model. Zero sends everything. The window never
	// starts on an orphaned tool response.
	HistoryWindow int

	// ToolResultWarnBytes is the tool payload size above which a
	// warning is logged. The payload is kept intact. Zero disables the
	// warning.
	ToolResultWarnBytes int
}

// Result is the outcome of one executor exchange.
type Result struct {
	// Messages is the transcript the exchange produced: the assistant
	// response followed by one tool response message per tool call.
	Messages []core.Message

	// ToolCalls records each invoked tool with its serialized
	// arguments, in call order.
	ToolCalls []core.ToolRecord

	// Usage is the token usage of the model call, when reported.
	Usage *core.TokenUsage
}

// ResponseText returns the assistant text of the exchange.
func (r *Result) ResponseText() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].Text()
}

// ToolResponses returns the tool response payloads in call order.
func (r *Result) ToolResponses() []core.FunctionResponse {
	var frs []core.FunctionResponse
	for _, msg := range r.Messages {
		frs = append(frs, msg.FunctionResponses()...)
	}
	return frs
}

// Executor runs one-exchange tasks against a model with the tools of a
// registry bound. It is safe for concurrent use; parallel task branches
// share one executor.
type Executor struct {
	model    model.Model
	registry *tool.Registry
	logger   logging.Logger

	maxParallelTools int
	historyWindow    int
	warnBytes        int
}

// New creates an Executor for the given model and tool registry. A nil
// registry binds no tools; the model then answers in plain text.
func New(m model.Model, registry *tool.Registry, optFns ...func(o *Options)) *Executor {
	opts := Options{
		Logger:              logging.NoOpLogger{},
		ToolResultWarnBytes: 5000,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Executor{
		model:            m,
		registry:         registry,
		logger:           opts.Logger,
		maxParallelTools: opts.MaxParallelTools,
		historyWindow:    opts.HistoryWindow,
		warnBytes:        opts.ToolResultWarnBytes,
	}
}

// Execute performs one model call over instructions and history and
// executes every tool call the model returned. Tool failures are folded
// into the transcript; only a failed model call returns an error.
func (e *Executor) Execute(ctx context.Context, instructions string, history []core.Message) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := model.Request{
		Instructions: instructions,
		Messages:     trimHistory(history, e.historyWindow),
		Tools:        e.definitions(),
	}

	resp, err := e.model.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	result := &Result{
		Messages: []core.Message{resp.Message},
		Usage:    resp.Usage,
	}

	calls := resp.Message.FunctionCalls()
	if len(calls) == 0 {
		return result, nil
	}

	for _, fc := range calls {
		result.ToolCalls = append(result.ToolCalls, core.ToolRecord{Name: fc.Name, Arguments: fc.Arguments})
	}

	for _, fr := range e.executeCalls(ctx, calls) {
		result.Messages = append(result.Messages, core.NewToolResponseMessage(fr))
	}

	return result, nil
}

// executeCalls runs the batch of tool calls, bounded by the configured
// parallelism, and returns responses in call order.
func (e *Executor) executeCalls(ctx context.Context, calls []core.FunctionCall) []core.FunctionResponse {
	n := len(calls)
	responses := make([]core.FunctionResponse, n)

	if n == 1 {
		responses[0] = e.executeCall(ctx, calls[0])
		return responses
	}

	maxPar := e.maxParallelTools
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range calls {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()
			responses[idx] = e.executeCall(ctx, fc)
		}(i, calls[i])
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		for i := range responses {
			if responses[i].Name == "" {
				responses[i] = core.FunctionResponse{
					ID:    calls[i].ID,
					Name:  calls[i].Name,
					Error: fmt.Sprintf("Tool %s execution failed: %v", calls[i].Name, err),
				}
			}
		}
	}

	e.logger.Debug("subagent.tools.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return responses
}

// executeCall invokes a single tool, converting every failure mode into
// an error-text response.
func (e *Executor) executeCall(ctx context.Context, fc core.FunctionCall) (fr core.FunctionResponse) {
	fr = core.FunctionResponse{ID: fc.ID, Name: fc.Name}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("subagent.tool.panic", "tool", fc.Name, "recover", fmt.Sprint(r))
			fr.Response = ""
			fr.Error = fmt.Sprintf("Tool %s execution failed: %v", fc.Name, panicError(r))
		}
	}()

	if e.registry == nil {
		e.logger.Warn("subagent.tool.unknown", "tool", fc.Name)
		fr.Error = "Unknown tool: " + fc.Name
		return fr
	}

	out, err := e.registry.Invoke(ctx, fc.Name, fc.Arguments)
	if err != nil {
		if errors.Is(err, tool.ErrToolNotFound) {
			e.logger.Warn("subagent.tool.unknown", "tool", fc.Name)
			fr.Error = "Unknown tool: " + fc.Name
			return fr
		}
		fr.Error = fmt.Sprintf("Tool %s execution failed: %v", fc.Name, err)
		return fr
	}

	if e.warnBytes > 0 && len(out) > e.warnBytes {
		e.logger.Warn("subagent.tool.result.oversize", "tool", fc.Name, "bytes", len(out), "limit", e.warnBytes)
	}

	fr.Response = out
	return fr
}

// definitions converts the registry's tools into model tool schemas.
func (e *Executor) definitions() []model.ToolDefinition {
	if e.registry == nil || e.registry.Len() == 0 {
		return nil
	}

	tools := e.registry.All()
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, tl := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        tl.Name(),
				Description: tl.Description(),
				Parameters:  tl.Parameters(),
			},
		})
	}
	return defs
}

// trimHistory applies the trailing window without starting the slice on
// an orphaned tool response.
func trimHistory(history []core.Message, window int) []core.Message {
	if window <= 0 || len(history) <= window {
		return history
	}
	trimmed := history[len(history)-window:]
	for len(trimmed) > 0 && len(trimmed[0].FunctionResponses()) > 0 {
		trimmed = trimmed[1:]
	}
	return trimmed
}

// panicError converts a recovered panic value into an error carrying
// the stack.
func panicError(r any) error {
	return &panicErr{val: r, stack: debug.Stack()}
}

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string {
	return fmt.Sprintf("panic recovered: %v", p.val)
}
