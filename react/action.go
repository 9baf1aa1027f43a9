package react

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/graph"
	"github.com/hupe1980/planmesh/tool"
)

// actionNode executes the decided tool call and appends the observation to
// the conversation. Unknown tools and tool failures become observation text;
// the node no-ops when the decision is finish. Routing continues the loop
// while the model has not finished and the cap is not reached.
func (f *Flow) actionNode(ctx context.Context, state core.State) (graph.Command, error) {
	decision := state.CurrentAction()

	var update map[string]any
	if !state.ReactFinished() && decision.Action == ActionCallTool {
		observation := f.executeTool(ctx, decision.ToolName, decision.ToolArgs)
		update = map[string]any{
			core.KeyMessages: state.AppendedMessages(core.NewUserMessage("Observation: " + observation)),
		}
	}

	// A not-yet-finished loop always returns to reasoning; the cap guard
	// there turns an exhausted loop into an explicit finish.
	next := NodeReasoning
	if state.ReactFinished() {
		next = graph.End
	}

	return graph.Command{Update: update, Goto: next}, nil
}

// executeTool invokes the named tool and folds every failure mode into the
// returned observation string.
func (f *Flow) executeTool(ctx context.Context, name string, args map[string]any) string {
	if name == "" {
		return "Error: no tool name given"
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("Tool execution error: %v", err)
	}

	if f.registry == nil {
		f.logger.Warn("action.tool.unknown", "tool", name)
		return "Error: Unknown tool: " + name
	}

	out, err := f.registry.Invoke(ctx, name, string(payload))
	if err != nil {
		if errors.Is(err, tool.ErrToolNotFound) {
			f.logger.Warn("action.tool.unknown", "tool", name)
			return "Error: Unknown tool: " + name
		}
		f.logger.Error("action.tool.error", "tool", name, "error", err.Error())
		return fmt.Sprintf("Tool execution error: %v", err)
	}

	return out
}
