package react

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/graph"
	"github.com/hupe1980/planmesh/logging"
	"github.com/hupe1980/planmesh/model"
	"github.com/hupe1980/planmesh/prompt"
)

// capAnswerText is the answer substituted when the iteration cap forces
// finish before the model produced one.
const capAnswerText = "Reached the maximum number of reasoning iterations without a final answer."

// reasoningNode issues one model call for the next decision. A response that
// does not parse as a decision document degrades to finish with the raw text
// as the answer, and a failed call degrades to finish with the error text;
// the node never aborts the run. Reaching the iteration cap forces finish
// without a model call.
func (f *Flow) reasoningNode(ctx context.Context, state core.State) (graph.Command, error) {
	iterations := state.ReactIterations()

	if iterations >= f.maxIterations {
		f.logger.Error("reasoning.iterations.exhausted", "iterations", iterations, "max", f.maxIterations)

		return graph.Command{
			Update: map[string]any{
				core.KeyReactFinish: true,
				core.KeyReactAction: ActionFinish,
				core.KeyPlanResult:  capAnswerText,
			},
			Goto: NodeAction,
		}, nil
	}

	instructions, err := prompt.System(core.StrategyReact, core.RoleReact, nil)
	if err != nil {
		return graph.Command{}, err
	}

	// First entry seeds the log with context, query and the tool catalog.
	var seeds []core.Message
	if iterations == 0 {
		if c := state.Context(); c != "" {
			seeds = append(seeds, core.NewUserMessage("Context information:\n"+c))
		}
		if q := state.Query(); q != "" {
			seeds = append(seeds, core.NewUserMessage("User query:\n"+q))
		}
		if catalog := f.toolCatalog(); catalog != "" {
			seeds = append(seeds, core.NewUserMessage("Available tools:\n"+catalog))
		}
	}
	msgs := state.AppendedMessages(seeds...)

	callStart := time.Now()
	mdl := f.resolver.Resolve(core.RoleReact)

	resp, err := mdl.Generate(ctx, model.Request{
		Instructions: instructions,
		Messages:     msgs,
	})
	logging.LogModelCall(f.logger, string(core.RoleReact), mdl.Info().Name, totalTokens(resp), time.Since(callStart), err)
	if err != nil {
		// A failed call settles the loop with the error as the answer
		// instead of aborting the run.
		return graph.Command{
			Update: map[string]any{
				core.KeyReactFinish: true,
				core.KeyReactAction: ActionFinish,
				core.KeyPlanResult:  fmt.Sprintf("Error during reasoning: %v", err),
			},
			Goto: NodeAction,
		}, nil
	}

	decision := parseDecision(resp.Message.Text())

	f.logger.Info("reasoning.decision",
		"iteration", iterations+1,
		"action", decision.Action,
		"tool", decision.ToolName,
	)

	update := map[string]any{
		core.KeyReactIterations: iterations + 1,
		core.KeyReactAction:     decision.Action,
		core.KeyReactToolName:   decision.ToolName,
		core.KeyReactToolArgs:   decision.ToolArgs,
		core.KeyMessages:        append(msgs, core.NewAssistantMessage(resp.Message.Text())),
	}
	if thought := strings.TrimSpace(decision.Thought); thought != "" {
		update[core.KeyReactThoughts] = state.AppendedThoughts(thought)
	}
	update[core.KeyReactActions] = state.AppendedActions(core.ActionRecord{
		Action:   decision.Action,
		ToolName: decision.ToolName,
		ToolArgs: decision.ToolArgs,
	})
	if decision.Action == ActionFinish {
		update[core.KeyReactFinish] = true
		update[core.KeyPlanResult] = decision.FinalAnswer
	}
	if resp.Usage != nil {
		update[core.KeyTokenUsage] = state.MergedUsage(core.RoleReact, *resp.Usage)
	}

	return graph.Command{Update: update, Goto: NodeAction}, nil
}

func totalTokens(resp *model.Response) int {
	if resp == nil || resp.Usage == nil {
		return 0
	}
	return resp.Usage.TotalTokens
}

// toolCatalog renders the registered tools as one line per tool.
func (f *Flow) toolCatalog() string {
	if f.registry == nil {
		return ""
	}

	var lines []string
	for _, tl := range f.registry.All() {
		lines = append(lines, fmt.Sprintf("- %s: %s", tl.Name(), tl.Description()))
	}
	return strings.Join(lines, "\n")
}
