package planexec

import (
	"context"
	"strings"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/graph"
	"github.com/hupe1980/planmesh/prompt"
)

// reportFailureText is the answer substituted when the reporter model
// produces no usable assistant text.
const reportFailureText = "Sorry, failed to generate a valid report."

// summaryTaskText asks the reporter model for the final synthesis over the
// accumulated history.
const summaryTaskText = "Summary task: Based on the conversation above, write the final report answering the user requirement. Format the report as Markdown."

// reporterNode synthesizes the final answer from the accumulated message
// history with one model call and ends the run. A failed call or an empty
// response degrades to a fixed failure string; the reporter never aborts
// the run.
func (f *Flow) reporterNode(ctx context.Context, state core.State) (graph.Command, error) {
	instructions, err := prompt.System(core.StrategyPlanExecute, core.RoleReporter, nil)
	if err != nil {
		return graph.Command{}, err
	}

	summary := core.NewUserMessage(summaryTaskText)
	history := state.AppendedMessages(summary)

	update := map[string]any{}

	result, err := f.reporter.Execute(ctx, instructions, history)
	if err != nil {
		f.logger.Error("reporter.report.failed", "error", err.Error())
		update[core.KeyPlanResult] = reportFailureText
		return graph.Command{Update: update, Goto: graph.End}, nil
	}

	answer := strings.TrimSpace(result.ResponseText())
	if answer == "" {
		f.logger.Error("reporter.report.empty")
		answer = reportFailureText
	}

	f.logger.Info("reporter.report.complete", "chars", len(answer))

	update[core.KeyPlanResult] = answer
	update[core.KeyMessages] = append(history, result.Messages...)
	if result.Usage != nil {
		update[core.KeyTokenUsage] = state.MergedUsage(core.RoleReporter, *result.Usage)
	}

	return graph.Command{Update: update, Goto: graph.End}, nil
}
