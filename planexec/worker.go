package planexec

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/graph"
	"github.com/hupe1980/planmesh/prompt"
	"github.com/hupe1980/planmesh/subagent"
	"github.com/hupe1980/planmesh/tool"
)

// workerNode executes exactly one task through the sub-agent and
// classifies the outcome. It always routes back to the planner; the
// settled task travels under its task-scoped result key and is folded
// into the plan there.
func (f *Flow) workerNode(ctx context.Context, state core.State) (graph.Command, error) {
	task := state.CurrentTask()
	if task == nil {
		f.logger.Warn("worker.task.missing")
		return graph.Command{Goto: NodePlanner}, nil
	}

	f.logger.Info("worker.task.start", "task", task.ID, "description", task.Description)

	instructions, err := prompt.System(core.StrategyPlanExecute, core.RoleWorker, nil)
	if err != nil {
		return graph.Command{}, err
	}

	announce := core.NewAssistantMessage(fmt.Sprintf("Task_%s: %s", task.ShortID(), task.Description))
	history := state.AppendedMessages(announce)

	result, err := f.worker.Execute(ctx, instructions, history)
	if err != nil {
		f.logger.Error("worker.task.error", "task", task.ID, "error", err.Error())

		task.Status = core.StatusFailed
		task.ExecutionResult = fmt.Sprintf("Worker task failed: %v", err)

		return taskCommand(task.ID, &core.TaskResult{
			Task: task,
			Messages: []core.Message{
				announce,
				core.NewAssistantMessage(fmt.Sprintf("Task execution exception: %v", err)),
			},
		}), nil
	}

	var disallowed []string
	for _, rec := range result.ToolCalls {
		if tool.IsFlowControl(rec.Name) {
			disallowed = append(disallowed, rec.Name)
		}
	}

	switch {
	case len(disallowed) > 0:
		f.logger.Error("worker.task.flow_control", "task", task.ID, "tools", strings.Join(disallowed, ","))

		task.Status = core.StatusFailed
		task.ExecutionResult = fmt.Sprintf("Task failed: Worker should not use flow control tools (%s)", strings.Join(disallowed, ", "))
		task.Tools = result.ToolCalls

		// The transcript of a policy violation never enters the log.
		return taskCommand(task.ID, &core.TaskResult{
			Task:  task,
			Usage: usageOf(result),
		}), nil

	case len(result.ToolCalls) == 0:
		f.logger.Error("worker.task.no_tools", "task", task.ID, "description", task.Description)

		task.Status = core.StatusFailed
		task.ExecutionResult = fmt.Sprintf("Task failed: No tools called. Task description: %s", task.Description)
		task.Tools = nil

		return taskCommand(task.ID, &core.TaskResult{
			Task:     task,
			Messages: []core.Message{announce},
			Usage:    usageOf(result),
		}), nil

	default:
		task.Status = core.StatusCompleted
		task.ExecutionResult = extractTaskResult(result)
		task.Tools = result.ToolCalls

		f.logger.Info("worker.task.complete", "task", task.ID, "tools", len(result.ToolCalls))

		tr := &core.TaskResult{
			Task:     task,
			Messages: append([]core.Message{announce}, result.Messages...),
			Usage:    usageOf(result),
		}
		if rec, ok := workerTrainingRecord(task.ID, instructions, history, result); ok {
			tr.Training = []core.TrainingRecord{rec}
		}

		return taskCommand(task.ID, tr), nil
	}
}

func taskCommand(taskID string, tr *core.TaskResult) graph.Command {
	return graph.Command{
		Update: map[string]any{core.TaskResultKey(taskID): tr},
		Goto:   NodePlanner,
	}
}

func usageOf(result *subagent.Result) core.TokenUsage {
	if result.Usage != nil {
		return *result.Usage
	}
	return core.TokenUsage{}
}

// extractTaskResult prefers raw tool payloads over the model's own
// narration; tool responses are joined newest first. Without any payload
// the narration is used unless it is a contentless filler phrase.
func extractTaskResult(result *subagent.Result) string {
	var toolResults []string

	frs := result.ToolResponses()
	for i := len(frs) - 1; i >= 0; i-- {
		fr := frs[i]

		content := fr.Response
		if content == "" {
			content = fr.Error
		}
		if content == "" {
			continue
		}
		toolResults = append(toolResults, fmt.Sprintf("Tool %s returned: %s", fr.Name, content))
	}
	if len(toolResults) > 0 {
		return strings.Join(toolResults, "\n")
	}

	if text := strings.TrimSpace(result.ResponseText()); text != "" {
		switch text {
		case "Task completed", "Task execution completed", "Completed":
		default:
			return text
		}
	}

	return "Task execution completed"
}

// workerTrainingRecord captures the exchange for dataset construction.
// Exchanges without user input or without tool calls are not recorded.
func workerTrainingRecord(taskID, system string, history []core.Message, result *subagent.Result) (core.TrainingRecord, bool) {
	var humans []string
	for _, msg := range history {
		if msg.Role == core.MessageRoleUser {
			humans = append(humans, msg.Text())
		}
	}

	var calls []core.FunctionCall
	for _, msg := range result.Messages {
		calls = append(calls, msg.FunctionCalls()...)
	}

	if system == "" || len(humans) == 0 || len(calls) == 0 {
		return core.TrainingRecord{}, false
	}

	results := make(map[string]string, len(calls))
	for _, fr := range result.ToolResponses() {
		content := fr.Response
		if content == "" {
			content = fr.Error
		}
		results[fr.ID] = content
	}

	response := strings.TrimSpace(result.ResponseText())
	if response == "" {
		response = extractTaskResult(result)
	}

	return core.TrainingRecord{
		Role:        core.RoleWorker,
		TaskID:      taskID,
		System:      system,
		Human:       strings.Join(humans, "\n"),
		ToolCalls:   calls,
		ToolResults: results,
		Response:    response,
	}, true
}
