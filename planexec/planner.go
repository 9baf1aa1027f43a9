package planexec

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/graph"
	"github.com/hupe1980/planmesh/logging"
	"github.com/hupe1980/planmesh/model"
	"github.com/hupe1980/planmesh/prompt"
)

// plannerNode drives the plan lifecycle. Every invocation first folds
// settled branch results into the plan, then branches on plan state:
// generate the initial plan, dispatch the current step's pending tasks,
// settle a fully executed step, or hand over to the reporter. The
// iteration cap routes to the reporter unconditionally.
func (f *Flow) plannerNode(ctx context.Context, state core.State) (graph.Command, error) {
	plan := state.Plan()
	iterations := state.PlanIterations()

	update := f.foldTaskResults(state, plan)

	if iterations >= f.maxPlanIterations {
		f.logger.Error("planner.iterations.exhausted", "iterations", iterations, "max", f.maxPlanIterations)
		return graph.Command{Update: update, Goto: NodeReporter}, nil
	}

	if plan != nil {
		f.logger.Debug("planner.plan.state", "plan", plan.String())
	}

	switch {
	case plan == nil:
		return f.generatePlan(ctx, state)

	case !plan.Complete():
		step := plan.CurrentStep()
		if pending := step.PendingTasks(); len(pending) > 0 {
			return f.dispatchTasks(state, plan, pending, update), nil
		}
		return f.settleStep(plan, step, update)

	default:
		f.logger.Info("planner.plan.complete", "steps", len(plan.Steps))
		return graph.Command{Update: update, Goto: NodeReporter}, nil
	}
}

// generatePlan issues one model call forcing structured plan output and
// converts the document into the initial plan. Any failure abandons
// planning and routes to the reporter; the iteration counter then stays
// untouched.
func (f *Flow) generatePlan(ctx context.Context, state core.State) (graph.Command, error) {
	instructions, err := prompt.System(core.StrategyPlanExecute, core.RolePlanner, nil)
	if err != nil {
		return graph.Command{}, err
	}

	// First entry seeds the log with context and query.
	var seeds []core.Message
	if state.PlanIterations() == 0 {
		if c := state.Context(); c != "" {
			seeds = append(seeds, core.NewUserMessage("Context information:\n"+c))
		}
		if q := state.Query(); q != "" {
			seeds = append(seeds, core.NewUserMessage("User requirement:\n"+q))
		}
	}
	msgs := state.AppendedMessages(seeds...)

	// The known location list goes into the call only, not into the log.
	callMsgs := msgs
	if poi := state.POIMap(); len(poi) > 0 {
		names := make([]string, 0, len(poi))
		for name := range poi {
			names = append(names, name)
		}
		sort.Strings(names)

		callMsgs = append(append([]core.Message(nil), msgs...),
			core.NewUserMessage("Known location list: "+strings.Join(names, ",")))
	}

	callStart := time.Now()
	mdl := f.resolver.Resolve(core.RolePlanner)

	resp, err := mdl.Generate(ctx, model.Request{
		Instructions: instructions,
		Messages:     callMsgs,
		Tools:        []model.ToolDefinition{rawPlanTool()},
		ToolChoice:   model.ToolChoiceRequired,
	})
	logging.LogModelCall(f.logger, string(core.RolePlanner), mdl.Info().Name, responseTokens(resp), time.Since(callStart), err)
	if err != nil {
		f.logger.Error("planner.plan.failed", "error", err.Error())
		return graph.Command{Goto: NodeReporter}, nil
	}

	raw, err := parseRawPlan(resp.Message)
	if err != nil {
		f.logger.Error("planner.plan.parse_failed", "error", err.Error())
		return graph.Command{Goto: NodeReporter}, nil
	}

	plan := core.NewPlanFromRaw(raw)
	if len(plan.Steps) == 0 {
		f.logger.Error("planner.plan.empty")
		return graph.Command{Goto: NodeReporter}, nil
	}

	f.logger.Info("planner.plan.generated", "steps", len(plan.Steps))

	update := map[string]any{
		core.KeyMessages:        msgs,
		core.KeyCurrentPlan:     plan,
		core.KeyPlannerThinking: raw.Thinking,
		core.KeyPlannerIntent:   raw.Intent,
		core.KeyPlanIterations:  state.PlanIterations() + 1,
		core.KeyTraining:        state.AppendedTraining(plannerTrainingRecord(instructions, msgs, raw)),
	}
	if resp.Usage != nil {
		update[core.KeyTokenUsage] = state.MergedUsage(core.RolePlanner, *resp.Usage)
	}

	return graph.Command{Update: update, Goto: NodePlanner}, nil
}

// dispatchTasks marks the step's pending tasks executing and fans out one
// worker branch per task, each over a private state clone carrying its
// task.
func (f *Flow) dispatchTasks(state core.State, plan *core.Plan, pending []*core.Task, update map[string]any) graph.Command {
	for _, task := range pending {
		task.Status = core.StatusExecuting
	}

	branches := make([]graph.Branch, 0, len(pending))
	for _, task := range pending {
		bs := state.Clone()
		bs[core.KeyCurrentTask] = task.Clone()

		branches = append(branches, graph.Branch{
			Name:  "Task_" + task.ShortID(),
			Node:  NodeWorker,
			State: bs,
		})
	}

	if update == nil {
		update = map[string]any{}
	}
	update[core.KeyCurrentPlan] = plan

	f.logger.Info("planner.tasks.dispatch", "step", plan.CurrentStepIndex, "tasks", len(pending))

	return graph.Command{Update: update, Branches: branches}
}

// settleStep resolves a fully executed step: abort to the reporter when
// every task failed, otherwise mark the step completed and advance the
// cursor by exactly one.
func (f *Flow) settleStep(plan *core.Plan, step *core.Step, update map[string]any) (graph.Command, error) {
	if update == nil {
		update = map[string]any{}
	}
	update[core.KeyCurrentPlan] = plan

	if step.AllFailed() {
		f.logger.Error("planner.step.all_failed", "step", plan.CurrentStepIndex, "tasks", len(step.Tasks))
		return graph.Command{Update: update, Goto: NodeReporter}, nil
	}

	if err := plan.AdvanceStep(); err != nil {
		return graph.Command{}, err
	}

	f.logger.Info("planner.step.complete", "step", plan.CurrentStepIndex-1, "remaining", len(plan.Steps)-plan.CurrentStepIndex)

	return graph.Command{Update: update, Goto: NodePlanner}, nil
}

// foldTaskResults applies the task-scoped results written by worker
// branches to their tasks and rolls their messages, usage and training
// captures into one update. Only tasks still marked executing consume a
// result, so a fold never applies twice.
func (f *Flow) foldTaskResults(state core.State, plan *core.Plan) map[string]any {
	if plan == nil {
		return nil
	}

	var (
		msgs     []core.Message
		usage    core.TokenUsage
		training []core.TrainingRecord
		folded   int
	)

	for _, step := range plan.Steps {
		for _, task := range step.Tasks {
			if task.Status != core.StatusExecuting {
				continue
			}

			tr, ok := state.TaskResult(task.ID)
			if !ok {
				continue
			}

			task.Status = tr.Task.Status
			task.ExecutionResult = tr.Task.ExecutionResult
			task.Tools = tr.Task.Tools

			msgs = append(msgs, tr.Messages...)
			usage = usage.Add(tr.Usage)
			training = append(training, tr.Training...)
			folded++
		}
	}

	if folded == 0 {
		return nil
	}

	f.logger.Debug("planner.results.folded", "tasks", folded)

	update := map[string]any{core.KeyCurrentPlan: plan}
	if len(msgs) > 0 {
		update[core.KeyMessages] = state.AppendedMessages(msgs...)
	}
	if usage != (core.TokenUsage{}) {
		update[core.KeyTokenUsage] = state.MergedUsage(core.RoleWorker, usage)
	}
	if len(training) > 0 {
		update[core.KeyTraining] = state.AppendedTraining(training...)
	}
	return update
}

func responseTokens(resp *model.Response) int {
	if resp == nil || resp.Usage == nil {
		return 0
	}
	return resp.Usage.TotalTokens
}

func plannerTrainingRecord(system string, history []core.Message, raw core.RawPlan) core.TrainingRecord {
	var humans []string
	for _, msg := range history {
		if msg.Role == core.MessageRoleUser {
			humans = append(humans, msg.Text())
		}
	}

	return core.TrainingRecord{
		Role:     core.RolePlanner,
		System:   system,
		Human:    strings.Join(humans, "\n"),
		Steps:    raw.Steps,
		Thinking: raw.Thinking,
		Intent:   raw.Intent,
	}
}
