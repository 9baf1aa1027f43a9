package planexec

import (
	"context"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/graph"
	"github.com/hupe1980/planmesh/logging"
	"github.com/hupe1980/planmesh/model"
	"github.com/hupe1980/planmesh/subagent"
	"github.com/hupe1980/planmesh/tool"
)

// Graph node names of the plan-and-execute pipeline.
const (
	// NodePlanner generates, dispatches and advances the plan.
	NodePlanner graph.NodeID = "planner"
	// NodeWorker executes one task per fan-out branch.
	NodeWorker graph.NodeID = "worker"
	// NodeReporter synthesizes the final report and ends the run.
	NodeReporter graph.NodeID = "reporter"
)

// Options configure the plan-and-execute flow.
type Options struct {
	// Logger receives orchestration log lines. Defaults to a no-op logger.
	Logger logging.Logger

	// MaxPlanIterations caps planning passes before the run is forced to
	// the reporter. Defaults to 10.
	MaxPlanIterations int

	// MaxConcurrentTasks bounds parallel worker branches within one step.
	// Zero means unbounded.
	MaxConcurrentTasks int

	// MaxParallelTools bounds parallel tool calls inside one worker
	// exchange. Zero means unbounded.
	MaxParallelTools int

	// HistoryWindow caps the trailing message history handed to the worker
	// sub-agent. Zero means the full log.
	HistoryWindow int

	// ToolResultWarnBytes is the tool payload size above which the
	// sub-agent logs a warning. Defaults to 5000.
	ToolResultWarnBytes int

	// Callbacks observe node lifecycle and state merges.
	Callbacks []graph.Callback
}

// Flow is the plan-and-execute strategy. It owns the compiled graph, the
// per-role models and the sub-agent executors; one Flow serves any number
// of sequential runs, each over its own state.
type Flow struct {
	resolver          *model.Resolver
	registry          *tool.Registry
	engine            *graph.Engine
	logger            logging.Logger
	worker            *subagent.Executor
	reporter          *subagent.Executor
	maxPlanIterations int
}

// New wires the planner, worker and reporter nodes into a validated graph.
// The resolver routes the planner, worker and reporter roles to their
// models; the registry holds the tools offered to workers.
func New(resolver *model.Resolver, registry *tool.Registry, optFns ...func(o *Options)) (*Flow, error) {
	opts := Options{
		Logger:              logging.NoOpLogger{},
		MaxPlanIterations:   10,
		ToolResultWarnBytes: 5000,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	f := &Flow{
		resolver:          resolver,
		registry:          registry,
		logger:            opts.Logger,
		maxPlanIterations: opts.MaxPlanIterations,
	}

	f.worker = subagent.New(resolver.Resolve(core.RoleWorker), registry, func(o *subagent.Options) {
		o.Logger = opts.Logger
		o.MaxParallelTools = opts.MaxParallelTools
		o.HistoryWindow = opts.HistoryWindow
		o.ToolResultWarnBytes = opts.ToolResultWarnBytes
	})

	// The reporter writes from the accumulated history alone; no tools.
	f.reporter = subagent.New(resolver.Resolve(core.RoleReporter), nil, func(o *subagent.Options) {
		o.Logger = opts.Logger
	})

	g := graph.New(NodePlanner)
	g.AddNode(NodePlanner, f.plannerNode)
	g.AddNode(NodeWorker, f.workerNode)
	g.AddNode(NodeReporter, f.reporterNode)
	g.AddEdge(NodePlanner, NodePlanner)
	g.AddEdge(NodePlanner, NodeWorker)
	g.AddEdge(NodePlanner, NodeReporter)
	g.AddEdge(NodeWorker, NodePlanner)
	g.AddEdge(NodeReporter, graph.End)

	engine, err := graph.NewEngine(g, func(o *graph.Options) {
		o.Config.MaxConcurrentBranches = opts.MaxConcurrentTasks
		o.Logger = opts.Logger
		o.Callbacks = opts.Callbacks
	})
	if err != nil {
		return nil, err
	}
	f.engine = engine

	return f, nil
}

// Strategy identifies the flow.
func (f *Flow) Strategy() core.Strategy { return core.StrategyPlanExecute }

// PrepareInitialState seeds the state for one plan-and-execute run. Extra
// maps merge flat without overriding the seeded keys.
func (f *Flow) PrepareInitialState(query, context string, extras ...map[string]any) core.State {
	state := core.NewState(query, context, extras...)
	state[core.KeyPlanIterations] = 0
	return state
}

// Run executes the graph until the reporter reaches the end marker and
// returns the final state.
func (f *Flow) Run(ctx context.Context, state core.State) (core.State, error) {
	return f.engine.Run(ctx, state)
}

// ExtractResult pulls the consumable outcome out of a finished state.
func (f *Flow) ExtractResult(state core.State) *core.Result {
	return &core.Result{
		Answer:     state.PlanResult(),
		Thinking:   state.PlannerThinking(),
		Intent:     state.PlannerIntent(),
		Iterations: map[core.Role]int{core.RolePlanner: state.PlanIterations()},
		TokenUsage: state.Usage(),
		Training:   state.Training(),
	}
}
