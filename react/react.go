package react

import (
	"context"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/graph"
	"github.com/hupe1980/planmesh/logging"
	"github.com/hupe1980/planmesh/model"
	"github.com/hupe1980/planmesh/tool"
)

// Graph node names of the reasoning-action loop.
const (
	// NodeReasoning asks the model for the next decision.
	NodeReasoning graph.NodeID = "reasoning"
	// NodeAction executes the decided tool call, or no-ops on finish.
	NodeAction graph.NodeID = "action"
)

// Decision action values emitted by the reasoning model.
const (
	// ActionCallTool requests one tool invocation.
	ActionCallTool = "call_tool"
	// ActionFinish ends the loop with a final answer.
	ActionFinish = "finish"
)

// Options configure the reasoning-action flow.
type Options struct {
	// Logger receives orchestration log lines. Defaults to a no-op logger.
	Logger logging.Logger

	// MaxIterations caps reasoning passes before finish is forced.
	// Defaults to 15.
	MaxIterations int

	// Callbacks observe node lifecycle and state merges.
	Callbacks []graph.Callback
}

// Flow is the reasoning-action strategy. It owns the compiled graph, the
// reasoning model and the tool registry; one Flow serves any number of
// sequential runs, each over its own state.
type Flow struct {
	resolver      *model.Resolver
	registry      *tool.Registry
	engine        *graph.Engine
	logger        logging.Logger
	maxIterations int
}

// New wires the reasoning and action nodes into a validated graph. The
// resolver routes the react role to its model; the registry holds the tools
// the loop may call.
func New(resolver *model.Resolver, registry *tool.Registry, optFns ...func(o *Options)) (*Flow, error) {
	opts := Options{
		Logger:        logging.NoOpLogger{},
		MaxIterations: 15,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	f := &Flow{
		resolver:      resolver,
		registry:      registry,
		logger:        opts.Logger,
		maxIterations: opts.MaxIterations,
	}

	g := graph.New(NodeReasoning)
	g.AddNode(NodeReasoning, f.reasoningNode)
	g.AddNode(NodeAction, f.actionNode)
	g.AddEdge(NodeReasoning, NodeAction)
	g.AddEdge(NodeAction, NodeReasoning)
	g.AddEdge(NodeAction, graph.End)

	engine, err := graph.NewEngine(g, func(o *graph.Options) {
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
func (f *Flow) Strategy() core.Strategy { return core.StrategyReact }

// PrepareInitialState seeds the state for one reasoning-action run. Extra
// maps merge flat without overriding the seeded keys.
func (f *Flow) PrepareInitialState(query, context string, extras ...map[string]any) core.State {
	state := core.NewState(query, context, extras...)
	state[core.KeyReactIterations] = 0
	state[core.KeyReactFinish] = false
	return state
}

// Run executes the loop until the model finishes or the cap forces it to,
// and returns the final state.
func (f *Flow) Run(ctx context.Context, state core.State) (core.State, error) {
	return f.engine.Run(ctx, state)
}

// ExtractResult pulls the consumable outcome out of a finished state.
func (f *Flow) ExtractResult(state core.State) *core.Result {
	return &core.Result{
		Answer:     state.PlanResult(),
		Thoughts:   state.Thoughts(),
		Actions:    state.Actions(),
		Iterations: map[core.Role]int{core.RoleReact: state.ReactIterations()},
		TokenUsage: state.Usage(),
		Training:   state.Training(),
	}
}
