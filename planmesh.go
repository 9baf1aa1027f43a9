// Package planmesh provides a high-level façade over the orchestration
// strategies, enabling construction of plan-driven LLM agent runs with a few
// lines of setup. Most applications interact with this package by:
//  1. Building a model.Resolver routing the orchestration roles to models
//  2. Registering domain tools in a tool.Registry
//  3. Creating an Orchestrator via New() for the desired strategy
//  4. Calling PrepareInitialState, Run and ExtractResult per case
//
// The façade delegates execution to the strategy packages (planexec, react)
// while keeping setup ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a
// structured logger and per-role models resolved from a config file.
package planmesh

import (
	"context"
	"fmt"

	"github.com/hupe1980/planmesh/config"
	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/graph"
	"github.com/hupe1980/planmesh/logging"
	"github.com/hupe1980/planmesh/model"
	"github.com/hupe1980/planmesh/planexec"
	"github.com/hupe1980/planmesh/react"
	"github.com/hupe1980/planmesh/tool"
)

// Orchestrator drives one strategy over per-run states. Implementations are
// safe for sequential reuse across runs; each run owns its State.
type Orchestrator interface {
	// Strategy identifies the orchestration architecture.
	Strategy() core.Strategy

	// PrepareInitialState seeds the state for one run. Extra maps merge
	// flat without overriding the seeded keys.
	PrepareInitialState(query, context string, extras ...map[string]any) core.State

	// Run executes the strategy until its terminal node and returns the
	// final state.
	Run(ctx context.Context, state core.State) (core.State, error)

	// ExtractResult pulls the consumable outcome out of a finished state.
	ExtractResult(state core.State) *core.Result
}

// Options configures an Orchestrator instance.
type Options struct {
	// Logger receives structured execution logs. Defaults to a no-op
	// logger.
	Logger logging.Logger

	// MaxPlanIterations caps planning passes of the plan-and-execute
	// strategy. Defaults to 10.
	MaxPlanIterations int

	// MaxReactIterations caps reasoning passes of the react strategy.
	// Defaults to 15.
	MaxReactIterations int

	// MaxConcurrentTasks bounds parallel worker branches within one step.
	// Zero means unbounded.
	MaxConcurrentTasks int

	// MaxParallelTools bounds parallel tool calls inside one worker
	// exchange. Zero means unbounded.
	MaxParallelTools int

	// MaxModelCalls bounds model calls made through this orchestrator.
	// Batch runs construct one orchestrator per case, making the bound
	// effectively per case. Zero means unlimited.
	MaxModelCalls int

	// HistoryWindow caps the trailing message history handed to the
	// worker sub-agent. Zero means the full log.
	HistoryWindow int

	// ToolResultWarnBytes is the tool payload size above which a warning
	// is logged. Defaults to 5000.
	ToolResultWarnBytes int

	// Callbacks observe node lifecycle and state merges.
	Callbacks []graph.Callback
}

// FromConfig maps the run-relevant knobs of a Config onto the Options,
// usable as an option function for New.
func FromConfig(cfg *config.Config) func(o *Options) {
	return func(o *Options) {
		o.MaxPlanIterations = cfg.MaxPlanIterations
		o.MaxReactIterations = cfg.MaxReactIterations
		o.MaxConcurrentTasks = cfg.MaxConcurrentTasks
		o.MaxModelCalls = cfg.MaxModelCalls
		o.HistoryWindow = cfg.HistoryWindow
		o.ToolResultWarnBytes = cfg.ToolResultWarnBytes
	}
}

// New creates the orchestrator for a strategy. The resolver routes the
// orchestration roles to their models; the registry holds the domain tools
// offered during execution. An unknown strategy is an error.
func New(strategy core.Strategy, resolver *model.Resolver, registry *tool.Registry, optFns ...func(o *Options)) (Orchestrator, error) {
	opts := Options{
		Logger:              logging.NoOpLogger{},
		MaxPlanIterations:   10,
		MaxReactIterations:  15,
		ToolResultWarnBytes: 5000,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxModelCalls > 0 {
		limiter := model.NewCallLimiter(opts.MaxModelCalls)
		resolver = resolver.Wrap(func(m model.Model) model.Model {
			return model.Limited(m, limiter)
		})
	}

	switch strategy {
	case core.StrategyPlanExecute:
		flow, err := planexec.New(resolver, registry, func(o *planexec.Options) {
			o.Logger = opts.Logger
			o.MaxPlanIterations = opts.MaxPlanIterations
			o.MaxConcurrentTasks = opts.MaxConcurrentTasks
			o.MaxParallelTools = opts.MaxParallelTools
			o.HistoryWindow = opts.HistoryWindow
			o.ToolResultWarnBytes = opts.ToolResultWarnBytes
			o.Callbacks = opts.Callbacks
		})
		if err != nil {
			return nil, fmt.Errorf("build plan-execute flow: %w", err)
		}
		return flow, nil

	case core.StrategyReact:
		flow, err := react.New(resolver, registry, func(o *react.Options) {
			o.Logger = opts.Logger
			o.MaxIterations = opts.MaxReactIterations
			o.Callbacks = opts.Callbacks
		})
		if err != nil {
			return nil, fmt.Errorf("build react flow: %w", err)
		}
		return flow, nil

	default:
		return nil, fmt.Errorf("unknown strategy: %s", strategy)
	}
}
