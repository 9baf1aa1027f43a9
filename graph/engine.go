package graph

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/logging"
)

// Config defines tuning parameters for engine execution.
type Config struct {
	// MaxConcurrentBranches bounds how many fan-out branches execute
	// simultaneously. Zero or negative runs every branch at once.
	MaxConcurrentBranches int
}

// DefaultConfig provides the default engine configuration. Fan-out
// parallelism is unbounded; the fanning node controls how many branches
// it emits.
var DefaultConfig = Config{
	MaxConcurrentBranches: 0,
}

// Options configures an Engine instance.
type Options struct {
	// Config contains operational parameters for engine behavior.
	// Defaults to DefaultConfig.
	Config Config

	// Logger receives structured execution logs. Defaults to a no-op
	// logger.
	Logger logging.Logger

	// Callbacks are lifecycle hooks executed around node runs and
	// state merges.
	Callbacks []Callback
}

// Engine drives a Graph from its entry node until End is reached.
//
// The engine owns the authoritative State for the duration of a run.
// Nodes receive it read-style and publish changes exclusively through
// Command.Update; fan-out branches run over private state copies and
// their updates are merged in declaration order after the join. Node
// errors and routing contract violations stop the run and are returned
// to the caller together with the state accumulated so far.
//
// An Engine is stateless across runs and safe for concurrent use; each
// Run call executes independently over its own State.
type Engine struct {
	graph     *Graph
	config    Config
	logger    logging.Logger
	callbacks *CallbackManager
}

// NewEngine validates the graph and creates an engine for it.
func NewEngine(g *Graph, optFns ...func(o *Options)) (*Engine, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	cm := NewCallbackManager()
	for _, cb := range opts.Callbacks {
		cm.Register(cb)
	}

	return &Engine{
		graph:     g,
		config:    opts.Config,
		logger:    opts.Logger,
		callbacks: cm,
	}, nil
}

// Run executes the graph over a copy of initial and returns the final
// State once a node routes to End. The caller's State is not mutated.
//
// On any error the State accumulated up to that point is returned
// alongside it.
func (e *Engine) Run(ctx context.Context, initial core.State) (core.State, error) {
	state := initial.Clone()
	current := e.graph.Entry()

	for {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		if current == End {
			return state, nil
		}

		fn, ok := e.graph.node(current)
		if !ok {
			return state, fmt.Errorf("%w: %s", ErrUnknownNode, current)
		}

		if err := e.callbacks.execute(ctx, CallbackBeforeNode, &CallbackContext{Node: current, State: state}); err != nil {
			return state, fmt.Errorf("before-node callback rejected %s: %w", current, err)
		}

		e.logger.Debug("graph.node.start", "node", string(current))
		start := time.Now()

		cmd, err := fn(ctx, state)
		if err != nil {
			e.callbacks.notifyError(ctx, current, state, err)
			logging.LogNodeRun(e.logger, string(current), "", 0, time.Since(start), err)
			return state, fmt.Errorf("node %s failed: %w", current, err)
		}

		logging.LogNodeRun(e.logger, string(current), string(cmd.Goto), len(cmd.Branches), time.Since(start), nil)

		if err := e.callbacks.execute(ctx, CallbackAfterNode, &CallbackContext{Node: current, State: state, Command: &cmd}); err != nil {
			return state, fmt.Errorf("after-node callback rejected %s: %w", current, err)
		}

		if len(cmd.Branches) > 0 && cmd.Goto != "" {
			return state, fmt.Errorf("node %s returned both goto and branches", current)
		}

		if err := e.merge(ctx, current, state, cmd.Update); err != nil {
			return state, err
		}

		if len(cmd.Branches) > 0 {
			next, err := e.runBranches(ctx, current, state, cmd.Branches)
			if err != nil {
				return state, err
			}
			current = next
			continue
		}

		if cmd.Goto == "" {
			return state, fmt.Errorf("node %s returned no route", current)
		}
		if err := e.graph.checkTransition(current, cmd.Goto); err != nil {
			return state, err
		}

		current = cmd.Goto
	}
}

// runBranches executes every branch concurrently, enforces the strict
// join and the convergence contract, merges branch updates in
// declaration order and returns the shared continuation node.
func (e *Engine) runBranches(ctx context.Context, from NodeID, state core.State, branches []Branch) (NodeID, error) {
	for _, b := range branches {
		if err := e.graph.checkTransition(from, b.Node); err != nil {
			return "", err
		}
	}

	n := len(branches)
	maxPar := e.config.MaxConcurrentBranches
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	type branchResult struct {
		cmd Command
		err error
	}

	results := make([]branchResult, n)
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range branches {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, b Branch) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					results[idx].err = panicError(r)
					e.logger.Error("graph.branch.panic", "branch", b.Name, "node", string(b.Node), "recover", fmt.Sprint(r))
				}
			}()

			if err := ctx.Err(); err != nil {
				results[idx].err = err
				return
			}

			fn, ok := e.graph.node(b.Node)
			if !ok {
				results[idx].err = fmt.Errorf("%w: %s", ErrUnknownNode, b.Node)
				return
			}

			cmd, err := fn(ctx, b.State)
			results[idx] = branchResult{cmd: cmd, err: err}
		}(i, branches[i])
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	for i, res := range results {
		if res.err != nil {
			e.callbacks.notifyError(ctx, branches[i].Node, state, res.err)
			return "", fmt.Errorf("branch %s failed: %w", branches[i].Name, res.err)
		}
	}

	var next NodeID
	for i, res := range results {
		if len(res.cmd.Branches) > 0 {
			return "", fmt.Errorf("branch %s attempted a nested fan-out", branches[i].Name)
		}
		if res.cmd.Goto == "" {
			return "", fmt.Errorf("branch %s returned no route", branches[i].Name)
		}
		if err := e.graph.checkTransition(branches[i].Node, res.cmd.Goto); err != nil {
			return "", err
		}
		if next == "" {
			next = res.cmd.Goto
		} else if res.cmd.Goto != next {
			return "", fmt.Errorf("%w: %s vs %s", ErrDivergentFanOut, next, res.cmd.Goto)
		}
	}

	for i, res := range results {
		if err := e.merge(ctx, branches[i].Node, state, res.cmd.Update); err != nil {
			return "", err
		}
	}

	e.logger.Debug("graph.branches.complete",
		"from", string(from),
		"count", n,
		"parallelism", maxPar,
		"next", string(next),
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return next, nil
}

// merge applies an update to the authoritative State after letting
// state-change callbacks inspect the delta.
func (e *Engine) merge(ctx context.Context, node NodeID, state core.State, update map[string]any) error {
	if len(update) == 0 {
		return nil
	}
	if err := e.callbacks.execute(ctx, CallbackOnStateChange, &CallbackContext{Node: node, State: state, Update: update}); err != nil {
		return fmt.Errorf("state change rejected for %s: %w", node, err)
	}
	state.Merge(update)
	return nil
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
