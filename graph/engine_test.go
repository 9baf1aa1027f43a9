package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/planmesh/core"
)

func newEngine(t *testing.T, g *Graph, optFns ...func(o *Options)) *Engine {
	t.Helper()
	e, err := NewEngine(g, optFns...)
	require.NoError(t, err)
	return e
}

// -------------------- Linear Execution Tests --------------------

func TestEngineRunLinear(t *testing.T) {
	g := New("first")
	g.AddNode("first", func(ctx context.Context, state core.State) (Command, error) {
		return Command{Update: map[string]any{"first": "done"}, Goto: "second"}, nil
	})
	g.AddNode("second", func(ctx context.Context, state core.State) (Command, error) {
		assert.Equal(t, "done", state["first"], "second node sees the first node's update")
		return Command{Update: map[string]any{"second": "done"}, Goto: End}, nil
	})
	g.AddEdge("first", "second")
	g.AddEdge("second", End)

	final, err := newEngine(t, g).Run(context.Background(), core.State{})
	require.NoError(t, err)
	assert.Equal(t, "done", final["first"])
	assert.Equal(t, "done", final["second"])
}

func TestEngineRunDoesNotMutateInitialState(t *testing.T) {
	g := New("only")
	g.AddNode("only", func(ctx context.Context, state core.State) (Command, error) {
		return Command{Update: map[string]any{"written": true}, Goto: End}, nil
	})
	g.AddEdge("only", End)

	initial := core.State{"seed": 1}
	final, err := newEngine(t, g).Run(context.Background(), initial)
	require.NoError(t, err)

	assert.Equal(t, true, final["written"])
	assert.NotContains(t, initial, "written")
}

func TestEngineRunSelfLoop(t *testing.T) {
	g := New("count")
	g.AddNode("count", func(ctx context.Context, state core.State) (Command, error) {
		n, _ := state["n"].(int)
		if n >= 3 {
			return Command{Goto: End}, nil
		}
		return Command{Update: map[string]any{"n": n + 1}, Goto: "count"}, nil
	})
	g.AddEdge("count", "count")
	g.AddEdge("count", End)

	final, err := newEngine(t, g).Run(context.Background(), core.State{})
	require.NoError(t, err)
	assert.Equal(t, 3, final["n"])
}

func TestEngineRunLastWriterWins(t *testing.T) {
	g := New("first")
	g.AddNode("first", func(ctx context.Context, state core.State) (Command, error) {
		return Command{Update: map[string]any{"key": "first"}, Goto: "second"}, nil
	})
	g.AddNode("second", func(ctx context.Context, state core.State) (Command, error) {
		return Command{Update: map[string]any{"key": "second"}, Goto: End}, nil
	})
	g.AddEdge("first", "second")
	g.AddEdge("second", End)

	final, err := newEngine(t, g).Run(context.Background(), core.State{})
	require.NoError(t, err)
	assert.Equal(t, "second", final["key"])
}

// -------------------- Routing Contract Tests --------------------

func TestEngineRunUndeclaredTransition(t *testing.T) {
	g := New("start")
	g.AddNode("start", func(ctx context.Context, state core.State) (Command, error) {
		return Command{Goto: "elsewhere"}, nil
	})
	g.AddNode("elsewhere", noopNode)
	g.AddEdge("start", End)
	g.AddEdge("elsewhere", End)

	_, err := newEngine(t, g).Run(context.Background(), core.State{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestEngineRunNoRoute(t *testing.T) {
	g := New("start")
	g.AddNode("start", func(ctx context.Context, state core.State) (Command, error) {
		return Command{}, nil
	})
	g.AddEdge("start", End)

	_, err := newEngine(t, g).Run(context.Background(), core.State{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned no route")
}

func TestEngineRunNodeError(t *testing.T) {
	boom := errors.New("boom")
	g := New("start")
	g.AddNode("start", func(ctx context.Context, state core.State) (Command, error) {
		return Command{}, boom
	})
	g.AddEdge("start", End)

	_, err := newEngine(t, g).Run(context.Background(), core.State{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "node start failed")
}

func TestEngineRunContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := New("start")
	g.AddNode("start", noopNode)
	g.AddEdge("start", End)

	_, err := newEngine(t, g).Run(ctx, core.State{})
	assert.ErrorIs(t, err, context.Canceled)
}

// -------------------- Fan-Out Tests --------------------

// fanGraph builds a dispatcher that fans out one branch per name, a
// branch node writing its own key, and a collector that joins them.
func fanGraph(branchNames []string, branchNode NodeFunc, collector NodeFunc) *Graph {
	g := New("dispatch")
	g.AddNode("dispatch", func(ctx context.Context, state core.State) (Command, error) {
		branches := make([]Branch, 0, len(branchNames))
		for _, name := range branchNames {
			bs := state.Clone()
			bs["branch"] = name
			branches = append(branches, Branch{Name: name, Node: "work", State: bs})
		}
		return Command{Branches: branches}, nil
	})
	g.AddNode("work", branchNode)
	g.AddNode("collect", collector)
	g.AddEdge("dispatch", "work")
	g.AddEdge("work", "collect")
	g.AddEdge("collect", End)
	return g
}

func TestEngineRunFanOutMergesAllBranches(t *testing.T) {
	names := []string{"a", "b", "c"}

	work := func(ctx context.Context, state core.State) (Command, error) {
		name := state["branch"].(string)
		return Command{
			Update: map[string]any{"result:" + name: name + "-done"},
			Goto:   "collect",
		}, nil
	}

	var joined core.State
	collect := func(ctx context.Context, state core.State) (Command, error) {
		joined = state.Clone()
		return Command{Goto: End}, nil
	}

	final, err := newEngine(t, fanGraph(names, work, collect)).Run(context.Background(), core.State{})
	require.NoError(t, err)

	for _, name := range names {
		assert.Equal(t, name+"-done", final["result:"+name])
		assert.Equal(t, name+"-done", joined["result:"+name], "continuation runs after every branch merged")
	}
	assert.NotContains(t, final, "branch", "branch-private keys stay in the branch copy")
}

func TestEngineRunFanOutBranchIsolation(t *testing.T) {
	names := []string{"a", "b"}

	work := func(ctx context.Context, state core.State) (Command, error) {
		// A branch writing into its private copy must not leak to the
		// authoritative state or to its sibling.
		state["scratch"] = state["branch"]
		return Command{Update: map[string]any{"out:" + state["branch"].(string): true}, Goto: "collect"}, nil
	}

	collect := func(ctx context.Context, state core.State) (Command, error) {
		return Command{Goto: End}, nil
	}

	final, err := newEngine(t, fanGraph(names, work, collect)).Run(context.Background(), core.State{})
	require.NoError(t, err)
	assert.NotContains(t, final, "scratch")
	assert.Equal(t, true, final["out:a"])
	assert.Equal(t, true, final["out:b"])
}

func TestEngineRunFanOutStrictJoin(t *testing.T) {
	names := []string{"a", "b", "c", "d"}

	var settled atomic.Int32
	work := func(ctx context.Context, state core.State) (Command, error) {
		time.Sleep(5 * time.Millisecond)
		settled.Add(1)
		return Command{Goto: "collect"}, nil
	}

	var observed int32
	collect := func(ctx context.Context, state core.State) (Command, error) {
		observed = settled.Load()
		return Command{Goto: End}, nil
	}

	_, err := newEngine(t, fanGraph(names, work, collect)).Run(context.Background(), core.State{})
	require.NoError(t, err)
	assert.Equal(t, int32(len(names)), observed, "continuation must not run before every branch settled")
}

func TestEngineRunFanOutBoundedConcurrency(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f"}

	var mu sync.Mutex
	var inFlight, peak int
	work := func(ctx context.Context, state core.State) (Command, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return Command{Goto: "collect"}, nil
	}

	collect := func(ctx context.Context, state core.State) (Command, error) {
		return Command{Goto: End}, nil
	}

	e := newEngine(t, fanGraph(names, work, collect), func(o *Options) {
		o.Config.MaxConcurrentBranches = 2
	})

	_, err := e.Run(context.Background(), core.State{})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, 2)
}

func TestEngineRunFanOutDivergentContinuation(t *testing.T) {
	g := New("dispatch")
	g.AddNode("dispatch", func(ctx context.Context, state core.State) (Command, error) {
		return Command{Branches: []Branch{
			{Name: "a", Node: "work", State: state.Clone()},
			{Name: "b", Node: "other", State: state.Clone()},
		}}, nil
	})
	g.AddNode("work", func(ctx context.Context, state core.State) (Command, error) {
		return Command{Goto: "collect"}, nil
	})
	g.AddNode("other", func(ctx context.Context, state core.State) (Command, error) {
		return Command{Goto: "dispatch"}, nil
	})
	g.AddNode("collect", noopNode)
	g.AddEdge("dispatch", "work")
	g.AddEdge("dispatch", "other")
	g.AddEdge("work", "collect")
	g.AddEdge("other", "dispatch")
	g.AddEdge("collect", End)

	_, err := newEngine(t, g).Run(context.Background(), core.State{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDivergentFanOut)
}

func TestEngineRunFanOutBranchError(t *testing.T) {
	names := []string{"a", "b"}

	work := func(ctx context.Context, state core.State) (Command, error) {
		if state["branch"] == "b" {
			return Command{}, errors.New("branch blew up")
		}
		return Command{Update: map[string]any{"ok": true}, Goto: "collect"}, nil
	}

	collect := func(ctx context.Context, state core.State) (Command, error) {
		return Command{Goto: End}, nil
	}

	final, err := newEngine(t, fanGraph(names, work, collect)).Run(context.Background(), core.State{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "branch b failed")
	assert.NotContains(t, final, "ok", "no branch update merges when the join fails")
}

func TestEngineRunFanOutBranchPanic(t *testing.T) {
	names := []string{"a"}

	work := func(ctx context.Context, state core.State) (Command, error) {
		panic("branch panic")
	}

	collect := func(ctx context.Context, state core.State) (Command, error) {
		return Command{Goto: End}, nil
	}

	_, err := newEngine(t, fanGraph(names, work, collect)).Run(context.Background(), core.State{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic recovered")
}

func TestEngineRunFanOutNestedFanOutRejected(t *testing.T) {
	g := New("dispatch")
	g.AddNode("dispatch", func(ctx context.Context, state core.State) (Command, error) {
		return Command{Branches: []Branch{{Name: "a", Node: "work", State: state.Clone()}}}, nil
	})
	g.AddNode("work", func(ctx context.Context, state core.State) (Command, error) {
		return Command{Branches: []Branch{{Name: "inner", Node: "work", State: state.Clone()}}}, nil
	})
	g.AddEdge("dispatch", "work")
	g.AddEdge("work", "work")

	_, err := newEngine(t, g).Run(context.Background(), core.State{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested fan-out")
}

func TestEngineRunGotoAndBranchesRejected(t *testing.T) {
	g := New("start")
	g.AddNode("start", func(ctx context.Context, state core.State) (Command, error) {
		return Command{
			Goto:     End,
			Branches: []Branch{{Name: "a", Node: "start", State: state.Clone()}},
		}, nil
	})
	g.AddEdge("start", "start")
	g.AddEdge("start", End)

	_, err := newEngine(t, g).Run(context.Background(), core.State{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both goto and branches")
}

// -------------------- Callback Tests --------------------

func TestEngineRunCallbacks(t *testing.T) {
	var order []string
	record := func(name string) func(ctx context.Context, cbCtx *CallbackContext) error {
		return func(ctx context.Context, cbCtx *CallbackContext) error {
			order = append(order, fmt.Sprintf("%s:%s", name, cbCtx.Node))
			return nil
		}
	}

	g := New("start")
	g.AddNode("start", func(ctx context.Context, state core.State) (Command, error) {
		return Command{Update: map[string]any{"k": 1}, Goto: End}, nil
	})
	g.AddEdge("start", End)

	e := newEngine(t, g, func(o *Options) {
		o.Callbacks = []Callback{
			NewFunctionCallback(CallbackBeforeNode, record("before")),
			NewFunctionCallback(CallbackAfterNode, record("after")),
			NewFunctionCallback(CallbackOnStateChange, record("merge")),
		}
	})

	_, err := e.Run(context.Background(), core.State{})
	require.NoError(t, err)
	assert.Equal(t, []string{"before:start", "after:start", "merge:start"}, order)
}

func TestEngineRunBeforeNodeCallbackAborts(t *testing.T) {
	g := New("start")
	g.AddNode("start", func(ctx context.Context, state core.State) (Command, error) {
		t.Fatal("node must not run after callback rejection")
		return Command{}, nil
	})
	g.AddEdge("start", End)

	e := newEngine(t, g, func(o *Options) {
		o.Callbacks = []Callback{
			NewFunctionCallback(CallbackBeforeNode, func(ctx context.Context, cbCtx *CallbackContext) error {
				return errors.New("denied")
			}),
		}
	})

	_, err := e.Run(context.Background(), core.State{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}

func TestEngineRunStateValidationRejectsMerge(t *testing.T) {
	g := New("start")
	g.AddNode("start", func(ctx context.Context, state core.State) (Command, error) {
		return Command{Update: map[string]any{"forbidden": true}, Goto: End}, nil
	})
	g.AddEdge("start", End)

	e := newEngine(t, g, func(o *Options) {
		o.Callbacks = []Callback{
			NewStateValidationCallback(func(update map[string]any) error {
				if _, ok := update["forbidden"]; ok {
					return errors.New("forbidden key")
				}
				return nil
			}),
		}
	})

	final, err := e.Run(context.Background(), core.State{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden key")
	assert.NotContains(t, final, "forbidden")
}

func TestEngineRunOnErrorCallbackNotified(t *testing.T) {
	var notified error
	g := New("start")
	g.AddNode("start", func(ctx context.Context, state core.State) (Command, error) {
		return Command{}, errors.New("boom")
	})
	g.AddEdge("start", End)

	e := newEngine(t, g, func(o *Options) {
		o.Callbacks = []Callback{
			NewFunctionCallback(CallbackOnError, func(ctx context.Context, cbCtx *CallbackContext) error {
				notified = cbCtx.Err
				return nil
			}),
		}
	})

	_, err := e.Run(context.Background(), core.State{})
	require.Error(t, err)
	require.NotNil(t, notified)
	assert.Contains(t, notified.Error(), "boom")
}
