// Package graph implements the node execution engine for planmesh.
//
// A Graph is a named set of nodes over a shared core.State. Each node
// returns a Command carrying a state update and a routing decision: the
// next node, the End marker, or a fan-out of parallel branches. The
// Engine drives the graph from its entry node until End is reached and
// returns the final State.
//
// # Execution Model
//
// Single-threaded by default:
//   - One node executes at a time over the authoritative State
//   - The node's Update is merged (shallow, last writer wins) before
//     routing continues
//   - Routing targets are validated against the registered node set and
//     the declared adjacency
//
// Fan-out is the only concurrency point:
//   - A Command may carry Branches, each with a private derived State
//     copy and a branch node to execute
//   - All branches run concurrently, bounded by MaxConcurrentBranches
//   - Every branch must route to the same continuation node; divergent
//     continuations abort the run with ErrDivergentFanOut
//   - Branch updates merge into the authoritative State in declaration
//     order, and only after every branch has settled (strict join)
//
//	             ┌──────────┐
//	    entry ──►│   node   │─── Goto ───► next node ─ ... ─► End
//	             └────┬─────┘
//	                  │ Branches (fan-out)
//	       ┌──────────┼──────────┐
//	       ▼          ▼          ▼
//	  ┌─────────┐┌─────────┐┌─────────┐
//	  │ branch 0││ branch 1││ branch 2│   private State copies
//	  └────┬────┘└────┬────┘└────┬────┘
//	       └──────────┼──────────┘
//	                  │ strict join, ordered merge of updates
//	                  ▼
//	          continuation node
//
// # Error Handling
//
// Node errors are fatal: the engine stops and returns the error wrapped
// with the node name. Nodes that want a failure to be survivable must
// catch it themselves and encode it in their Update (for example as a
// failed task status). Contract violations are also fatal:
//
//   - Goto naming an unregistered node or an undeclared transition
//     (ErrUnknownNode)
//   - Branches disagreeing on their continuation (ErrDivergentFanOut)
//   - A Command with neither Goto nor Branches
//   - Nested fan-out from within a branch
//
// # Callbacks
//
// The engine exposes lifecycle hooks (before node, after node, on state
// merge, on error) through the Callback interface. Callbacks run
// synchronously; an error from a before-node callback aborts the run.
// Built-in implementations cover structured logging and state delta
// validation.
//
// # Usage
//
//	g := graph.New("planner")
//	g.AddNode("planner", plannerFunc)
//	g.AddNode("worker", workerFunc)
//	g.AddNode("reporter", reporterFunc)
//	g.AddEdge("planner", "planner")
//	g.AddEdge("planner", "worker")
//	g.AddEdge("planner", "reporter")
//	g.AddEdge("worker", "planner")
//	g.AddEdge("reporter", graph.End)
//
//	engine, err := graph.NewEngine(g, func(o *graph.Options) {
//	    o.Logger = logger
//	})
//	if err != nil {
//	    return err
//	}
//
//	final, err := engine.Run(ctx, initialState)
package graph
