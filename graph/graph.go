package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hupe1980/planmesh/core"
)

// NodeID names a node in a Graph.
type NodeID string

// End is the terminal routing marker. A Command routing to End stops
// the run and the engine returns the final State.
const End NodeID = "__end__"

var (
	// ErrUnknownNode reports a route to a node that is not registered
	// or a transition that was not declared.
	ErrUnknownNode = errors.New("unknown node")

	// ErrDivergentFanOut reports fan-out branches that do not agree on
	// a single continuation node.
	ErrDivergentFanOut = errors.New("divergent fan-out")
)

// NodeFunc executes one node over the current state and returns the
// node's state update together with its routing decision.
type NodeFunc func(ctx context.Context, state core.State) (Command, error)

// Branch is one parallel arm of a fan-out. State must be a private copy
// derived by the fanning node; the engine never hands a branch the
// authoritative State.
type Branch struct {
	// Name tags the branch in logs and error messages.
	Name string

	// Node is the node executed for this branch.
	Node NodeID

	// State is the branch-private state copy.
	State core.State
}

// Command is a node's result: a state update plus where to go next.
// Exactly one of Goto or Branches must be set.
type Command struct {
	// Update is merged into the authoritative State as a shallow
	// overwrite, last writer wins.
	Update map[string]any

	// Goto names the next node, or End to stop the run.
	Goto NodeID

	// Branches fans out parallel work. Every branch must route to the
	// same continuation node.
	Branches []Branch
}

// Graph is a validated set of named nodes and declared transitions.
// Build it with AddNode and AddEdge, then hand it to NewEngine, which
// validates it. A Graph is immutable once an Engine runs it.
type Graph struct {
	entry NodeID
	nodes map[NodeID]NodeFunc
	edges map[NodeID]map[NodeID]struct{}
}

// New creates an empty graph that starts execution at entry. The entry
// node must be registered with AddNode before the graph validates.
func New(entry NodeID) *Graph {
	return &Graph{
		entry: entry,
		nodes: make(map[NodeID]NodeFunc),
		edges: make(map[NodeID]map[NodeID]struct{}),
	}
}

// Entry returns the node execution starts at.
func (g *Graph) Entry() NodeID {
	return g.entry
}

// AddNode registers a node function under id. Registering a duplicate,
// empty or reserved id panics; node wiring is a construction-time
// concern.
func (g *Graph) AddNode(id NodeID, fn NodeFunc) {
	if id == "" || id == End {
		panic(fmt.Sprintf("graph: invalid node id %q", id))
	}
	if fn == nil {
		panic(fmt.Sprintf("graph: node %s has nil function", id))
	}
	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("graph: node %s already registered", id))
	}
	g.nodes[id] = fn
}

// AddEdge declares an allowed transition from one node to another (or
// to End). Routing over an undeclared transition fails at run time with
// ErrUnknownNode.
func (g *Graph) AddEdge(from, to NodeID) {
	set, ok := g.edges[from]
	if !ok {
		set = make(map[NodeID]struct{})
		g.edges[from] = set
	}
	set[to] = struct{}{}
}

// Nodes returns the registered node ids in sorted order.
func (g *Graph) Nodes() []NodeID {
	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Validate checks that the graph is runnable: the entry node exists and
// every declared edge connects registered nodes (or End).
func (g *Graph) Validate() error {
	if g.entry == "" {
		return errors.New("graph has no entry node")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return fmt.Errorf("%w: entry %s not registered", ErrUnknownNode, g.entry)
	}
	for from, targets := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("%w: edge source %s not registered", ErrUnknownNode, from)
		}
		for to := range targets {
			if to == End {
				continue
			}
			if _, ok := g.nodes[to]; !ok {
				return fmt.Errorf("%w: edge target %s not registered", ErrUnknownNode, to)
			}
		}
	}
	return nil
}

// node returns the function registered under id.
func (g *Graph) node(id NodeID) (NodeFunc, bool) {
	fn, ok := g.nodes[id]
	return fn, ok
}

// checkTransition verifies that from declared an edge to target.
func (g *Graph) checkTransition(from, to NodeID) error {
	if _, ok := g.edges[from][to]; !ok {
		return fmt.Errorf("%w: transition %s -> %s not declared", ErrUnknownNode, from, to)
	}
	return nil
}
