package convograph

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a mutable builder for conversation graphs. Chain AddNode,
// AddEdge, AddConditionalEdge and SetEntry, then call Compile to obtain an
// immutable CompiledGraph.
//
// Graph is not meant to be built from multiple goroutines; construct it in
// one place at startup and share only the compiled form.
type Graph[S any] struct {
	mu         sync.RWMutex
	nodes      map[string]NodeFunc[S]
	edges      map[string]string
	routers    map[string]RouterFunc[S]
	entryPoint string
}

// NewGraph creates an empty graph builder for state type S.
func NewGraph[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:   make(map[string]NodeFunc[S]),
		edges:   make(map[string]string),
		routers: make(map[string]RouterFunc[S]),
	}
}

// AddNode registers a named node. Returns the graph for chaining.
//
// Panics if:
//   - id is empty
//   - id is the reserved word "END" or "__end__" (case-insensitive)
//   - id contains whitespace
//   - fn is nil
//   - id is already registered
//
// Malformed registries are a programming error and must fail at
// construction time, never during a user's conversation.
func (g *Graph[S]) AddNode(id string, fn NodeFunc[S]) *Graph[S] {
	if id == "" {
		panic("convograph: node ID cannot be empty")
	}

	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == "__end__" {
		panic("convograph: node ID cannot be reserved word 'END'")
	}

	if strings.ContainsAny(id, " \t\n\r") {
		panic("convograph: node ID cannot contain whitespace")
	}

	if fn == nil {
		panic("convograph: node function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("convograph: duplicate node ID: %s", id))
	}

	g.nodes[id] = fn
	return g
}

// AddEdge adds the unconditional edge from -> to. The target may be a node
// ID or END. A node has exactly one unconditional successor; adding a second
// edge from the same node panics. Endpoint existence is checked at Compile
// time so edges may be added in any order.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, exists := g.edges[from]; exists {
		panic(fmt.Sprintf("convograph: node %s already has an edge to %s", from, prev))
	}

	g.edges[from] = to
	return g
}

// AddConditionalEdge attaches a router that picks the successor of from at
// runtime. A node has either an unconditional edge or a router, never both;
// Compile rejects the combination.
func (g *Graph[S]) AddConditionalEdge(from string, router RouterFunc[S]) *Graph[S] {
	if router == nil {
		panic("convograph: router function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.routers[from] = router
	return g
}

// SetEntry designates the entry node. Must be called before Compile;
// existence is validated there.
func (g *Graph[S]) SetEntry(id string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}
