package convograph

import (
	"errors"
	"fmt"
	"log/slog"
)

// Compile validates the graph and produces an immutable CompiledGraph.
// Multiple validation failures are joined into a single error.
//
// Checks, in order:
//  1. Entry point is set and names an existing node
//  2. Every edge endpoint names an existing node (or END as target)
//  3. Every router source names an existing node
//  4. Every node has exactly one successor mechanism: one unconditional
//     edge or one router, not both, not neither
//  5. A path from the entry point to END exists
//
// Nodes unreachable from the entry are logged as warnings but do not fail
// compilation.
func (g *Graph[S]) Compile() (*CompiledGraph[S], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error

	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, exists := g.nodes[g.entryPoint]; !exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	}

	for from, to := range g.edges {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: edge source %q does not exist", ErrNodeNotFound, from))
		}
		if to != END {
			if _, exists := g.nodes[to]; !exists {
				errs = append(errs, fmt.Errorf("%w: edge target %q does not exist", ErrNodeNotFound, to))
			}
		}
	}

	for from := range g.routers {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: router source %q does not exist", ErrNodeNotFound, from))
		}
	}

	// Exactly one successor mechanism per node.
	for id := range g.nodes {
		_, hasEdge := g.edges[id]
		_, hasRouter := g.routers[id]
		switch {
		case hasEdge && hasRouter:
			errs = append(errs, fmt.Errorf("%w: node %q has both an edge and a router", ErrAmbiguousSuccessor, id))
		case !hasEdge && !hasRouter:
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoSuccessor, id))
		}
	}

	if g.entryPoint != "" {
		if _, exists := g.nodes[g.entryPoint]; exists && !g.hasPathToEnd() {
			errs = append(errs, ErrNoPathToEnd)
		}
	}

	g.warnUnreachableNodes()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return g.build(), nil
}

// MustCompile is Compile that panics on error. Intended for graphs wired at
// process startup, where a malformed registry is fatal.
func (g *Graph[S]) MustCompile() *CompiledGraph[S] {
	cg, err := g.Compile()
	if err != nil {
		panic(fmt.Sprintf("convograph: compile failed: %v", err))
	}
	return cg
}

// hasPathToEnd checks reachability of END from the entry point using
// reverse propagation. A node with a router is assumed to potentially
// return END, since router results are runtime state.
func (g *Graph[S]) hasPathToEnd() bool {
	canReachEnd := map[string]bool{END: true}

	changed := true
	for changed {
		changed = false

		for from, to := range g.edges {
			if !canReachEnd[from] && canReachEnd[to] {
				canReachEnd[from] = true
				changed = true
			}
		}

		for from := range g.routers {
			if !canReachEnd[from] {
				canReachEnd[from] = true
				changed = true
			}
		}
	}

	return canReachEnd[g.entryPoint]
}

// warnUnreachableNodes logs nodes not reachable from the entry point.
func (g *Graph[S]) warnUnreachableNodes() {
	if g.entryPoint == "" {
		return
	}

	reachable := g.findReachableNodes()

	for id := range g.nodes {
		if !reachable[id] {
			slog.Warn("node is unreachable from entry", "node_id", id)
		}
	}
}

// findReachableNodes returns the nodes reachable from the entry point.
// Router targets are unknown until runtime, so a node with a router is
// treated as potentially reaching every node.
func (g *Graph[S]) findReachableNodes() map[string]bool {
	reachable := make(map[string]bool)
	if g.entryPoint == "" {
		return reachable
	}

	queue := []string{g.entryPoint}
	reachable[g.entryPoint] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if to, ok := g.edges[current]; ok && to != END && !reachable[to] {
			reachable[to] = true
			queue = append(queue, to)
		}

		if _, hasRouter := g.routers[current]; hasRouter {
			for id := range g.nodes {
				if !reachable[id] {
					reachable[id] = true
					queue = append(queue, id)
				}
			}
		}
	}

	return reachable
}

// build creates the immutable CompiledGraph from the builder state.
func (g *Graph[S]) build() *CompiledGraph[S] {
	nodes := make(map[string]NodeFunc[S], len(g.nodes))
	for id, fn := range g.nodes {
		nodes[id] = fn
	}

	edges := make(map[string]string, len(g.edges))
	for from, to := range g.edges {
		edges[from] = to
	}

	routers := make(map[string]RouterFunc[S], len(g.routers))
	for from, r := range g.routers {
		routers[from] = r
	}

	predecessors := make(map[string][]string)
	for from, to := range edges {
		if to != END {
			predecessors[to] = append(predecessors[to], from)
		}
	}

	return &CompiledGraph[S]{
		nodes:        nodes,
		edges:        edges,
		routers:      routers,
		entryPoint:   g.entryPoint,
		predecessors: predecessors,
	}
}
