package convograph

// CompiledGraph is an immutable, executable graph produced by Compile.
// It is safe for concurrent use; many runs may execute simultaneously
// against the same compiled graph.
type CompiledGraph[S any] struct {
	nodes      map[string]NodeFunc[S]
	edges      map[string]string
	routers    map[string]RouterFunc[S]
	entryPoint string

	predecessors map[string][]string
}

// EntryPoint returns the entry node ID.
func (cg *CompiledGraph[S]) EntryPoint() string {
	return cg.entryPoint
}

// NodeIDs returns all node identifiers. Order is not guaranteed.
func (cg *CompiledGraph[S]) NodeIDs() []string {
	ids := make([]string, 0, len(cg.nodes))
	for id := range cg.nodes {
		ids = append(ids, id)
	}
	return ids
}

// HasNode reports whether a node exists in the graph.
func (cg *CompiledGraph[S]) HasNode(id string) bool {
	_, exists := cg.nodes[id]
	return exists
}

// Successor returns the unconditional successor of a node, or "" if the
// node is conditional (runtime-routed) or unknown.
func (cg *CompiledGraph[S]) Successor(id string) string {
	return cg.edges[id]
}

// Predecessors returns the nodes with unconditional edges into id.
// Router sources are excluded; their targets are runtime state.
func (cg *CompiledGraph[S]) Predecessors(id string) []string {
	return cg.predecessors[id]
}

// IsConditional reports whether the node routes via a RouterFunc.
func (cg *CompiledGraph[S]) IsConditional(id string) bool {
	_, exists := cg.routers[id]
	return exists
}

func (cg *CompiledGraph[S]) getNode(id string) (NodeFunc[S], bool) {
	fn, exists := cg.nodes[id]
	return fn, exists
}

func (cg *CompiledGraph[S]) getRouter(id string) (RouterFunc[S], bool) {
	r, exists := cg.routers[id]
	return r, exists
}
