// Package convograph is a small graph-based conversation orchestration
// engine. A graph is a set of named nodes (state transformations) connected
// by edges. Each node receives the current conversation state and returns an
// updated state; edges decide which node runs next, either unconditionally
// or through a router function that inspects the state.
//
// Build a graph with the fluent builder, then Compile it into an immutable
// CompiledGraph that can be shared across goroutines:
//
//	graph := convograph.NewGraph[MyState]().
//	    AddNode("draft", draftNode).
//	    AddNode("review", reviewNode).
//	    AddEdge("draft", "review").
//	    AddConditionalEdge("review", reviewRouter).
//	    SetEntry("draft")
//
//	compiled, err := graph.Compile()
//
// Execution runs node by node until the END sentinel is reached, the step
// budget is exhausted, or the context is cancelled. A run may also pause:
// nodes registered with WithInterruptBefore stop the run just before they
// would execute, which models a conversation waiting for the next user
// message. RunFrom resumes a paused run at the interrupted node.
//
// All configuration problems (duplicate nodes, dangling edges, no path to
// END) surface at build or Compile time, never during a conversation.
package convograph
