package convograph

// END is the terminal sentinel. An edge targeting END, or a router returning
// END, finishes the run; no further nodes execute.
const END = "__end__"

// NodeFunc is the signature of a graph node. It receives the execution
// context and the current state and returns the updated state.
//
// State is passed by value. A node should modify and return a new state
// value rather than relying on pointer mutation.
type NodeFunc[S any] func(ctx Context, state S) (S, error)

// RouterFunc selects the successor for a node with a conditional edge.
// It must return a registered node ID or END; anything else is a runtime
// RouterError. Routers must be pure over the state - no I/O.
type RouterFunc[S any] func(ctx Context, state S) string
