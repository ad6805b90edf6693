package convograph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph construction and compilation.
var (
	// ErrNoEntryPoint indicates SetEntry was not called before Compile.
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEntryNotFound indicates the entry point names a non-existent node.
	ErrEntryNotFound = errors.New("entry point node not found")

	// ErrNodeNotFound indicates an edge references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoSuccessor indicates a node has neither an edge nor a router.
	ErrNoSuccessor = errors.New("node has no outgoing edge")

	// ErrAmbiguousSuccessor indicates a node has more than one possible
	// successor without a router to choose between them.
	ErrAmbiguousSuccessor = errors.New("node has ambiguous successors")

	// ErrNoPathToEnd indicates no path exists from the entry point to END.
	ErrNoPathToEnd = errors.New("no path to END from entry")
)

// Sentinel errors for execution.
var (
	// ErrBudgetExceeded indicates the run used up its step budget.
	ErrBudgetExceeded = errors.New("step budget exceeded")

	// ErrNilContext indicates Run was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrInvalidRouterResult indicates a router returned an empty string.
	ErrInvalidRouterResult = errors.New("router returned empty string")

	// ErrRouterTargetNotFound indicates a router returned an unknown node ID.
	ErrRouterTargetNotFound = errors.New("router returned unknown node")
)

// NodeError wraps an error raised inside a node with node context.
type NodeError struct {
	// NodeID is the node that failed.
	NodeID string
	// Op is the operation that failed (e.g. "execute").
	Op string
	// Err is the underlying error.
	Err error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// PanicError captures a panic raised during node execution, including the
// stack trace. A single misbehaving node must never take the process down.
type PanicError struct {
	// NodeID is the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace captured at recovery.
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// RouterError reports an invalid result from a conditional edge router.
type RouterError struct {
	// FromNode is the node whose router failed.
	FromNode string
	// Returned is the value the router returned.
	Returned string
	// Err is the underlying sentinel error.
	Err error
}

func (e *RouterError) Error() string {
	return fmt.Sprintf("router from %s returned %q: %v", e.FromNode, e.Returned, e.Err)
}

func (e *RouterError) Unwrap() error { return e.Err }

// BudgetExceededError reports that a run hit its step budget. It carries the
// state at termination so callers can inspect or salvage it.
type BudgetExceededError struct {
	// Budget is the configured step limit.
	Budget int
	// LastNodeID is the node that would have executed next.
	LastNodeID string
	// State is the state at termination (type-assert to the state type).
	State any
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("exceeded step budget (%d) at node %s", e.Budget, e.LastNodeID)
}

// Unwrap returns ErrBudgetExceeded for errors.Is support.
func (e *BudgetExceededError) Unwrap() error { return ErrBudgetExceeded }

// CancellationError reports that the context was cancelled between nodes.
type CancellationError struct {
	// NodeID is the node that was about to execute.
	NodeID string
	// Cause is the context error (context.Canceled or DeadlineExceeded).
	Cause error
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

func (e *CancellationError) Unwrap() error { return e.Cause }

// SnapshotError wraps a checkpoint snapshot failure.
type SnapshotError struct {
	// NodeID is the node after which the snapshot was attempted.
	NodeID string
	// Op is the operation that failed ("serialize", "save").
	Op string
	// Err is the underlying error.
	Err error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot %s at node %s: %v", e.Op, e.NodeID, e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }
