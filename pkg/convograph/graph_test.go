package convograph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAddNode_EmptyID tests that an empty node ID panics.
func TestAddNode_EmptyID(t *testing.T) {
	assert.PanicsWithValue(t, "convograph: node ID cannot be empty", func() {
		NewGraph[Counter]().AddNode("", increment)
	})
}

// TestAddNode_ReservedID tests that END and its spellings are rejected.
func TestAddNode_ReservedID(t *testing.T) {
	for _, id := range []string{"END", "end", "End", "__end__", "__END__"} {
		assert.Panics(t, func() {
			NewGraph[Counter]().AddNode(id, increment)
		}, "expected panic for reserved ID %q", id)
	}
}

// TestAddNode_WhitespaceID tests that IDs with whitespace are rejected.
func TestAddNode_WhitespaceID(t *testing.T) {
	for _, id := range []string{"has space", "has\ttab", "has\nnewline"} {
		assert.Panics(t, func() {
			NewGraph[Counter]().AddNode(id, increment)
		}, "expected panic for ID %q", id)
	}
}

// TestAddNode_NilFunc tests that a nil node function panics.
func TestAddNode_NilFunc(t *testing.T) {
	assert.Panics(t, func() {
		NewGraph[Counter]().AddNode("a", nil)
	})
}

// TestAddNode_Duplicate tests that registering the same ID twice panics.
func TestAddNode_Duplicate(t *testing.T) {
	assert.Panics(t, func() {
		NewGraph[Counter]().
			AddNode("a", increment).
			AddNode("a", increment)
	})
}

// TestAddEdge_SecondEdgeFromSameNode tests the single-successor rule.
func TestAddEdge_SecondEdgeFromSameNode(t *testing.T) {
	assert.Panics(t, func() {
		NewGraph[Counter]().
			AddNode("a", increment).
			AddEdge("a", "b").
			AddEdge("a", "c")
	})
}

// TestAddConditionalEdge_NilRouter tests that a nil router panics.
func TestAddConditionalEdge_NilRouter(t *testing.T) {
	assert.Panics(t, func() {
		NewGraph[Counter]().
			AddNode("a", increment).
			AddConditionalEdge("a", nil)
	})
}

// TestGraph_Chaining tests that the builder methods chain.
func TestGraph_Chaining(t *testing.T) {
	g := NewGraph[Counter]().
		AddNode("a", increment).
		AddNode("b", increment).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a")

	compiled, err := g.Compile()
	assert.NoError(t, err)
	assert.NotNil(t, compiled)
}
