// Package checkpoint provides optional persistence of run-state snapshots.
// The executor saves a snapshot after each node when configured with a
// store; only the latest snapshot per run is retained.
package checkpoint

import (
	"encoding/json"
	"errors"
	"time"
)

// Version is the current snapshot format version. Increment on breaking
// changes to the Snapshot structure.
const Version = 1

// Snapshot is the persisted state of a run after a node execution.
type Snapshot struct {
	Version   int             `json:"version"`
	RunID     string          `json:"run_id"`
	NodeID    string          `json:"node_id"`
	NextNode  string          `json:"next_node"`
	Sequence  int             `json:"sequence"`
	Timestamp time.Time       `json:"timestamp"`
	State     json.RawMessage `json:"state"`
}

// New creates a snapshot. State must already be JSON-serialized.
func New(runID, nodeID string, sequence int, state []byte, nextNode string) *Snapshot {
	return &Snapshot{
		Version:   Version,
		RunID:     runID,
		NodeID:    nodeID,
		NextNode:  nextNode,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		State:     state,
	}
}

// Store persists the latest snapshot per run.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores the snapshot for a run, replacing any previous one.
	Save(runID string, snap *Snapshot) error

	// Load retrieves the latest snapshot for a run.
	// Returns ErrNotFound if the run has none.
	Load(runID string) (*Snapshot, error)

	// Delete removes the snapshot for a run. Nil if none exists.
	Delete(runID string) error

	// Close releases any resources held by the store.
	Close() error
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates no snapshot exists for the run.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("snapshot store closed")

	// ErrVersionMismatch indicates an incompatible snapshot format.
	ErrVersionMismatch = errors.New("snapshot version mismatch")
)
