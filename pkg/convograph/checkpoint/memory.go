package checkpoint

import (
	"encoding/json"
	"sync"
)

// MemoryStore keeps snapshots in process memory. Data is lost on exit;
// suitable for tests and for deployments that opted out of persistence.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string][]byte
	closed bool
}

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string][]byte),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(runID string, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	m.runs[runID] = data
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(runID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	data, ok := m.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}

	return decode(data)
}

// Delete implements Store.
func (m *MemoryStore) Delete(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.runs, runID)
	return nil
}

// Close implements Store. Subsequent operations return ErrStoreClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.runs = nil
	return nil
}

// decode unmarshals a stored snapshot and checks format compatibility.
func decode(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if snap.Version != Version {
		return nil, ErrVersionMismatch
	}
	return &snap, nil
}
