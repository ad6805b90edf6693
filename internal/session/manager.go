// Package session tracks in-flight conversations, one per user, and
// serializes each user's inbound events in arrival order.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dailysync/standup-bot/internal/standup"
)

// Session binds a user's conversation state to its reply destination.
type Session struct {
	// UserID is the platform-scoped user identifier (the map key).
	UserID string

	// Channel is the opaque reply destination handle.
	Channel string

	// RunID identifies the graph run for logging and snapshots.
	RunID string

	// State is the conversation state.
	State standup.State

	// PausedAt is the node to resume from, or "" for a fresh run.
	PausedAt string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Manager is a concurrency-safe keyed session store. It guarantees at most
// one live session per user ID, and processes each user's queued work one
// item at a time in arrival order. Work for different users runs
// concurrently.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]Session
	queues   map[string]*userQueue
	now      func() time.Time
}

// userQueue is the per-user FIFO of pending work.
type userQueue struct {
	pending []func()
	active  bool
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]Session),
		queues:   make(map[string]*userQueue),
		now:      time.Now,
	}
}

// Enqueue schedules fn on the user's serial queue. Items for one user run
// strictly in arrival order with no overlap; a fresh queue starts its own
// worker goroutine, which exits once drained.
func (m *Manager) Enqueue(userID string, fn func()) {
	m.mu.Lock()
	q, ok := m.queues[userID]
	if !ok {
		q = &userQueue{}
		m.queues[userID] = q
	}
	q.pending = append(q.pending, fn)
	start := !q.active
	if start {
		q.active = true
	}
	m.mu.Unlock()

	if start {
		go m.drain(userID, q)
	}
}

// drain runs the user's queue until empty, then removes it.
func (m *Manager) drain(userID string, q *userQueue) {
	for {
		m.mu.Lock()
		if len(q.pending) == 0 {
			q.active = false
			delete(m.queues, userID)
			m.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending = q.pending[1:]
		m.mu.Unlock()

		fn()
	}
}

// GetOrCreate returns the user's live session, creating one from seed if
// none exists. The second result is true when a new session was created.
// An existing session is never silently replaced; callers decide how to
// signal the user.
func (m *Manager) GetOrCreate(userID string, seed func() Session) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[userID]; ok {
		return sess, false
	}

	sess := seed()
	sess.UserID = userID
	if sess.RunID == "" {
		sess.RunID = uuid.New().String()
	}
	sess.CreatedAt = m.now()
	sess.UpdatedAt = sess.CreatedAt
	m.sessions[userID] = sess
	return sess, true
}

// Get returns the user's live session, if any.
func (m *Manager) Get(userID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[userID]
	return sess, ok
}

// Update writes back a session after a run. No-op if the session was
// deleted while the run was in flight; per-user queueing makes that
// impossible for same-user races, and cross-user events never touch this
// key.
func (m *Manager) Update(sess Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sess.UserID]; !ok {
		return
	}
	sess.UpdatedAt = m.now()
	m.sessions[sess.UserID] = sess
}

// Delete removes the user's session.
func (m *Manager) Delete(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, userID)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}
