package voice

import (
	"sync"
	"time"
)

// Registry owns all live call sessions. Sessions are resumed by id on every
// inbound webhook callback; all mutations for one session are serialized
// through its entry lock, while distinct sessions never block each other.
// The registry map itself is only held long enough to find or insert an
// entry, never across a transition.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*registryEntry
}

type registryEntry struct {
	mu   sync.Mutex
	sess *Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*registryEntry)}
}

// Create registers a new ACTIVE session for the call.
func (r *Registry) Create(sessionID, patientID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; ok {
		return nil, ErrDuplicateSession
	}
	sess := NewSession(sessionID, patientID, time.Now().UTC())
	r.sessions[sessionID] = &registryEntry{sess: sess}
	return sess.Snapshot(), nil
}

// Get returns a snapshot of the session. Mutations go through WithSession
// or Update so the per-session serialization holds.
func (r *Registry) Get(sessionID string) (*Session, error) {
	entry, err := r.entry(sessionID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.sess.Snapshot(), nil
}

// Update replaces the stored session under its entry lock.
func (r *Registry) Update(sessionID string, sess *Session) error {
	entry, err := r.entry(sessionID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.sess = sess.Snapshot()
	return nil
}

// WithSession runs fn while holding the session's lock. Concurrent webhook
// callbacks for the same session id are serialized here; callbacks for
// different sessions proceed in parallel.
func (r *Registry) WithSession(sessionID string, fn func(*Session) error) error {
	entry, err := r.entry(sessionID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry.sess)
}

// Remove deletes the session from the registry. Removing an unknown id is
// a no-op: terminal sessions are removed after their report is handed
// downstream, and duplicate removals are expected under retried webhooks.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SweepIdle aborts and removes sessions with no activity since the cutoff,
// returning their snapshots so the caller can hand the partial reports
// downstream. Idle-timeout policy lives here, outside the Machine, which
// stays a pure reducer.
func (r *Registry) SweepIdle(maxIdle time.Duration, now time.Time) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var swept []*Session
	for id, entry := range r.sessions {
		entry.mu.Lock()
		if now.Sub(entry.sess.LastActivityAt) >= maxIdle {
			if !entry.sess.Status.Terminal() {
				entry.sess.State = StateAborted
				entry.sess.Status = StatusAborted
			}
			swept = append(swept, entry.sess.Snapshot())
			delete(r.sessions, id)
		}
		entry.mu.Unlock()
	}
	return swept
}

func (r *Registry) entry(sessionID string) (*registryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry, nil
}
