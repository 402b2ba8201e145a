// Package session hosts selection models behind a concurrent store.  The
// selection model itself is single threaded by contract, so every session
// carries its own mutex and all model access funnels through Session.Do;
// distinct sessions proceed in parallel under the store's read lock.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maquino1985/abseq/internal/antibody"
	"github.com/maquino1985/abseq/internal/selection"
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session not found")

// DefaultTTL is how long an untouched session survives before the janitor
// removes it.
const DefaultTTL = 30 * time.Minute

// Session owns one dataset and its selection state.
type Session struct {
	ID string

	mu       sync.Mutex
	model    *selection.Model
	lastUsed time.Time
}

// Do runs fn with exclusive access to the session's selection model.
// Toggle operations are not commutative under concurrent interleaving, so
// this is the only way to reach the model.
func (s *Session) Do(fn func(*selection.Model)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	fn(s.model)
}

// Store is a concurrent session registry keyed by opaque UUIDs.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewStore returns an empty Store.  A non-positive ttl falls back to
// DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create registers a new session with an empty selection over dataset and
// returns it.
func (store *Store) Create(dataset *antibody.Dataset) *Session {
	session := &Session{
		ID:       uuid.New().String(),
		model:    selection.NewModel(dataset),
		lastUsed: time.Now(),
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	store.sessions[session.ID] = session
	return session
}

// Get returns the session with the given ID, or ErrNotFound.
func (store *Store) Get(id string) (*Session, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	if session, ok := store.sessions[id]; ok {
		return session, nil
	}
	return nil, ErrNotFound
}

// Delete removes a session.  Deleting an unknown ID is a no-op.
func (store *Store) Delete(id string) {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.sessions, id)
}

// Len returns the number of live sessions.
func (store *Store) Len() int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.sessions)
}

// PurgeIdle removes sessions whose last use is older than the store TTL
// and returns how many were removed.
func (store *Store) PurgeIdle(now time.Time) int {
	store.mu.Lock()
	defer store.mu.Unlock()
	removed := 0
	for id, session := range store.sessions {
		session.mu.Lock()
		idle := now.Sub(session.lastUsed) > store.ttl
		session.mu.Unlock()
		if idle {
			delete(store.sessions, id)
			removed++
		}
	}
	return removed
}

// Janitor purges idle sessions every interval until ctx is cancelled.
func (store *Store) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			store.PurgeIdle(now)
		}
	}
}
