// internal/store/memory.go
//
// In-memory registry of server-side play sessions.
//
// Characteristics:
//   - Stores *game.Session keyed by session ID in a map.
//   - A Session is not goroutine-safe, so every mutation goes through Update,
//     which runs the callback under the registry's write lock.
//   - Each session remembers who started it (user id or anonymous cookie id).
//   - State is lost when the process restarts; idle sessions are dropped by
//     PurgeIdle.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/kana/apps/go-server/internal/game"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Store holds active sessions.
type Store interface {
	// Save registers s for owner, replacing an entry with the same ID.
	Save(ctx context.Context, owner string, s *game.Session) error

	// Update runs fn on the session with id. fn must not retain s.
	// Returns ErrNotFound if the id is unknown or belongs to another owner.
	Update(ctx context.Context, id, owner string, fn func(s *game.Session) error) error

	// Delete forgets a session.
	Delete(ctx context.Context, id string) error

	// PurgeIdle drops sessions not touched since cutoff and returns how many.
	PurgeIdle(ctx context.Context, cutoff time.Time) int
}

type entry struct {
	owner   string
	session *game.Session
}

// memory is a map-based Store implementation.
type memory struct {
	mu       sync.Mutex        // guards sessions and every Session in it
	sessions map[string]entry // keyed by Session.ID()
}

// NewMemoryStore constructs an empty registry.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]entry)}
}

func (m *memory) Save(ctx context.Context, owner string, s *game.Session) error {
	if s == nil {
		return errors.New("nil session")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = entry{owner: owner, session: s}
	return nil
}

func (m *memory) Update(ctx context.Context, id, owner string, fn func(s *game.Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok || e.owner != owner {
		return ErrNotFound
	}
	return fn(e.session)
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memory) PurgeIdle(ctx context.Context, cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.sessions {
		if e.session.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
