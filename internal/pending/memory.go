package pending

import (
	"context"
	"sync"

	"github.com/robalobadob/kana/apps/go-server/internal/game"
)

// memory keeps the slot in process memory. State is lost on restart.
type memory struct {
	mu   sync.Mutex // guards slot
	slot *game.Game
}

// NewMemoryStore constructs an empty in-memory slot.
func NewMemoryStore() Store {
	return &memory{}
}

// Save stores a private copy of g.
func (m *memory) Save(ctx context.Context, g *game.Game) error {
	if g == nil {
		return errNilGame
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slot = g.Clone()
	return nil
}

// LoadAndClear hands the staged game over and empties the slot.
func (m *memory) LoadAndClear(ctx context.Context) (*game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.slot
	m.slot = nil
	return g, nil
}
