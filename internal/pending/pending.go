// internal/pending/pending.go
//
// Single-slot staging for a finished game that has no owner yet.
//
// A player can finish a game before signing in. The result is saved into one
// well-known slot and consumed exactly once, after sign-in, by the submit
// package's reconciler. Saving again before that overwrites the previous
// result: only the newest unsynced game is kept.
//
// Backends:
//   - memory: process-local (tests, server without persistence).
//   - file:   JSON file next to the terminal client's data.
//   - sql:    pending_results row per slot (server, one slot per visitor).
//   - redis:  key per slot with a TTL.

package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/robalobadob/kana/apps/go-server/internal/game"
)

// Store is a durable single-slot holder for one finished game.
type Store interface {
	// Save stores g, replacing whatever was staged before.
	Save(ctx context.Context, g *game.Game) error

	// LoadAndClear returns the staged game and empties the slot.
	// Returns (nil, nil) when nothing is staged.
	LoadAndClear(ctx context.Context) (*game.Game, error)
}

var errNilGame = errors.New("pending: nil game")

// Encode serializes a game for storage.
func Encode(g *game.Game) ([]byte, error) {
	if g == nil {
		return nil, errNilGame
	}
	return json.Marshal(g)
}

// Decode restores a game written by Encode.
func Decode(raw []byte) (*game.Game, error) {
	var g game.Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("pending: decode: %w", err)
	}
	return &g, nil
}
