package pending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/robalobadob/kana/apps/go-server/internal/game"
)

// sqlStore keeps one pending_results row per slot.
type sqlStore struct {
	db   *sqlx.DB
	slot string
}

// NewSQLStore stages games in the pending_results row named slot.
func NewSQLStore(db *sqlx.DB, slot string) Store {
	return &sqlStore{db: db, slot: slot}
}

// AnonSlot names the slot of an anonymous visitor.
func AnonSlot(anonID string) string { return "anon:" + anonID }

// Save upserts the slot row.
func (s *sqlStore) Save(ctx context.Context, g *game.Game) error {
	raw, err := Encode(g)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO pending_results (slot, payload, saved_at)
        VALUES (?, ?, ?)
        ON CONFLICT(slot) DO UPDATE SET payload=excluded.payload, saved_at=excluded.saved_at`,
		s.slot, string(raw), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("pending: save slot %s: %w", s.slot, err)
	}
	return nil
}

// LoadAndClear reads and deletes the slot row in one transaction.
func (s *sqlStore) LoadAndClear(ctx context.Context) (*game.Game, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var payload string
	err = tx.GetContext(ctx, &payload, `SELECT payload FROM pending_results WHERE slot=?`, s.slot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pending: load slot %s: %w", s.slot, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_results WHERE slot=?`, s.slot); err != nil {
		return nil, fmt.Errorf("pending: clear slot %s: %w", s.slot, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return Decode([]byte(payload))
}

// PurgeStale deletes slots saved before cutoff and reports how many went.
func PurgeStale(ctx context.Context, db *sqlx.DB, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM pending_results WHERE saved_at < ?`,
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
