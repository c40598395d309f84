// internal/history/store.go
//
// Persistence for finished games.
// Responsibilities:
//   - Seed the card table from the catalog.
//   - Store a submitted game: create cards it references that are not known
//     yet, store its rounds with their ordered candidates, compute accuracy.
//   - List an owner's games newest first, fully hydrated.
//
// Cards are keyed by their catalog id, so a game can be stored even if the
// server's catalog differs from the client's.

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/robalobadob/kana/apps/go-server/internal/game"
	"github.com/robalobadob/kana/apps/go-server/internal/kana"
)

var (
	// ErrInvalidGame: the payload cannot be stored (no rounds, no answer, unknown incomplete card).
	ErrInvalidGame = errors.New("invalid game")
	// ErrConflict: the game id already belongs to another owner.
	ErrConflict = errors.New("game id already taken")
	// ErrNotFound: no such game.
	ErrNotFound = errors.New("game not found")
)

// timeLayout sorts lexically, which the ORDER BY created_at queries rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// StoredRound is a round as persisted.
type StoredRound struct {
	ID        string      `json:"id"`
	Position  int         `json:"position"`
	Cards     []kana.Card `json:"cards"`
	Answer    kana.Card   `json:"answer"`
	Selected  *kana.Card  `json:"selected,omitempty"`
	IsCorrect bool        `json:"isCorrect"`
}

// StoredGame is a game as persisted, with its owner and score.
type StoredGame struct {
	ID        string        `json:"id"`
	OwnerID   string        `json:"ownerId"`
	Accuracy  int           `json:"accuracy"`
	CreatedAt time.Time     `json:"createdAt"`
	Rounds    []StoredRound `json:"rounds"`

	// CardsCreated is how many cards this call added; 0 when loaded.
	CardsCreated int `json:"-"`
}

// Correct counts correct rounds.
func (g *StoredGame) Correct() int {
	n := 0
	for _, r := range g.Rounds {
		if r.IsCorrect {
			n++
		}
	}
	return n
}

// Store wraps the games/rounds/cards tables.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore constructs a Store over an already migrated database.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// SeedCards inserts catalog cards that are not stored yet.
func (s *Store) SeedCards(ctx context.Context, cards []kana.Card) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var added int64
	for _, c := range cards {
		res, err := tx.NamedExecContext(ctx, `
            INSERT OR IGNORE INTO cards (id, hiragana, katakana, romaji, audio)
            VALUES (:id, :hiragana, :katakana, :romaji, :audio)`, c)
		if err != nil {
			return 0, fmt.Errorf("seed card %s: %w", c.ID, err)
		}
		n, _ := res.RowsAffected()
		added += n
	}
	return added, tx.Commit()
}

// CreateGame stores g for ownerID.
//
//   - Every card referenced (candidates, answers, selections) must exist
//     afterwards; unknown ones are created from the payload, known ones are
//     left untouched.
//   - isCorrect is recomputed from selected/answer, and accuracy is
//     round(correct/total*100).
//   - Submitting a game id the owner already stored returns the stored game
//     unchanged, so a retried submission cannot create a duplicate.
func (s *Store) CreateGame(ctx context.Context, g *game.Game, ownerID string) (*StoredGame, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing owner", ErrInvalidGame)
	}
	if g == nil || len(g.Rounds) == 0 {
		return nil, fmt.Errorf("%w: no rounds", ErrInvalidGame)
	}
	roundIDs := make([]string, 0, len(g.Rounds))
	seen := map[string]bool{}
	for i, r := range g.Rounds {
		if err := validateRound(r); err != nil {
			return nil, fmt.Errorf("%w: round %d: %v", ErrInvalidGame, i, err)
		}
		if r.ID == "" {
			continue
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: round id %q repeated", ErrInvalidGame, r.ID)
		}
		seen[r.ID] = true
		roundIDs = append(roundIDs, r.ID)
	}

	gameID := g.ID
	if gameID == "" {
		gameID = uuid.NewString()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var existingOwner string
	err = tx.GetContext(ctx, &existingOwner, `SELECT user_id FROM games WHERE id=?`, gameID)
	switch {
	case err == nil && existingOwner == ownerID:
		_ = tx.Rollback()
		return s.GetGame(ctx, gameID)
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrConflict, gameID)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	if len(roundIDs) > 0 {
		q, args, err := sqlx.In(`SELECT id FROM rounds WHERE id IN (?)`, roundIDs)
		if err != nil {
			return nil, err
		}
		var taken []string
		if err := tx.SelectContext(ctx, &taken, tx.Rebind(q), args...); err != nil {
			return nil, fmt.Errorf("lookup rounds: %w", err)
		}
		if len(taken) > 0 {
			return nil, fmt.Errorf("%w: round %s belongs to another game", ErrConflict, taken[0])
		}
	}

	created, err := createMissingCards(ctx, tx, g)
	if err != nil {
		return nil, err
	}

	correct := 0
	for _, r := range g.Rounds {
		if r.Selected != nil && r.Selected.ID == r.Answer.ID {
			correct++
		}
	}
	accuracy := game.Percent(correct, len(g.Rounds))

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO games (id, user_id, accuracy, created_at) VALUES (?, ?, ?, ?)`,
		gameID, ownerID, accuracy, s.now().UTC().Format(timeLayout),
	); err != nil {
		return nil, fmt.Errorf("insert game: %w", err)
	}

	for pos, r := range g.Rounds {
		roundID := r.ID
		if roundID == "" {
			roundID = uuid.NewString()
		}
		var selectedID sql.NullString
		if r.Selected != nil {
			selectedID = sql.NullString{String: r.Selected.ID, Valid: true}
		}
		isCorrect := selectedID.Valid && selectedID.String == r.Answer.ID
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO rounds (id, game_id, position, answer_id, selected_id, is_correct)
            VALUES (?, ?, ?, ?, ?, ?)`,
			roundID, gameID, pos, r.Answer.ID, selectedID, isCorrect,
		); err != nil {
			return nil, fmt.Errorf("insert round %d: %w", pos, err)
		}
		for cpos, c := range r.Cards {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO round_cards (round_id, card_id, position) VALUES (?, ?, ?)`,
				roundID, c.ID, cpos,
			); err != nil {
				return nil, fmt.Errorf("link round %d card %s: %w", pos, c.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	out, err := s.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	out.CardsCreated = created
	return out, nil
}

// validateRound checks the round shape: unique candidates, an answer among
// them, and a selection that is absent or one of them.
func validateRound(r game.Round) error {
	if r.Answer.ID == "" {
		return errors.New("no answer")
	}
	if len(r.Cards) == 0 {
		return errors.New("no candidates")
	}
	ids := make(map[string]bool, len(r.Cards))
	for _, c := range r.Cards {
		if c.ID == "" {
			return errors.New("candidate without id")
		}
		if ids[c.ID] {
			return fmt.Errorf("candidate %q repeated", c.ID)
		}
		ids[c.ID] = true
	}
	if !ids[r.Answer.ID] {
		return fmt.Errorf("answer %q is not a candidate", r.Answer.ID)
	}
	if r.Selected != nil && !ids[r.Selected.ID] {
		return fmt.Errorf("selection %q is not a candidate", r.Selected.ID)
	}
	return nil
}

// createMissingCards inserts every referenced card id not yet stored and
// returns how many were added.
func createMissingCards(ctx context.Context, tx *sqlx.Tx, g *game.Game) (int, error) {
	refs := map[string]kana.Card{}
	var order []string
	add := func(c kana.Card) {
		if c.ID == "" {
			return
		}
		if _, ok := refs[c.ID]; !ok {
			refs[c.ID] = c
			order = append(order, c.ID)
		}
	}
	for _, r := range g.Rounds {
		add(r.Answer)
		for _, c := range r.Cards {
			add(c)
		}
		if r.Selected != nil {
			add(*r.Selected)
		}
	}

	q, args, err := sqlx.In(`SELECT id FROM cards WHERE id IN (?)`, order)
	if err != nil {
		return 0, err
	}
	var known []string
	if err := tx.SelectContext(ctx, &known, tx.Rebind(q), args...); err != nil {
		return 0, fmt.Errorf("lookup cards: %w", err)
	}
	have := make(map[string]bool, len(known))
	for _, id := range known {
		have[id] = true
	}

	created := 0
	for _, id := range order {
		if have[id] {
			continue
		}
		c := refs[id]
		if c.Hiragana == "" || c.Katakana == "" || c.Romaji == "" {
			return 0, fmt.Errorf("%w: unknown card %q is incomplete", ErrInvalidGame, id)
		}
		if c.Audio == "" {
			c.Audio = c.Romaji + ".mp3"
		}
		res, err := tx.NamedExecContext(ctx, `
            INSERT OR IGNORE INTO cards (id, hiragana, katakana, romaji, audio)
            VALUES (:id, :hiragana, :katakana, :romaji, :audio)`, c)
		if err != nil {
			return 0, fmt.Errorf("create card %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			created++
		}
	}
	return created, nil
}

// gameRow matches the games table.
type gameRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Accuracy  int    `db:"accuracy"`
	CreatedAt string `db:"created_at"`
}

// GetGame loads one stored game.
func (s *Store) GetGame(ctx context.Context, id string) (*StoredGame, error) {
	var row gameRow
	err := s.db.GetContext(ctx, &row, `SELECT id, user_id, accuracy, created_at FROM games WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	games, err := s.hydrate(ctx, []gameRow{row})
	if err != nil {
		return nil, err
	}
	return &games[0], nil
}

// ListGamesByOwner returns up to limit games, newest first. limit <= 0 means 50.
func (s *Store) ListGamesByOwner(ctx context.Context, ownerID string, limit int) ([]StoredGame, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []gameRow
	if err := s.db.SelectContext(ctx, &rows, `
        SELECT id, user_id, accuracy, created_at
        FROM games
        WHERE user_id=?
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?`, ownerID, limit,
	); err != nil {
		return nil, err
	}
	return s.hydrate(ctx, rows)
}

type roundRow struct {
	ID         string         `db:"id"`
	GameID     string         `db:"game_id"`
	Position   int            `db:"position"`
	AnswerID   string         `db:"answer_id"`
	SelectedID sql.NullString `db:"selected_id"`
	IsCorrect  bool           `db:"is_correct"`
}

type linkRow struct {
	RoundID  string `db:"round_id"`
	CardID   string `db:"card_id"`
	Position int    `db:"position"`
}

// hydrate attaches rounds, candidates and cards to game rows, keeping the
// order of rows.
func (s *Store) hydrate(ctx context.Context, rows []gameRow) ([]StoredGame, error) {
	out := make([]StoredGame, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	index := make(map[string]int, len(rows))
	gameIDs := make([]string, len(rows))
	for i, r := range rows {
		out[i] = StoredGame{
			ID:        r.ID,
			OwnerID:   r.UserID,
			Accuracy:  r.Accuracy,
			CreatedAt: parseTime(r.CreatedAt),
			Rounds:    []StoredRound{},
		}
		index[r.ID] = i
		gameIDs[i] = r.ID
	}

	var rounds []roundRow
	if err := s.selectIn(ctx, &rounds, `
        SELECT id, game_id, position, answer_id, selected_id, is_correct
        FROM rounds WHERE game_id IN (?) ORDER BY game_id, position`, gameIDs); err != nil {
		return nil, fmt.Errorf("load rounds: %w", err)
	}
	if len(rounds) == 0 {
		return out, nil
	}

	roundIDs := make([]string, len(rounds))
	cardIDs := map[string]struct{}{}
	for i, r := range rounds {
		roundIDs[i] = r.ID
		cardIDs[r.AnswerID] = struct{}{}
		if r.SelectedID.Valid {
			cardIDs[r.SelectedID.String] = struct{}{}
		}
	}
	var links []linkRow
	if err := s.selectIn(ctx, &links, `
        SELECT round_id, card_id, position
        FROM round_cards WHERE round_id IN (?) ORDER BY round_id, position`, roundIDs); err != nil {
		return nil, fmt.Errorf("load round cards: %w", err)
	}
	byRound := map[string][]string{}
	for _, l := range links {
		byRound[l.RoundID] = append(byRound[l.RoundID], l.CardID)
		cardIDs[l.CardID] = struct{}{}
	}

	ids := make([]string, 0, len(cardIDs))
	for id := range cardIDs {
		ids = append(ids, id)
	}
	var cards []kana.Card
	if err := s.selectIn(ctx, &cards, `
        SELECT id, hiragana, katakana, romaji, audio FROM cards WHERE id IN (?)`, ids); err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	cardByID := make(map[string]kana.Card, len(cards))
	for _, c := range cards {
		cardByID[c.ID] = c
	}

	for _, r := range rounds {
		sr := StoredRound{
			ID:        r.ID,
			Position:  r.Position,
			Answer:    cardByID[r.AnswerID],
			IsCorrect: r.IsCorrect,
			Cards:     make([]kana.Card, 0, len(byRound[r.ID])),
		}
		if r.SelectedID.Valid {
			sel := cardByID[r.SelectedID.String]
			sr.Selected = &sel
		}
		for _, id := range byRound[r.ID] {
			sr.Cards = append(sr.Cards, cardByID[id])
		}
		g := &out[index[r.GameID]]
		g.Rounds = append(g.Rounds, sr)
	}
	return out, nil
}

// selectIn runs a single "IN (?)" query expanded over args.
func (s *Store) selectIn(ctx context.Context, dest any, query string, args []string) error {
	q, qargs, err := sqlx.In(query, args)
	if err != nil {
		return err
	}
	return s.db.SelectContext(ctx, dest, s.db.Rebind(q), qargs...)
}

// parseTime parses stored timestamps; on error returns zero time.
func parseTime(v string) time.Time {
	t, _ := time.Parse(timeLayout, v)
	return t
}
