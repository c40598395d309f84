package history

import (
	"context"

	"github.com/robalobadob/kana/apps/go-server/internal/game"
	"github.com/robalobadob/kana/apps/go-server/internal/kana"
)

// Tier buckets an accuracy for display.
type Tier string

const (
	TierGood Tier = "good" // >= 70
	TierFair Tier = "fair" // >= 40
	TierPoor Tier = "poor"
)

// TierOf maps an accuracy percentage to its tier.
func TierOf(accuracy int) Tier {
	switch {
	case accuracy >= 70:
		return TierGood
	case accuracy >= 40:
		return TierFair
	default:
		return TierPoor
	}
}

// MissedCard is an answer the owner got wrong, with how often.
type MissedCard struct {
	kana.Card
	Count int `json:"count" db:"n"`
}

// GamePoint is one game on the dashboard's timeline.
type GamePoint struct {
	GameID    string `json:"gameId"`
	Accuracy  int    `json:"accuracy"`
	Tier      Tier   `json:"tier"`
	CreatedAt string `json:"createdAt"`
}

// Dashboard aggregates an owner's games.
type Dashboard struct {
	OwnerID         string       `json:"ownerId"`
	Games           int          `json:"games"`
	AverageAccuracy int          `json:"averageAccuracy"`
	Tier            Tier         `json:"tier"`
	TotalRounds     int          `json:"totalRounds"`
	CorrectRounds   int          `json:"correctRounds"`
	Missed          []MissedCard `json:"missed"`
	Recent          []GamePoint  `json:"recent"`
}

const (
	missedLimit = 10
	recentLimit = 20
)

// Dashboard computes the aggregate view for ownerID. An owner without games
// gets zero values, not an error.
func (s *Store) Dashboard(ctx context.Context, ownerID string) (*Dashboard, error) {
	d := &Dashboard{OwnerID: ownerID, Missed: []MissedCard{}, Recent: []GamePoint{}}

	var totals struct {
		Games int `db:"games"`
		Sum   int `db:"total"`
	}
	if err := s.db.GetContext(ctx, &totals, `
        SELECT COUNT(*) AS games, COALESCE(SUM(accuracy), 0) AS total
        FROM games WHERE user_id=?`, ownerID); err != nil {
		return nil, err
	}
	d.Games = totals.Games
	if totals.Games > 0 {
		// average of per-game accuracies, rounded half up
		d.AverageAccuracy = game.Percent(totals.Sum, totals.Games*100)
	}
	d.Tier = TierOf(d.AverageAccuracy)

	var rounds struct {
		Total   int `db:"total"`
		Correct int `db:"correct"`
	}
	if err := s.db.GetContext(ctx, &rounds, `
        SELECT COUNT(*) AS total, COALESCE(SUM(r.is_correct), 0) AS correct
        FROM rounds r JOIN games g ON g.id = r.game_id
        WHERE g.user_id=?`, ownerID); err != nil {
		return nil, err
	}
	d.TotalRounds, d.CorrectRounds = rounds.Total, rounds.Correct

	if err := s.db.SelectContext(ctx, &d.Missed, `
        SELECT c.id, c.hiragana, c.katakana, c.romaji, c.audio, COUNT(*) AS n
        FROM rounds r
        JOIN games g ON g.id = r.game_id
        JOIN cards c ON c.id = r.answer_id
        WHERE g.user_id=? AND r.is_correct=0
        GROUP BY c.id
        ORDER BY n DESC, c.id
        LIMIT ?`, ownerID, missedLimit); err != nil {
		return nil, err
	}

	var recent []gameRow
	if err := s.db.SelectContext(ctx, &recent, `
        SELECT id, user_id, accuracy, created_at
        FROM games WHERE user_id=?
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?`, ownerID, recentLimit); err != nil {
		return nil, err
	}
	for _, r := range recent {
		d.Recent = append(d.Recent, GamePoint{
			GameID:    r.ID,
			Accuracy:  r.Accuracy,
			Tier:      TierOf(r.Accuracy),
			CreatedAt: r.CreatedAt,
		})
	}
	return d, nil
}
