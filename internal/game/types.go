// internal/game/types.go
//
// Core type definitions for the kana game engine.
// Defines:
//   - Round: four candidate cards, one answer, the player's pick.
//   - Game: a fixed-length sequence of rounds scored as one unit.
//
// The JSON shape is self-contained (ids plus nested card data) so a stored
// or submitted game can be rebuilt without looking anything up.

package game

import (
	"math"

	"github.com/robalobadob/kana/apps/go-server/internal/kana"
)

const (
	// CandidatesPerRound is the number of cards offered each round.
	CandidatesPerRound = 4
	// DefaultRoundLimit is the number of rounds in a game unless configured.
	DefaultRoundLimit = 10
)

// Round holds a single question.
type Round struct {
	ID        string      `json:"id"`
	Cards     []kana.Card `json:"cards"`              // candidates, in display order
	Answer    kana.Card   `json:"answer"`             // always one of Cards
	Selected  *kana.Card  `json:"selected,omitempty"` // nil until the player picks
	IsCorrect bool        `json:"isCorrect"`
}

// Game is an ordered list of rounds.
type Game struct {
	ID     string  `json:"id"`
	Rounds []Round `json:"rounds"`
}

// Candidate returns the candidate with the given id.
func (r *Round) Candidate(id string) (kana.Card, bool) {
	for _, c := range r.Cards {
		if c.ID == id {
			return c, true
		}
	}
	return kana.Card{}, false
}

// Clone returns a deep copy of the round.
func (r Round) Clone() Round {
	out := r
	out.Cards = make([]kana.Card, len(r.Cards))
	copy(out.Cards, r.Cards)
	if r.Selected != nil {
		sel := *r.Selected
		out.Selected = &sel
	}
	return out
}

// Clone returns a deep copy of the game.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	out := &Game{ID: g.ID, Rounds: make([]Round, len(g.Rounds))}
	for i, r := range g.Rounds {
		out.Rounds[i] = r.Clone()
	}
	return out
}

// Correct counts rounds marked correct.
func (g *Game) Correct() int {
	n := 0
	for _, r := range g.Rounds {
		if r.IsCorrect {
			n++
		}
	}
	return n
}

// Accuracy is the percentage of correct rounds, rounded to the nearest integer.
func (g *Game) Accuracy() int {
	return Percent(g.Correct(), len(g.Rounds))
}

// Percent returns round(part/total*100), or 0 when total is 0.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
