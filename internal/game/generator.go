// internal/game/generator.go
//
// Round and game generation.
//
//   - GenerateRound: uniform shuffle of the catalog (Fisher–Yates via
//     rand.Shuffle), first CandidatesPerRound cards become the candidates,
//     the answer is drawn uniformly among them.
//   - GenerateGame: roundLimit independent rounds. Answers may repeat across
//     rounds.
//
// Ids are random UUIDs so clients can generate games offline and the server
// can still key rounds by id.
package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/kana/apps/go-server/internal/kana"
)

// Generator draws rounds from a catalog. Safe for concurrent use.
type Generator struct {
	cat *kana.Catalog
	mu  sync.Mutex // guards rnd
	rnd *rand.Rand
}

// NewGenerator returns a generator over cat. A nil src is seeded from the clock.
func NewGenerator(cat *kana.Catalog, src rand.Source) *Generator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Generator{cat: cat, rnd: rand.New(src)}
}

// GenerateRound builds one unanswered round.
func (g *Generator) GenerateRound() (Round, error) {
	if g.cat == nil || g.cat.Len() < CandidatesPerRound {
		return Round{}, fmt.Errorf("generate round: catalog needs at least %d cards", CandidatesPerRound)
	}
	deck := g.cat.All()

	g.mu.Lock()
	g.rnd.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	pick := g.rnd.Intn(CandidatesPerRound)
	g.mu.Unlock()

	cards := make([]kana.Card, CandidatesPerRound)
	copy(cards, deck[:CandidatesPerRound])
	return Round{
		ID:     uuid.NewString(),
		Cards:  cards,
		Answer: cards[pick],
	}, nil
}

// GenerateGame builds roundLimit rounds.
func (g *Generator) GenerateGame(roundLimit int) (*Game, error) {
	if roundLimit <= 0 {
		return nil, fmt.Errorf("generate game: %w (got %d)", ErrDegenerateConfiguration, roundLimit)
	}
	out := &Game{ID: uuid.NewString(), Rounds: make([]Round, 0, roundLimit)}
	for i := 0; i < roundLimit; i++ {
		r, err := g.GenerateRound()
		if err != nil {
			return nil, err
		}
		out.Rounds = append(out.Rounds, r)
	}
	return out, nil
}
