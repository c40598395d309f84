// internal/kana/catalog.go
//
// Card catalog for the kana drills.
//
// Responsibilities:
//   - Load the deck once, from KANA_FILE if set or the embedded assets/kana.tsv.
//   - Validate it (non-empty, unique ids, all glyph fields present).
//   - Expose read-only enumeration and id lookup.
//
// Row format (tab separated):
//   id  hiragana  katakana  romaji  audio
// The audio column is optional and defaults to "<romaji>.mp3".

package kana

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/robalobadob/kana/apps/go-server/assets"
)

// Card is one kana glyph as drilled by the game. The id doubles as the
// foreign key used by rounds and persisted cards.
type Card struct {
	ID       string `json:"id" db:"id"`
	Hiragana string `json:"hiragana" db:"hiragana"`
	Katakana string `json:"katakana" db:"katakana"`
	Romaji   string `json:"romaji" db:"romaji"`
	Audio    string `json:"audio" db:"audio"`
}

// Catalog is an immutable, ordered set of cards.
type Catalog struct {
	cards []Card
	byID  map[string]int
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// New builds a catalog, rejecting empty or duplicate ids.
func New(cards []Card) (*Catalog, error) {
	if len(cards) == 0 {
		return nil, errors.New("kana: catalog is empty")
	}
	c := &Catalog{
		cards: make([]Card, len(cards)),
		byID:  make(map[string]int, len(cards)),
	}
	copy(c.cards, cards)
	for i, card := range c.cards {
		if card.ID == "" {
			return nil, fmt.Errorf("kana: card %d has no id", i)
		}
		if _, dup := c.byID[card.ID]; dup {
			return nil, fmt.Errorf("kana: duplicate card id %q", card.ID)
		}
		c.byID[card.ID] = i
	}
	return c, nil
}

// Default returns the process-wide catalog, loading it on first use.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		var rows [][]string
		if path := os.Getenv("KANA_FILE"); path != "" {
			f, err := os.Open(path)
			if err != nil {
				defaultErr = err
				return
			}
			defer f.Close()
			rows, defaultErr = assets.ParseRows(f)
		} else {
			rows, defaultErr = assets.KanaRows()
		}
		if defaultErr != nil {
			return
		}
		cards, err := fromRows(rows)
		if err != nil {
			defaultErr = err
			return
		}
		defaultCat, defaultErr = New(cards)
	})
	return defaultCat, defaultErr
}

// fromRows converts TSV rows into cards.
func fromRows(rows [][]string) ([]Card, error) {
	cards := make([]Card, 0, len(rows))
	for i, r := range rows {
		if len(r) < 4 {
			return nil, fmt.Errorf("kana: row %d: want at least 4 columns, got %d", i+1, len(r))
		}
		c := Card{ID: r[0], Hiragana: r[1], Katakana: r[2], Romaji: r[3]}
		if len(r) > 4 && r[4] != "" {
			c.Audio = r[4]
		} else {
			c.Audio = c.Romaji + ".mp3"
		}
		if c.Hiragana == "" || c.Katakana == "" || c.Romaji == "" {
			return nil, fmt.Errorf("kana: row %d: missing glyph", i+1)
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// All returns a copy of the cards in catalog order.
func (c *Catalog) All() []Card {
	out := make([]Card, len(c.cards))
	copy(out, c.cards)
	return out
}

// ByID looks up a card.
func (c *Catalog) ByID(id string) (Card, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Card{}, false
	}
	return c.cards[i], true
}

// Len reports the number of cards.
func (c *Catalog) Len() int { return len(c.cards) }
