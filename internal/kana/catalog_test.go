package kana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)
	require.Equal(t, 46, cat.Len())

	all := cat.All()
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "n", all[len(all)-1].ID)

	seen := map[string]bool{}
	for _, c := range all {
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
		assert.NotEmpty(t, c.Hiragana)
		assert.NotEmpty(t, c.Katakana)
		assert.Equal(t, c.Romaji+".mp3", c.Audio)
	}

	shi, ok := cat.ByID("shi")
	require.True(t, ok)
	assert.Equal(t, "し", shi.Hiragana)
	assert.Equal(t, "シ", shi.Katakana)

	_, ok = cat.ByID("xyz")
	assert.False(t, ok)
}

func TestAllReturnsCopy(t *testing.T) {
	cat, err := New([]Card{{ID: "a", Hiragana: "あ", Katakana: "ア", Romaji: "a"}})
	require.NoError(t, err)

	all := cat.All()
	all[0].ID = "mutated"

	got, ok := cat.ByID("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, "a", cat.All()[0].ID)
}

func TestNewRejectsBadDecks(t *testing.T) {
	tests := []struct {
		name  string
		cards []Card
	}{
		{"empty", nil},
		{"missing id", []Card{{Hiragana: "あ"}}},
		{"duplicate id", []Card{{ID: "a"}, {ID: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cards)
			assert.Error(t, err)
		})
	}
}

func TestFromRows(t *testing.T) {
	cards, err := fromRows([][]string{
		{"ka", "か", "カ", "ka"},
		{"ki", "き", "キ", "ki", "custom.ogg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ka.mp3", cards[0].Audio)
	assert.Equal(t, "custom.ogg", cards[1].Audio)

	_, err = fromRows([][]string{{"ka", "か"}})
	assert.Error(t, err)

	_, err = fromRows([][]string{{"ka", "", "カ", "ka"}})
	assert.Error(t, err)
}
