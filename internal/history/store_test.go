package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/kana/apps/go-server/internal/database"
	"github.com/robalobadob/kana/apps/go-server/internal/game"
	"github.com/robalobadob/kana/apps/go-server/internal/kana"
)

func newTestStore(t *testing.T) (*Store, *sqlx.DB) {
	t.Helper()
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "kana.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), db
}

func addUser(t *testing.T, db *sqlx.DB, id string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, 'x', ?)`,
		id, "user_"+id, time.Now().UTC().Format(time.RFC3339))
	require.NoError(t, err)
}

func card(id string) kana.Card {
	return kana.Card{ID: id, Hiragana: "h-" + id, Katakana: "k-" + id, Romaji: id, Audio: id + ".mp3"}
}

// round builds a round whose answer is cards[0]; pick == "" leaves it unanswered.
func round(pick string, ids ...string) game.Round {
	var r game.Round
	for _, id := range ids {
		r.Cards = append(r.Cards, card(id))
	}
	r.Answer = r.Cards[0]
	if pick != "" {
		sel := card(pick)
		r.Selected = &sel
		r.IsCorrect = pick == r.Answer.ID
	}
	return r
}

func TestSeedCardsIsIdempotent(t *testing.T) {
	st, db := newTestStore(t)
	ctx := context.Background()
	cat, err := kana.Default()
	require.NoError(t, err)

	n, err := st.SeedCards(ctx, cat.All())
	require.NoError(t, err)
	assert.EqualValues(t, cat.Len(), n)

	n, err = st.SeedCards(ctx, cat.All())
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM cards`))
	assert.Equal(t, cat.Len(), count)
}

func TestCreateGameCreatesOnlyUnknownCards(t *testing.T) {
	st, db := newTestStore(t)
	ctx := context.Background()
	addUser(t, db, "u1")
	_, err := st.SeedCards(ctx, []kana.Card{card("a"), card("i")})
	require.NoError(t, err)

	g := &game.Game{ID: "g1", Rounds: []game.Round{
		round("a", "a", "i"),
		round("a", "i", "a"),
		round("a", "u", "a"),
	}}
	stored, err := st.CreateGame(ctx, g, "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, stored.CardsCreated)
	assert.Len(t, stored.Rounds, 3)
	assert.Equal(t, 33, stored.Accuracy)
	assert.Equal(t, "u1", stored.OwnerID)

	var links int
	require.NoError(t, db.Get(&links, `
        SELECT COUNT(DISTINCT rc.round_id) FROM round_cards rc
        JOIN rounds r ON r.id = rc.round_id WHERE r.game_id='g1'`))
	assert.Equal(t, 3, links)

	for i, r := range stored.Rounds {
		assert.Equal(t, i, r.Position)
		assert.Equal(t, g.Rounds[i].Cards, r.Cards, "candidate order of round %d", i)
		assert.Equal(t, g.Rounds[i].Answer, r.Answer)
	}
}

func TestCreateGameRecomputesCorrectness(t *testing.T) {
	st, db := newTestStore(t)
	addUser(t, db, "u1")

	r := round("i", "a", "i")
	r.IsCorrect = true // client claims a wrong pick was right
	stored, err := st.CreateGame(context.Background(), &game.Game{ID: "g", Rounds: []game.Round{r}}, "u1")
	require.NoError(t, err)
	assert.False(t, stored.Rounds[0].IsCorrect)
	assert.Equal(t, 0, stored.Accuracy)
}

func TestCreateGameIsIdempotentPerOwner(t *testing.T) {
	st, db := newTestStore(t)
	ctx := context.Background()
	addUser(t, db, "u1")
	addUser(t, db, "u2")

	g := &game.Game{ID: "g1", Rounds: []game.Round{round("a", "a", "i")}}
	first, err := st.CreateGame(ctx, g, "u1")
	require.NoError(t, err)

	again, err := st.CreateGame(ctx, g, "u1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 0, again.CardsCreated)

	var games int
	require.NoError(t, db.Get(&games, `SELECT COUNT(*) FROM games`))
	assert.Equal(t, 1, games)

	_, err = st.CreateGame(ctx, g, "u2")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateGameRejectsInvalid(t *testing.T) {
	st, db := newTestStore(t)
	addUser(t, db, "u1")
	ctx := context.Background()

	noAnswer := round("a", "a", "i")
	noAnswer.Answer = kana.Card{}
	incomplete := round("", "zz")
	incomplete.Cards[0].Hiragana = ""
	incomplete.Answer = incomplete.Cards[0]

	answerNotCandidate := round("", "a", "i")
	answerNotCandidate.Answer = card("u")
	repeated := round("a", "a", "a")
	strayPick := round("u", "a", "i")
	twice := round("a", "a", "i")
	twice.ID = "r-dup"

	tests := []struct {
		name  string
		g     *game.Game
		owner string
	}{
		{"nil game", nil, "u1"},
		{"answer not a candidate", &game.Game{ID: "x", Rounds: []game.Round{answerNotCandidate}}, "u1"},
		{"repeated candidate", &game.Game{ID: "x", Rounds: []game.Round{repeated}}, "u1"},
		{"selection not a candidate", &game.Game{ID: "x", Rounds: []game.Round{strayPick}}, "u1"},
		{"round id repeated", &game.Game{ID: "x", Rounds: []game.Round{twice, twice}}, "u1"},
		{"no rounds", &game.Game{ID: "x"}, "u1"},
		{"no owner", &game.Game{ID: "x", Rounds: []game.Round{round("a", "a")}}, ""},
		{"no answer", &game.Game{ID: "x", Rounds: []game.Round{noAnswer}}, "u1"},
		{"incomplete unknown card", &game.Game{ID: "x", Rounds: []game.Round{incomplete}}, "u1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := st.CreateGame(ctx, tt.g, tt.owner)
			assert.ErrorIs(t, err, ErrInvalidGame)
		})
	}

	var games int
	require.NoError(t, db.Get(&games, `SELECT COUNT(*) FROM games`))
	assert.Zero(t, games)
}

func TestCreateGameRoundIDTakenByAnotherGame(t *testing.T) {
	st, db := newTestStore(t)
	ctx := context.Background()
	addUser(t, db, "u1")

	r := round("a", "a", "i")
	r.ID = "r1"
	_, err := st.CreateGame(ctx, &game.Game{ID: "g1", Rounds: []game.Round{r}}, "u1")
	require.NoError(t, err)

	_, err = st.CreateGame(ctx, &game.Game{ID: "g2", Rounds: []game.Round{r}}, "u1")
	assert.ErrorIs(t, err, ErrConflict)

	var games int
	require.NoError(t, db.Get(&games, `SELECT COUNT(*) FROM games`))
	assert.Equal(t, 1, games)
}

func TestListGamesByOwnerNewestFirst(t *testing.T) {
	st, db := newTestStore(t)
	ctx := context.Background()
	addUser(t, db, "u1")
	addUser(t, db, "u2")

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		at := base.Add(time.Duration(i) * time.Minute)
		st.now = func() time.Time { return at }
		_, err := st.CreateGame(ctx, &game.Game{ID: id, Rounds: []game.Round{round("a", "a", "i")}}, "u1")
		require.NoError(t, err)
	}
	_, err := st.CreateGame(ctx, &game.Game{ID: "other", Rounds: []game.Round{round("a", "a")}}, "u2")
	require.NoError(t, err)

	games, err := st.ListGamesByOwner(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, games, 3)
	assert.Equal(t, "new", games[0].ID)
	assert.Equal(t, "mid", games[1].ID)
	assert.Equal(t, "old", games[2].ID)
	assert.Len(t, games[0].Rounds, 1)
	assert.True(t, base.Add(2*time.Minute).Equal(games[0].CreatedAt))

	none, err := st.ListGamesByOwner(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetGameNotFound(t *testing.T) {
	st, _ := newTestStore(t)
	_, err := st.GetGame(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
