package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/kana/apps/go-server/internal/game"
)

func TestTierOf(t *testing.T) {
	tests := map[int]Tier{100: TierGood, 70: TierGood, 69: TierFair, 40: TierFair, 39: TierPoor, 0: TierPoor}
	for acc, want := range tests {
		assert.Equal(t, want, TierOf(acc), "accuracy %d", acc)
	}
}

func TestDashboard(t *testing.T) {
	st, db := newTestStore(t)
	ctx := context.Background()
	addUser(t, db, "u1")

	// 1/2 correct, then 2/3 correct; "i" is the only missed answer, twice.
	_, err := st.CreateGame(ctx, &game.Game{ID: "g1", Rounds: []game.Round{
		round("a", "a", "i"),
		round("a", "i", "a"),
	}}, "u1")
	require.NoError(t, err)
	_, err = st.CreateGame(ctx, &game.Game{ID: "g2", Rounds: []game.Round{
		round("a", "a", "u"),
		round("u", "u", "a"),
		round("", "i", "u"),
	}}, "u1")
	require.NoError(t, err)

	d, err := st.Dashboard(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Games)
	assert.Equal(t, 5, d.TotalRounds)
	assert.Equal(t, 3, d.CorrectRounds)
	assert.Equal(t, 59, d.AverageAccuracy) // (50 + 67) / 2 rounds half up
	assert.Equal(t, TierFair, d.Tier)

	require.Len(t, d.Missed, 1)
	assert.Equal(t, "i", d.Missed[0].ID)
	assert.Equal(t, 2, d.Missed[0].Count)

	require.Len(t, d.Recent, 2)
	assert.Equal(t, "g2", d.Recent[0].GameID)
	assert.Equal(t, TierFair, d.Recent[0].Tier)
}

func TestDashboardEmpty(t *testing.T) {
	st, _ := newTestStore(t)
	d, err := st.Dashboard(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, d.Games)
	assert.Zero(t, d.AverageAccuracy)
	assert.Equal(t, TierPoor, d.Tier)
	assert.Empty(t, d.Missed)
	assert.Empty(t, d.Recent)
}
