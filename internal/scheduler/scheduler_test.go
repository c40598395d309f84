package scheduler

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/kana/apps/go-server/internal/database"
	"github.com/robalobadob/kana/apps/go-server/internal/game"
	"github.com/robalobadob/kana/apps/go-server/internal/kana"
	"github.com/robalobadob/kana/apps/go-server/internal/pending"
	"github.com/robalobadob/kana/apps/go-server/internal/store"
)

func TestSweepRemovesStaleState(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "kana.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cat, err := kana.Default()
	require.NoError(t, err)
	gen := game.NewGenerator(cat, rand.NewSource(1))
	g, err := gen.GenerateGame(1)
	require.NoError(t, err)
	require.NoError(t, pending.NewSQLStore(db, pending.AnonSlot("v1")).Save(ctx, g))

	sessions := store.NewMemoryStore()
	sess, err := game.NewSession(gen, 1)
	require.NoError(t, err)
	require.NoError(t, sessions.Save(ctx, "v1", sess))

	s := New(db, sessions, 24*time.Hour, time.Hour)

	slots, n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, slots)
	assert.Zero(t, n)

	s.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	slots, n, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, slots)
	assert.Equal(t, 1, n)
}

func TestSweepWithoutDatabase(t *testing.T) {
	s := New(nil, store.NewMemoryStore(), time.Hour, time.Hour)
	slots, n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, slots)
	assert.Zero(t, n)
}

func TestStartStop(t *testing.T) {
	s := New(nil, store.NewMemoryStore(), time.Hour, time.Hour)
	require.NoError(t, s.Start())
	s.Stop()
}
