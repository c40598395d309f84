package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/kana/apps/go-server/assets"
)

func TestOpenMigratedCreatesSchema(t *testing.T) {
	db, err := OpenMigrated(filepath.Join(t.TempDir(), "nested", "kana.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, table := range []string{"users", "cards", "games", "rounds", "round_cards", "pending_results"} {
		var n int
		err := db.Get(&n, `SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`, table)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "table %s", table)
	}

	var fk int
	require.NoError(t, db.Get(&fk, `PRAGMA foreign_keys`))
	assert.Equal(t, 1, fk)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "kana.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db, assets.Migrations()))
	require.NoError(t, Migrate(db, assets.Migrations()))

	var applied int
	require.NoError(t, db.Get(&applied, `SELECT COUNT(1) FROM _migrations`))
	assert.Equal(t, 2, applied)
}

func TestMigrateReportsBadScript(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "kana.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fsys := fstest.MapFS{
		"001_ok.sql":  {Data: []byte(`CREATE TABLE t (id INTEGER);`)},
		"002_bad.sql": {Data: []byte(`CREATE TABLE oops (`)},
	}
	err = Migrate(db, fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "002_bad.sql")

	var applied int
	require.NoError(t, db.Get(&applied, `SELECT COUNT(1) FROM _migrations`))
	assert.Equal(t, 1, applied)
}
