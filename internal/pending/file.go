package pending

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robalobadob/kana/apps/go-server/internal/game"
)

// fileStore keeps the slot as a JSON file.
type fileStore struct {
	path string
}

// NewFileStore stages games in the file at path. The parent directory is
// created on first save.
func NewFileStore(path string) Store {
	return &fileStore{path: path}
}

// Save writes to a temp file and renames it over the slot, so a crash never
// leaves a half-written game behind.
func (f *fileStore) Save(ctx context.Context, g *game.Game) error {
	raw, err := Encode(g)
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pending: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".pending-*.json")
	if err != nil {
		return fmt.Errorf("pending: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("pending: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("pending: close: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("pending: rename: %w", err)
	}
	return nil
}

// LoadAndClear reads and removes the slot file. An unreadable payload is
// removed as well and reported, so it cannot block later results.
func (f *fileStore) LoadAndClear(ctx context.Context) (*game.Game, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pending: read %s: %w", f.path, err)
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("pending: clear %s: %w", f.path, err)
	}
	return Decode(raw)
}
