package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// SaveFile exports the image to path, in msgpack for .msgpack/.mpk and
// JSON otherwise. The file is written to a temporary name and renamed.
func (e *Engine) SaveFile(path string) error {
	snap := e.Export()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if err := Encode(tmp, snap, FormatFromPath(path)); err != nil {
		tmp.Close() //nolint:errcheck // encode error takes precedence
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	e.logger.Info("snapshot saved", "path", path, "id", snap.ID)
	return nil
}

// LoadFile decodes the snapshot at path and imports it.
func (e *Engine) LoadFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	snap, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return e.Import(ctx, snap)
}
