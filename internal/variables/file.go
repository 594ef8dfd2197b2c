package variables

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultFile is the file name used when none is configured.
const DefaultFile = "custom_variables.json"

// filePermissions restricts the variables file to owner read/write.
const filePermissions = 0o600

// FilePersister stores the mapping as an indented JSON object.
type FilePersister struct {
	path string
}

// NewFilePersister creates a persister writing to path.
func NewFilePersister(path string) *FilePersister {
	if path == "" {
		path = DefaultFile
	}
	return &FilePersister{path: path}
}

// Path returns the backing file path.
func (p *FilePersister) Path() string {
	return p.path
}

// Load reads the file. A missing file is an empty mapping.
func (p *FilePersister) Load(_ context.Context) (map[string]any, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.path, err)
	}

	vars := make(map[string]any)
	if err := json.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", p.path, err)
	}
	return vars, nil
}

// Save writes the mapping with two-space indentation to a temporary file
// in the same directory and renames it over the old one.
func (p *FilePersister) Save(_ context.Context, vars map[string]any) error {
	if vars == nil {
		vars = map[string]any{}
	}
	data, err := json.MarshalIndent(vars, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding variables: %w", err)
	}

	dir := filepath.Dir(p.path)
	tmp, err := os.CreateTemp(dir, ".custom_variables-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		return fmt.Errorf("replacing %s: %w", p.path, err)
	}
	return nil
}
