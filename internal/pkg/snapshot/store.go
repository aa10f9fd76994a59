package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by a Store that has nothing saved under a name.
var ErrNotFound = errors.New("snapshot not found")

// Store keeps named snapshots.
type Store interface {
	Save(ctx context.Context, name string, d Document) error
	Load(ctx context.Context, name string) (Document, error)
}

// FileStore keeps one JSON file per snapshot in a directory.
type FileStore struct {
	Dir string
}

func (s FileStore) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid snapshot name %q", name)
	}
	return filepath.Join(s.Dir, name+".json"), nil
}

func (s FileStore) Save(ctx context.Context, name string, d Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(name)
	if err != nil {
		return err
	}
	data, err := Encode(d)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (s FileStore) Load(ctx context.Context, name string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	p, err := s.path(name)
	if err != nil {
		return Document{}, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Document{}, err
	}
	return Decode(data)
}

// ReadFile loads a snapshot document from an arbitrary path.
func ReadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	return Decode(data)
}
