package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// FileStore reads recipes from the local file system.
type FileStore struct{}

func NewFileStore() *FileStore {
	return &FileStore{}
}

// List returns the names of the entries in dir, sorted by name.
func (f *FileStore) List(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("list %s: %w", dir, ErrNotFound)
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (f *FileStore) Read(ctx context.Context, path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	return b, nil
}
