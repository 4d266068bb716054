package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

// ErrNotFound is returned (wrapped) when a directory or file does not exist.
var ErrNotFound = errors.New("not found")

// Store is the read-only view of the recipe collection used by the file tools.
// Paths are slash or OS separated and already resolved by the caller.
type Store interface {
	List(ctx context.Context, dir string) ([]string, error)
	Read(ctx context.Context, path string) ([]byte, error)
}

// TestStore is a simple in-memory implementation for testing
type TestStore struct {
	files map[string][]byte
	err   error
}

// NewTestStore builds a store from path -> content. Directories are implied by the file paths.
func NewTestStore(files map[string]string) *TestStore {
	s := &TestStore{files: make(map[string][]byte, len(files))}
	for p, content := range files {
		s.files[path.Clean(p)] = []byte(content)
	}
	return s
}

func NewTestStoreWithError(err error) *TestStore {
	return &TestStore{err: err}
}

func (t *TestStore) List(ctx context.Context, dir string) ([]string, error) {
	if t.err != nil {
		return nil, t.err
	}

	dir = path.Clean(dir)
	seen := map[string]bool{}
	for p := range t.files {
		var rel string
		var ok bool
		switch dir {
		case ".":
			rel, ok = p, !strings.HasPrefix(p, "/")
		case "/":
			rel, ok = strings.CutPrefix(p, "/")
		default:
			rel, ok = strings.CutPrefix(p, dir+"/")
		}
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(rel, "/")
		seen[name] = true
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("list %s: %w", dir, ErrNotFound)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (t *TestStore) Read(ctx context.Context, p string) ([]byte, error) {
	if t.err != nil {
		return nil, t.err
	}
	b, ok := t.files[path.Clean(p)]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", p, ErrNotFound)
	}
	return b, nil
}
