package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.yaml.in/yaml/v3"
)

// FileStore keeps results in a single YAML document mapping expressions to
// results. Every Store rewrites the file.
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]Result
}

// NewFileStore loads the cache at path. A missing file starts empty.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, entries: make(map[string]Result)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("parsing cache file %s: %w", path, err)
	}
	if s.entries == nil {
		s.entries = make(map[string]Result)
	}
	return s, nil
}

func (s *FileStore) Lookup(_ context.Context, expr string) (Result, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.entries[expr]
	return clone(r), ok, nil
}

func (s *FileStore) Store(_ context.Context, expr string, r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[expr] = clone(r)
	return s.flush()
}

func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
	return s.flush()
}

func (s *FileStore) Close() error { return nil }

// flush writes to a sibling temp file and renames it over the cache.
func (s *FileStore) flush() error {
	data, err := yaml.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}
