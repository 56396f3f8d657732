// Package cache persists query results keyed by their search expression so
// repeated tabulations skip the remote service.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Result is the cached outcome of one expression.
type Result struct {
	Count int      `json:"count" yaml:"count"`
	IDs   []string `json:"ids,omitempty" yaml:"ids,omitempty"`
	// Complete is set when IDs holds the whole result set rather than just
	// the declared count.
	Complete bool `json:"complete" yaml:"complete"`
}

// Store looks up and records results by expression.
type Store interface {
	Lookup(ctx context.Context, expr string) (Result, bool, error)
	Store(ctx context.Context, expr string, r Result) error
	Clear(ctx context.Context) error
	Close() error
}

// Open returns the store for backend. path is required by the file and
// sqlite backends.
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendNone:
		return Nop{}, nil
	case BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		if path == "" {
			return nil, fmt.Errorf("cache backend %q requires a path", backend)
		}
		return NewFileStore(path)
	case BackendSQLite:
		if path == "" {
			return nil, fmt.Errorf("cache backend %q requires a path", backend)
		}
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// Nop never holds anything.
type Nop struct{}

func (Nop) Lookup(context.Context, string) (Result, bool, error) { return Result{}, false, nil }
func (Nop) Store(context.Context, string, Result) error          { return nil }
func (Nop) Clear(context.Context) error                          { return nil }
func (Nop) Close() error                                         { return nil }

// Memory keeps results for the lifetime of the process.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Result
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Result)}
}

func (m *Memory) Lookup(_ context.Context, expr string) (Result, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.entries[expr]
	return clone(r), ok, nil
}

func (m *Memory) Store(_ context.Context, expr string, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[expr] = clone(r)
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	return nil
}

func (m *Memory) Close() error { return nil }

func clone(r Result) Result {
	if r.IDs != nil {
		r.IDs = append([]string(nil), r.IDs...)
	}
	return r
}
