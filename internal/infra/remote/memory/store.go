// Package memory implements an in-memory remote backend for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"voltschool/internal/remote/core"
)

// Store implements core.Backend backed by process memory.
type Store struct {
	mu   sync.RWMutex
	rows map[string]map[string][]byte
	ops  []string
}

// New returns an empty in-memory backend.
func New() *Store { return &Store{rows: make(map[string]map[string][]byte)} }

// Driver returns the backend driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Upsert overwrites the row.
func (s *Store) Upsert(_ context.Context, collection, id string, data []byte) error {
	if err := core.ValidateCollection(collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	table, ok := s.rows[collection]
	if !ok {
		table = make(map[string][]byte)
		s.rows[collection] = table
	}
	table[id] = append([]byte(nil), data...)
	s.record("upsert "+collection)
	return nil
}

// Select returns a copy of the stored row.
func (s *Store) Select(_ context.Context, collection, id string) ([]byte, error) {
	if err := core.ValidateCollection(collection); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("select "+collection)
	data, ok := s.rows[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, core.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Delete removes the row if present.
func (s *Store) Delete(_ context.Context, collection, id string) error {
	if err := core.ValidateCollection(collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows[collection], id)
	s.record("delete "+collection)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// maxOps bounds the operation log; older entries are discarded.
const maxOps = 256

// record must be called with mu held.
func (s *Store) record(op string) {
	if len(s.ops) == maxOps {
		copy(s.ops, s.ops[1:])
		s.ops = s.ops[:maxOps-1]
	}
	s.ops = append(s.ops, op)
}

// Ops returns the most recent operations, oldest first.
func (s *Store) Ops() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.ops...)
}
