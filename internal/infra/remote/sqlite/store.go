// Package sqlite persists collection rows to an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"voltschool/internal/remote/core"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Store keeps one table per collection, each row holding a JSON document.
type Store struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex
	tables map[string]bool
}

// NewStore opens (or creates) the sqlite file at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "voltschool.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db, path: path, tables: make(map[string]bool)}, nil
}

// Driver returns the backend driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverSQLite }

func (s *Store) ensureTable(ctx context.Context, collection string) error {
	if err := core.ValidateCollection(collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[collection] {
		return nil
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		data BLOB NOT NULL
	)`, collection)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s table: %w", collection, err)
	}
	s.tables[collection] = true
	return nil
}

// Upsert overwrites the row keyed by id.
func (s *Store) Upsert(ctx context.Context, collection, id string, data []byte) error {
	if err := s.ensureTable(ctx, collection); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT INTO %s(id,data) VALUES(?,?) ON CONFLICT(id) DO UPDATE SET data=excluded.data`, collection)
	if _, err := s.db.ExecContext(ctx, stmt, id, data); err != nil {
		return fmt.Errorf("upsert %s: %w", collection, err)
	}
	return nil
}

// Select returns the stored document.
func (s *Store) Select(ctx context.Context, collection, id string) ([]byte, error) {
	if err := s.ensureTable(ctx, collection); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, collection), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	return data, nil
}

// Delete removes the row.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := s.ensureTable(ctx, collection); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, collection), id); err != nil {
		return fmt.Errorf("delete %s: %w", collection, err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
