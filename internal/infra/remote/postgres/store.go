// Package postgres stores collection rows in the hosted Postgres database.
// Each collection is a table of (id, data) rows where data is JSONB.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"voltschool/internal/remote/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib" // registers pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the backend interface.
var _ core.Backend = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/voltschool?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists collection documents to Postgres.
type Store struct {
	db      *sql.DB
	connStr string
	mu      sync.Mutex
	tables  map[string]bool
}

// NewStore opens a Postgres-backed store using dsn (falls back to defaultDSN).
// A non-empty apiKey replaces the password carried by the DSN.
func NewStore(ctx context.Context, dsn, apiKey string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if apiKey != "" {
		cfg.Password = apiKey
	}
	connStr := stdlib.RegisterConnConfig(cfg)
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, connStr)
	openMu.Unlock()
	if err != nil {
		stdlib.UnregisterConnConfig(connStr)
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		stdlib.UnregisterConnConfig(connStr)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db, connStr: connStr, tables: make(map[string]bool)}, nil
}

// Driver returns the backend driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverPostgres }

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
		data JSONB NOT NULL
	)`, collection)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure %s table: %w", collection, err)
	}
	s.tables[collection] = true
	return nil
}

// Upsert overwrites the row keyed by id.
func (s *Store) Upsert(ctx context.Context, collection, id string, data []byte) error {
	if err := s.ensureTable(ctx, collection); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT INTO %s(id,data) VALUES($1,$2) ON CONFLICT(id) DO UPDATE SET data=EXCLUDED.data`, collection)
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
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE id = $1`, collection), id).Scan(&data)
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
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, collection), id); err != nil {
		return fmt.Errorf("delete %s: %w", collection, err)
	}
	return nil
}

// Close closes the pool and drops the registered connection config.
func (s *Store) Close() error {
	err := s.db.Close()
	stdlib.UnregisterConnConfig(s.connStr)
	return err
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
