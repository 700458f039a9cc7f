// Package badger stores collection rows in an embedded badger key-value
// directory. Keys are "<collection>/<id>" and values are JSON documents.
package badger

import (
	"context"
	"errors"
	"fmt"

	"voltschool/internal/remote/core"

	badgerdb "github.com/dgraph-io/badger/v4"
)

var _ core.Backend = (*Store)(nil)

// Logger receives badger's internal log lines.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Store implements core.Backend on top of badger.
type Store struct {
	db  *badgerdb.DB
	dir string
}

// NewStore opens the badger directory. An empty dir opens an in-memory database.
func NewStore(dir string, logger Logger) (*Store, error) {
	opts := badgerdb.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	if logger != nil {
		opts = opts.WithLogger(badgerLogger{logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, dir: dir}, nil
}

// Driver returns the backend driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverBadger }

func rowKey(collection, id string) []byte {
	return []byte(collection + "/" + id)
}

// Upsert overwrites the row.
func (s *Store) Upsert(_ context.Context, collection, id string, data []byte) error {
	if err := core.ValidateCollection(collection); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(rowKey(collection, id), data)
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", collection, err)
	}
	return nil
}

// Select returns a copy of the stored value.
func (s *Store) Select(_ context.Context, collection, id string) ([]byte, error) {
	if err := core.ValidateCollection(collection); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(rowKey(collection, id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	return data, nil
}

// Delete removes the row.
func (s *Store) Delete(_ context.Context, collection, id string) error {
	if err := core.ValidateCollection(collection); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(rowKey(collection, id))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", collection, err)
	}
	return nil
}

// Close flushes and closes the database.
func (s *Store) Close() error { return s.db.Close() }

type badgerLogger struct{ l Logger }

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Info(fmt.Sprintf(format, args...), "component", "badger")
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
