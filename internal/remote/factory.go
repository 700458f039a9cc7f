package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"

	badgerstore "voltschool/internal/infra/remote/badger"
	memorystore "voltschool/internal/infra/remote/memory"
	pgstore "voltschool/internal/infra/remote/postgres"
	s3store "voltschool/internal/infra/remote/s3"
	sqlitestore "voltschool/internal/infra/remote/sqlite"
)

// Config carries the two connection parameters (endpoint URL and API key)
// plus the backend driver that interprets them.
//
//	postgres: URL is a DSN, Key replaces the DSN password when set
//	sqlite:   URL is a file path
//	badger:   URL is a directory
//	s3:       URL is s3://bucket/prefix?region=..&endpoint=..; Key is ACCESS:SECRET
//	memory:   URL ignored; rows live in a process-wide map
type Config struct {
	Driver Driver
	URL    string
	Key    string
}

// Configured reports whether the remote has enough parameters to connect.
func (c Config) Configured() bool {
	return Driver(strings.ToLower(string(c.Driver))) == DriverMemory || c.URL != ""
}

var (
	sharedMemory = memorystore.New()

	handlesMu sync.Mutex
	handles   = map[string]*sharedHandle{}
)

// sharedHandle reference-counts embedded backends that hold an exclusive
// lock on their files, so per-request connections reuse the open handle.
type sharedHandle struct {
	Backend
	key  string
	refs int
}

func (h *sharedHandle) Close() error {
	handlesMu.Lock()
	defer handlesMu.Unlock()
	h.refs--
	if h.refs > 0 {
		return nil
	}
	delete(handles, h.key)
	return h.Backend.Close()
}

type handleRef struct{ *sharedHandle }

func (r *handleRef) Close() error {
	if r.sharedHandle == nil {
		return nil
	}
	h := r.sharedHandle
	r.sharedHandle = nil
	return h.Close()
}

func openShared(key string, open func() (Backend, error)) (Backend, error) {
	handlesMu.Lock()
	defer handlesMu.Unlock()
	if h, ok := handles[key]; ok {
		h.refs++
		return &handleRef{h}, nil
	}
	b, err := open()
	if err != nil {
		return nil, err
	}
	h := &sharedHandle{Backend: b, key: key, refs: 1}
	handles[key] = h
	return &handleRef{h}, nil
}

// OpenBackend connects to the backend selected by cfg.Driver.
func OpenBackend(ctx context.Context, cfg Config, logger Logger) (Backend, error) {
	driver := Driver(strings.ToLower(string(cfg.Driver)))
	if driver == "" {
		driver = DriverPostgres
	}
	switch driver {
	case DriverPostgres:
		return pgstore.NewStore(ctx, cfg.URL, cfg.Key)
	case DriverSQLite:
		return openShared("sqlite:"+cfg.URL, func() (Backend, error) {
			return sqlitestore.NewStore(cfg.URL)
		})
	case DriverBadger:
		return openShared("badger:"+cfg.URL, func() (Backend, error) {
			return badgerstore.NewStore(cfg.URL, logger)
		})
	case DriverS3:
		s3cfg, err := s3store.ParseURL(cfg.URL, cfg.Key)
		if err != nil {
			return nil, err
		}
		return s3store.New(ctx, s3cfg)
	case DriverMemory:
		return sharedMemory, nil
	default:
		return nil, fmt.Errorf("unknown remote driver %s", driver)
	}
}

// Open returns an Adapter for cfg. When cfg is not configured the adapter is
// disabled and every operation degrades to a logged no-op.
func Open(ctx context.Context, cfg Config, logger Logger) (*Adapter, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	if !cfg.Configured() {
		logger.Warn("remote storage not configured; running without persistence", "driver", cfg.Driver)
		return NewAdapter(nil, logger), nil
	}
	backend, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewAdapter(backend, logger), nil
}

// NewMemoryBackend returns a private in-memory backend for tests.
func NewMemoryBackend() *memorystore.Store { return memorystore.New() }

// NewMockS3ForTests exposes the in-memory S3 mock for cross-package tests.
func NewMockS3ForTests() Backend { return s3store.NewMockForTests() }
