package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"voltschool/pkg/domain"
)

// Logger is the structured logger used by the adapter. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ErrUnavailable is returned by FetchRaw when no backend is configured.
var ErrUnavailable = errors.New("remote: client not available")

// ErrUnknownCollection is returned for collection names outside the domain set.
var ErrUnknownCollection = errors.New("remote: unknown collection")

// Adapter reads and writes whole collections as a single row keyed by
// LatestRecordID. A nil backend makes every operation a logged no-op.
type Adapter struct {
	backend Backend
	logger  Logger
}

// NewAdapter wraps backend. Passing a nil backend yields a disabled adapter.
func NewAdapter(backend Backend, logger Logger) *Adapter {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Adapter{backend: backend, logger: logger}
}

// Enabled reports whether a backend is attached.
func (a *Adapter) Enabled() bool { return a != nil && a.backend != nil }

// Driver returns the attached backend driver, or "" when disabled.
func (a *Adapter) Driver() Driver {
	if !a.Enabled() {
		return ""
	}
	return a.backend.Driver()
}

func checkCollection(collection domain.CollectionName) error {
	if !collection.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	return nil
}

// Upload serializes value and overwrites the collection row.
func (a *Adapter) Upload(ctx context.Context, collection domain.CollectionName, value any) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if !a.Enabled() {
		a.logger.Error("remote client not available", "op", "upload", "collection", collection)
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		a.logger.Error("encode collection", "collection", collection, "error", err)
		return fmt.Errorf("encode %s: %w", collection, err)
	}
	if err := a.backend.Upsert(ctx, string(collection), LatestRecordID, data); err != nil {
		a.logger.Error("upload collection", "collection", collection, "error", err)
		return err
	}
	a.logger.Debug("uploaded collection", "collection", collection, "bytes", len(data))
	return nil
}

// Delete removes the collection row.
func (a *Adapter) Delete(ctx context.Context, collection domain.CollectionName) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if !a.Enabled() {
		a.logger.Error("remote client not available", "op", "delete", "collection", collection)
		return nil
	}
	if err := a.backend.Delete(ctx, string(collection), LatestRecordID); err != nil {
		a.logger.Error("delete collection", "collection", collection, "error", err)
		return err
	}
	return nil
}

// FetchRaw returns the stored document without decoding it. Unlike Fetch it
// reports every failure, including ErrNotFound and ErrUnavailable.
func (a *Adapter) FetchRaw(ctx context.Context, collection domain.CollectionName) ([]byte, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if !a.Enabled() {
		return nil, ErrUnavailable
	}
	return a.backend.Select(ctx, string(collection), LatestRecordID)
}

// Close releases the backend.
func (a *Adapter) Close() error {
	if !a.Enabled() {
		return nil
	}
	return a.backend.Close()
}

// Fetch reads and decodes the collection row. It returns def when the adapter
// is disabled, the row is absent, or the read or decode fails; failures are
// logged, never returned.
func Fetch[T any](ctx context.Context, a *Adapter, collection domain.CollectionName, def T) T {
	logger := Logger(noopLogger{})
	if a != nil {
		logger = a.logger
	}
	if !a.Enabled() {
		logger.Error("remote client not available", "op", "fetch", "collection", collection)
		return def
	}
	data, err := a.FetchRaw(ctx, collection)
	if errors.Is(err, ErrNotFound) {
		logger.Info("no remote data found, using default", "collection", collection)
		return def
	}
	if err != nil {
		logger.Error("fetch collection", "collection", collection, "error", err)
		return def
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		logger.Error("decode collection", "collection", collection, "error", err)
		return def
	}
	return out
}
