package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"voltschool/internal/remote/core"
	"voltschool/pkg/domain"
)

type logEntry struct {
	level string
	msg   string
}

type captureLogger struct{ entries []logEntry }

func (c *captureLogger) Debug(msg string, _ ...any) { c.entries = append(c.entries, logEntry{"debug", msg}) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.entries = append(c.entries, logEntry{"info", msg}) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.entries = append(c.entries, logEntry{"warn", msg}) }
func (c *captureLogger) Error(msg string, _ ...any) { c.entries = append(c.entries, logEntry{"error", msg}) }

func (c *captureLogger) has(level, msg string) bool {
	for _, e := range c.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

type failingBackend struct {
	core.Backend
	err error
}

func (f failingBackend) Upsert(context.Context, string, string, []byte) error { return f.err }
func (f failingBackend) Select(context.Context, string, string) ([]byte, error) {
	return nil, f.err
}
func (f failingBackend) Delete(context.Context, string, string) error { return f.err }

func TestAdapterUploadFetchDelete(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	a := NewAdapter(backend, nil)

	buses := []domain.Bus{{ID: "B-101", Number: "101", Status: domain.BusStatusActive}}
	if err := a.Upload(ctx, domain.CollectionBuses, buses); err != nil {
		t.Fatalf("upload: %v", err)
	}
	got := Fetch(ctx, a, domain.CollectionBuses, []domain.Bus{})
	if len(got) != 1 || got[0].ID != "B-101" {
		t.Fatalf("unexpected fetch result %+v", got)
	}
	raw, err := backend.Select(ctx, "buses", LatestRecordID)
	if err != nil {
		t.Fatalf("select latest row: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("expected stored document")
	}
	if err := a.Delete(ctx, domain.CollectionBuses); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := a.FetchRaw(ctx, domain.CollectionBuses); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestFetchMissingRowReturnsDefault(t *testing.T) {
	log := &captureLogger{}
	a := NewAdapter(NewMemoryBackend(), log)
	def := []domain.Student{}
	got := Fetch(context.Background(), a, domain.CollectionStudents, def)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty default, got %#v", got)
	}
	if !log.has("info", "no remote data found, using default") {
		t.Fatalf("expected not-found to be logged at info, got %+v", log.entries)
	}
}

func TestFetchErrorsDegradeToDefault(t *testing.T) {
	log := &captureLogger{}
	a := NewAdapter(failingBackend{err: fmt.Errorf("boom")}, log)
	def := []domain.Incident{{ID: "I-1"}}
	got := Fetch(context.Background(), a, domain.CollectionIncidents, def)
	if len(got) != 1 || got[0].ID != "I-1" {
		t.Fatalf("expected default on failure, got %+v", got)
	}
	if !log.has("error", "fetch collection") {
		t.Fatalf("expected fetch failure to be logged")
	}
}

func TestFetchUndecodableRowReturnsDefault(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	if err := backend.Upsert(ctx, "buses", LatestRecordID, []byte(`{"not":"a list"}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got := Fetch(ctx, NewAdapter(backend, nil), domain.CollectionBuses, []domain.Bus{})
	if len(got) != 0 {
		t.Fatalf("expected default for undecodable row, got %+v", got)
	}
}

func TestWriteErrorsAreReturned(t *testing.T) {
	log := &captureLogger{}
	boom := errors.New("write refused")
	a := NewAdapter(failingBackend{err: boom}, log)
	if err := a.Upload(context.Background(), domain.CollectionStudents, []domain.Student{}); !errors.Is(err, boom) {
		t.Fatalf("expected upload error, got %v", err)
	}
	if err := a.Delete(context.Background(), domain.CollectionStudents); !errors.Is(err, boom) {
		t.Fatalf("expected delete error, got %v", err)
	}
	if !log.has("error", "upload collection") || !log.has("error", "delete collection") {
		t.Fatalf("expected write failures logged, got %+v", log.entries)
	}
}

func TestDisabledAdapterIsNoop(t *testing.T) {
	log := &captureLogger{}
	a := NewAdapter(nil, log)
	ctx := context.Background()
	if a.Enabled() {
		t.Fatalf("expected disabled adapter")
	}
	if err := a.Upload(ctx, domain.CollectionBuses, []domain.Bus{}); err != nil {
		t.Fatalf("disabled upload should be a no-op, got %v", err)
	}
	if err := a.Delete(ctx, domain.CollectionBuses); err != nil {
		t.Fatalf("disabled delete should be a no-op, got %v", err)
	}
	if _, err := a.FetchRaw(ctx, domain.CollectionBuses); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if got := Fetch(ctx, a, domain.CollectionBuses, []domain.Bus(nil)); got != nil {
		t.Fatalf("expected nil default, got %+v", got)
	}
	if !log.has("error", "remote client not available") {
		t.Fatalf("expected unavailability to be logged")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close disabled adapter: %v", err)
	}
}

func TestUnknownCollectionRejected(t *testing.T) {
	a := NewAdapter(NewMemoryBackend(), nil)
	err := a.Upload(context.Background(), domain.CollectionName("drivers"), nil)
	if !errors.Is(err, ErrUnknownCollection) {
		t.Fatalf("expected ErrUnknownCollection, got %v", err)
	}
}
