package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voltschool/internal/remote"
	"voltschool/pkg/domain"
)

func strPtr(v string) *string { return &v }

var fixedNow = time.Date(2024, 9, 2, 7, 30, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memoryBackend is the ops-recording backend returned by remote.NewMemoryBackend.
type memoryBackend interface {
	remote.Backend
	Ops() []string
}

func newMemoryDeps(t *testing.T) (StoreDeps, memoryBackend) {
	t.Helper()
	backend := remote.NewMemoryBackend()
	adapter := remote.NewAdapter(backend, nil)
	return StoreDeps{
		Adapter:   adapter,
		Persister: NewWriteThrough(adapter),
		Clock:     &fakeClock{now: fixedNow},
	}, backend
}

func newLoadedService(t *testing.T, opts ...ServiceOption) (*Service, memoryBackend) {
	t.Helper()
	deps, backend := newMemoryDeps(t)
	svc := NewServiceFromDeps(deps, opts...)
	svc.Load(context.Background())
	return svc, backend
}

func countOps(ops []string, op string) int {
	n := 0
	for _, o := range ops {
		if o == op {
			n++
		}
	}
	return n
}

var errRemoteDown = errors.New("remote down")

// flakyBackend fails writes while down is set.
type flakyBackend struct {
	remote.Backend
	mu   sync.Mutex
	down bool
}

func (f *flakyBackend) setDown(v bool) {
	f.mu.Lock()
	f.down = v
	f.mu.Unlock()
}

func (f *flakyBackend) Upsert(ctx context.Context, collection, id string, data []byte) error {
	f.mu.Lock()
	down := f.down
	f.mu.Unlock()
	if down {
		return errRemoteDown
	}
	return f.Backend.Upsert(ctx, collection, id, data)
}

func sampleStudent(first string) domain.Student {
	return domain.Student{
		FirstName: first,
		LastName:  "Lopez",
		Grade:     "3",
		School:    domain.SchoolHamilton,
		Address:   "12 Elm St",
		Guardian:  domain.Guardian{Name: "Maria Lopez", Phone: "555-0100", Email: "maria@example.com"},
	}
}

func sampleBus(driver string) domain.Bus {
	return domain.Bus{
		Capacity: 40,
		Driver:   domain.Driver{Name: driver, Phone: "555-0200"},
		Route: domain.Route{
			Name:        "North Loop",
			Description: "Hamilton via Main St",
			Schools:     []domain.School{domain.SchoolHamilton},
		},
	}
}
