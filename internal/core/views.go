package core

import (
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"voltschool/pkg/domain"
)

// Subscribable is anything that pushes snapshots of T to subscribers.
// Collections and Views both implement it.
type Subscribable[T any] interface {
	Subscribe(fn func([]T)) (unsubscribe func())
}

// View is a derived read model recomputed from its source on every change.
// Only the latest result is kept.
type View[T any] struct {
	mu      sync.RWMutex
	latest  []T
	subs    map[int]func([]T)
	nextSub int
	stop    func()
}

// Derive subscribes to src and keeps fn(snapshot) current.
func Derive[S, T any](src Subscribable[S], fn func([]S) []T) *View[T] {
	v := &View[T]{subs: make(map[int]func([]T))}
	v.stop = src.Subscribe(func(items []S) {
		out := fn(items)
		if out == nil {
			out = []T{}
		}
		v.mu.Lock()
		v.latest = out
		subs := v.subscribersLocked()
		v.mu.Unlock()
		for _, s := range subs {
			s(out)
		}
	})
	return v
}

// subscribersLocked returns subscribers in registration order.
func (v *View[T]) subscribersLocked() []func([]T) {
	ids := make([]int, 0, len(v.subs))
	for id := range v.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func([]T), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, v.subs[id])
	}
	return subs
}

// Current returns a copy of the latest result.
func (v *View[T]) Current() []T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]T(nil), v.latest...)
}

// Subscribe registers fn and calls it with the latest result.
func (v *View[T]) Subscribe(fn func([]T)) (unsubscribe func()) {
	v.mu.Lock()
	id := v.nextSub
	v.nextSub++
	v.subs[id] = fn
	latest := v.latest
	v.mu.Unlock()
	fn(latest)
	return func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}
}

// Close detaches the view from its source.
func (v *View[T]) Close() {
	if v.stop != nil {
		v.stop()
	}
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// StudentsByBus keeps students assigned to busID.
func StudentsByBus(students []domain.Student, busID string) []domain.Student {
	return filter(students, func(s domain.Student) bool {
		return s.BusID != nil && *s.BusID == busID
	})
}

// StudentsBySchool keeps students enrolled at school.
func StudentsBySchool(students []domain.Student, school domain.School) []domain.Student {
	return filter(students, func(s domain.Student) bool { return s.School == school })
}

// StudentsByName returns students ordered by last then first name using
// English collation.
func StudentsByName(students []domain.Student) []domain.Student {
	out := append([]domain.Student(nil), students...)
	col := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		if c := col.CompareString(out[i].LastName, out[j].LastName); c != 0 {
			return c < 0
		}
		return col.CompareString(out[i].FirstName, out[j].FirstName) < 0
	})
	return out
}

// BusesBySchool keeps buses whose route serves school.
func BusesBySchool(buses []domain.Bus, school domain.School) []domain.Bus {
	return filter(buses, func(b domain.Bus) bool { return b.Route.Serves(school) })
}

// BusesByStatus keeps buses in status.
func BusesByStatus(buses []domain.Bus, status domain.BusStatus) []domain.Bus {
	return filter(buses, func(b domain.Bus) bool { return b.Status == status })
}

// ActiveIncidents keeps unresolved incidents.
func ActiveIncidents(incidents []domain.Incident) []domain.Incident {
	return filter(incidents, func(i domain.Incident) bool { return i.Status == domain.IncidentStatusActive })
}

// IncidentsByBus keeps active incidents affecting busID.
func IncidentsByBus(incidents []domain.Incident, busID string) []domain.Incident {
	return filter(incidents, func(i domain.Incident) bool {
		return i.Status == domain.IncidentStatusActive && i.Affects(busID)
	})
}

// IncidentsByType keeps incidents of type t.
func IncidentsByType(incidents []domain.Incident, t domain.IncidentType) []domain.Incident {
	return filter(incidents, func(i domain.Incident) bool { return i.Type == t })
}
