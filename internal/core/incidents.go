package core

import (
	"context"
	"errors"
	"fmt"

	"voltschool/pkg/domain"
)

// IncidentStore holds reported incidents. Ids run I-1001, I-1002, ...
// Cross-collection effects are applied by the Service, not here.
type IncidentStore struct {
	*Collection[domain.Incident]
	seq *sequence
}

// NewIncidentStore constructs an uninitialised incident store.
func NewIncidentStore(deps StoreDeps) *IncidentStore {
	s := &IncidentStore{seq: newSequence("I-", 1000)}
	s.Collection = newCollection(domain.CollectionIncidents, deps, s.observe)
	return s
}

func (s *IncidentStore) observe(items []domain.Incident) {
	for _, in := range items {
		s.seq.observe(in.ID)
	}
}

// Add assigns the next id. A zero ReportedAt takes the store clock and an
// empty status defaults to active.
func (s *IncidentStore) Add(ctx context.Context, incident domain.Incident) (domain.Incident, error) {
	in := incident.Clone()
	if in.ReportedAt.IsZero() {
		in.ReportedAt = s.deps.Clock.Now()
	}
	if in.Status == "" {
		in.Status = domain.IncidentStatusActive
	}
	if in.AffectedBuses == nil {
		in.AffectedBuses = []string{}
	}
	if err := in.Validate(); err != nil {
		return domain.Incident{}, err
	}
	if in.ID == "" {
		in.ID, _ = s.seq.next()
	} else {
		s.seq.observe(in.ID)
	}
	if err := s.Insert(ctx, in); err != nil {
		return in, err
	}
	return in, nil
}

// Update merges patch into the incident with id.
func (s *IncidentStore) Update(ctx context.Context, id string, patch domain.IncidentPatch) (domain.Incident, error) {
	return s.Modify(ctx, id, func(in *domain.Incident) error {
		patch.Apply(in)
		if err := in.Validate(); err != nil {
			return fmt.Errorf("update incident: %w", err)
		}
		return nil
	})
}

// ErrAlreadyResolved is returned by Resolve for an incident that is no
// longer active.
var ErrAlreadyResolved = errors.New("incident already resolved")

// Resolve marks the incident resolved at the store clock's time.
func (s *IncidentStore) Resolve(ctx context.Context, id string) (domain.Incident, error) {
	return s.Modify(ctx, id, func(in *domain.Incident) error {
		if in.Status == domain.IncidentStatusResolved {
			return ErrAlreadyResolved
		}
		at := s.deps.Clock.Now()
		in.Status = domain.IncidentStatusResolved
		in.ResolvedAt = &at
		return nil
	})
}

// Active returns unresolved incidents.
func (s *IncidentStore) Active() []domain.Incident {
	return ActiveIncidents(s.List())
}

// ByBus returns the active incidents affecting busID.
func (s *IncidentStore) ByBus(busID string) []domain.Incident {
	return IncidentsByBus(s.List(), busID)
}

// ByType returns incidents of type t, resolved or not.
func (s *IncidentStore) ByType(t domain.IncidentType) []domain.Incident {
	return IncidentsByType(s.List(), t)
}
