package core

import (
	"context"
	"fmt"
	"strconv"

	"voltschool/pkg/domain"
)

// BusStore holds the fleet. Ids run B-101, B-102, ... and a bus's Number is
// the numeric part of its id.
type BusStore struct {
	*Collection[domain.Bus]
	seq *sequence
}

// NewBusStore constructs an uninitialised bus store.
func NewBusStore(deps StoreDeps) *BusStore {
	s := &BusStore{seq: newSequence("B-", 100)}
	s.Collection = newCollection(domain.CollectionBuses, deps, s.observe)
	return s
}

func (s *BusStore) observe(items []domain.Bus) {
	for _, b := range items {
		s.seq.observe(b.ID)
		if _, err := strconv.Atoi(b.Number); err == nil {
			s.seq.observe(s.seq.prefix + b.Number)
		}
	}
}

// Add assigns the next id and number. An empty status defaults to active.
func (s *BusStore) Add(ctx context.Context, bus domain.Bus) (domain.Bus, error) {
	b := bus.Clone()
	if b.Status == "" {
		b.Status = domain.BusStatusActive
	}
	if err := b.Validate(); err != nil {
		return domain.Bus{}, err
	}
	if b.ID == "" {
		var n int
		b.ID, n = s.seq.next()
		b.Number = strconv.Itoa(n)
	} else {
		s.seq.observe(b.ID)
	}
	if err := s.Insert(ctx, b); err != nil {
		return b, err
	}
	return b, nil
}

// Update merges patch into the bus with id.
func (s *BusStore) Update(ctx context.Context, id string, patch domain.BusPatch) (domain.Bus, error) {
	return s.Modify(ctx, id, func(b *domain.Bus) error {
		patch.Apply(b)
		if err := b.Validate(); err != nil {
			return fmt.Errorf("update bus: %w", err)
		}
		return nil
	})
}

// UpdateStatus sets one bus's status.
func (s *BusStore) UpdateStatus(ctx context.Context, id string, status domain.BusStatus) (domain.Bus, error) {
	if !status.Valid() {
		return domain.Bus{}, fmt.Errorf("unknown bus status %q", status)
	}
	return s.Modify(ctx, id, func(b *domain.Bus) error {
		b.Status = status
		return nil
	})
}

// SetStatus sets the status of every listed bus in a single write. Unknown
// ids are skipped; the ids actually updated are returned.
func (s *BusStore) SetStatus(ctx context.Context, ids []string, status domain.BusStatus) ([]string, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown bus status %q", status)
	}
	return s.ModifyEach(ctx, ids, func(b *domain.Bus) {
		b.Status = status
	})
}

// BySchool returns buses whose route serves school.
func (s *BusStore) BySchool(school domain.School) []domain.Bus {
	return BusesBySchool(s.List(), school)
}

// ByStatus returns buses in status.
func (s *BusStore) ByStatus(status domain.BusStatus) []domain.Bus {
	return BusesByStatus(s.List(), status)
}
