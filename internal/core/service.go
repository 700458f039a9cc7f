package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"voltschool/pkg/domain"
)

// Service coordinates the three stores. Incident transitions raise domain
// events whose handlers update bus status; both collections change under
// one service lock.
type Service struct {
	students  *StudentStore
	buses     *BusStore
	incidents *IncidentStore
	events    *Dispatcher

	mu   sync.Mutex
	opts serviceOptions
}

// NewService wires stores built by the caller.
func NewService(students *StudentStore, buses *BusStore, incidents *IncidentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &Service{
		students:  students,
		buses:     buses,
		incidents: incidents,
		events:    NewDispatcher(),
		opts:      o,
	}
	s.events.Handle(domain.EventIncidentOpened, s.busStatusCascade(domain.BusStatusDelayed))
	s.events.Handle(domain.EventIncidentResolved, s.busStatusCascade(domain.BusStatusActive))
	return s
}

// NewServiceFromDeps builds the three stores from deps and wires a Service.
// The service clock and logger default to the ones in deps.
func NewServiceFromDeps(deps StoreDeps, opts ...ServiceOption) *Service {
	deps = deps.withDefaults()
	base := []ServiceOption{WithClock(deps.Clock), WithLogger(deps.Logger)}
	return NewService(NewStudentStore(deps), NewBusStore(deps), NewIncidentStore(deps), append(base, opts...)...)
}

// Students returns the student store.
func (s *Service) Students() *StudentStore { return s.students }

// Buses returns the bus store.
func (s *Service) Buses() *BusStore { return s.buses }

// Incidents returns the incident store.
func (s *Service) Incidents() *IncidentStore { return s.incidents }

// Events returns the dispatcher carrying incident events.
func (s *Service) Events() *Dispatcher { return s.events }

// Load synchronously loads every store.
func (s *Service) Load(ctx context.Context) {
	s.students.Load(ctx)
	s.buses.Load(ctx)
	s.incidents.Load(ctx)
}

// Start begins loading every store in the background.
func (s *Service) Start(ctx context.Context) {
	s.students.Start(ctx)
	s.buses.Start(ctx)
	s.incidents.Start(ctx)
}

// WaitReady blocks until every store has loaded.
func (s *Service) WaitReady(ctx context.Context) error {
	for _, ready := range []<-chan struct{}{s.students.Ready(), s.buses.Ready(), s.incidents.Ready()} {
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Service) busStatusCascade(status domain.BusStatus) EventHandler {
	return func(ctx context.Context, event domain.Event) error {
		if len(event.BusIDs) == 0 {
			return nil
		}
		updated, err := s.buses.SetStatus(ctx, event.BusIDs, status)
		if len(updated) < len(event.BusIDs) {
			s.opts.logger.Warn("incident references unknown buses",
				"incident", event.IncidentID, "requested", len(event.BusIDs), "updated", len(updated))
		}
		if err != nil {
			return fmt.Errorf("set bus status %s: %w", status, err)
		}
		return nil
	}
}

// observe wraps an operation with tracing, metrics, audit and logging.
func (s *Service) observe(ctx context.Context, op string, entityID func() string, fn func(context.Context) error) error {
	start := s.opts.clock.Now()
	ctx, span := s.opts.tracer.Start(ctx, op)
	err := fn(ctx)
	duration := s.opts.clock.Now().Sub(start)
	if duration < 0 {
		duration = 0
	}
	span.End(err)
	s.opts.metrics.Observe(ctx, op, err == nil, duration)

	entry := AuditEntry{
		Operation: op,
		EntityID:  entityID(),
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: start,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.opts.logger.Error("operation failed", "operation", op, "id", entry.EntityID, "error", err)
	} else {
		s.opts.logger.Debug("operation completed", "operation", op, "id", entry.EntityID, "duration", duration)
	}
	s.opts.audit.Record(ctx, entry)
	return err
}

func idOf(id *string) func() string { return func() string { return *id } }

// AddStudent enrolls a student.
func (s *Service) AddStudent(ctx context.Context, student domain.Student) (domain.Student, error) {
	var out domain.Student
	err := s.observe(ctx, "add_student", func() string { return out.ID }, func(ctx context.Context) error {
		var err error
		out, err = s.students.Add(ctx, student)
		return err
	})
	return out, err
}

// UpdateStudent patches a student.
func (s *Service) UpdateStudent(ctx context.Context, id string, patch domain.StudentPatch) (domain.Student, error) {
	var out domain.Student
	err := s.observe(ctx, "update_student", idOf(&id), func(ctx context.Context) error {
		var err error
		out, err = s.students.Update(ctx, id, patch)
		return err
	})
	return out, err
}

// RemoveStudent deletes a student. Missing ids are not an error.
func (s *Service) RemoveStudent(ctx context.Context, id string) error {
	return s.observe(ctx, "remove_student", idOf(&id), func(ctx context.Context) error {
		_, err := s.students.Remove(ctx, id)
		return err
	})
}

// AddBus registers a bus.
func (s *Service) AddBus(ctx context.Context, bus domain.Bus) (domain.Bus, error) {
	var out domain.Bus
	err := s.observe(ctx, "add_bus", func() string { return out.ID }, func(ctx context.Context) error {
		var err error
		out, err = s.buses.Add(ctx, bus)
		return err
	})
	return out, err
}

// UpdateBus patches a bus.
func (s *Service) UpdateBus(ctx context.Context, id string, patch domain.BusPatch) (domain.Bus, error) {
	var out domain.Bus
	err := s.observe(ctx, "update_bus", idOf(&id), func(ctx context.Context) error {
		var err error
		out, err = s.buses.Update(ctx, id, patch)
		return err
	})
	return out, err
}

// UpdateBusStatus sets one bus's status.
func (s *Service) UpdateBusStatus(ctx context.Context, id string, status domain.BusStatus) (domain.Bus, error) {
	var out domain.Bus
	err := s.observe(ctx, "update_bus_status", idOf(&id), func(ctx context.Context) error {
		var err error
		out, err = s.buses.UpdateStatus(ctx, id, status)
		return err
	})
	return out, err
}

// RemoveBus deletes a bus. Students keep their bus reference.
func (s *Service) RemoveBus(ctx context.Context, id string) error {
	return s.observe(ctx, "remove_bus", idOf(&id), func(ctx context.Context) error {
		_, err := s.buses.Remove(ctx, id)
		return err
	})
}

// OpenIncident records the incident and marks every affected bus delayed.
// When the incident write fails remotely the incident is still applied
// locally, so the cascade still runs; both errors are returned.
func (s *Service) OpenIncident(ctx context.Context, incident domain.Incident) (domain.Incident, error) {
	var out domain.Incident
	err := s.observe(ctx, "open_incident", func() string { return out.ID }, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		var addErr error
		out, addErr = s.incidents.Add(ctx, incident)
		if addErr != nil && !IsPersistError(addErr) {
			return addErr
		}
		pubErr := s.events.Publish(ctx, domain.NewIncidentOpened(out, s.opts.clock.Now()))
		return errors.Join(addErr, pubErr)
	})
	return out, err
}

// ResolveIncident marks the incident resolved and sets every affected bus
// back to active, even if another active incident still lists it. Resolving
// an already resolved incident changes nothing.
func (s *Service) ResolveIncident(ctx context.Context, id string) (domain.Incident, error) {
	var out domain.Incident
	err := s.observe(ctx, "resolve_incident", idOf(&id), func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		var resErr error
		out, resErr = s.incidents.Resolve(ctx, id)
		if errors.Is(resErr, ErrAlreadyResolved) {
			out, _ = s.incidents.Get(id)
			return nil
		}
		if resErr != nil && !IsPersistError(resErr) {
			return resErr
		}
		pubErr := s.events.Publish(ctx, domain.NewIncidentResolved(out, s.opts.clock.Now()))
		return errors.Join(resErr, pubErr)
	})
	return out, err
}

// UpdateIncident patches an incident without touching bus status.
func (s *Service) UpdateIncident(ctx context.Context, id string, patch domain.IncidentPatch) (domain.Incident, error) {
	var out domain.Incident
	err := s.observe(ctx, "update_incident", idOf(&id), func(ctx context.Context) error {
		var err error
		out, err = s.incidents.Update(ctx, id, patch)
		return err
	})
	return out, err
}

// RemoveIncident deletes an incident. Bus status is left as is.
func (s *Service) RemoveIncident(ctx context.Context, id string) error {
	return s.observe(ctx, "remove_incident", idOf(&id), func(ctx context.Context) error {
		_, err := s.incidents.Remove(ctx, id)
		return err
	})
}

// Reset empties the named collections, or all of them when none are given.
func (s *Service) Reset(ctx context.Context, collections ...domain.CollectionName) error {
	if len(collections) == 0 {
		collections = domain.Collections()
	}
	label := fmt.Sprint(collections)
	return s.observe(ctx, "reset", idOf(&label), func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		var errs []error
		for _, c := range collections {
			var err error
			switch c {
			case domain.CollectionStudents:
				err = s.students.Reset(ctx)
			case domain.CollectionBuses:
				err = s.buses.Reset(ctx)
			case domain.CollectionIncidents:
				err = s.incidents.Reset(ctx)
			default:
				err = fmt.Errorf("unknown collection %q", c)
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
