package core

import (
	"context"
	"errors"
	"sync"

	"voltschool/pkg/domain"
)

// EventHandler applies the effects of a domain event. Handler errors are
// returned from Publish.
type EventHandler func(ctx context.Context, event domain.Event) error

// Dispatcher routes domain events to registered handlers, then to observers.
type Dispatcher struct {
	mu        sync.RWMutex
	handlers  map[domain.EventKind][]EventHandler
	observers map[int]func(domain.Event)
	nextObs   int
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers:  make(map[domain.EventKind][]EventHandler),
		observers: make(map[int]func(domain.Event)),
	}
}

// Handle registers h for events of kind.
func (d *Dispatcher) Handle(kind domain.EventKind, h EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], h)
}

// Subscribe registers an observer for every published event. Observers run
// synchronously after the handlers and must not block.
func (d *Dispatcher) Subscribe(fn func(domain.Event)) (unsubscribe func()) {
	d.mu.Lock()
	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.observers, id)
		d.mu.Unlock()
	}
}

// Publish runs every handler for the event's kind, then notifies observers.
// All handlers run even if one fails; their errors are joined.
func (d *Dispatcher) Publish(ctx context.Context, event domain.Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler(nil), d.handlers[event.Kind]...)
	observers := make([]func(domain.Event), 0, len(d.observers))
	for _, fn := range d.observers {
		observers = append(observers, fn)
	}
	d.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	for _, fn := range observers {
		fn(event)
	}
	return errors.Join(errs...)
}
