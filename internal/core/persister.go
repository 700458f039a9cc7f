package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"voltschool/internal/remote"
	"voltschool/pkg/domain"
)

// Persister writes whole-collection snapshots to remote storage.
type Persister interface {
	Save(ctx context.Context, collection domain.CollectionName, snapshot any) error
}

// PersistError reports a mutation that was applied locally but whose remote
// write failed. Local state is not rolled back.
type PersistError struct {
	Collection domain.CollectionName
	Err        error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Collection, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// IsPersistError reports whether err carries a remote write failure.
func IsPersistError(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}

// WriteThrough uploads every snapshot synchronously and returns the result.
type WriteThrough struct {
	adapter *remote.Adapter
}

// NewWriteThrough returns a synchronous persister.
func NewWriteThrough(adapter *remote.Adapter) *WriteThrough {
	return &WriteThrough{adapter: adapter}
}

// Save uploads the snapshot.
func (w *WriteThrough) Save(ctx context.Context, collection domain.CollectionName, snapshot any) error {
	return w.adapter.Upload(ctx, collection, snapshot)
}

// ErrPersisterClosed is returned by Save after Close.
var ErrPersisterClosed = errors.New("persister closed")

// QueuedPersister is a write-behind persister. Only the latest snapshot per
// collection is kept pending, so rapid mutations collapse into one upload.
// Failures surface through Flush.
type QueuedPersister struct {
	adapter *remote.Adapter
	logger  Logger

	mu      sync.Mutex
	pending map[domain.CollectionName]any
	writing bool
	closed  bool
	errs    []error
	idle    chan struct{}
	written int
	dropped int

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewQueuedPersister starts the background writer.
func NewQueuedPersister(adapter *remote.Adapter, logger Logger) *QueuedPersister {
	if logger == nil {
		logger = noopLogger{}
	}
	q := &QueuedPersister{
		adapter: adapter,
		logger:  logger,
		pending: make(map[domain.CollectionName]any),
		idle:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Save replaces the pending snapshot for collection.
func (q *QueuedPersister) Save(_ context.Context, collection domain.CollectionName, snapshot any) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrPersisterClosed
	}
	if _, ok := q.pending[collection]; ok {
		q.dropped++
	}
	q.pending[collection] = snapshot
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

func (q *QueuedPersister) run() {
	defer close(q.done)
	for {
		select {
		case <-q.stop:
			q.drain()
			return
		case <-q.wake:
			q.drain()
		}
	}
}

func (q *QueuedPersister) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.writing = false
			close(q.idle)
			q.idle = make(chan struct{})
			q.mu.Unlock()
			return
		}
		batch := q.pending
		q.pending = make(map[domain.CollectionName]any)
		q.writing = true
		q.mu.Unlock()

		for _, collection := range domain.Collections() {
			snapshot, ok := batch[collection]
			if !ok {
				continue
			}
			err := q.adapter.Upload(context.Background(), collection, snapshot)
			q.mu.Lock()
			q.written++
			if err != nil {
				q.errs = append(q.errs, &PersistError{Collection: collection, Err: err})
			}
			q.mu.Unlock()
		}
	}
}

// Flush blocks until every pending snapshot has been written and returns the
// write errors collected since the previous Flush.
func (q *QueuedPersister) Flush(ctx context.Context) error {
	q.mu.Lock()
	if len(q.pending) == 0 && !q.writing {
		err := errors.Join(q.errs...)
		q.errs = nil
		q.mu.Unlock()
		return err
	}
	idle := q.idle
	q.mu.Unlock()
	select {
	case <-idle:
	case <-ctx.Done():
		return ctx.Err()
	}
	return q.Flush(ctx)
}

// Stats reports how many uploads ran and how many snapshots were superseded
// before being written.
func (q *QueuedPersister) Stats() (written, coalesced int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.written, q.dropped
}

// Close flushes pending writes and stops the writer.
func (q *QueuedPersister) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()
	close(q.stop)
	select {
	case <-q.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	err := errors.Join(q.errs...)
	q.errs = nil
	return err
}
