package core

import (
	"context"
	"sort"
	"sync"

	"voltschool/internal/remote"
	"voltschool/pkg/domain"
)

// Record is implemented by every stored entity.
type Record[T any] interface {
	RecordID() string
	Clone() T
}

// State tracks a collection's initial load.
type State int32

// Collection lifecycle states.
const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// StoreDeps are the collaborators shared by the entity stores.
type StoreDeps struct {
	Adapter   *remote.Adapter
	Persister Persister
	Logger    Logger
	Clock     Clock
}

func (d StoreDeps) withDefaults() StoreDeps {
	if d.Adapter == nil {
		d.Adapter = remote.NewAdapter(nil, nil)
	}
	if d.Persister == nil {
		d.Persister = NewWriteThrough(d.Adapter)
	}
	if d.Logger == nil {
		d.Logger = noopLogger{}
	}
	if d.Clock == nil {
		d.Clock = defaultServiceOptions().clock
	}
	return d
}

// Collection is an ordered in-memory mirror of one remote collection row.
// Every successful mutation notifies subscribers and, once the initial load
// has completed, writes the whole collection through the Persister.
type Collection[T Record[T]] struct {
	name domain.CollectionName
	deps StoreDeps

	// writeMu orders mutate, notify and save so snapshots reach the
	// persister in the order they were produced.
	writeMu sync.Mutex

	mu      sync.RWMutex
	items   []T
	state   State
	subs    map[int]func([]T)
	nextSub int
	seeded  func([]T)

	// resets counts Reset calls so a background load started earlier
	// discards its fetched rows.
	resets uint64

	ready     chan struct{}
	readyOnce sync.Once
}

func newCollection[T Record[T]](name domain.CollectionName, deps StoreDeps, seeded func([]T)) *Collection[T] {
	return &Collection[T]{
		name:   name,
		deps:   deps.withDefaults(),
		items:  []T{},
		subs:   make(map[int]func([]T)),
		seeded: seeded,
		ready:  make(chan struct{}),
	}
}

// Name returns the collection name.
func (c *Collection[T]) Name() domain.CollectionName { return c.name }

// State returns the current lifecycle state.
func (c *Collection[T]) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Ready is closed once the initial load has finished.
func (c *Collection[T]) Ready() <-chan struct{} { return c.ready }

// Load fetches the remote row, replaces local contents with it and marks the
// collection ready. Fetch failures degrade to an empty collection.
func (c *Collection[T]) Load(ctx context.Context) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.loadLocked(ctx)
}

// loadLocked must be called with writeMu held.
func (c *Collection[T]) loadLocked(ctx context.Context) {
	c.mu.Lock()
	c.state = StateLoading
	c.mu.Unlock()

	items := remote.Fetch(ctx, c.deps.Adapter, c.name, []T{})
	if items == nil {
		items = []T{}
	}
	c.deps.Logger.Info("collection loaded", "collection", c.name, "count", len(items))
	c.seed(items)
}

// Start loads the collection in the background when the remote is reachable.
// Without a remote the collection becomes ready immediately and empty.
func (c *Collection[T]) Start(ctx context.Context) {
	if !c.deps.Adapter.Enabled() {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		c.seed([]T{})
		return
	}
	c.mu.Lock()
	if c.state == StateUninitialized {
		c.state = StateLoading
	}
	resets := c.resets
	c.mu.Unlock()
	go func() {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		c.mu.RLock()
		stale := c.resets != resets
		c.mu.RUnlock()
		if stale {
			c.deps.Logger.Debug("background load superseded by reset", "collection", c.name)
			return
		}
		c.loadLocked(ctx)
	}()
}

// seed must be called with writeMu held.
func (c *Collection[T]) seed(items []T) {
	c.mu.Lock()
	c.items = items
	c.state = StateReady
	if c.seeded != nil {
		c.seeded(items)
	}
	snap, subs := c.snapshotLocked()
	c.mu.Unlock()
	c.readyOnce.Do(func() { close(c.ready) })
	notify(subs, snap)
}

// List returns a copy of every record in insertion order.
func (c *Collection[T]) List() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAll(c.items)
}

// Get returns the record with id.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.items {
		if item.RecordID() == id {
			return item.Clone(), true
		}
	}
	var zero T
	return zero, false
}

// Len returns the record count.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Subscribe registers fn for change notifications. fn is called immediately
// with the current contents, then after every mutation. Snapshots passed to
// fn are shared and must not be modified.
func (c *Collection[T]) Subscribe(fn func([]T)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	snap := cloneAll(c.items)
	c.mu.Unlock()
	fn(snap)
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Insert appends item. Ids must be unique within the collection.
func (c *Collection[T]) Insert(ctx context.Context, item T) error {
	id := item.RecordID()
	return c.mutate(ctx, func(items []T) ([]T, bool, error) {
		if indexOf(items, id) >= 0 {
			return nil, false, domain.ErrDuplicate{Collection: c.name, ID: id}
		}
		next := make([]T, 0, len(items)+1)
		next = append(next, items...)
		return append(next, item.Clone()), true, nil
	})
}

// Modify applies fn to a copy of the record with id and stores the result.
// Other records are untouched. A mutator error aborts without a write.
func (c *Collection[T]) Modify(ctx context.Context, id string, fn func(*T) error) (T, error) {
	var updated T
	err := c.mutate(ctx, func(items []T) ([]T, bool, error) {
		idx := indexOf(items, id)
		if idx < 0 {
			return nil, false, domain.ErrNotFound{Collection: c.name, ID: id}
		}
		candidate := items[idx].Clone()
		if err := fn(&candidate); err != nil {
			return nil, false, err
		}
		next := append([]T(nil), items...)
		next[idx] = candidate
		updated = candidate.Clone()
		return next, true, nil
	})
	return updated, err
}

// ModifyEach applies fn to every record whose id is in ids and writes once.
// Unknown ids are skipped. It returns the ids that were modified.
func (c *Collection[T]) ModifyEach(ctx context.Context, ids []string, fn func(*T)) ([]string, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var touched []string
	err := c.mutate(ctx, func(items []T) ([]T, bool, error) {
		touched = touched[:0]
		next := append([]T(nil), items...)
		for i := range next {
			if !wanted[next[i].RecordID()] {
				continue
			}
			candidate := next[i].Clone()
			fn(&candidate)
			next[i] = candidate
			touched = append(touched, candidate.RecordID())
		}
		return next, len(touched) > 0, nil
	})
	return touched, err
}

// Remove deletes the record with id. Removing a missing id is a no-op and
// does not write.
func (c *Collection[T]) Remove(ctx context.Context, id string) (bool, error) {
	removed := false
	err := c.mutate(ctx, func(items []T) ([]T, bool, error) {
		idx := indexOf(items, id)
		if idx < 0 {
			return nil, false, nil
		}
		next := make([]T, 0, len(items)-1)
		next = append(next, items[:idx]...)
		next = append(next, items[idx+1:]...)
		removed = true
		return next, true, nil
	})
	return removed, err
}

// Replace overwrites the whole collection. Ids must be unique.
func (c *Collection[T]) Replace(ctx context.Context, items []T) error {
	seen := make(map[string]bool, len(items))
	next := make([]T, 0, len(items))
	for _, item := range items {
		id := item.RecordID()
		if seen[id] {
			return domain.ErrDuplicate{Collection: c.name, ID: id}
		}
		seen[id] = true
		next = append(next, item.Clone())
	}
	return c.mutate(ctx, func([]T) ([]T, bool, error) {
		if c.seeded != nil {
			c.seeded(next)
		}
		return next, true, nil
	})
}

// Reset clears local state, deletes the remote row and uploads the empty
// collection, whether or not the initial load has finished. The collection
// is ready afterwards and a pending background load is dropped. The two
// remote calls are not atomic; the first failure is returned.
func (c *Collection[T]) Reset(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	c.resets++
	c.mu.Unlock()
	c.seed([]T{})
	snap := []T{}

	var first error
	if err := c.deps.Adapter.Delete(ctx, c.name); err != nil {
		first = &PersistError{Collection: c.name, Err: err}
	}
	if err := c.deps.Persister.Save(ctx, c.name, snap); err != nil && first == nil {
		first = &PersistError{Collection: c.name, Err: err}
	}
	return first
}

// mutate runs fn against the current items. When fn reports a change the new
// slice is installed, subscribers are notified and the snapshot is persisted.
func (c *Collection[T]) mutate(ctx context.Context, fn func([]T) ([]T, bool, error)) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	next, changed, err := fn(c.items)
	if err != nil || !changed {
		c.mu.Unlock()
		return err
	}
	c.items = next
	ready := c.state == StateReady
	snap, subs := c.snapshotLocked()
	c.mu.Unlock()

	notify(subs, snap)
	if !ready {
		c.deps.Logger.Debug("persistence suppressed until ready", "collection", c.name)
		return nil
	}
	if err := c.deps.Persister.Save(ctx, c.name, snap); err != nil {
		return &PersistError{Collection: c.name, Err: err}
	}
	return nil
}

func (c *Collection[T]) snapshotLocked() ([]T, []func([]T)) {
	snap := cloneAll(c.items)
	keys := make([]int, 0, len(c.subs))
	for k := range c.subs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	subs := make([]func([]T), 0, len(keys))
	for _, k := range keys {
		subs = append(subs, c.subs[k])
	}
	return snap, subs
}

func notify[T any](subs []func([]T), snap []T) {
	for _, fn := range subs {
		fn(snap)
	}
}

func cloneAll[T Record[T]](items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, item.Clone())
	}
	return out
}

func indexOf[T Record[T]](items []T, id string) int {
	for i, item := range items {
		if item.RecordID() == id {
			return i
		}
	}
	return -1
}
