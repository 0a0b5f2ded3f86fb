// Package pending tracks which items are currently being persisted so views
// can show a transient "saving" indicator.
//
// The tracker is UI feedback only. It does not serialise writes: two writes
// to the same item may overlap, the first End clears the entry, and the
// Section Store's last completed write decides the stored state.
package pending

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dyluth/labdesk/internal/metrics"
)

// Key identifies an item within a section. Item IDs are only unique per
// section, so the section is part of the key.
type Key struct {
	Section string
	ID      int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Section, k.ID)
}

// Change is delivered to subscribers when a key enters or leaves the set.
type Change struct {
	Key     Key
	Pending bool
}

// Tracker is a registry of keys with an in-flight write.
// Begin and End are its only mutators. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	keys    map[Key]struct{}
	subs    map[int]func(Change)
	nextSub int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		keys: make(map[Key]struct{}),
		subs: make(map[int]func(Change)),
	}
}

// Begin marks k as pending. Beginning an already-pending key is a no-op.
func (t *Tracker) Begin(k Key) {
	t.mu.Lock()
	if _, ok := t.keys[k]; ok {
		t.mu.Unlock()
		return
	}
	t.keys[k] = struct{}{}
	metrics.PendingWrites.Set(float64(len(t.keys)))
	subs := t.snapshotSubs()
	t.mu.Unlock()

	notify(subs, Change{Key: k, Pending: true})
}

// End clears k. Ending a key that is not pending is a no-op.
func (t *Tracker) End(k Key) {
	t.mu.Lock()
	if _, ok := t.keys[k]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.keys, k)
	metrics.PendingWrites.Set(float64(len(t.keys)))
	subs := t.snapshotSubs()
	t.mu.Unlock()

	notify(subs, Change{Key: k, Pending: false})
}

// IsPending reports whether k has a write in flight.
func (t *Tracker) IsPending(k Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.keys[k]
	return ok
}

// Pending returns the pending keys ordered by section then ID.
func (t *Tracker) Pending() []Key {
	t.mu.Lock()
	keys := make([]Key, 0, len(t.keys))
	for k := range t.keys {
		keys = append(keys, k)
	}
	t.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Section != keys[j].Section {
			return keys[i].Section < keys[j].Section
		}
		return keys[i].ID < keys[j].ID
	})
	return keys
}

// Track runs write with k marked pending, clearing it whether write succeeds
// or fails.
func (t *Tracker) Track(k Key, write func() error) error {
	t.Begin(k)
	defer t.End(k)
	return write()
}

// Subscribe registers fn for every transition. fn is called synchronously
// from the goroutine that called Begin or End, outside the tracker lock.
// The returned function removes the subscription.
func (t *Tracker) Subscribe(fn func(Change)) func() {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
		})
	}
}

// snapshotSubs must be called with t.mu held.
func (t *Tracker) snapshotSubs() []func(Change) {
	subs := make([]func(Change), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Change), c Change) {
	for _, fn := range subs {
		fn(c)
	}
}
