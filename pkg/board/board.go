package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dyluth/labdesk/internal/metrics"
	"github.com/dyluth/labdesk/pkg/draft"
	"github.com/dyluth/labdesk/pkg/pending"
	"github.com/dyluth/labdesk/pkg/section"
)

// Board is the optimistic engine for one section.
//
// Mutations apply to the local collection immediately and then write the
// whole collection to the Section Store. The store lock is never held across
// a write, so overlapping writes from this or other clients resolve
// last-write-wins unless revision checking is enabled.
type Board struct {
	section  string
	kind     Kind
	columns  Columns
	store    section.Store
	tracker  *pending.Tracker
	drafts   *draft.Cache
	checkRev bool
	ids      IDGenerator

	mu       sync.Mutex
	items    []Item
	revision int64
}

// Option configures a Board.
type Option func(*Board)

// WithTracker marks items in t while their writes are in flight.
func WithTracker(t *pending.Tracker) Option {
	return func(b *Board) { b.tracker = t }
}

// WithDrafts clears an item's edit draft after a successful Update.
func WithDrafts(c *draft.Cache) Option {
	return func(b *Board) { b.drafts = c }
}

// WithRevisionCheck makes every write conditional on the revision the local
// collection was loaded at. A concurrent write from elsewhere then surfaces
// as section.ErrStaleRevision instead of being silently overwritten.
func WithRevisionCheck() Option {
	return func(b *Board) { b.checkRev = true }
}

// New creates a board over sectionKey. Call Load before reading items.
func New(store section.Store, sectionKey string, kind Kind, columns Columns, opts ...Option) (*Board, error) {
	if err := section.ValidateKey(sectionKey); err != nil {
		return nil, err
	}
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("section %s has no columns", sectionKey)
	}

	b := &Board{
		section: sectionKey,
		kind:    kind,
		columns: columns,
		store:   store,
		tracker: pending.NewTracker(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Section returns the section key.
func (b *Board) Section() string { return b.section }

// Columns returns the section's columns.
func (b *Board) Columns() Columns { return b.columns }

// Tracker returns the pending-write tracker in use.
func (b *Board) Tracker() *pending.Tracker { return b.tracker }

// Load replaces the local collection with the stored one.
func (b *Board) Load(ctx context.Context) error {
	coll, err := b.store.Read(ctx, b.section)
	if err != nil {
		return fmt.Errorf("failed to load section %s: %w", b.section, err)
	}

	items, err := DecodeItems(coll.Items, b.kind)
	if err != nil {
		return fmt.Errorf("failed to decode section %s: %w", b.section, err)
	}

	b.mu.Lock()
	b.items = items
	b.revision = coll.Revision
	b.mu.Unlock()

	for _, it := range items {
		b.ids.Observe(it.ItemID())
	}
	return nil
}

// Refetch discards local state and reloads it. Callers use it after a
// PersistError or a stale-revision rejection.
func (b *Board) Refetch(ctx context.Context) error {
	return b.Load(ctx)
}

// Items returns a copy of the full ordered collection.
func (b *Board) Items() []Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Item, len(b.items))
	copy(out, b.items)
	return out
}

// Column returns the items in column, in display order.
func (b *Board) Column(column string) []Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Column(b.items, column, ItemAccessor)
}

// Get returns the item with id.
func (b *Board) Get(id int64) (Item, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return b.items[i], true
}

// Create assigns the next ID to item, appends it and persists.
// An empty status is set to the first column.
func (b *Board) Create(ctx context.Context, item Item) (Item, error) {
	if err := b.checkKind(item); err != nil {
		return nil, err
	}
	if item.ItemStatus() == "" {
		item = item.WithStatus(b.columns.Default())
	}
	if err := b.columns.Validate(item.ItemStatus()); err != nil {
		return nil, err
	}

	item = item.WithID(b.ids.Next())

	b.mu.Lock()
	b.items = append(b.items, item)
	snapshot, base := b.snapshotLocked()
	b.mu.Unlock()

	b.logEvent("item_created", map[string]interface{}{"item_id": item.ItemID(), "status": item.ItemStatus()})
	return item, b.persist(ctx, item.ItemID(), snapshot, base)
}

// Update replaces the item with the same ID in place, keeping its position.
func (b *Board) Update(ctx context.Context, item Item) error {
	if err := b.checkKind(item); err != nil {
		return err
	}
	if err := b.columns.Validate(item.ItemStatus()); err != nil {
		return err
	}

	b.mu.Lock()
	i := b.indexOf(item.ItemID())
	if i < 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrItemNotFound, item.ItemID())
	}
	b.items[i] = item
	snapshot, base := b.snapshotLocked()
	b.mu.Unlock()

	if err := b.persist(ctx, item.ItemID(), snapshot, base); err != nil {
		return err
	}

	if b.drafts != nil {
		if err := b.drafts.Clear(draft.ItemKey(b.section, item.ItemID())); err != nil {
			log.Printf("[Board] Failed to clear draft for %s/%d: %v", b.section, item.ItemID(), err)
		}
	}
	return nil
}

// Delete removes the item and persists.
func (b *Board) Delete(ctx context.Context, id int64) error {
	b.mu.Lock()
	i := b.indexOf(id)
	if i < 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	b.items = append(b.items[:i:i], b.items[i+1:]...)
	snapshot, base := b.snapshotLocked()
	b.mu.Unlock()

	b.logEvent("item_deleted", map[string]interface{}{"item_id": id})
	return b.persist(ctx, id, snapshot, base)
}

// Move drops the item with id at target. It returns false without writing
// anything when the drop would leave the item where it already is.
func (b *Board) Move(ctx context.Context, id int64, target Drop) (bool, error) {
	if err := b.columns.Validate(target.Column); err != nil {
		return false, err
	}

	b.mu.Lock()
	if b.indexOf(id) < 0 {
		b.mu.Unlock()
		return false, fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	if IsNoop(b.items, id, target, ItemAccessor) {
		b.mu.Unlock()
		return false, nil
	}
	from, _ := Locate(b.items, id, ItemAccessor)
	b.items = Reorder(b.items, id, target, ItemAccessor)
	snapshot, base := b.snapshotLocked()
	b.mu.Unlock()

	b.logEvent("item_moved", map[string]interface{}{
		"item_id":     id,
		"from_column": from.Column,
		"from_index":  from.Index,
		"to_column":   target.Column,
		"to_index":    target.Index,
	})
	return true, b.persist(ctx, id, snapshot, base)
}

func (b *Board) checkKind(item Item) error {
	if item.Kind() != b.kind {
		return fmt.Errorf("section %s holds %s items, got %s", b.section, b.kind, item.Kind())
	}
	return nil
}

// indexOf must be called with b.mu held.
func (b *Board) indexOf(id int64) int {
	for i, it := range b.items {
		if it.ItemID() == id {
			return i
		}
	}
	return -1
}

// snapshotLocked copies the collection for a write. Must be called with b.mu held.
func (b *Board) snapshotLocked() ([]Item, int64) {
	out := make([]Item, len(b.items))
	copy(out, b.items)
	return out, b.revision
}

// persist writes snapshot with id marked pending. On failure the local
// collection is left as is and a *PersistError is returned.
func (b *Board) persist(ctx context.Context, id int64, snapshot []Item, base int64) error {
	payload, err := EncodeItems(snapshot)
	if err != nil {
		return err
	}

	var rev int64
	err = b.tracker.Track(pending.Key{Section: b.section, ID: id}, func() error {
		var werr error
		rev, werr = b.write(ctx, payload, base)
		return werr
	})

	if err != nil {
		result := metrics.ResultError
		if section.IsStale(err) {
			result = metrics.ResultStale
		}
		metrics.SectionWrites.WithLabelValues(b.section, result).Inc()
		b.logEvent("persist_failed", map[string]interface{}{
			"level":   "error",
			"item_id": id,
			"result":  result,
			"error":   err.Error(),
		})
		return &PersistError{Section: b.section, ItemID: id, Err: err}
	}

	metrics.SectionWrites.WithLabelValues(b.section, metrics.ResultOK).Inc()

	b.mu.Lock()
	if rev > b.revision {
		b.revision = rev
	}
	b.mu.Unlock()
	return nil
}

func (b *Board) write(ctx context.Context, payload json.RawMessage, base int64) (int64, error) {
	if b.checkRev {
		return b.store.CompareAndWrite(ctx, b.section, payload, base)
	}
	return b.store.Write(ctx, b.section, payload)
}

// IsPersistError reports whether err came from a failed section write.
func IsPersistError(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}

// logEvent logs a structured event in JSON format.
func (b *Board) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if _, ok := data["level"]; !ok {
		data["level"] = "info"
	}
	data["component"] = "board"
	data["event_type"] = eventType
	data["section"] = b.section

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Board] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
