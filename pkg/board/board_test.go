package board

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/labdesk/pkg/draft"
	"github.com/dyluth/labdesk/pkg/pending"
	"github.com/dyluth/labdesk/pkg/section"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore wraps a real store and fails writes on demand.
type flakyStore struct {
	section.Store

	mu        sync.Mutex
	failWrite error
	writes    int
	onWrite   func()
}

func (f *flakyStore) Write(ctx context.Context, key string, items json.RawMessage) (int64, error) {
	f.mu.Lock()
	f.writes++
	fail := f.failWrite
	hook := f.onWrite
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fail != nil {
		return 0, fail
	}
	return f.Store.Write(ctx, key, items)
}

func (f *flakyStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func setupTestBoard(t *testing.T, opts ...Option) (*Board, *flakyStore) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	rs, err := section.NewRedisStore(&redis.Options{Addr: mr.Addr()}, "test-ws")
	require.NoError(t, err)
	t.Cleanup(func() { rs.Close() })

	store := &flakyStore{Store: rs}
	b, err := New(store, "todos", KindTodo, Columns{"todo", "doing", "done"}, opts...)
	require.NoError(t, err)
	require.NoError(t, b.Load(context.Background()))
	return b, store
}

func seed(t *testing.T, b *Board, items ...Item) {
	ctx := context.Background()
	for _, it := range items {
		_, err := b.Create(ctx, it)
		require.NoError(t, err)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "", KindTodo, Columns{"todo"})
	assert.Error(t, err)

	_, err = New(nil, "todos", "widget", Columns{"todo"})
	assert.Error(t, err)

	_, err = New(nil, "todos", KindTodo, nil)
	assert.ErrorContains(t, err, "no columns")
}

func TestBoard_CreateAssignsIDsAndPersists(t *testing.T) {
	b, _ := setupTestBoard(t)
	ctx := context.Background()

	first, err := b.Create(ctx, Todo{Base: Base{Title: "a"}})
	require.NoError(t, err)
	second, err := b.Create(ctx, Todo{Base: Base{Title: "b", Status: "done"}})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ItemID())
	assert.Equal(t, "todo", first.ItemStatus(), "defaults to first column")
	assert.Equal(t, int64(2), second.ItemID())

	other, err := New(b.store, "todos", KindTodo, b.Columns())
	require.NoError(t, err)
	require.NoError(t, other.Load(ctx))
	assert.Equal(t, []int64{1, 2}, ids(other.Items()))

	t.Run("ids continue above loaded items", func(t *testing.T) {
		third, err := other.Create(ctx, Todo{Base: Base{Title: "c"}})
		require.NoError(t, err)
		assert.Equal(t, int64(3), third.ItemID())
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		_, err := b.Create(ctx, Todo{Base: Base{Title: "x", Status: "someday"}})
		assert.ErrorIs(t, err, ErrUnknownColumn)
	})

	t.Run("rejects wrong kind", func(t *testing.T) {
		_, err := b.Create(ctx, Paper{Base: Base{Title: "x"}})
		assert.Error(t, err)
	})
}

func TestBoard_MoveScenario(t *testing.T) {
	b, store := setupTestBoard(t)
	ctx := context.Background()
	seed(t, b, todo(0, "todo"), todo(0, "todo"), todo(0, "done"))
	writesBefore := store.writeCount()

	moved, err := b.Move(ctx, 2, Drop{Column: "done", Index: 0})
	require.NoError(t, err)
	assert.True(t, moved)

	assert.Equal(t, []int64{1, 2, 3}, ids(b.Items()))
	assert.Equal(t, []string{"todo", "done", "done"}, statuses(b.Items()))
	assert.Equal(t, []int64{2, 3}, ids(b.Column("done")))
	assert.Equal(t, writesBefore+1, store.writeCount())

	require.NoError(t, b.Refetch(ctx))
	assert.Equal(t, []string{"todo", "done", "done"}, statuses(b.Items()), "persisted")
}

func TestBoard_MoveNoop(t *testing.T) {
	b, store := setupTestBoard(t)
	ctx := context.Background()
	seed(t, b, todo(0, "todo"), todo(0, "done"), todo(0, "todo"))
	before := b.Items()
	writesBefore := store.writeCount()

	moved, err := b.Move(ctx, 1, Drop{Column: "todo", Index: 0})
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, before, b.Items())
	assert.Equal(t, writesBefore, store.writeCount(), "no write issued")
}

func TestBoard_MoveErrors(t *testing.T) {
	b, _ := setupTestBoard(t)
	ctx := context.Background()
	seed(t, b, todo(0, "todo"))

	_, err := b.Move(ctx, 99, Drop{Column: "done"})
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = b.Move(ctx, 1, Drop{Column: "archive"})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestBoard_PersistFailureLeavesOptimisticState(t *testing.T) {
	tracker := pending.NewTracker()
	b, store := setupTestBoard(t, WithTracker(tracker))
	ctx := context.Background()
	seed(t, b, todo(0, "todo"), todo(0, "done"))

	key := pending.Key{Section: "todos", ID: 1}
	var sawPending bool
	store.onWrite = func() { sawPending = tracker.IsPending(key) }
	store.failWrite = errors.New("connection reset")

	_, err := b.Move(ctx, 1, Drop{Column: "done", Index: 1})
	require.Error(t, err)
	assert.True(t, IsPersistError(err))
	assert.ErrorContains(t, err, "connection reset")

	assert.True(t, sawPending, "item marked pending during write")
	assert.False(t, tracker.IsPending(key), "cleared after failure")
	assert.Equal(t, []string{"done", "done"}, statuses(b.Items()), "local state stays optimistic")

	store.failWrite = nil
	store.onWrite = nil
	require.NoError(t, b.Refetch(ctx))
	assert.Equal(t, []string{"todo", "done"}, statuses(b.Items()), "refetch restores stored state")
}

func TestBoard_RevisionCheck(t *testing.T) {
	ctx := context.Background()
	a, store := setupTestBoard(t, WithRevisionCheck())
	seed(t, a, todo(0, "todo"), todo(0, "todo"))

	other, err := New(store, "todos", KindTodo, a.Columns(), WithRevisionCheck())
	require.NoError(t, err)
	require.NoError(t, other.Load(ctx))

	_, err = other.Move(ctx, 2, Drop{Column: "done"})
	require.NoError(t, err)

	_, err = a.Move(ctx, 1, Drop{Column: "doing"})
	require.Error(t, err)
	assert.True(t, section.IsStale(err))

	require.NoError(t, a.Refetch(ctx))
	_, err = a.Move(ctx, 1, Drop{Column: "doing"})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, ids(a.Items()))
	assert.Equal(t, []string{"done", "doing"}, statuses(a.Items()))
}

func TestBoard_UpdateAndDelete(t *testing.T) {
	drafts := draft.NewMemory()
	b, _ := setupTestBoard(t, WithDrafts(drafts))
	ctx := context.Background()
	seed(t, b, todo(0, "todo"), todo(0, "todo"))

	require.NoError(t, drafts.Save(draft.ItemKey("todos", 1), "unsaved title"))

	updated := Todo{Base: Base{ID: 1, Status: "doing", Title: "renamed"}}
	require.NoError(t, b.Update(ctx, updated))

	got, ok := b.Get(1)
	require.True(t, ok)
	assert.Equal(t, "renamed", TitleOf(got))
	assert.Equal(t, []int64{1, 2}, ids(b.Items()), "position kept")

	exists, err := drafts.Exists(draft.ItemKey("todos", 1))
	require.NoError(t, err)
	assert.False(t, exists, "draft cleared after save")

	require.NoError(t, b.Delete(ctx, 1))
	assert.Equal(t, []int64{2}, ids(b.Items()))

	assert.ErrorIs(t, b.Delete(ctx, 1), ErrItemNotFound)
	assert.ErrorIs(t, b.Update(ctx, updated), ErrItemNotFound)
}

func TestBoard_UpdateRejectsWrongKind(t *testing.T) {
	b, store := setupTestBoard(t)
	ctx := context.Background()
	seed(t, b, todo(0, "todo"))
	writes := store.writeCount()

	err := b.Update(ctx, Paper{Base: Base{ID: 1, Status: "todo", Title: "smuggled"}, Venue: "Cell"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holds todo items")

	got, ok := b.Get(1)
	require.True(t, ok)
	assert.Equal(t, KindTodo, got.Kind())
	assert.Equal(t, writes, store.writeCount(), "nothing persisted")
}
