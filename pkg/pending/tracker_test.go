package pending

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_BeginEnd(t *testing.T) {
	tr := NewTracker()
	k := Key{Section: "todos", ID: 1}

	assert.False(t, tr.IsPending(k))

	tr.Begin(k)
	assert.True(t, tr.IsPending(k))

	t.Run("second begin is idempotent", func(t *testing.T) {
		tr.Begin(k)
		assert.Equal(t, []Key{k}, tr.Pending())
	})

	tr.End(k)
	assert.False(t, tr.IsPending(k))

	t.Run("end of unknown key is a no-op", func(t *testing.T) {
		tr.End(Key{Section: "todos", ID: 99})
		assert.Empty(t, tr.Pending())
	})
}

func TestTracker_DistinctKeysIndependent(t *testing.T) {
	tr := NewTracker()
	a := Key{Section: "todos", ID: 1}
	b := Key{Section: "analyses", ID: 1}

	tr.Begin(a)
	tr.Begin(b)
	tr.End(a)

	assert.False(t, tr.IsPending(a))
	assert.True(t, tr.IsPending(b))
}

func TestTracker_Track(t *testing.T) {
	tr := NewTracker()
	k := Key{Section: "todos", ID: 7}

	err := tr.Track(k, func() error {
		assert.True(t, tr.IsPending(k))
		return errors.New("boom")
	})

	assert.EqualError(t, err, "boom")
	assert.False(t, tr.IsPending(k), "entry is cleared on failure too")
}

func TestTracker_Subscribe(t *testing.T) {
	tr := NewTracker()
	k := Key{Section: "chat:team:alpha", ID: 42}

	var mu sync.Mutex
	var changes []Change
	unsubscribe := tr.Subscribe(func(c Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	tr.Begin(k)
	tr.Begin(k)
	tr.End(k)

	unsubscribe()
	tr.Begin(k)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Change{{Key: k, Pending: true}, {Key: k, Pending: false}}, changes)
}

func TestTracker_PendingOrdered(t *testing.T) {
	tr := NewTracker()
	tr.Begin(Key{Section: "todos", ID: 3})
	tr.Begin(Key{Section: "analyses", ID: 9})
	tr.Begin(Key{Section: "todos", ID: 1})

	assert.Equal(t, []Key{
		{Section: "analyses", ID: 9},
		{Section: "todos", ID: 1},
		{Section: "todos", ID: 3},
	}, tr.Pending())
}
