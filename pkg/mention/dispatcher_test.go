package mention

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/labdesk/pkg/notify"
	"github.com/dyluth/labdesk/pkg/roster"
)

type recorder struct {
	mu   sync.Mutex
	sent map[string][]notify.Notification
	fail map[string]bool
}

func newRecorder() *recorder {
	return &recorder{sent: make(map[string][]notify.Notification), fail: make(map[string]bool)}
}

func (r *recorder) Notify(_ context.Context, target string, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[target] {
		return errors.New("inbox unavailable")
	}
	r.sent[target] = append(r.sent[target], n)
	return nil
}

func (r *recorder) targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for k := range r.sent {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func testRoster(t *testing.T) *roster.Roster {
	r, err := roster.New(
		roster.Member{Name: "Ana"},
		roster.Member{Name: "Ben"},
		roster.Member{Name: "Cy", Role: roster.RoleAdmin},
	)
	require.NoError(t, err)
	return r
}

func TestDispatcher_ExcludesSenderAndDedupes(t *testing.T) {
	rec := newRecorder()
	d := NewDispatcher(rec, testRoster(t))

	targets := d.Dispatch(Message{Thread: "chat:team:alpha", ID: 42, Sender: "Ana", Text: "@Ana @Ben @Ben and @Cy"})
	d.Wait()

	assert.Equal(t, []string{"Ben", "Cy"}, targets)
	assert.Equal(t, []string{"Ben", "Cy"}, rec.targets())
	require.Len(t, rec.sent["Ben"], 1)
	got := rec.sent["Ben"][0]
	assert.Equal(t, "chat:team:alpha", got.Thread)
	assert.Equal(t, "Ana", got.Sender)
	assert.Equal(t, int64(42), got.MessageID)
	assert.Equal(t, "@Ana @Ben @Ben and @Cy", got.Excerpt)
}

func TestDispatcher_NoMentions(t *testing.T) {
	rec := newRecorder()
	d := NewDispatcher(rec, testRoster(t))

	assert.Nil(t, d.Dispatch(Message{Sender: "Ana", Text: "nothing here"}))
	d.Wait()
	assert.Empty(t, rec.targets())
}

func TestDispatcher_FailureIsIsolated(t *testing.T) {
	rec := newRecorder()
	rec.fail["Ben"] = true
	d := NewDispatcher(rec, testRoster(t))

	targets := d.Dispatch(Message{Sender: "Ana", Text: "@Ben @Cy"})
	d.Wait()

	assert.Equal(t, []string{"Ben", "Cy"}, targets)
	assert.Equal(t, []string{"Cy"}, rec.targets())
}
