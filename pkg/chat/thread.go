package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dyluth/labdesk/internal/metrics"
	"github.com/dyluth/labdesk/pkg/draft"
	"github.com/dyluth/labdesk/pkg/mention"
	"github.com/dyluth/labdesk/pkg/pending"
	"github.com/dyluth/labdesk/pkg/roster"
	"github.com/dyluth/labdesk/pkg/section"
)

// mergeAttempts bounds how often a revision-checked persist re-reads the
// thread and re-applies its message after losing a race.
const mergeAttempts = 3

// Outgoing is a message being composed.
type Outgoing struct {
	Author   string
	Text     string
	ImageURL string
	ReplyTo  *ReplyRef
}

// Thread is the optimistic engine for one chat thread.
type Thread struct {
	ref      ThreadRef
	store    section.Store
	roster   *roster.Roster
	tracker  *pending.Tracker
	drafts   *draft.Cache
	mentions *mention.Dispatcher
	checkRev bool
	now      func() time.Time
	ids      idSource

	mu       sync.Mutex
	messages []Message
	subs     map[int]func([]Message)
	nextSub  int
}

// Option configures a Thread.
type Option func(*Thread)

// WithTracker marks messages in t while their writes are in flight.
func WithTracker(t *pending.Tracker) Option {
	return func(th *Thread) { th.tracker = t }
}

// WithDrafts clears the thread's compose draft after a successful send.
func WithDrafts(c *draft.Cache) Option {
	return func(th *Thread) { th.drafts = c }
}

// WithMentions notifies mentioned members after a successful send.
func WithMentions(d *mention.Dispatcher) Option {
	return func(th *Thread) { th.mentions = d }
}

// WithRevisionCheck makes each persist conditional on the revision it read.
// A lost race re-reads the thread and re-applies the message.
func WithRevisionCheck() Option {
	return func(th *Thread) { th.checkRev = true }
}

// WithClock overrides the clock used for message ids and dates.
func WithClock(now func() time.Time) Option {
	return func(th *Thread) { th.now = now }
}

// NewThread creates the engine for ref. Call Load before reading messages.
func NewThread(store section.Store, ref ThreadRef, r *roster.Roster, opts ...Option) (*Thread, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("roster cannot be nil")
	}

	t := &Thread{
		ref:     ref,
		store:   store,
		roster:  r,
		tracker: pending.NewTracker(),
		now:     time.Now,
		subs:    make(map[int]func([]Message)),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.ids.now = t.now
	return t, nil
}

// Ref returns the thread reference.
func (t *Thread) Ref() ThreadRef { return t.ref }

// Tracker returns the pending-write tracker in use.
func (t *Thread) Tracker() *pending.Tracker { return t.tracker }

// Load reads the persisted thread. Local unsent messages are kept at the
// tail, so Load and Refresh behave the same.
func (t *Thread) Load(ctx context.Context) error {
	return t.Refresh(ctx)
}

// Refresh replaces the local persisted messages with the stored ones and
// re-appends every local sending or failed message the store does not hold.
// A send that settles while the store is being read is kept too.
func (t *Thread) Refresh(ctx context.Context) error {
	t.mu.Lock()
	inFlight := make(map[int64]struct{})
	for _, m := range t.messages {
		if m.Sending {
			inFlight[m.ID] = struct{}{}
		}
	}
	t.mu.Unlock()

	coll, err := t.store.Read(ctx, t.ref.Key())
	if err != nil {
		return fmt.Errorf("failed to load thread %s: %w", t.ref, err)
	}
	persisted, err := DecodeMessages(coll.Items)
	if err != nil {
		return fmt.Errorf("failed to decode thread %s: %w", t.ref, err)
	}

	stored := make(map[int64]struct{}, len(persisted))
	for _, m := range persisted {
		stored[m.ID] = struct{}{}
		t.ids.observe(m.ID)
	}

	t.mu.Lock()
	merged := persisted
	for _, m := range t.messages {
		if _, ok := stored[m.ID]; ok {
			continue
		}
		if _, sending := inFlight[m.ID]; sending || !m.Persisted() {
			merged = append(merged, m)
		}
	}
	t.messages = merged
	t.mu.Unlock()

	t.changed()
	return nil
}

// Messages returns a copy of the thread in display order.
func (t *Thread) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Get returns the message with id.
func (t *Thread) Get(id int64) (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexOf(id)
	if i < 0 {
		return Message{}, false
	}
	return t.messages[i].clone(), true
}

// OnChange registers fn to receive the full thread after every local
// change. fn runs outside the engine lock. The returned function removes it.
func (t *Thread) OnChange(fn func([]Message)) func() {
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

// Send appends a new message and persists it.
//
// The message is visible as sending before the write starts. If the write
// fails the message stays in the thread marked failed and the returned
// error is non-nil; it is never retried automatically. A message with
// neither text nor image is rejected before anything changes.
func (t *Thread) Send(ctx context.Context, out Outgoing) (Message, error) {
	text := strings.TrimSpace(out.Text)
	image := strings.TrimSpace(out.ImageURL)
	if text == "" && image == "" {
		return Message{}, ErrEmptyMessage
	}
	if !t.roster.Contains(out.Author) {
		return Message{}, fmt.Errorf("%w: %q is not a member", ErrForbidden, out.Author)
	}

	msg := Message{
		ID:       t.ids.next(),
		Author:   out.Author,
		Text:     text,
		ImageURL: image,
		Date:     t.now().UTC(),
		Sending:  true,
	}
	if out.ReplyTo != nil {
		r := *out.ReplyTo
		msg.ReplyTo = &r
	}

	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.mu.Unlock()
	t.changed()

	t.logEvent("message_sending", map[string]interface{}{"message_id": msg.ID, "author": msg.Author})
	return t.deliver(ctx, msg.ID)
}

// Reply sends out as a reply to the message with targetID, capturing the
// target's id, author and text as they are now.
func (t *Thread) Reply(ctx context.Context, targetID int64, out Outgoing) (Message, error) {
	target, ok := t.Get(targetID)
	if !ok {
		return Message{}, fmt.Errorf("%w: %d", ErrMessageNotFound, targetID)
	}
	if target.Deleted {
		return Message{}, fmt.Errorf("%w: %d", ErrMessageDeleted, targetID)
	}
	if !target.Persisted() {
		return Message{}, fmt.Errorf("%w: %d", ErrNotPersisted, targetID)
	}
	out.ReplyTo = target.Snapshot()
	return t.Send(ctx, out)
}

// Retry re-sends a failed message, returning it to the sending state.
func (t *Thread) Retry(ctx context.Context, id int64) (Message, error) {
	t.mu.Lock()
	i := t.indexOf(id)
	if i < 0 {
		t.mu.Unlock()
		return Message{}, fmt.Errorf("%w: %d", ErrMessageNotFound, id)
	}
	if !t.messages[i].Failed {
		t.mu.Unlock()
		return Message{}, fmt.Errorf("%w: %d", ErrNotFailed, id)
	}
	t.messages[i].Failed = false
	t.messages[i].Sending = true
	t.mu.Unlock()
	t.changed()

	t.logEvent("message_retry", map[string]interface{}{"message_id": id})
	return t.deliver(ctx, id)
}

// Discard removes a failed message locally. Nothing is written.
func (t *Thread) Discard(id int64) error {
	t.mu.Lock()
	i := t.indexOf(id)
	if i < 0 {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrMessageNotFound, id)
	}
	if !t.messages[i].Failed {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotFailed, id)
	}
	t.messages = append(t.messages[:i:i], t.messages[i+1:]...)
	t.mu.Unlock()
	t.changed()

	t.logEvent("message_discarded", map[string]interface{}{"message_id": id})
	return nil
}

// Edit replaces the text of user's own message and marks it edited.
func (t *Thread) Edit(ctx context.Context, id int64, user, newText string) error {
	newText = strings.TrimSpace(newText)
	msg, err := t.mutate(id, func(m *Message) error {
		if m.Author != user {
			return ErrNotAuthor
		}
		if newText == "" && m.ImageURL == "" {
			return ErrEmptyMessage
		}
		m.Text = newText
		m.Edited = true
		return nil
	})
	if err != nil {
		return err
	}

	t.logEvent("message_edited", map[string]interface{}{"message_id": id, "user": user})
	return t.persistUpdate(ctx, msg)
}

// SoftDelete scrubs a message's content while keeping its id and author.
// Allowed for the author and for admins.
func (t *Thread) SoftDelete(ctx context.Context, id int64, user string) error {
	msg, err := t.mutate(id, func(m *Message) error {
		if m.Author != user && !t.roster.IsAdmin(user) {
			return fmt.Errorf("%w: %s cannot delete a message by %s", ErrForbidden, user, m.Author)
		}
		m.Deleted = true
		m.Text = ""
		m.ImageURL = ""
		return nil
	})
	if err != nil {
		return err
	}

	t.logEvent("message_deleted", map[string]interface{}{"message_id": id, "user": user})
	return t.persistUpdate(ctx, msg)
}

// React toggles user in the set of members who reacted with emoji.
func (t *Thread) React(ctx context.Context, id int64, emoji, user string) error {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return fmt.Errorf("emoji cannot be empty")
	}
	if !t.roster.Contains(user) {
		return fmt.Errorf("%w: %q is not a member", ErrForbidden, user)
	}
	msg, err := t.mutate(id, func(m *Message) error {
		m.Reactions = toggleReaction(m.Reactions, emoji, user)
		return nil
	})
	if err != nil {
		return err
	}
	return t.persistUpdate(ctx, msg)
}

// mutate applies fn to a persisted, non-deleted message and returns the
// updated copy. Nothing changes when fn returns an error.
func (t *Thread) mutate(id int64, fn func(*Message) error) (Message, error) {
	t.mu.Lock()
	i := t.indexOf(id)
	if i < 0 {
		t.mu.Unlock()
		return Message{}, fmt.Errorf("%w: %d", ErrMessageNotFound, id)
	}
	if !t.messages[i].Persisted() {
		t.mu.Unlock()
		return Message{}, fmt.Errorf("%w: %d", ErrNotPersisted, id)
	}
	if t.messages[i].Deleted {
		t.mu.Unlock()
		return Message{}, fmt.Errorf("%w: %d", ErrMessageDeleted, id)
	}

	m := t.messages[i].clone()
	if err := fn(&m); err != nil {
		t.mu.Unlock()
		return Message{}, err
	}
	t.messages[i] = m
	t.mu.Unlock()

	t.changed()
	return m.clone(), nil
}

// deliver persists the message with id and settles its local state.
func (t *Thread) deliver(ctx context.Context, id int64) (Message, error) {
	t.mu.Lock()
	i := t.indexOf(id)
	if i < 0 {
		t.mu.Unlock()
		return Message{}, fmt.Errorf("%w: %d", ErrMessageNotFound, id)
	}
	msg := t.messages[i].clone()
	t.mu.Unlock()

	err := t.persist(ctx, msg)

	t.mu.Lock()
	if i = t.indexOf(id); i >= 0 {
		t.messages[i].Sending = false
		t.messages[i].Failed = err != nil
		msg = t.messages[i].clone()
	}
	t.mu.Unlock()
	t.changed()

	if err != nil {
		metrics.ChatSends.WithLabelValues(metrics.ResultError).Inc()
		t.logEvent("message_failed", map[string]interface{}{
			"level":      "error",
			"message_id": id,
			"error":      err.Error(),
		})
		return msg, fmt.Errorf("failed to send message %d: %w", id, err)
	}

	metrics.ChatSends.WithLabelValues(metrics.ResultOK).Inc()
	t.logEvent("message_sent", map[string]interface{}{"message_id": id})

	if t.mentions != nil {
		targets := t.mentions.Dispatch(mention.Message{
			Thread: t.ref.Key(),
			ID:     msg.ID,
			Sender: msg.Author,
			Text:   msg.Text,
		})
		if len(targets) > 0 {
			t.logEvent("mentions_dispatched", map[string]interface{}{"message_id": id, "targets": targets})
		}
	}
	if t.drafts != nil {
		if err := t.drafts.Clear(draft.ThreadKey(t.ref.Key())); err != nil {
			log.Printf("[Chat] Failed to clear draft for %s: %v", t.ref, err)
		}
	}
	return msg, nil
}

// persistUpdate writes an edit, delete or reaction. On failure the local
// change is kept and the caller should Refresh.
func (t *Thread) persistUpdate(ctx context.Context, msg Message) error {
	if err := t.persist(ctx, msg); err != nil {
		t.logEvent("update_failed", map[string]interface{}{
			"level":      "error",
			"message_id": msg.ID,
			"error":      err.Error(),
		})
		return fmt.Errorf("failed to persist message %d: %w", msg.ID, err)
	}
	return nil
}

// persist upserts msg into the stored thread by id, appending it when the
// store does not hold it yet. A message already deleted in the store is
// never overwritten: the local copy is replaced by the stored one and
// ErrMessageDeleted is returned.
func (t *Thread) persist(ctx context.Context, msg Message) error {
	key := t.ref.Key()
	var tombstone *Message
	err := t.tracker.Track(pending.Key{Section: key, ID: msg.ID}, func() error {
		for attempt := 1; ; attempt++ {
			coll, err := t.store.Read(ctx, key)
			if err != nil {
				return err
			}
			stored, err := DecodeMessages(coll.Items)
			if err != nil {
				return err
			}
			for i := range stored {
				if stored[i].ID == msg.ID && stored[i].Deleted {
					tombstone = &stored[i]
					return fmt.Errorf("%w: %d", ErrMessageDeleted, msg.ID)
				}
			}
			payload, err := EncodeMessages(upsert(stored, msg))
			if err != nil {
				return err
			}

			if !t.checkRev {
				_, err = t.store.Write(ctx, key, payload)
				recordWrite(key, err)
				return err
			}

			_, err = t.store.CompareAndWrite(ctx, key, payload, coll.Revision)
			recordWrite(key, err)
			if section.IsStale(err) && attempt < mergeAttempts {
				continue
			}
			return err
		}
	})

	if tombstone != nil {
		t.mu.Lock()
		if i := t.indexOf(msg.ID); i >= 0 {
			t.messages[i] = tombstone.clone()
		}
		t.mu.Unlock()
		t.changed()
	}
	return err
}

func upsert(msgs []Message, msg Message) []Message {
	for i := range msgs {
		if msgs[i].ID == msg.ID {
			msgs[i] = msg
			return msgs
		}
	}
	return append(msgs, msg)
}

func recordWrite(key string, err error) {
	result := metrics.ResultOK
	switch {
	case section.IsStale(err):
		result = metrics.ResultStale
	case err != nil:
		result = metrics.ResultError
	}
	metrics.SectionWrites.WithLabelValues(key, result).Inc()
}

// indexOf must be called with t.mu held.
func (t *Thread) indexOf(id int64) int {
	for i := range t.messages {
		if t.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// snapshotLocked must be called with t.mu held.
func (t *Thread) snapshotLocked() []Message {
	out := make([]Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = m.clone()
	}
	return out
}

func (t *Thread) changed() {
	t.mu.Lock()
	if len(t.subs) == 0 {
		t.mu.Unlock()
		return
	}
	snapshot := t.snapshotLocked()
	subs := make([]func([]Message), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// logEvent logs a structured event in JSON format.
func (t *Thread) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if _, ok := data["level"]; !ok {
		data["level"] = "info"
	}
	data["component"] = "chat"
	data["event_type"] = eventType
	data["thread"] = t.ref.Key()

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Chat] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
