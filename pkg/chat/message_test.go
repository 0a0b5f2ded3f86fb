package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleReaction(t *testing.T) {
	r := toggleReaction(nil, "👍", "Ben")
	r = toggleReaction(r, "👍", "Ana")
	assert.Equal(t, map[string][]string{"👍": {"Ana", "Ben"}}, r)

	r = toggleReaction(r, "👍", "Ben")
	assert.Equal(t, map[string][]string{"👍": {"Ana"}}, r)

	r = toggleReaction(r, "👍", "Ana")
	assert.Nil(t, r)
}

func TestMessage_TransientFlagsNotSerialized(t *testing.T) {
	msgs := []Message{{
		ID:      1,
		Author:  "Ana",
		Text:    "hi",
		Date:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Sending: true,
		Failed:  true,
	}}

	data, err := EncodeMessages(msgs)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sending")
	assert.NotContains(t, string(data), "failed")

	back, err := DecodeMessages(data)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.True(t, back[0].Persisted())
}

func TestEncodeMessages_NilIsEmptyArray(t *testing.T) {
	data, err := EncodeMessages(nil)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestClone_IsDeep(t *testing.T) {
	m := Message{ReplyTo: &ReplyRef{ID: 1, Text: "x"}, Reactions: map[string][]string{"👍": {"Ana"}}}
	c := m.clone()
	c.ReplyTo.Text = "changed"
	c.Reactions["👍"][0] = "Ben"

	assert.Equal(t, "x", m.ReplyTo.Text)
	assert.Equal(t, "Ana", m.Reactions["👍"][0])
}

func TestParseThreadRef(t *testing.T) {
	ref, err := ParseThreadRef("team:alpha")
	require.NoError(t, err)
	assert.Equal(t, ThreadRef{Kind: KindTeam, ID: "alpha"}, ref)

	ref, err = ParseThreadRef("chat:person:Ben")
	require.NoError(t, err)
	assert.Equal(t, "chat:person:Ben", ref.Key())

	for _, bad := range []string{"alpha", "room:alpha", "team:", "team:a b", "team:a:b"} {
		_, err := ParseThreadRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestFirstUnread(t *testing.T) {
	msgs := []Message{
		{ID: 10, Author: "Ana"},
		{ID: 20, Author: "Ben"},
		{ID: 30, Author: "Ana"},
		{ID: 40, Author: "Ben"},
		{ID: 50, Author: "Ben", Failed: true},
	}

	assert.Equal(t, -1, FirstUnread(msgs, 0, "Ana"), "never opened")
	assert.Equal(t, 1, FirstUnread(msgs, 10, "Ana"))
	assert.Equal(t, 3, FirstUnread(msgs, 20, "Ana"), "own messages do not count")
	assert.Equal(t, -1, FirstUnread(msgs, 40, "Ana"))
	assert.Equal(t, 2, FirstUnread(msgs, 20, "Ben"))

	assert.Equal(t, int64(40), LatestPersisted(msgs))
	assert.Equal(t, int64(0), LatestPersisted(nil))
}
