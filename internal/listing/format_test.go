package listing

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dyluth/labdesk/pkg/board"
	"github.com/dyluth/labdesk/pkg/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBoard(t *testing.T) {
	deadline := time.Now().Add(72 * time.Hour)
	items := []board.Item{
		board.Todo{Base: board.Base{ID: 1, Status: "todo", Title: "Order reagents", Assignees: []string{"Ana"}}},
		board.Todo{Base: board.Base{ID: 2, Status: "done", Title: "Calibrate scale", Progress: 100}},
		board.Todo{Base: board.Base{ID: 3, Status: "todo", Title: strings.Repeat("x", 50), Deadline: &deadline}},
	}

	var buf bytes.Buffer
	n := FormatBoard(&buf, "todos", []string{"todo", "doing", "done"}, items, func(id int64) bool { return id == 3 })
	out := buf.String()

	assert.Equal(t, 3, n)
	assert.Contains(t, out, "TODO (2)")
	assert.Contains(t, out, "DOING (0)")
	assert.Contains(t, out, "DONE (1)")
	assert.Contains(t, out, "Order reagents")
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "3*", "pending items are starred")
	assert.Contains(t, out, strings.Repeat("x", 29)+"...")
	assert.Contains(t, out, "from now")
	assert.Contains(t, out, "3 items")

	todo := strings.Index(out, "TODO (2)")
	done := strings.Index(out, "DONE (1)")
	assert.Less(t, todo, done)
	assert.Less(t, strings.Index(out, "Order reagents"), strings.Index(out, strings.Repeat("x", 29)))
}

func TestFormatBoard_Empty(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, 0, FormatBoard(&buf, "todos", []string{"todo"}, nil, nil))
	assert.Equal(t, "No items in section 'todos'\n", buf.String())
}

func TestFormatThread(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	msgs := []chat.Message{
		{ID: 1, Author: "Ana", Text: "gel is ready", Date: now.Add(-10 * time.Minute), Reactions: map[string][]string{"👍": {"Ben", "Cy"}}},
		{ID: 2, Author: "Ben", Text: "on my way", Date: now.Add(-5 * time.Minute), ReplyTo: &chat.ReplyRef{ID: 1, Author: "Ana", Text: "gel is ready"}, Edited: true},
		{ID: 3, Author: "Cy", Date: now.Add(-time.Minute), Deleted: true},
		{ID: 4, Author: "Ana", Text: "offline", Date: now, Failed: true},
	}

	var buf bytes.Buffer
	n := FormatThread(&buf, "chat:team:alpha", msgs, ThreadView{
		FirstUnread: 1,
		Typing:      []string{"Ben", "Cy"},
		SeenBy: func(m chat.Message) []string {
			if m.ID == 1 {
				return []string{"Ben"}
			}
			return nil
		},
		Now: func() time.Time { return now },
	})
	out := buf.String()

	assert.Equal(t, 4, n)
	assert.Contains(t, out, "10 minutes ago")
	assert.Contains(t, out, "👍 2")
	assert.Contains(t, out, "seen by Ben")
	assert.Contains(t, out, "↪ Ana: gel is ready")
	assert.Contains(t, out, "(edited)")
	assert.Contains(t, out, "(message deleted)")
	assert.Contains(t, out, "✗ failed")
	assert.Contains(t, out, "Ben, Cy are typing")

	divider := strings.Index(out, "new messages")
	assert.Greater(t, divider, strings.Index(out, "gel is ready"))
	assert.Less(t, divider, strings.Index(out, "on my way"))
}

func TestFormatThread_Empty(t *testing.T) {
	var buf bytes.Buffer
	FormatThread(&buf, "chat:pi:lab", nil, ThreadView{FirstUnread: -1})
	assert.Equal(t, "No messages in chat:pi:lab\n", buf.String())
}

func TestFormatJSONL(t *testing.T) {
	msgs := []chat.Message{{ID: 1, Author: "Ana", Text: "a"}, {ID: 2, Author: "Ben", Text: "b"}}

	var buf bytes.Buffer
	require.NoError(t, FormatJSONL(&buf, msgs))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var decoded chat.Message
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &decoded))
	assert.Equal(t, "Ben", decoded.Author)
}

func TestParseOutputFormat(t *testing.T) {
	_, err := ParseOutputFormat("jsonl")
	assert.NoError(t, err)
	_, err = ParseOutputFormat("yaml")
	assert.Error(t, err)
}
