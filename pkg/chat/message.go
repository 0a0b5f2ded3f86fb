package chat

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ReplyRef is a snapshot of the message being replied to, taken when the
// reply was composed. It is never updated when the target is later edited
// or deleted.
type ReplyRef struct {
	ID     int64  `json:"id"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

// Message is one chat message.
//
// Sending and Failed are local-only state. They are never serialized, and
// a message carrying either has not been persisted.
type Message struct {
	ID        int64               `json:"id"`
	Author    string              `json:"author"`
	Text      string              `json:"text"`
	ImageURL  string              `json:"image_url,omitempty"`
	Date      time.Time           `json:"date"`
	ReplyTo   *ReplyRef           `json:"reply_to,omitempty"`
	Reactions map[string][]string `json:"reactions,omitempty"` // emoji -> sorted member names
	Edited    bool                `json:"edited,omitempty"`
	Deleted   bool                `json:"deleted,omitempty"`

	Sending bool `json:"-"`
	Failed  bool `json:"-"`
}

// Persisted reports whether the message is neither sending nor failed.
func (m Message) Persisted() bool {
	return !m.Sending && !m.Failed
}

// Snapshot captures m as a reply target.
func (m Message) Snapshot() *ReplyRef {
	return &ReplyRef{ID: m.ID, Author: m.Author, Text: m.Text}
}

// ReactedBy reports whether user has reacted to m with emoji.
func (m Message) ReactedBy(emoji, user string) bool {
	for _, u := range m.Reactions[emoji] {
		if u == user {
			return true
		}
	}
	return false
}

// clone returns a deep copy so callers never share reaction slices with the
// engine's internal state.
func (m Message) clone() Message {
	out := m
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		out.ReplyTo = &r
	}
	if m.Reactions != nil {
		out.Reactions = make(map[string][]string, len(m.Reactions))
		for k, v := range m.Reactions {
			out.Reactions[k] = append([]string(nil), v...)
		}
	}
	return out
}

// toggleReaction adds user to emoji's set or removes them if present. An
// emoji whose set becomes empty is removed from the map.
func toggleReaction(reactions map[string][]string, emoji, user string) map[string][]string {
	if reactions == nil {
		reactions = make(map[string][]string)
	}
	users := reactions[emoji]
	for i, u := range users {
		if u == user {
			users = append(users[:i:i], users[i+1:]...)
			if len(users) == 0 {
				delete(reactions, emoji)
			} else {
				reactions[emoji] = users
			}
			if len(reactions) == 0 {
				return nil
			}
			return reactions
		}
	}
	users = append(users, user)
	sort.Strings(users)
	reactions[emoji] = users
	return reactions
}

// EncodeMessages serializes persisted messages as a JSON array.
func EncodeMessages(msgs []Message) (json.RawMessage, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages: %w", err)
	}
	return data, nil
}

// DecodeMessages parses a persisted message array.
func DecodeMessages(data json.RawMessage) ([]Message, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	return msgs, nil
}
