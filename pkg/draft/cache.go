// Package draft autosaves unsent input per context (a chat thread, a board
// item being edited) so reopening the context restores it.
//
// Drafts are local state only. They are never shared with other clients and
// are cleared as soon as the corresponding send or save succeeds.
package draft

import (
	"fmt"
	"strings"
)

// Key identifies a draft by context type and context ID,
// e.g. {Context: "thread", ID: "chat:team:alpha"}.
type Key struct {
	Context string
	ID      string
}

// String returns the composite form "{context}:{id}" used as the backend key.
func (k Key) String() string {
	return k.Context + ":" + k.ID
}

// ParseKey splits a composite key at its first colon.
func ParseKey(s string) (Key, error) {
	ctx, id, ok := strings.Cut(s, ":")
	if !ok || ctx == "" || id == "" {
		return Key{}, fmt.Errorf("invalid draft key %q (expected context:id)", s)
	}
	return Key{Context: ctx, ID: id}, nil
}

// ThreadKey is the draft key for a chat thread's compose box.
func ThreadKey(threadKey string) Key {
	return Key{Context: "thread", ID: threadKey}
}

// ItemKey is the draft key for an item being edited in a section.
func ItemKey(section string, id int64) Key {
	return Key{Context: "item", ID: fmt.Sprintf("%s/%d", section, id)}
}

// Backend stores raw draft text.
type Backend interface {
	Get(key string) (string, bool, error)
	Put(key, text string) error
	Delete(key string) error
	Close() error
}

// Cache is the draft API used by the chat and board engines.
type Cache struct {
	backend Backend
}

// New creates a cache over backend.
func New(backend Backend) *Cache {
	return &Cache{backend: backend}
}

// NewMemory creates a cache that lives for the process only.
func NewMemory() *Cache {
	return New(NewMemoryBackend())
}

// Save stores text for key. Saving empty text clears the draft.
func (c *Cache) Save(key Key, text string) error {
	if text == "" {
		return c.Clear(key)
	}
	if err := c.backend.Put(key.String(), text); err != nil {
		return fmt.Errorf("failed to save draft %s: %w", key, err)
	}
	return nil
}

// Load returns the saved text for key, and false if there is none.
func (c *Cache) Load(key Key) (string, bool, error) {
	text, ok, err := c.backend.Get(key.String())
	if err != nil {
		return "", false, fmt.Errorf("failed to load draft %s: %w", key, err)
	}
	return text, ok, nil
}

// Clear removes the draft for key. Clearing a missing draft is not an error.
func (c *Cache) Clear(key Key) error {
	if err := c.backend.Delete(key.String()); err != nil {
		return fmt.Errorf("failed to clear draft %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a draft is saved for key.
func (c *Cache) Exists(key Key) (bool, error) {
	_, ok, err := c.Load(key)
	return ok, err
}

// Close releases the backend. Implements io.Closer.
func (c *Cache) Close() error {
	return c.backend.Close()
}
