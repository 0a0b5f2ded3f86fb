package chat

import (
	"fmt"
	"strings"
)

// ThreadKind is the scope of a conversation.
type ThreadKind string

const (
	// KindTeam is a team channel.
	KindTeam ThreadKind = "team"

	// KindPerson is a direct conversation.
	KindPerson ThreadKind = "person"

	// KindPI is the channel with the principal investigator.
	KindPI ThreadKind = "pi"
)

// Validate checks that k is a known thread kind.
func (k ThreadKind) Validate() error {
	switch k {
	case KindTeam, KindPerson, KindPI:
		return nil
	default:
		return fmt.Errorf("invalid thread kind: %q (must be team, person or pi)", k)
	}
}

// ThreadRef identifies one thread.
type ThreadRef struct {
	Kind ThreadKind
	ID   string
}

// Key returns the section key the thread is persisted under.
// Pattern: chat:{kind}:{id}
func (r ThreadRef) Key() string {
	return fmt.Sprintf("chat:%s:%s", r.Kind, r.ID)
}

// String implements fmt.Stringer.
func (r ThreadRef) String() string {
	return r.Key()
}

// Validate checks kind and id.
func (r ThreadRef) Validate() error {
	if err := r.Kind.Validate(); err != nil {
		return err
	}
	if r.ID == "" {
		return fmt.Errorf("thread id cannot be empty")
	}
	if strings.ContainsAny(r.ID, ":*?[] \t\n") {
		return fmt.Errorf("thread id %q contains invalid characters", r.ID)
	}
	return nil
}

// ParseThreadRef parses "kind:id" or "chat:kind:id".
func ParseThreadRef(s string) (ThreadRef, error) {
	s = strings.TrimPrefix(s, "chat:")
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return ThreadRef{}, fmt.Errorf("invalid thread %q (expected kind:id)", s)
	}
	ref := ThreadRef{Kind: ThreadKind(kind), ID: id}
	if err := ref.Validate(); err != nil {
		return ThreadRef{}, err
	}
	return ref, nil
}
