// Package roster holds the fixed set of workspace members.
package roster

import (
	"fmt"
	"sort"
)

// Role is a member's permission level.
type Role string

const (
	// RoleMember can edit and delete only their own messages.
	RoleMember Role = "member"

	// RoleAdmin can additionally delete anyone's messages.
	RoleAdmin Role = "admin"
)

// Validate checks that r is a known role. Empty is treated as member.
func (r Role) Validate() error {
	switch r {
	case "", RoleMember, RoleAdmin:
		return nil
	default:
		return fmt.Errorf("invalid role: %q (must be member or admin)", r)
	}
}

// Member is one person on the roster.
type Member struct {
	Name string
	Role Role
}

// Roster is an immutable lookup over the workspace members.
type Roster struct {
	members map[string]Member
	names   []string
}

// New builds a roster. Duplicate or empty names are rejected.
func New(members ...Member) (*Roster, error) {
	r := &Roster{members: make(map[string]Member, len(members))}
	for _, m := range members {
		if m.Name == "" {
			return nil, fmt.Errorf("member name cannot be empty")
		}
		if err := m.Role.Validate(); err != nil {
			return nil, fmt.Errorf("member %q: %w", m.Name, err)
		}
		if _, dup := r.members[m.Name]; dup {
			return nil, fmt.Errorf("duplicate member %q", m.Name)
		}
		if m.Role == "" {
			m.Role = RoleMember
		}
		r.members[m.Name] = m
		r.names = append(r.names, m.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Names returns every member name in sorted order.
func (r *Roster) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Contains reports whether name is on the roster.
func (r *Roster) Contains(name string) bool {
	_, ok := r.members[name]
	return ok
}

// IsAdmin reports whether name is an administrator.
func (r *Roster) IsAdmin(name string) bool {
	return r.members[name].Role == RoleAdmin
}
