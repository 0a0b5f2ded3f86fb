package section

import (
	"fmt"
	"strings"
)

// Redis key pattern helpers
//
// All keys and channels are namespaced by workspace so several labdesk
// workspaces can share one Redis server.
//
// Key pattern: labdesk:{workspace}:{entity}:{key}

// SectionKey returns the Redis key holding a section's JSON array.
// Pattern: labdesk:{workspace}:section:{key}
func SectionKey(workspace, key string) string {
	return fmt.Sprintf("labdesk:%s:section:%s", workspace, key)
}

// RevisionKey returns the Redis key holding a section's revision counter.
// Pattern: labdesk:{workspace}:section:{key}:rev
func RevisionKey(workspace, key string) string {
	return fmt.Sprintf("labdesk:%s:section:%s:rev", workspace, key)
}

// EventsChannel returns the Pub/Sub channel carrying section change events.
// Pattern: labdesk:{workspace}:section_events
func EventsChannel(workspace string) string {
	return fmt.Sprintf("labdesk:%s:section_events", workspace)
}

// ValidateKey checks that a section key is usable as a key suffix.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("section key cannot be empty")
	}
	if strings.ContainsAny(key, " \t\r\n*?[]") {
		return fmt.Errorf("section key %q contains whitespace or glob characters", key)
	}
	return nil
}
