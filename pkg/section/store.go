package section

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrStaleRevision is returned by CompareAndWrite when the stored revision no
// longer matches the caller's base revision.
var ErrStaleRevision = errors.New("section revision is stale")

// emptyItems is the encoded form of a section nobody has written yet.
var emptyItems = json.RawMessage("[]")

// Collection is the full contents of one section at one revision.
type Collection struct {
	Items    json.RawMessage `json:"items"`    // JSON array, element order is authoritative
	Revision int64           `json:"revision"` // 0 for a section that was never written
}

// Store is the Section Store contract consumed by the board and chat engines.
// Implementations must replace the whole array atomically.
type Store interface {
	// Read returns the full array and its revision.
	Read(ctx context.Context, key string) (Collection, error)

	// Write replaces the array unconditionally and returns the new revision.
	Write(ctx context.Context, key string, items json.RawMessage) (int64, error)

	// CompareAndWrite replaces the array only if the stored revision equals
	// baseRevision. Returns ErrStaleRevision otherwise.
	CompareAndWrite(ctx context.Context, key string, items json.RawMessage, baseRevision int64) (int64, error)
}

// IsStale reports whether err is a stale-revision rejection.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleRevision)
}

// validateItems rejects payloads that are not a JSON array.
func validateItems(items json.RawMessage) error {
	trimmed := bytes.TrimSpace(items)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("section items must be a JSON array")
	}
	if !json.Valid(trimmed) {
		return fmt.Errorf("section items are not valid JSON")
	}
	return nil
}
