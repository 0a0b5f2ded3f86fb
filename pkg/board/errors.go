package board

import (
	"errors"
	"fmt"
)

// ErrItemNotFound is returned when an operation names an item that is not
// in the local collection.
var ErrItemNotFound = errors.New("item not found")

// ErrUnknownColumn is returned when a status is not one of the section's columns.
var ErrUnknownColumn = errors.New("unknown column")

// PersistError reports that a section write failed after the local state was
// already changed. The local collection is stale until Refetch.
type PersistError struct {
	Section string
	ItemID  int64
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist section %s (item %d): %v", e.Section, e.ItemID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
