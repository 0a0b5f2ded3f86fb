package board

import "fmt"

// Columns is the fixed, ordered status taxonomy of a section.
type Columns []string

// Contains reports whether status is one of the columns.
func (c Columns) Contains(status string) bool {
	for _, col := range c {
		if col == status {
			return true
		}
	}
	return false
}

// Validate returns ErrUnknownColumn if status is not a column.
func (c Columns) Validate(status string) error {
	if !c.Contains(status) {
		return fmt.Errorf("%w: %q (expected one of %v)", ErrUnknownColumn, status, []string(c))
	}
	return nil
}

// Default is the first column, used for new items without a status.
func (c Columns) Default() string {
	if len(c) == 0 {
		return ""
	}
	return c[0]
}
