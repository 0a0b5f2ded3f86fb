package board

// Drop is a target position: a column and an index within that column.
// Index 0 means before the first item; an index equal to the column length
// means append.
type Drop struct {
	Column string `json:"column"`
	Index  int    `json:"index"`
}

// Slot is the rendered geometry of one item in a column, in visual order.
type Slot struct {
	ID     int64
	Top    float64
	Height float64
}

// DropTarget computes where a pointer at pointerY would insert into column.
// The index is the boundary between the adjacent slots whose vertical
// midpoints straddle the pointer. The dragged item's own slot is skipped so
// the index is relative to the column without it, which is what Reorder
// expects.
func DropTarget(pointerY float64, column string, slots []Slot, draggedID int64) Drop {
	index := 0
	for _, s := range slots {
		if s.ID == draggedID {
			continue
		}
		if pointerY <= s.Top+s.Height/2 {
			break
		}
		index++
	}
	return Drop{Column: column, Index: index}
}

// Accessor tells Reorder how to read and rewrite the fields it needs.
type Accessor[T any] struct {
	ID         func(T) int64
	StatusOf   func(T) string
	WithStatus func(T, string) T
}

// ItemAccessor is the Accessor for the Item interface.
var ItemAccessor = Accessor[Item]{
	ID:         func(it Item) int64 { return it.ItemID() },
	StatusOf:   func(it Item) string { return it.ItemStatus() },
	WithStatus: func(it Item, s string) Item { return it.WithStatus(s) },
}

// Reorder returns a new full list with the dragged item moved to target.
//
// The dragged item is removed, the target column is computed over the
// remaining items, and the item is re-inserted (with its status rewritten)
// before the item currently at target.Index in that column, or just after
// the column's last item when appending. An empty target column appends to
// the end of the list. Every other item keeps its relative order.
//
// Reorder never fails. If draggedID is not in list an unchanged copy is
// returned. Out-of-range indexes are clamped.
func Reorder[T any](list []T, draggedID int64, target Drop, acc Accessor[T]) []T {
	pos := -1
	for i, it := range list {
		if acc.ID(it) == draggedID {
			pos = i
			break
		}
	}

	out := make([]T, 0, len(list))
	if pos < 0 {
		return append(out, list...)
	}
	dragged := list[pos]

	others := make([]T, 0, len(list)-1)
	others = append(others, list[:pos]...)
	others = append(others, list[pos+1:]...)

	// Global positions (in others) of the target column's items.
	var columnPos []int
	for i, it := range others {
		if acc.StatusOf(it) == target.Column {
			columnPos = append(columnPos, i)
		}
	}

	index := target.Index
	if index < 0 {
		index = 0
	}

	var anchor int
	switch {
	case index < len(columnPos):
		anchor = columnPos[index]
	case len(columnPos) > 0:
		anchor = columnPos[len(columnPos)-1] + 1
	default:
		anchor = len(others)
	}

	out = append(out, others[:anchor]...)
	out = append(out, acc.WithStatus(dragged, target.Column))
	out = append(out, others[anchor:]...)
	return out
}

// Locate returns the column and in-column index of the item with id.
func Locate[T any](list []T, id int64, acc Accessor[T]) (Drop, bool) {
	var status string
	found := false
	for _, it := range list {
		if acc.ID(it) == id {
			status = acc.StatusOf(it)
			found = true
			break
		}
	}
	if !found {
		return Drop{}, false
	}

	index := 0
	for _, it := range list {
		if acc.ID(it) == id {
			break
		}
		if acc.StatusOf(it) == status {
			index++
		}
	}
	return Drop{Column: status, Index: index}, true
}

// IsNoop reports whether dropping the item with id at target would leave it
// where it already is. Reorder is not an identity for such drops (it may
// shift the item past items of other columns), so callers check first.
func IsNoop[T any](list []T, id int64, target Drop, acc Accessor[T]) bool {
	current, ok := Locate(list, id, acc)
	if !ok || current.Column != target.Column {
		return false
	}

	// Clamp against the column as Reorder sees it, without the dragged item.
	columnLen := len(Column(list, target.Column, acc)) - 1
	index := target.Index
	if index < 0 {
		index = 0
	}
	if index > columnLen {
		index = columnLen
	}
	return index == current.Index
}

// Column returns the items whose status is column, in list order.
func Column[T any](list []T, column string, acc Accessor[T]) []T {
	var out []T
	for _, it := range list {
		if acc.StatusOf(it) == column {
			out = append(out, it)
		}
	}
	return out
}
