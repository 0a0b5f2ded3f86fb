// Package board implements the ordered, column-partitioned work trackers
// (to-dos, analyses, patents, papers, experiments).
//
// # Ordering model
//
// A section is a single ordered array of items. Each item carries exactly
// one status, and a column is derived: it is the subsequence of the array
// whose items share that status, in array order. Nothing stores column
// membership or intra-column position separately.
//
// # Moving items
//
// Reorder is the only mutation primitive for position. It removes the
// dragged item, finds the anchor in the remaining array that corresponds to
// the requested column index, and re-inserts the item there with its new
// status. Every other item keeps its relative order, both within its own
// column and globally. Reorder is pure.
//
// Board wraps one section with optimistic local state: mutations apply
// locally first, the affected item is marked in a pending.Tracker while the
// full array is written to the Section Store, and a failed write leaves the
// local state stale until Refetch.
package board
