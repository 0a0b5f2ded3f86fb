// Package section implements the Section Store: one ordered JSON array of
// items per named section, read whole and replaced whole.
//
// # Overview
//
// Every shared list in a labdesk workspace (to-dos, analyses, patents, chat
// threads) is persisted as a single array. There is no per-item API. A read
// returns the full array together with its revision; a write replaces the
// full array atomically and bumps the revision.
//
// Two write modes are offered:
//
//   - Write replaces unconditionally. Concurrent editors race and whichever
//     write lands last determines the stored contents.
//   - CompareAndWrite replaces only if the stored revision still equals the
//     caller's base revision, returning ErrStaleRevision otherwise.
//
// # Backends
//
// RedisStore keeps each section in a Redis string with a companion revision
// counter and publishes a ChangeEvent after every successful write so other
// clients can refetch. SQLiteStore keeps sections in a single table for
// single-machine use and does not publish events.
//
// # Redis Schema
//
// Section items:    labdesk:{workspace}:section:{key}
// Section revision: labdesk:{workspace}:section:{key}:rev
// Change events:    labdesk:{workspace}:section_events
package section
