// Package chat implements the optimistic chat thread engine.
//
// A thread is persisted as one section in the Section Store holding the
// ordered array of persisted messages. Messages are shown locally before
// their write completes. A failed send stays visible with a failed mark
// until the author retries or discards it. Unsent messages are never
// written to the store and survive refreshes at the tail of the thread.
//
// Editing is limited to the author. Soft delete is allowed for the author
// and for roster admins, and keeps the message slot so replies pointing at
// it still resolve. Reactions are a per-emoji set of members that a member
// toggles in and out.
package chat
