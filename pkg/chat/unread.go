package chat

// FirstUnread returns the index of the first message another member posted
// after lastRead, or -1 when there is none. A zero lastRead means the viewer
// has never opened the thread, in which case no divider is shown.
func FirstUnread(msgs []Message, lastRead int64, viewer string) int {
	if lastRead <= 0 {
		return -1
	}
	for i, m := range msgs {
		if m.ID > lastRead && m.Author != viewer && m.Persisted() {
			return i
		}
	}
	return -1
}

// LatestPersisted returns the id of the newest persisted message, or 0.
func LatestPersisted(msgs []Message) int64 {
	var latest int64
	for _, m := range msgs {
		if m.Persisted() && m.ID > latest {
			latest = m.ID
		}
	}
	return latest
}
