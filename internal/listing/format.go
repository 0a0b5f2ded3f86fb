// Package listing renders board sections and chat threads for the CLI, as
// aligned tables or as line-delimited JSON.
package listing

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dyluth/labdesk/pkg/board"
	"github.com/dyluth/labdesk/pkg/chat"
)

// OutputFormat selects how listings are written.
type OutputFormat string

const (
	// OutputFormatDefault is a human-readable table.
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL is one JSON object per line.
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSONL:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown format: %s (valid: default, jsonl)", s)
	}
}

// FormatBoard writes a section as one table per column, in column order.
// pending may be nil. Returns the number of items written.
func FormatBoard(w io.Writer, section string, columns []string, items []board.Item, pending func(id int64) bool) int {
	if len(items) == 0 {
		fmt.Fprintf(w, "No items in section '%s'\n", section)
		return 0
	}

	fmt.Fprintf(w, "Section '%s':\n", section)

	for _, col := range columns {
		colItems := board.Column(items, col, board.ItemAccessor)
		fmt.Fprintf(w, "\n%s (%d)\n", strings.ToUpper(col), len(colItems))
		if len(colItems) == 0 {
			continue
		}

		fmt.Fprintf(w, "  %-15s %-32s %-18s %-14s %s\n", "ID", "TITLE", "ASSIGNEES", "DEADLINE", "PROGRESS")
		for _, it := range colItems {
			base, _ := board.BaseOf(it)
			id := fmt.Sprintf("%d", it.ItemID())
			if pending != nil && pending(it.ItemID()) {
				id += "*"
			}
			fmt.Fprintf(w, "  %-15s %-32s %-18s %-14s %s\n",
				id,
				truncate(base.Title, 32),
				truncate(dashIfEmpty(strings.Join(base.Assignees, ",")), 18),
				formatDeadline(base.Deadline),
				formatProgress(base.Progress),
			)
		}
	}

	countMsg := "item"
	if len(items) != 1 {
		countMsg = "items"
	}
	fmt.Fprintf(w, "\n%d %s\n", len(items), countMsg)
	return len(items)
}

// ThreadView carries the per-viewer decorations of a thread listing.
type ThreadView struct {
	FirstUnread int                             // index of the unread divider, -1 for none
	Typing      []string                        // members currently typing
	SeenBy      func(msg chat.Message) []string // may be nil
	Now         func() time.Time                // defaults to time.Now
}

// FormatThread writes a chat thread in display order. Returns the number of
// messages written.
func FormatThread(w io.Writer, thread string, msgs []chat.Message, view ThreadView) int {
	now := time.Now
	if view.Now != nil {
		now = view.Now
	}

	if len(msgs) == 0 {
		fmt.Fprintf(w, "No messages in %s\n", thread)
	} else {
		fmt.Fprintf(w, "%s:\n\n", thread)
	}

	for i, m := range msgs {
		if i == view.FirstUnread {
			fmt.Fprintf(w, "──── new messages ────\n")
		}
		fmt.Fprintf(w, "%d  %s · %s%s\n",
			m.ID,
			m.Author,
			humanize.RelTime(m.Date, now(), "ago", "from now"),
			formatState(m),
		)
		if m.ReplyTo != nil {
			fmt.Fprintf(w, "    ↪ %s: %s\n", m.ReplyTo.Author, truncate(firstLine(m.ReplyTo.Text), 60))
		}
		switch {
		case m.Deleted:
			fmt.Fprintf(w, "    (message deleted)\n")
		default:
			if m.Text != "" {
				for _, line := range strings.Split(m.Text, "\n") {
					fmt.Fprintf(w, "    %s\n", line)
				}
			}
			if m.ImageURL != "" {
				fmt.Fprintf(w, "    [image] %s\n", m.ImageURL)
			}
		}
		if r := formatReactions(m.Reactions); r != "" {
			fmt.Fprintf(w, "    %s\n", r)
		}
		if view.SeenBy != nil {
			if seen := view.SeenBy(m); len(seen) > 0 {
				fmt.Fprintf(w, "    seen by %s\n", strings.Join(seen, ", "))
			}
		}
	}

	if len(view.Typing) > 0 {
		verb := "is"
		if len(view.Typing) > 1 {
			verb = "are"
		}
		fmt.Fprintf(w, "\n%s %s typing…\n", strings.Join(view.Typing, ", "), verb)
	}
	return len(msgs)
}

// FormatJSONL writes values as line-delimited JSON.
func FormatJSONL[T any](w io.Writer, values []T) error {
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// formatDeadline shows a deadline relative to now, or "-".
func formatDeadline(d *time.Time) string {
	if d == nil {
		return "-"
	}
	return humanize.Time(*d)
}

// formatProgress shows a percentage, or "-" for zero.
func formatProgress(p int) string {
	if p <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d%%", p)
}

func formatState(m chat.Message) string {
	switch {
	case m.Failed:
		return "  ✗ failed (retry or discard)"
	case m.Sending:
		return "  … sending"
	case m.Edited && !m.Deleted:
		return "  (edited)"
	default:
		return ""
	}
}

func formatReactions(reactions map[string][]string) string {
	if len(reactions) == 0 {
		return ""
	}
	emojis := make([]string, 0, len(reactions))
	for e := range reactions {
		emojis = append(emojis, e)
	}
	sort.Strings(emojis)

	parts := make([]string, 0, len(emojis))
	for _, e := range emojis {
		parts = append(parts, fmt.Sprintf("%s %d", e, len(reactions[e])))
	}
	return strings.Join(parts, "  ")
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
