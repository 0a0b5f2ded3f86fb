// Package watch streams section changes and mention notifications to a
// terminal or as line-delimited JSON.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/labdesk/pkg/notify"
	"github.com/dyluth/labdesk/pkg/section"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	// OutputFormatDefault is human-readable text.
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is one JSON object per line.
	OutputFormatJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown format: %s", s)
	}
}

var errPollTimeout = errors.New("timeout waiting for section change")

// pollInterval is how often PollForRevision re-reads a section.
const pollInterval = 200 * time.Millisecond

// PollForRevision polls key until its revision moves past after and returns
// the new collection. Used with backends that do not publish change events.
func PollForRevision(ctx context.Context, store section.Store, key string, after int64, timeout time.Duration) (section.Collection, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return section.Collection{}, ctx.Err()

		case <-timeoutCh:
			return section.Collection{}, fmt.Errorf("%w: section %s did not change within %v", errPollTimeout, key, timeout)

		case <-ticker.C:
			coll, err := store.Read(ctx, key)
			if err != nil {
				return section.Collection{}, fmt.Errorf("failed to read section %s: %w", key, err)
			}
			if coll.Revision > after {
				return coll, nil
			}
		}
	}
}

// pollTimeout bounds each PollForRevision call made by PollChanges.
var pollTimeout = time.Minute

// PollChanges writes a change event each time key's revision moves, until ctx
// is done. Events carry no client ID since polling cannot see the writer.
func PollChanges(ctx context.Context, store section.Store, key string, format OutputFormat, w io.Writer) error {
	coll, err := store.Read(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read section %s: %w", key, err)
	}
	rev := coll.Revision

	for {
		coll, err := PollForRevision(ctx, store, key, rev, pollTimeout)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			// Timeouts just restart the wait; read errors are reported and retried.
			if !errors.Is(err, errPollTimeout) {
				fmt.Fprintf(w, "⚠️  %v\n", err)
			}
			continue
		}
		rev = coll.Revision

		event := &section.ChangeEvent{Section: key, Revision: rev, AtMs: time.Now().UnixMilli()}
		if err := writeChange(w, event, format); err != nil {
			return err
		}
	}
}

// StreamChanges writes every change event from sub until ctx is done or the
// subscription closes.
func StreamChanges(ctx context.Context, sub *section.Subscription, format OutputFormat, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := writeChange(w, event, format); err != nil {
				return err
			}
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "⚠️  %v\n", err)
		}
	}
}

// StreamInbox writes every notification from inbox until ctx is done or the
// inbox closes.
func StreamInbox(ctx context.Context, inbox *notify.Inbox, format OutputFormat, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-inbox.Notifications():
			if !ok {
				return nil
			}
			if err := writeNotification(w, n, format); err != nil {
				return err
			}
		case err, ok := <-inbox.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "⚠️  %v\n", err)
		}
	}
}

func writeChange(w io.Writer, e *section.ChangeEvent, format OutputFormat) error {
	if format == OutputFormatJSON {
		return writeJSONLine(w, struct {
			Event string `json:"event"`
			*section.ChangeEvent
		}{"section_changed", e})
	}
	by := ""
	if e.ClientID != "" {
		by = " by client " + shortID(e.ClientID)
	}
	_, err := fmt.Fprintf(w, "[%s] ✏️  %s changed (rev %d)%s\n",
		formatTime(e.AtMs), e.Section, e.Revision, by)
	return err
}

func writeNotification(w io.Writer, n *notify.Notification, format OutputFormat) error {
	if format == OutputFormatJSON {
		return writeJSONLine(w, struct {
			Event string `json:"event"`
			*notify.Notification
		}{"mention", n})
	}
	_, err := fmt.Fprintf(w, "[%s] 🔔 %s mentioned you in %s: %s\n",
		formatTime(n.AtMs), n.Sender, n.Thread, n.Excerpt)
	return err
}

func writeJSONLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// formatTime renders Unix milliseconds as local HH:MM:SS.
func formatTime(ms int64) string {
	if ms == 0 {
		return "--:--:--"
	}
	return time.UnixMilli(ms).Format("15:04:05")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
