package mention

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/dyluth/labdesk/internal/metrics"
	"github.com/dyluth/labdesk/pkg/notify"
	"github.com/dyluth/labdesk/pkg/roster"
)

// DefaultTimeout bounds a single notification delivery.
const DefaultTimeout = 5 * time.Second

// Message is the persisted message a dispatch is about.
type Message struct {
	Thread string
	ID     int64
	Sender string
	Text   string
}

// Dispatcher sends one notification per mentioned member, excluding the
// sender. Deliveries run in the background and failures are only logged;
// callers never wait on them.
type Dispatcher struct {
	notifier notify.Notifier
	roster   *roster.Roster
	timeout  time.Duration
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher that resolves names against r.
func NewDispatcher(n notify.Notifier, r *roster.Roster) *Dispatcher {
	return &Dispatcher{notifier: n, roster: r, timeout: DefaultTimeout, now: time.Now}
}

// Targets returns who would be notified for msg.
func (d *Dispatcher) Targets(msg Message) []string {
	mentioned := Extract(msg.Text, d.roster.Names())
	out := mentioned[:0]
	for _, name := range mentioned {
		if name != msg.Sender {
			out = append(out, name)
		}
	}
	return out
}

// Dispatch starts delivery for every target of msg and returns the targets
// without waiting for delivery.
func (d *Dispatcher) Dispatch(msg Message) []string {
	targets := d.Targets(msg)
	if len(targets) == 0 {
		return nil
	}

	n := notify.Notification{
		Thread:    msg.Thread,
		Excerpt:   Excerpt(msg.Text, ExcerptRunes),
		Sender:    msg.Sender,
		MessageID: msg.ID,
		AtMs:      d.now().UnixMilli(),
	}
	for _, target := range targets {
		d.wg.Add(1)
		go d.deliver(target, n)
	}
	return targets
}

// Wait blocks until every started delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(target string, n notify.Notification) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, target, n); err != nil {
		metrics.Notifications.WithLabelValues(metrics.ResultError).Inc()
		logEvent("notify_failed", map[string]interface{}{
			"level":      "warn",
			"target":     target,
			"thread":     n.Thread,
			"message_id": n.MessageID,
			"error":      err.Error(),
		})
		return
	}
	metrics.Notifications.WithLabelValues(metrics.ResultOK).Inc()
}

// logEvent logs a structured event in JSON format.
func logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if _, ok := data["level"]; !ok {
		data["level"] = "info"
	}
	data["component"] = "mention"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Mention] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
