package presence

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dyluth/labdesk/internal/metrics"
)

const (
	// DefaultTypingTTL is how long a typing signal lives without a refresh.
	DefaultTypingTTL = 4 * time.Second

	// DefaultTypingDebounce is the minimum gap between two reports from
	// the same member in the same thread.
	DefaultTypingDebounce = time.Second
)

// Typing reports and reads typing signals. There is no stop signal: a
// member stops showing as typing once their key expires.
type Typing struct {
	svc       Service
	workspace string
	ttl       time.Duration
	debounce  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewTyping creates a typing client. Zero durations use the defaults.
func NewTyping(svc Service, workspace string, ttl, debounce time.Duration) *Typing {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	if debounce <= 0 {
		debounce = DefaultTypingDebounce
	}
	return &Typing{
		svc:       svc,
		workspace: workspace,
		ttl:       ttl,
		debounce:  debounce,
		now:       time.Now,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// TTL returns the signal lifetime.
func (t *Typing) TTL() time.Duration { return t.ttl }

// Report refreshes user's typing signal in thread. Calls closer together
// than the debounce interval are dropped. It returns whether a signal was
// written; service errors are logged and reported as false.
func (t *Typing) Report(ctx context.Context, thread, user string) bool {
	if !t.limiter(thread, user).AllowN(t.now(), 1) {
		metrics.TypingReports.WithLabelValues(metrics.ResultDebounced).Inc()
		return false
	}

	stamp := strconv.FormatInt(t.now().UnixMilli(), 10)
	if err := t.svc.Set(ctx, TypingKey(t.workspace, thread, user), stamp, t.ttl); err != nil {
		metrics.TypingReports.WithLabelValues(metrics.ResultError).Inc()
		logEvent("typing_report_failed", map[string]interface{}{
			"level":  "warn",
			"thread": thread,
			"user":   user,
			"error":  err.Error(),
		})
		return false
	}
	metrics.TypingReports.WithLabelValues(metrics.ResultOK).Inc()
	return true
}

// WhoIsTyping returns the members with a live signal in thread, sorted,
// excluding the caller. An unavailable service reads as nobody typing.
func (t *Typing) WhoIsTyping(ctx context.Context, thread, excluding string) []string {
	prefix := typingPrefix(t.workspace, thread)
	keys, err := t.svc.Scan(ctx, prefix+"*")
	if err != nil {
		logEvent("typing_scan_failed", map[string]interface{}{
			"level":  "warn",
			"thread": thread,
			"error":  err.Error(),
		})
		return nil
	}

	var users []string
	for _, k := range keys {
		user := strings.TrimPrefix(k, prefix)
		if user == "" || user == excluding {
			continue
		}
		users = append(users, user)
	}
	sort.Strings(users)
	return users
}

func (t *Typing) limiter(thread, user string) *rate.Limiter {
	key := thread + "\x00" + user
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(t.debounce), 1)
		t.limiters[key] = l
	}
	return l
}

// logEvent logs a structured event in JSON format.
func logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if _, ok := data["level"]; !ok {
		data["level"] = "info"
	}
	data["component"] = "presence"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Presence] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
