package presence

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Receipts stores the newest message id each member has read per thread.
type Receipts struct {
	svc       Service
	workspace string
}

// NewReceipts creates a read-receipt client.
func NewReceipts(svc Service, workspace string) *Receipts {
	return &Receipts{svc: svc, workspace: workspace}
}

// MarkRead records that user has read thread up to messageID. The stored
// value never decreases. It returns the value left in place.
func (r *Receipts) MarkRead(ctx context.Context, thread, user string, messageID int64) (int64, error) {
	key := ReceiptKey(r.workspace, thread, user)

	if ms, ok := r.svc.(maxSetter); ok {
		return ms.SetMax(ctx, key, messageID)
	}

	current, ok := r.LastRead(ctx, thread, user)
	if ok && current >= messageID {
		return current, nil
	}
	if err := r.svc.Set(ctx, key, strconv.FormatInt(messageID, 10), 0); err != nil {
		return 0, err
	}
	return messageID, nil
}

// LastRead returns the newest message id user has read in thread. The
// second result is false when there is no receipt or the service is
// unavailable.
func (r *Receipts) LastRead(ctx context.Context, thread, user string) (int64, bool) {
	val, ok, err := r.svc.Get(ctx, ReceiptKey(r.workspace, thread, user))
	if err != nil {
		logEvent("receipt_read_failed", map[string]interface{}{
			"level":  "warn",
			"thread": thread,
			"user":   user,
			"error":  err.Error(),
		})
		return 0, false
	}
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		logEvent("receipt_invalid", map[string]interface{}{
			"level":  "warn",
			"thread": thread,
			"user":   user,
			"error":  fmt.Sprintf("invalid receipt %q", val),
		})
		return 0, false
	}
	return id, true
}

// SeenBy returns the members other than author whose receipt in thread
// covers messageID, sorted.
func (r *Receipts) SeenBy(ctx context.Context, thread string, messageID int64, author string) []string {
	prefix := receiptPrefix(r.workspace, thread)
	keys, err := r.svc.Scan(ctx, prefix+"*")
	if err != nil {
		logEvent("receipt_scan_failed", map[string]interface{}{
			"level":  "warn",
			"thread": thread,
			"error":  err.Error(),
		})
		return nil
	}

	var seen []string
	for _, k := range keys {
		user := strings.TrimPrefix(k, prefix)
		if user == "" || user == author {
			continue
		}
		if id, ok := r.LastRead(ctx, thread, user); ok && id >= messageID {
			seen = append(seen, user)
		}
	}
	sort.Strings(seen)
	return seen
}
