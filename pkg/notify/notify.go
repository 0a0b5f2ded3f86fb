// Package notify defines the notification dispatch contract and a Redis
// Pub/Sub implementation with a per-user inbox channel.
//
// Delivery is best-effort and at-most-once. Nothing in the chat engine waits
// on or reacts to the outcome of a notification.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Notification tells a member they were mentioned.
type Notification struct {
	Thread    string `json:"thread"`     // Thread key, e.g. chat:team:alpha
	Excerpt   string `json:"excerpt"`    // Leading part of the message text
	Sender    string `json:"sender"`     // Author of the message
	MessageID int64  `json:"message_id"` // Message that carried the mention
	AtMs      int64  `json:"at_ms"`      // Unix milliseconds when dispatched
}

// Notifier delivers a notification to one member.
type Notifier interface {
	Notify(ctx context.Context, target string, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, target string, n Notification) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, target string, n Notification) error {
	return f(ctx, target, n)
}

// InboxChannel returns the Pub/Sub channel carrying a member's notifications.
// Pattern: labdesk:{workspace}:user:{name}:notifications
func InboxChannel(workspace, user string) string {
	return fmt.Sprintf("labdesk:%s:user:%s:notifications", workspace, user)
}

// RedisNotifier publishes notifications to each member's inbox channel.
type RedisNotifier struct {
	rdb       *redis.Client
	workspace string
}

// NewRedisNotifier creates a notifier for workspace.
func NewRedisNotifier(redisOpts *redis.Options, workspace string) (*RedisNotifier, error) {
	if workspace == "" {
		return nil, fmt.Errorf("workspace name cannot be empty")
	}
	return &RedisNotifier{rdb: redis.NewClient(redisOpts), workspace: workspace}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (r *RedisNotifier) Close() error {
	return r.rdb.Close()
}

// Notify publishes n on target's inbox channel.
func (r *RedisNotifier) Notify(ctx context.Context, target string, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := r.rdb.Publish(ctx, InboxChannel(r.workspace, target), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification to %s: %w", target, err)
	}
	return nil
}

// Inbox is an active subscription to one member's notifications.
// Caller must call Close() when done.
type Inbox struct {
	notifications <-chan *Notification
	errors        <-chan error
	cancel        func()
	once          sync.Once
}

// Notifications returns the channel of received notifications.
func (i *Inbox) Notifications() <-chan *Notification {
	return i.notifications
}

// Errors returns the channel of decode errors. Bad messages are skipped.
func (i *Inbox) Errors() <-chan error {
	return i.errors
}

// Close stops the subscription. Implements io.Closer. Safe to call multiple times.
func (i *Inbox) Close() error {
	i.once.Do(i.cancel)
	return nil
}

// SubscribeInbox subscribes to user's notifications.
func (r *RedisNotifier) SubscribeInbox(ctx context.Context, user string) (*Inbox, error) {
	pubsub := r.rdb.Subscribe(ctx, InboxChannel(r.workspace, user))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to inbox: %w", err)
	}

	notifications := make(chan *Notification, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(notifications)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var n Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal notification: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case notifications <- &n:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Inbox{notifications: notifications, errors: errorsChan, cancel: cancelFunc}, nil
}
