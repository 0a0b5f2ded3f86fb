package section

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore provides workspace-scoped section storage in Redis.
// All keys and channels are automatically namespaced with the workspace name.
// The store is thread-safe and can be used concurrently from multiple goroutines.
type RedisStore struct {
	rdb       *redis.Client
	workspace string
	clientID  string
}

// NewRedisStore creates a section store for the specified workspace.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - workspace: workspace identifier (must not be empty)
//
// Every store gets a fresh client ID which is stamped on the change events it
// publishes, so subscribers can recognise their own writes.
func NewRedisStore(redisOpts *redis.Options, workspace string) (*RedisStore, error) {
	if workspace == "" {
		return nil, fmt.Errorf("workspace name cannot be empty")
	}

	return &RedisStore{
		rdb:       redis.NewClient(redisOpts),
		workspace: workspace,
		clientID:  uuid.New().String(),
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// ClientID returns the identifier stamped on this store's change events.
func (s *RedisStore) ClientID() string {
	return s.clientID
}

// Workspace returns the workspace this store is scoped to.
func (s *RedisStore) Workspace() string {
	return s.workspace
}

// Read returns the section's array and revision.
// A section that was never written reads as an empty array at revision 0.
func (s *RedisStore) Read(ctx context.Context, key string) (Collection, error) {
	if err := ValidateKey(key); err != nil {
		return Collection{}, err
	}

	values, err := s.rdb.MGet(ctx, SectionKey(s.workspace, key), RevisionKey(s.workspace, key)).Result()
	if err != nil {
		return Collection{}, fmt.Errorf("failed to read section from Redis: %w", err)
	}

	coll := Collection{Items: emptyItems}
	if raw, ok := values[0].(string); ok && raw != "" {
		coll.Items = json.RawMessage(raw)
	}
	if rawRev, ok := values[1].(string); ok {
		rev, err := strconv.ParseInt(rawRev, 10, 64)
		if err != nil {
			return Collection{}, fmt.Errorf("invalid revision for section %s: %w", key, err)
		}
		coll.Revision = rev
	}

	return coll, nil
}

// Write replaces the section unconditionally and publishes a change event.
// The items and the revision bump are applied in one MULTI/EXEC.
func (s *RedisStore) Write(ctx context.Context, key string, items json.RawMessage) (int64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if err := validateItems(items); err != nil {
		return 0, err
	}

	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, SectionKey(s.workspace, key), string(items), 0)
		incr = pipe.Incr(ctx, RevisionKey(s.workspace, key))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write section to Redis: %w", err)
	}

	rev := incr.Val()
	s.publish(ctx, key, rev)
	return rev, nil
}

// CompareAndWrite replaces the section only if its revision still equals
// baseRevision. The revision key is WATCHed so a concurrent writer landing
// between the check and the EXEC also yields ErrStaleRevision.
func (s *RedisStore) CompareAndWrite(ctx context.Context, key string, items json.RawMessage, baseRevision int64) (int64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if err := validateItems(items); err != nil {
		return 0, err
	}

	revKey := RevisionKey(s.workspace, key)
	var incr *redis.IntCmd

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, revKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != baseRevision {
			return ErrStaleRevision
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, SectionKey(s.workspace, key), string(items), 0)
			incr = pipe.Incr(ctx, revKey)
			return nil
		})
		return err
	}, revKey)

	switch {
	case err == nil:
	case errors.Is(err, ErrStaleRevision), errors.Is(err, redis.TxFailedErr):
		return 0, ErrStaleRevision
	default:
		return 0, fmt.Errorf("failed to write section to Redis: %w", err)
	}

	rev := incr.Val()
	s.publish(ctx, key, rev)
	return rev, nil
}

// publish announces a completed write. The write has already landed, so a
// publish failure is logged rather than returned.
func (s *RedisStore) publish(ctx context.Context, key string, revision int64) {
	event := ChangeEvent{
		ID:       uuid.New().String(),
		Section:  key,
		Revision: revision,
		ClientID: s.clientID,
		AtMs:     time.Now().UnixMilli(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[SectionStore] Failed to marshal change event for %s: %v", key, err)
		return
	}

	if err := s.rdb.Publish(ctx, EventsChannel(s.workspace), payload).Err(); err != nil {
		log.Printf("[SectionStore] Failed to publish change event for %s: %v", key, err)
	}
}

// Subscribe subscribes to section change events for this workspace.
// Caller must call subscription.Close() when done. Context cancellation also
// stops the subscription.
//
// Events are delivered on a buffered channel (size 10). Redis Pub/Sub is
// at-most-once, so a slow subscriber may miss events and should refetch.
func (s *RedisStore) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := s.rdb.Subscribe(ctx, EventsChannel(s.workspace))

	// Wait for the subscription to be confirmed so no event published after
	// Subscribe returns is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to section events: %w", err)
	}

	return newSubscription(ctx, pubsub), nil
}
