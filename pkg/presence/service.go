// Package presence holds the ephemeral, expiry-bounded signals shown next
// to a chat thread: who is typing and how far each member has read.
//
// Every signal is best-effort. When the backing service is unavailable the
// readers report nobody typing and no receipts rather than an error.
package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Service is the key/value contract presence signals are stored in.
type Service interface {
	// Set stores value under key. A zero ttl stores it without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Scan returns every live key matching the glob pattern.
	Scan(ctx context.Context, pattern string) ([]string, error)

	// Get returns the value under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// maxSetter is implemented by services that can raise a counter atomically.
type maxSetter interface {
	SetMax(ctx context.Context, key string, value int64) (int64, error)
}

// scanBatch is the COUNT hint passed to each SCAN call.
const scanBatch = 100

// setMaxScript stores ARGV[1] only when it exceeds the current value and
// returns the value left in place.
var setMaxScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local new = tonumber(ARGV[1])
if new > cur then
  redis.call('SET', KEYS[1], ARGV[1])
  return new
end
return cur
`)

// RedisService implements Service on Redis.
type RedisService struct {
	rdb *redis.Client
}

// NewRedisService creates a presence service client.
func NewRedisService(redisOpts *redis.Options) *RedisService {
	return &RedisService{rdb: redis.NewClient(redisOpts)}
}

// Close closes the Redis connection. Implements io.Closer.
func (s *RedisService) Close() error {
	return s.rdb.Close()
}

// Set implements Service.
func (s *RedisService) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set presence key: %w", err)
	}
	return nil
}

// Scan implements Service with a SCAN cursor loop, so it never blocks Redis
// the way KEYS would.
func (s *RedisService) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan presence keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// Get implements Service.
func (s *RedisService) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get presence key: %w", err)
	}
	return val, true, nil
}

// Delete implements Service.
func (s *RedisService) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete presence key: %w", err)
	}
	return nil
}

// SetMax raises the integer under key to value and returns the stored value.
func (s *RedisService) SetMax(ctx context.Context, key string, value int64) (int64, error) {
	res, err := setMaxScript.Run(ctx, s.rdb, []string{key}, strconv.FormatInt(value, 10)).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to update presence counter: %w", err)
	}
	return res, nil
}
