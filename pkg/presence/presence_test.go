package presence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const thread = "chat:team:alpha"

func setupTestService(t *testing.T) (*RedisService, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	svc := NewRedisService(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { svc.Close() })
	return svc, mr
}

// plainService hides SetMax so Receipts falls back to Get and Set.
type plainService struct {
	Service
}

func TestRedisService_Basics(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	_, ok, err := svc.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.Set(ctx, "k", "v", 0))
	val, ok, err := svc.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", val)

	for i := 0; i < 250; i++ {
		require.NoError(t, svc.Set(ctx, fmt.Sprintf("scan:%d", i), "1", 0))
	}
	keys, err := svc.Scan(ctx, "scan:*")
	require.NoError(t, err)
	assert.Len(t, keys, 250)

	require.NoError(t, svc.Delete(ctx, "k"))
	require.NoError(t, svc.Delete(ctx, "k"))
	_, ok, _ = svc.Get(ctx, "k")
	assert.False(t, ok)
}

func TestTyping_ExpiresAfterTTL(t *testing.T) {
	svc, mr := setupTestService(t)
	ctx := context.Background()
	typing := NewTyping(svc, "lab", 0, 0)

	assert.Equal(t, DefaultTypingTTL, typing.TTL())
	assert.True(t, typing.Report(ctx, thread, "Ana"))
	assert.True(t, typing.Report(ctx, thread, "Ben"))

	assert.Equal(t, []string{"Ben"}, typing.WhoIsTyping(ctx, thread, "Ana"))
	assert.Equal(t, []string{"Ana", "Ben"}, typing.WhoIsTyping(ctx, thread, "Cy"))
	assert.Empty(t, typing.WhoIsTyping(ctx, "chat:team:beta", "Cy"))

	mr.FastForward(DefaultTypingTTL + time.Second)
	assert.Empty(t, typing.WhoIsTyping(ctx, thread, "Cy"))
}

func TestTyping_Debounce(t *testing.T) {
	svc, mr := setupTestService(t)
	ctx := context.Background()
	typing := NewTyping(svc, "lab", 4*time.Second, time.Second)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	typing.now = func() time.Time { return now }

	assert.True(t, typing.Report(ctx, thread, "Ana"))
	assert.False(t, typing.Report(ctx, thread, "Ana"), "second report inside the window is dropped")
	assert.True(t, typing.Report(ctx, thread, "Ben"), "debounce is per member")
	assert.True(t, typing.Report(ctx, "chat:team:beta", "Ana"), "debounce is per thread")

	now = now.Add(time.Second)
	mr.FastForward(3 * time.Second)
	assert.True(t, typing.Report(ctx, thread, "Ana"), "refresh after the window")

	mr.FastForward(2 * time.Second)
	assert.Equal(t, []string{"Ana"}, typing.WhoIsTyping(ctx, thread, "Cy"), "refresh extended the expiry")
}

func TestReceipts_Monotonic(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	for name, s := range map[string]Service{"atomic": svc, "get-set": plainService{svc}} {
		t.Run(name, func(t *testing.T) {
			receipts := NewReceipts(s, "lab-"+name)

			_, ok := receipts.LastRead(ctx, thread, "Ana")
			assert.False(t, ok)

			got, err := receipts.MarkRead(ctx, thread, "Ana", 200)
			require.NoError(t, err)
			assert.Equal(t, int64(200), got)

			got, err = receipts.MarkRead(ctx, thread, "Ana", 150)
			require.NoError(t, err)
			assert.Equal(t, int64(200), got)

			last, ok := receipts.LastRead(ctx, thread, "Ana")
			assert.True(t, ok)
			assert.Equal(t, int64(200), last)

			_, err = receipts.MarkRead(ctx, thread, "Ana", 300)
			require.NoError(t, err)
			last, _ = receipts.LastRead(ctx, thread, "Ana")
			assert.Equal(t, int64(300), last)
		})
	}
}

func TestReceipts_SeenBy(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	receipts := NewReceipts(svc, "lab")

	_, err := receipts.MarkRead(ctx, thread, "Ana", 100)
	require.NoError(t, err)
	_, err = receipts.MarkRead(ctx, thread, "Ben", 50)
	require.NoError(t, err)
	_, err = receipts.MarkRead(ctx, thread, "Cy", 120)
	require.NoError(t, err)

	assert.Equal(t, []string{"Cy"}, receipts.SeenBy(ctx, thread, 100, "Ana"))
	assert.Equal(t, []string{"Ana", "Ben", "Cy"}, receipts.SeenBy(ctx, thread, 50, "Dee"))
	assert.Empty(t, receipts.SeenBy(ctx, thread, 500, "Dee"))
}

func TestUnavailableServiceDegrades(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	svc := NewRedisService(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer svc.Close()
	mr.Close()
	ctx := context.Background()

	typing := NewTyping(svc, "lab", 0, 0)
	receipts := NewReceipts(svc, "lab")

	assert.False(t, typing.Report(ctx, thread, "Ana"))
	assert.Nil(t, typing.WhoIsTyping(ctx, thread, "Ben"))

	_, ok := receipts.LastRead(ctx, thread, "Ana")
	assert.False(t, ok)
	assert.Nil(t, receipts.SeenBy(ctx, thread, 1, "Ana"))

	_, err := receipts.MarkRead(ctx, thread, "Ana", 10)
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "labdesk:lab:typing:chat:team:alpha:Ana", TypingKey("lab", thread, "Ana"))
	assert.Equal(t, "labdesk:lab:read:chat:team:alpha:Ana", ReceiptKey("lab", thread, "Ana"))
}
