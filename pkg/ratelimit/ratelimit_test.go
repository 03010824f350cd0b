package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucket_BurstThenRefill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	tb := NewTokenBucket(3, 2)
	tb.now = clock.now
	tb.lastRefill = clock.t

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	clock.advance(500 * time.Millisecond)
	assert.True(t, tb.Allow(), "0.5s * 2/s = 1 个令牌")
	assert.False(t, tb.Allow())

	clock.advance(10 * time.Second)
	assert.Equal(t, 3, tb.Remaining(), "不超过容量")
}

func TestTokenBucket_WaitHonorsContext(t *testing.T) {
	tb := NewTokenBucket(1, 0.1)
	require.NoError(t, tb.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

func TestSlidingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	sw := NewSlidingWindow(2, time.Second)
	sw.now = clock.now

	assert.True(t, sw.Allow())
	clock.advance(300 * time.Millisecond)
	assert.True(t, sw.Allow())
	assert.False(t, sw.Allow())
	assert.Equal(t, 0, sw.Remaining())

	clock.advance(700 * time.Millisecond)
	assert.Equal(t, 1, sw.Remaining(), "第一条已滑出窗口")
	assert.True(t, sw.Allow())
}

func TestSlidingWindow_WaitUnblocks(t *testing.T) {
	sw := NewSlidingWindow(1, 30*time.Millisecond)
	require.NoError(t, sw.Wait(context.Background()))

	start := time.Now()
	require.NoError(t, sw.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestManager(t *testing.T) {
	m := NewManager()
	m.Register("deribit:matching", NewSlidingWindow(1, time.Hour))

	assert.True(t, m.Allow("deribit:matching"))
	assert.False(t, m.Allow("deribit:matching"))
	assert.True(t, m.Allow("unknown"), "未注册的 key 不限流")

	require.NoError(t, m.Wait(context.Background(), "unknown"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, m.Wait(ctx, "deribit:matching"))

	_, ok := m.Limiter("deribit:non_matching")
	assert.False(t, ok)
}
