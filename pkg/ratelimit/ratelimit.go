package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter 速率限制器接口
type Limiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	Remaining() int
}

// TokenBucket 令牌桶速率限制器（允许突发，按速率补充）
type TokenBucket struct {
	capacity   float64
	tokens     float64
	refillRate float64 // 每秒补充的令牌数
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewTokenBucket 创建令牌桶；refillRate <= 0 时按 1/s 处理
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	if refillRate <= 0 {
		refillRate = 1
	}
	tb := &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		now:        time.Now,
	}
	tb.lastRefill = tb.now()
	return tb
}

// refill 按经过的时间补充令牌（调用方持锁）
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// reserve 尝试取一个令牌，失败时返回需要等待的时间
func (tb *TokenBucket) reserve() (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true, 0
	}
	missing := 1 - tb.tokens
	return false, time.Duration(missing / tb.refillRate * float64(time.Second))
}

// Allow 检查是否允许请求
func (tb *TokenBucket) Allow() bool {
	ok, _ := tb.reserve()
	return ok
}

// Wait 等待直到允许请求
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		ok, wait := tb.reserve()
		if ok {
			return nil
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Remaining 获取剩余令牌数
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return int(tb.tokens)
}

// SlidingWindow 滑动窗口速率限制器
type SlidingWindow struct {
	limit      int
	windowSize time.Duration
	requests   []time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewSlidingWindow 创建滑动窗口速率限制器
func NewSlidingWindow(limit int, windowSize time.Duration) *SlidingWindow {
	if limit < 1 {
		limit = 1
	}
	return &SlidingWindow{
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// prune 移除窗口外的请求（调用方持锁）
func (sw *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-sw.windowSize)
	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	sw.requests = sw.requests[i:]
}

func (sw *SlidingWindow) reserve() (bool, time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.prune(now)
	if len(sw.requests) < sw.limit {
		sw.requests = append(sw.requests, now)
		return true, 0
	}
	wait := sw.requests[0].Add(sw.windowSize).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return false, wait
}

// Allow 检查是否允许请求
func (sw *SlidingWindow) Allow() bool {
	ok, _ := sw.reserve()
	return ok
}

// Wait 等待直到允许请求
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		ok, wait := sw.reserve()
		if ok {
			return nil
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Remaining 获取窗口内剩余请求数
func (sw *SlidingWindow) Remaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.prune(sw.now())
	return max(0, sw.limit-len(sw.requests))
}

// Manager 按 key 分类的速率限制管理器
//
// 未注册的 key 不限流
type Manager struct {
	limiters map[string]Limiter
	mu       sync.RWMutex
}

// NewManager 创建新的速率限制管理器
func NewManager() *Manager {
	return &Manager{limiters: make(map[string]Limiter)}
}

// Register 为 key 注册限流器，已存在时覆盖
func (m *Manager) Register(key string, limiter Limiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[key] = limiter
}

// Limiter 获取 key 对应的限流器
func (m *Manager) Limiter(key string) (Limiter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.limiters[key]
	return l, ok
}

// Wait 等待直到 key 允许请求
func (m *Manager) Wait(ctx context.Context, key string) error {
	l, ok := m.Limiter(key)
	if !ok {
		return ctx.Err()
	}
	return l.Wait(ctx)
}

// Allow 检查 key 是否允许请求
func (m *Manager) Allow(key string) bool {
	l, ok := m.Limiter(key)
	if !ok {
		return true
	}
	return l.Allow()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
