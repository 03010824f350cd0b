package syncgroup

import (
	"sync"
	"time"
)

// SyncGroup 封装 sync.WaitGroup，统一管理后台 goroutine 的 Add/Done
//
// Go 立即启动函数；Wait/WaitTimeout 等待所有已启动的函数返回
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	running int
}

// NewSyncGroup 创建新的 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Go 启动一个 goroutine
func (g *SyncGroup) Go(fn func()) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	g.running++
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer func() {
			g.mu.Lock()
			g.running--
			g.mu.Unlock()
			g.wg.Done()
		}()
		fn()
	}()
}

// Running 当前仍在运行的 goroutine 数量
func (g *SyncGroup) Running() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Wait 等待所有 goroutine 完成
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}

// WaitTimeout 最多等待 d，全部完成返回 true
func (g *SyncGroup) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
