package shutdown

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "shutdown")

// Handler 关闭处理函数
type Handler func(ctx context.Context) error

type namedHandler struct {
	name string
	fn   Handler
}

// Manager 优雅关闭管理器
type Manager struct {
	mu        sync.Mutex
	callbacks []namedHandler
	done      bool
}

// NewManager 创建新的关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, namedHandler{name: name, fn: handler})
}

// Shutdown 并发执行所有关闭回调（阻塞调用，只执行一次）
//
// ctx 应带超时；返回未在超时前完成或返回错误的回调数量
func (m *Manager) Shutdown(ctx context.Context) int {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return 0
	}
	m.done = true
	callbacks := m.callbacks
	m.mu.Unlock()

	if len(callbacks) == 0 {
		log.Debug("没有注册的关闭回调")
		return 0
	}
	log.Infof("开始优雅关闭，共 %d 个回调", len(callbacks))

	results := make(chan error, len(callbacks))
	for _, cb := range callbacks {
		go func(h namedHandler) {
			err := h.fn(ctx)
			if err != nil {
				log.WithField("handler", h.name).Warnf("关闭回调失败: %v", err)
			}
			results <- err
		}(cb)
	}

	failed := 0
	for pending := len(callbacks); pending > 0; pending-- {
		select {
		case err := <-results:
			if err != nil {
				failed++
			}
		case <-ctx.Done():
			log.Warnf("关闭超时: %v", ctx.Err())
			return failed + pending
		}
	}
	log.Info("所有关闭回调已完成")
	return failed
}
