package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/betbot/gobet-deribit/deribit/types"
)

// State 单个操作的生命周期状态
type State int32

const (
	StateIdle State = iota
	StateAwaitingTokenCheck
	StateSending
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingTokenCheck:
		return "awaiting_token_check"
	case StateSending:
		return "sending"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Future 异步操作的结果
//
// 每个 Future 只会被完成一次；之后的完成尝试被忽略
type Future struct {
	requestID string
	op        types.Operation

	state atomic.Int32
	once  sync.Once
	done  chan struct{}

	outcome *types.Outcome
	err     error
}

func newFuture(requestID string, op types.Operation) *Future {
	return &Future{
		requestID: requestID,
		op:        op,
		done:      make(chan struct{}),
	}
}

// RequestID 请求 ID
func (f *Future) RequestID() string { return f.requestID }

// Operation 操作种类
func (f *Future) Operation() types.Operation { return f.op }

// State 当前状态
func (f *Future) State() State { return State(f.state.Load()) }

// Done 完成时关闭
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait 阻塞直到完成或 ctx 结束
//
// ctx 结束时返回 ctx.Err()，操作本身仍会继续直到完成
func (f *Future) Wait(ctx context.Context) (*types.Outcome, error) {
	select {
	case <-f.done:
		return f.outcome, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) setState(s State) {
	f.state.Store(int32(s))
}

// resolve 完成 Future，返回是否由本次调用完成
func (f *Future) resolve(outcome *types.Outcome, err error) bool {
	fired := false
	f.once.Do(func() {
		f.outcome = outcome
		f.err = err
		f.setState(StateCompleted)
		close(f.done)
		fired = true
	})
	return fired
}
