package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gobet-deribit/deribit/types"
)

func TestFuture_SingleFire(t *testing.T) {
	f := newFuture("id-1", types.OpCancelOrder)
	assert.Equal(t, StateIdle, f.State())

	var fired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if f.resolve(&types.Outcome{Body: "first"}, nil) {
				fired.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), fired.Load())
	assert.False(t, f.resolve(&types.Outcome{Body: "late"}, errors.New("late")))

	out, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", out.Body)
	assert.Equal(t, StateCompleted, f.State())
}

func TestFuture_WaitHonoursContext(t *testing.T) {
	f := newFuture("id-2", types.OpGetOpenOrders)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	out, err := f.Wait(ctx)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-f.Done():
		t.Fatal("未完成的 Future 不应关闭 Done")
	default:
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_token_check", StateAwaitingTokenCheck.String())
	assert.Equal(t, "completed", StateCompleted.String())
}
