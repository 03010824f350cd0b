package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type subscribeMsg struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  struct {
		Channels []string `json:"channels"`
	} `json:"params"`
	ID int64 `json:"id"`
}

// fakeDeribit 每个连接读取订阅请求，回一条推送；dropFirst 时第一个连接收到订阅后被断开
type fakeDeribit struct {
	t         *testing.T
	mu        sync.Mutex
	received  []subscribeMsg
	conns     int
	dropFirst bool
	srv       *httptest.Server
}

func newFakeDeribit(t *testing.T, dropFirst bool) *fakeDeribit {
	f := &fakeDeribit{t: t, dropFirst: dropFirst}
	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		f.mu.Lock()
		f.conns++
		index := f.conns
		f.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg subscribeMsg
			if json.Unmarshal(data, &msg) != nil {
				continue
			}
			f.mu.Lock()
			f.received = append(f.received, msg)
			f.mu.Unlock()

			if f.dropFirst && index == 1 {
				return
			}
			for _, ch := range msg.Params.Channels {
				push := `{"jsonrpc":"2.0","method":"subscription","params":{"channel":"` + ch + `","data":{"best_bid_price":2319.5}}}`
				if err := conn.WriteMessage(websocket.TextMessage, []byte(push)); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeDeribit) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeDeribit) messages() []subscribeMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]subscribeMsg(nil), f.received...)
}

func TestTickerChannel(t *testing.T) {
	assert.Equal(t, "ticker.ETH-PERPETUAL.100ms", TickerChannel("ETH-PERPETUAL", "100ms"))
}

func TestMarketStream_SubscribeAndNotify(t *testing.T) {
	f := newFakeDeribit(t, false)
	s := New(Config{URL: f.url(), ReconnectEnabled: false})

	notifications := make(chan Notification, 4)
	raw := make(chan []byte, 4)
	s.OnNotification(func(n Notification) { notifications <- n })
	s.OnMessage(func(msg []byte) { raw <- msg })

	require.NoError(t, s.Connect(context.Background()))
	defer s.Close()

	channel := TickerChannel("ETH-PERPETUAL", "100ms")
	require.NoError(t, s.Subscribe(channel))
	require.NoError(t, s.Subscribe(channel), "重复订阅应被忽略")

	select {
	case n := <-notifications:
		assert.Equal(t, channel, n.Channel)
		assert.JSONEq(t, `{"best_bid_price":2319.5}`, string(n.Data))
	case <-time.After(3 * time.Second):
		t.Fatal("未收到推送")
	}
	select {
	case msg := <-raw:
		assert.Contains(t, string(msg), channel)
	case <-time.After(3 * time.Second):
		t.Fatal("未收到原始消息")
	}

	msgs := f.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "2.0", msgs[0].JSONRPC)
	assert.Equal(t, "public/subscribe", msgs[0].Method)
	assert.Equal(t, []string{channel}, msgs[0].Params.Channels)
	assert.Equal(t, int64(0), msgs[0].ID)
	assert.Equal(t, []string{channel}, s.Subscriptions())
}

func TestMarketStream_ResubscribesAfterReconnect(t *testing.T) {
	f := newFakeDeribit(t, true)
	s := New(Config{
		URL:                  f.url(),
		ReconnectEnabled:     true,
		ReconnectDelay:       10 * time.Millisecond,
		MaxReconnectDelay:    50 * time.Millisecond,
		MaxReconnectAttempts: 5,
	})
	notifications := make(chan Notification, 4)
	s.OnNotification(func(n Notification) { notifications <- n })

	require.NoError(t, s.Connect(context.Background()))
	defer s.Close()
	require.NoError(t, s.Subscribe("ticker.BTC-PERPETUAL.100ms"))

	select {
	case <-s.Reconnected():
	case <-time.After(3 * time.Second):
		t.Fatal("未重连")
	}
	select {
	case n := <-notifications:
		assert.Equal(t, "ticker.BTC-PERPETUAL.100ms", n.Channel)
	case <-time.After(3 * time.Second):
		t.Fatal("重连后未收到推送")
	}

	msgs := f.messages()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, msgs[0].Params.Channels, msgs[1].Params.Channels)
	assert.Greater(t, msgs[1].ID, msgs[0].ID)
}

func TestMarketStream_ConnectTwiceFails(t *testing.T) {
	f := newFakeDeribit(t, false)
	s := New(Config{URL: f.url()})
	require.NoError(t, s.Connect(context.Background()))
	defer s.Close()
	assert.Error(t, s.Connect(context.Background()))
	assert.True(t, s.IsRunning())
}

func TestMarketStream_CloseIsIdempotent(t *testing.T) {
	f := newFakeDeribit(t, false)
	s := New(Config{URL: f.url()})
	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.False(t, s.IsRunning())
}

func TestMarketStream_ConnectFailure(t *testing.T) {
	s := New(Config{URL: "ws://127.0.0.1:1/ws", HandshakeTimeout: time.Second})
	assert.Error(t, s.Connect(context.Background()))
	assert.False(t, s.IsRunning())
}
