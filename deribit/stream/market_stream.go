// Package stream Deribit 公共行情 WebSocket 订阅
//
// 只使用公共频道，不依赖 token 会话
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gobet-deribit/pkg/sigchan"
	"github.com/betbot/gobet-deribit/pkg/syncgroup"
)

var log = logrus.WithField("component", "market_stream")

const (
	methodSubscribe    = "public/subscribe"
	methodUnsubscribe  = "public/unsubscribe"
	methodSubscription = "subscription"
)

// Config 连接配置
type Config struct {
	URL                  string
	ProxyURL             string
	HandshakeTimeout     time.Duration
	PingInterval         time.Duration
	ReconnectEnabled     bool
	ReconnectDelay       time.Duration
	MaxReconnectDelay    time.Duration
	MaxReconnectAttempts int
}

// DefaultConfig 默认配置（测试网）
func DefaultConfig() Config {
	return Config{
		URL:                  "wss://test.deribit.com/ws/api/v2",
		HandshakeTimeout:     10 * time.Second,
		PingInterval:         15 * time.Second,
		ReconnectEnabled:     true,
		ReconnectDelay:       time.Second,
		MaxReconnectDelay:    30 * time.Second,
		MaxReconnectAttempts: 10,
	}
}

// TickerChannel ticker.<instrument>.<interval>，例如 ticker.ETH-PERPETUAL.100ms
func TickerChannel(instrument, interval string) string {
	return fmt.Sprintf("ticker.%s.%s", instrument, interval)
}

// Notification 订阅推送
type Notification struct {
	Channel string
	Data    json.RawMessage
}

// MessageHandler 收到任意文本帧
type MessageHandler func(msg []byte)

// NotificationHandler 收到订阅推送
type NotificationHandler func(n Notification)

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Channels []string `json:"channels"`
}

type inbound struct {
	Method string `json:"method"`
	Params *struct {
		Channel string          `json:"channel"`
		Data    json.RawMessage `json:"data"`
	} `json:"params"`
}

// MarketStream 行情订阅连接
type MarketStream struct {
	cfg Config

	conn   *websocket.Conn
	connMu sync.Mutex

	running   bool
	runningMu sync.RWMutex

	subscriptions map[string]bool
	subMu         sync.RWMutex

	handlersMu    sync.RWMutex
	msgHandlers   []MessageHandler
	notifHandlers []NotificationHandler

	nextID      atomic.Int64
	reconnected *sigchan.Chan
	group       *syncgroup.SyncGroup

	ctx    context.Context
	cancel context.CancelFunc

	reconnectAttempts int
}

// New 创建行情连接（未连接）
func New(cfg Config) *MarketStream {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = def.MaxReconnectDelay
	}
	return &MarketStream{
		cfg:           cfg,
		subscriptions: make(map[string]bool),
		reconnected:   sigchan.New(1),
		group:         syncgroup.NewSyncGroup(),
	}
}

// OnMessage 注册原始消息处理器
func (s *MarketStream) OnMessage(h MessageHandler) {
	if h == nil {
		return
	}
	s.handlersMu.Lock()
	s.msgHandlers = append(s.msgHandlers, h)
	s.handlersMu.Unlock()
}

// OnNotification 注册订阅推送处理器
func (s *MarketStream) OnNotification(h NotificationHandler) {
	if h == nil {
		return
	}
	s.handlersMu.Lock()
	s.notifHandlers = append(s.notifHandlers, h)
	s.handlersMu.Unlock()
}

// Reconnected 每次重连并重新订阅后发出信号
func (s *MarketStream) Reconnected() <-chan struct{} {
	return s.reconnected.C()
}

// IsRunning 是否已连接并在读取
func (s *MarketStream) IsRunning() bool {
	s.runningMu.RLock()
	defer s.runningMu.RUnlock()
	return s.running
}

// Connect 建立连接并启动读取/心跳循环；ctx 结束时连接关闭
func (s *MarketStream) Connect(ctx context.Context) error {
	s.runningMu.Lock()
	if s.running {
		s.runningMu.Unlock()
		return fmt.Errorf("行情连接已在运行")
	}
	s.running = true
	s.runningMu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)
	if err := s.dial(); err != nil {
		s.cancel()
		s.runningMu.Lock()
		s.running = false
		s.runningMu.Unlock()
		return fmt.Errorf("初始连接失败: %w", err)
	}

	s.group.Go(s.readLoop)
	if s.cfg.PingInterval > 0 {
		s.group.Go(s.pingLoop)
	}
	log.Infof("已连接 %s", s.cfg.URL)
	return nil
}

// Subscribe 订阅频道（已订阅的频道被忽略）
func (s *MarketStream) Subscribe(channels ...string) error {
	s.subMu.Lock()
	fresh := make([]string, 0, len(channels))
	for _, ch := range channels {
		if ch != "" && !s.subscriptions[ch] {
			s.subscriptions[ch] = true
			fresh = append(fresh, ch)
		}
	}
	s.subMu.Unlock()

	if len(fresh) == 0 {
		return nil
	}
	return s.send(methodSubscribe, fresh)
}

// Unsubscribe 取消订阅
func (s *MarketStream) Unsubscribe(channels ...string) error {
	s.subMu.Lock()
	removed := make([]string, 0, len(channels))
	for _, ch := range channels {
		if s.subscriptions[ch] {
			delete(s.subscriptions, ch)
			removed = append(removed, ch)
		}
	}
	s.subMu.Unlock()

	if len(removed) == 0 {
		return nil
	}
	return s.send(methodUnsubscribe, removed)
}

// Subscriptions 当前订阅的频道（排序后）
func (s *MarketStream) Subscriptions() []string {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	out := make([]string, 0, len(s.subscriptions))
	for ch := range s.subscriptions {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Close 关闭连接并等待后台 goroutine 退出
func (s *MarketStream) Close() error {
	s.runningMu.Lock()
	if !s.running {
		s.runningMu.Unlock()
		return nil
	}
	s.running = false
	s.runningMu.Unlock()

	s.cancel()

	s.connMu.Lock()
	var err error
	if s.conn != nil {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	if !s.group.WaitTimeout(5 * time.Second) {
		log.Warn("关闭超时")
	}
	log.Info("行情连接已关闭")
	return err
}

func (s *MarketStream) dial() error {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	if s.cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(s.cfg.ProxyURL)
		if err != nil {
			return fmt.Errorf("无效的代理 URL: %w", err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}

	conn, _, err := dialer.DialContext(s.ctx, s.cfg.URL, nil)
	if err != nil {
		return err
	}

	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = conn
	s.connMu.Unlock()
	return nil
}

func (s *MarketStream) send(method string, channels []string) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  rpcParams{Channels: channels},
		ID:      s.nextID.Add(1) - 1,
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		// 未连接时只记录订阅，连接后由 resubscribe 补发
		log.Debugf("未连接，暂存 %s %v", method, channels)
		return nil
	}
	if err := s.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("发送 %s 失败: %w", method, err)
	}
	log.WithField("id", req.ID).Debugf("%s %v", method, channels)
	return nil
}

func (s *MarketStream) resubscribe() error {
	channels := s.Subscriptions()
	if len(channels) == 0 {
		return nil
	}
	return s.send(methodSubscribe, channels)
}

func (s *MarketStream) readLoop() {
	defer func() {
		if s.ctx.Err() == nil {
			return
		}
		s.connMu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
			s.conn = nil
		}
		s.connMu.Unlock()
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()
		if conn == nil {
			if !s.reconnect() {
				return
			}
			continue
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.connMu.Lock()
			if s.conn == conn {
				_ = s.conn.Close()
				s.conn = nil
			}
			s.connMu.Unlock()

			if s.ctx.Err() != nil {
				return
			}
			log.Warnf("读取错误: %v", err)
			if !s.cfg.ReconnectEnabled {
				return
			}
			continue
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.handle(data)
	}
}

func (s *MarketStream) handle(data []byte) {
	s.handlersMu.RLock()
	msgHandlers := append([]MessageHandler(nil), s.msgHandlers...)
	notifHandlers := append([]NotificationHandler(nil), s.notifHandlers...)
	s.handlersMu.RUnlock()

	for _, h := range msgHandlers {
		h(data)
	}
	if len(notifHandlers) == 0 {
		return
	}

	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debugf("忽略非 JSON 消息: %v", err)
		return
	}
	if msg.Method != methodSubscription || msg.Params == nil || msg.Params.Channel == "" || len(msg.Params.Data) == 0 {
		return
	}
	n := Notification{Channel: msg.Params.Channel, Data: msg.Params.Data}
	for _, h := range notifHandlers {
		h(n)
	}
}

func (s *MarketStream) pingLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.connMu.Lock()
			conn := s.conn
			var err error
			if conn != nil {
				err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
			s.connMu.Unlock()
			if err != nil {
				log.Warnf("ping 发送失败: %v", err)
			}
		}
	}
}

// reconnect 退避重连并重新订阅，返回 false 表示放弃
func (s *MarketStream) reconnect() bool {
	for {
		s.reconnectAttempts++
		if s.cfg.MaxReconnectAttempts > 0 && s.reconnectAttempts > s.cfg.MaxReconnectAttempts {
			log.Errorf("达到最大重连次数 (%d)", s.cfg.MaxReconnectAttempts)
			return false
		}

		delay := s.cfg.ReconnectDelay * time.Duration(s.reconnectAttempts)
		if delay > s.cfg.MaxReconnectDelay {
			delay = s.cfg.MaxReconnectDelay
		}
		log.Infof("%v 后重连 (尝试 %d)", delay, s.reconnectAttempts)

		select {
		case <-s.ctx.Done():
			return false
		case <-time.After(delay):
		}

		if err := s.dial(); err != nil {
			log.Warnf("重连失败: %v", err)
			continue
		}
		s.reconnectAttempts = 0
		if err := s.resubscribe(); err != nil {
			log.Warnf("重新订阅失败: %v", err)
		}
		s.reconnected.Emit()
		return true
	}
}
