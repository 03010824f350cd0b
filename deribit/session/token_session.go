// Package session 管理 Deribit 的 access/refresh token 生命周期
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/betbot/gobet-deribit/deribit/types"
)

var log = logrus.WithField("component", "token_session")

// renewKey singleflight 的固定 key：一个会话同一时刻只允许一次续期
const renewKey = "renew"

// DefaultRenewTimeout 单次续期交换的超时
const DefaultRenewTimeout = 30 * time.Second

// Tokens access/refresh token 对
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Renewer 执行一次续期交换（grant_type=refresh_token）
type Renewer interface {
	Renew(ctx context.Context, refreshToken string, creds types.Credentials) (*types.AuthResult, error)
}

// RenewalSink 续期或外部更新成功后的回调（用于持久化轮换后的 refresh token）
type RenewalSink func(tokens Tokens, expiresAt time.Time)

// Option 会话选项
type Option func(*TokenSession)

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *TokenSession) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRenewLead 提前续期：剩余有效期小于 lead 时即触发续期
// 默认 0，即严格在过期时刻续期
func WithRenewLead(lead time.Duration) Option {
	return func(s *TokenSession) {
		if lead > 0 {
			s.lead = lead
		}
	}
}

// WithRenewTimeout 设置单次续期交换的超时
//
// 续期不继承发起方的取消信号，只受这里的超时约束。
func WithRenewTimeout(d time.Duration) Option {
	return func(s *TokenSession) {
		if d > 0 {
			s.renewTimeout = d
		}
	}
}

// WithRenewalSink 注册续期回调
func WithRenewalSink(sink RenewalSink) Option {
	return func(s *TokenSession) {
		s.sink = sink
	}
}

// TokenSession 保证每个签名请求发出时携带的 token 有效
//
// 状态只会被 EnsureValid（续期）或 UpdateTokens 修改，三个字段总是整体替换。
// 并发调用 EnsureValid 时最多只有一次续期交换在进行，其余调用方等待并共享结果。
type TokenSession struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time

	renewer Renewer
	flight  singleflight.Group
	now     func() time.Time
	lead    time.Duration
	sink    RenewalSink

	renewTimeout time.Duration
}

// New 使用启动 token 和初始有效期创建会话
func New(tokens Tokens, expiresIn time.Duration, renewer Renewer, opts ...Option) *TokenSession {
	s := &TokenSession{
		accessToken:  tokens.AccessToken,
		refreshToken: tokens.RefreshToken,
		renewer:      renewer,
		now:          time.Now,
		renewTimeout: DefaultRenewTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.expiresAt = s.now().Add(expiresIn)
	return s
}

// GetAccessToken 返回当前 access token（不做有效性检查）
func (s *TokenSession) GetAccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken 返回当前 refresh token
func (s *TokenSession) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// ExpiresAt 返回过期时刻
func (s *TokenSession) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// IsExpired now >= expiresAt
func (s *TokenSession) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.now().Before(s.expiresAt)
}

// UpdateTokens 无条件覆盖三个字段（例如响应中已携带新 token）
func (s *TokenSession) UpdateTokens(accessToken, refreshToken string, expiresIn time.Duration) {
	s.mu.Lock()
	s.accessToken = accessToken
	s.refreshToken = refreshToken
	s.expiresAt = s.now().Add(expiresIn)
	expiresAt := s.expiresAt
	s.mu.Unlock()

	s.notify(Tokens{AccessToken: accessToken, RefreshToken: refreshToken}, expiresAt)
}

// EnsureValid 返回一个发送时刻有效的 access token
//
// 未过期：直接返回当前 token，不做任何 IO。
// 已过期：执行一次续期交换；成功后原子替换状态并返回新 token，
// 失败返回 types.ErrRenewalFailed，原状态保持不变（refresh token 仍可重试）。
//
// 续期交换在会话自己的上下文中进行（保留 ctx 的值，不继承取消，受 renewTimeout 约束）。
// ctx 被取消的调用方立即以 ErrRenewalFailed 返回，其他等待者仍拿到这次续期的结果。
func (s *TokenSession) EnsureValid(ctx context.Context, creds types.Credentials) (string, error) {
	if token, ok := s.validToken(); ok {
		return token, nil
	}

	ch := s.flight.DoChan(renewKey, func() (interface{}, error) {
		// 双重检查：上一次续期可能刚刚完成
		if token, ok := s.validToken(); ok {
			return token, nil
		}
		renewCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.renewTimeout)
		defer cancel()
		return s.renew(renewCtx, creds)
	})

	select {
	case <-ctx.Done():
		return "", errors.Wrap(types.ErrRenewalFailed, ctx.Err().Error())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			log.Debug("复用进行中的续期结果")
		}
		return res.Val.(string), nil
	}
}

// validToken 在锁内读取 token 与过期时间，保证读到的是同一次写入的状态
func (s *TokenSession) validToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.now().Add(s.lead).Before(s.expiresAt) {
		return s.accessToken, true
	}
	return "", false
}

func (s *TokenSession) renew(ctx context.Context, creds types.Credentials) (string, error) {
	if s.renewer == nil {
		return "", errors.Wrap(types.ErrRenewalFailed, "no renewer configured")
	}

	s.mu.RLock()
	refreshToken := s.refreshToken
	s.mu.RUnlock()

	if strings.TrimSpace(refreshToken) == "" {
		return "", errors.Wrap(types.ErrRenewalFailed, "refresh token is empty")
	}

	log.Info("access token 已过期，使用 refresh token 续期...")
	res, err := s.renewer.Renew(ctx, refreshToken, creds)
	if err != nil {
		log.Errorf("续期失败: %v", err)
		return "", errors.Wrap(types.ErrRenewalFailed, err.Error())
	}
	if res == nil || res.AccessToken == "" || res.RefreshToken == "" || res.ExpiresIn <= 0 {
		log.Error("续期响应不完整，保留原有 token")
		return "", errors.Wrap(types.ErrRenewalFailed, "incomplete renewal result")
	}

	s.mu.Lock()
	s.accessToken = res.AccessToken
	s.refreshToken = res.RefreshToken
	s.expiresAt = s.now().Add(res.ExpiresIn)
	expiresAt := s.expiresAt
	s.mu.Unlock()

	log.WithField("expires_at", expiresAt.UTC().Format(time.RFC3339)).Info("token 续期成功")
	s.notify(Tokens{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}, expiresAt)
	return res.AccessToken, nil
}

func (s *TokenSession) notify(tokens Tokens, expiresAt time.Time) {
	if s.sink == nil {
		return
	}
	s.sink(tokens, expiresAt)
}
