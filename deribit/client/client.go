// Package client Deribit 交易客户端
//
// 私有操作在发送前检查并续期 access token，公共操作（订单簿）不涉及 token。
// 所有操作都返回 types.Outcome；只有构建失败和认证失败会额外返回 error，
// 且这两类失败不会产生任何网络请求。
package client

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/gobet-deribit/deribit/types"
	sdkhttp "github.com/betbot/gobet-deribit/pkg/sdk/http"
)

var log = logrus.WithField("component", "deribit_client")

// Session 客户端依赖的 token 会话（*session.TokenSession 满足该接口）
type Session interface {
	EnsureValid(ctx context.Context, creds types.Credentials) (string, error)
	UpdateTokens(accessToken, refreshToken string, expiresIn time.Duration)
}

// RateLimiter 发送前的限流钩子
type RateLimiter interface {
	Wait(ctx context.Context, key string) error
}

// Recorder 操作完成后的审计钩子
type Recorder interface {
	Record(ctx context.Context, rec types.Record) error
}

// Client Deribit REST 客户端
type Client struct {
	creds   types.Credentials
	session Session

	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper

	http     *sdkhttp.Client
	auth     *AuthAPI
	limiter  RateLimiter
	recorder Recorder
}

// Option 客户端选项
type Option func(*Client)

// WithBaseURL 设置 REST 根地址
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithTransport 替换底层 RoundTripper
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithRateLimiter 设置限流器
func WithRateLimiter(l RateLimiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithRecorder 设置审计记录器
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithTimeout 单次请求超时（不影响结果分类规则）
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient 创建客户端
func NewClient(creds types.Credentials, sess Session, opts ...Option) *Client {
	c := &Client{
		creds:   creds,
		session: sess,
		baseURL: DefaultBaseURL,
		timeout: sdkhttp.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = sdkhttp.NewClient(c.baseURL,
		sdkhttp.WithTimeout(c.timeout),
		sdkhttp.WithTransport(c.transport),
	)
	c.auth = NewAuthAPI(c.http)
	return c
}

// BaseURL 当前 REST 根地址
func (c *Client) BaseURL() string { return c.baseURL }

// Auth 返回与客户端共用 HTTP 连接的认证 API（可作为 session.Renewer）
func (c *Client) Auth() *AuthAPI { return c.auth }

// Authenticate 用 API 凭证登录并把结果写入会话
func (c *Client) Authenticate(ctx context.Context) (*types.AuthResult, error) {
	res, err := c.auth.Login(ctx, c.creds)
	if err != nil {
		log.Errorf("登录失败: %v", err)
		return nil, err
	}
	if c.session != nil {
		c.session.UpdateTokens(res.AccessToken, res.RefreshToken, res.ExpiresIn)
	}
	log.WithField("scope", res.Scope).Info("登录成功")
	return res, nil
}
