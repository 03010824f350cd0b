package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout 单次请求默认超时
const DefaultTimeout = 30 * time.Second

// Client resty 封装
//
// 不做任何自动重试：下单类请求不是幂等的，重试策略交给调用方
type Client struct {
	client *resty.Client
}

// Option 客户端选项
type Option func(*resty.Client)

// WithTimeout 设置请求超时
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) {
		if d > 0 {
			c.SetTimeout(d)
		}
	}
}

// WithTransport 替换底层 RoundTripper（测试或代理）
func WithTransport(rt http.RoundTripper) Option {
	return func(c *resty.Client) {
		if rt != nil {
			c.SetTransport(rt)
		}
	}
}

// WithUserAgent 设置 User-Agent
func WithUserAgent(ua string) Option {
	return func(c *resty.Client) {
		if ua != "" {
			c.SetHeader("User-Agent", ua)
		}
	}
}

func NewClient(host string, opts ...Option) *Client {
	host = strings.TrimSuffix(host, "/")

	// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY）
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(DefaultTimeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "gobet-deribit")
	for _, opt := range opts {
		opt(client)
	}
	return &Client{client: client}
}

// BaseURL 返回当前 host
func (c *Client) BaseURL() string {
	return c.client.BaseURL
}

type RequestOptions struct {
	Headers map[string]string
	// Form 非空时以 application/x-www-form-urlencoded 发送
	Form map[string]string
	Data any
}

// 仅设置本次请求的默认 Header（不要再改 client 级 Header）
func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "application/json")
	r.SetHeader("Connection", "keep-alive")
	return r
}

// DoRequest 发送请求
//
// endpoint 可以携带已经编码好的 query（path?a=1&b=2），resty 会原样保留参数顺序
func (c *Client) DoRequest(ctx context.Context, method, endpoint string, opt *RequestOptions) (*resty.Response, error) {
	rc := c.newRequest(ctx)
	if opt != nil {
		for k, v := range opt.Headers {
			rc.SetHeader(k, v)
		}
		switch {
		case len(opt.Form) > 0:
			rc.SetFormData(opt.Form)
		case opt.Data != nil:
			rc.SetHeader("Content-Type", "application/json")
			rc.SetBody(opt.Data)
		}
	}

	switch strings.ToUpper(method) {
	case http.MethodGet:
		return rc.Get(endpoint)
	case http.MethodPost:
		return rc.Post(endpoint)
	case http.MethodDelete:
		return rc.Delete(endpoint)
	case http.MethodPut:
		return rc.Put(endpoint)
	default:
		return nil, fmt.Errorf("unsupported method: %s", method)
	}
}
