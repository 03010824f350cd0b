package main

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gobet-deribit/deribit/client"
	"github.com/betbot/gobet-deribit/deribit/credentials"
	"github.com/betbot/gobet-deribit/deribit/session"
	"github.com/betbot/gobet-deribit/deribit/types"
	"github.com/betbot/gobet-deribit/pkg/config"
	"github.com/betbot/gobet-deribit/pkg/journal"
	"github.com/betbot/gobet-deribit/pkg/ratelimit"
	sdkhttp "github.com/betbot/gobet-deribit/pkg/sdk/http"
	"github.com/betbot/gobet-deribit/pkg/secretstore"
	"github.com/betbot/gobet-deribit/pkg/shutdown"
)

// app 启动后装配好的组件
type app struct {
	client  *client.Client
	session *session.TokenSession
	journal *journal.Journal
}

// bootstrap 凭证与启动 token 的来源
type bootstrap struct {
	creds     types.Credentials
	tokens    session.Tokens
	expiresIn time.Duration // 存储中记录的剩余有效期
	stored    bool
	sink      session.RenewalSink
}

func setup(ctx context.Context, cfg *config.Config, shut *shutdown.Manager) (*app, error) {
	boot, err := loadBootstrap(cfg, shut)
	if err != nil {
		return nil, err
	}

	renewer := client.NewAuthAPI(sdkhttp.NewClient(cfg.BaseURL, sdkhttp.WithTimeout(cfg.RequestTimeout)))
	opts := []session.Option{session.WithRenewLead(cfg.RenewLead)}
	if boot.sink != nil {
		opts = append(opts, session.WithRenewalSink(boot.sink))
	}
	expiresIn := cfg.TokenExpiresIn
	if boot.stored {
		expiresIn = boot.expiresIn
	}
	sess := session.New(boot.tokens, expiresIn, renewer, opts...)

	clientOpts := []client.Option{
		client.WithBaseURL(cfg.BaseURL),
		client.WithTimeout(cfg.RequestTimeout),
		client.WithRateLimiter(newLimiter(cfg.RateLimit)),
	}

	a := &app{session: sess}
	if cfg.JournalDB != "" {
		j, err := journal.Open(cfg.JournalDB)
		if err != nil {
			return nil, errors.Wrap(err, "打开 journal 失败")
		}
		a.journal = j
		clientOpts = append(clientOpts, client.WithRecorder(j))
		shut.OnShutdown("journal", func(context.Context) error { return j.Close() })
	}
	a.client = client.NewClient(boot.creds, sess, clientOpts...)

	// 没有可用的启动 token 时用 API 凭证登录
	if boot.tokens.RefreshToken == "" {
		logrus.Info("未找到启动 token，使用 client_credentials 登录")
		if _, err := a.client.Authenticate(ctx); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// loadBootstrap 加密存储优先，其次是凭证文件
func loadBootstrap(cfg *config.Config, shut *shutdown.Manager) (*bootstrap, error) {
	if cfg.SecretStorePath == "" {
		creds, err := credentials.LoadCredentials(cfg.APIKeyFile, cfg.APISecretFile)
		if err != nil {
			return nil, err
		}
		boot := &bootstrap{creds: creds}
		if fileExists(cfg.RefreshTokenFile) {
			tokens, err := credentials.LoadBootstrapTokens(cfg.AccessTokenFile, cfg.RefreshTokenFile)
			if err != nil {
				return nil, err
			}
			boot.tokens = tokens
		}
		return boot, nil
	}

	key, err := secretstore.ParseKey(cfg.SecretStoreKey)
	if err != nil {
		return nil, err
	}
	store, err := secretstore.Open(secretstore.OpenOptions{Path: cfg.SecretStorePath, EncryptionKey: key})
	if err != nil {
		return nil, err
	}
	shut.OnShutdown("secretstore", func(context.Context) error { return store.Close() })

	creds, err := credentials.LoadCredentialsFromStore(store, "", "")
	if err != nil {
		return nil, err
	}
	boot := &bootstrap{creds: creds, sink: credentials.TokenSink(store)}

	tokens, remaining, found, err := credentials.LoadTokensFromStore(store, time.Now())
	if err != nil {
		return nil, err
	}
	if found {
		boot.tokens = tokens
		boot.expiresIn = remaining
		boot.stored = true
		logrus.WithField("expires_in", remaining.Round(time.Second)).Info("使用加密存储中的 token")
	}
	return boot, nil
}

// newLimiter 按配置注册撮合/非撮合两类限流器，未配置的类别不限流
func newLimiter(rl config.RateLimitConfig) *ratelimit.Manager {
	m := ratelimit.NewManager()
	if rl.MatchingPerSecond > 0 {
		// 撮合类接口允许少量突发
		m.Register(client.LimiterKeyMatching, ratelimit.NewTokenBucket(rl.MatchingPerSecond*4, float64(rl.MatchingPerSecond)))
	}
	if rl.NonMatchingPerSecond > 0 {
		m.Register(client.LimiterKeyNonMatching, ratelimit.NewSlidingWindow(rl.NonMatchingPerSecond, time.Second))
	}
	return m
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
