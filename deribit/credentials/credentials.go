// Package credentials 负责从文件或加密存储加载 API 凭证与启动 token
package credentials

import (
	"bufio"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gobet-deribit/deribit/session"
	"github.com/betbot/gobet-deribit/deribit/types"
)

var log = logrus.WithField("component", "credentials")

// 加密存储中使用的 key
const (
	StoreKeyAPIKey       = "deribit/api_key"
	StoreKeyAPISecret    = "deribit/api_secret"
	StoreKeyAccessToken  = "deribit/access_token"
	StoreKeyRefreshToken = "deribit/refresh_token"
	StoreKeyExpiresAt    = "deribit/expires_at"
)

// SecretReader 只读密钥存储（secretstore.Store 满足该接口）
type SecretReader interface {
	GetString(key string) (string, bool, error)
}

// SecretWriter 可写密钥存储
type SecretWriter interface {
	SetString(key string, val string) error
}

// LoadCredentials 从两个文件读取 API key / secret（各取第一行）
func LoadCredentials(keyPath, secretPath string) (types.Credentials, error) {
	key, err := readFirstLine(keyPath)
	if err != nil {
		return types.Credentials{}, err
	}
	secret, err := readFirstLine(secretPath)
	if err != nil {
		return types.Credentials{}, err
	}
	return types.Credentials{APIKey: key, APISecret: secret}, nil
}

// LoadBootstrapTokens 从两个文件读取初始 access/refresh token
func LoadBootstrapTokens(accessPath, refreshPath string) (session.Tokens, error) {
	access, err := readFirstLine(accessPath)
	if err != nil {
		return session.Tokens{}, err
	}
	refresh, err := readFirstLine(refreshPath)
	if err != nil {
		return session.Tokens{}, err
	}
	return session.Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

// LoadCredentialsFromStore 从加密存储读取 API 凭证
func LoadCredentialsFromStore(store SecretReader, keyName, secretName string) (types.Credentials, error) {
	if keyName == "" {
		keyName = StoreKeyAPIKey
	}
	if secretName == "" {
		secretName = StoreKeyAPISecret
	}
	key, err := getRequired(store, keyName)
	if err != nil {
		return types.Credentials{}, err
	}
	secret, err := getRequired(store, secretName)
	if err != nil {
		return types.Credentials{}, err
	}
	return types.Credentials{APIKey: key, APISecret: secret}, nil
}

// LoadTokensFromStore 读取上次持久化的 token 以及剩余有效期
// found=false 表示存储中没有 token
func LoadTokensFromStore(store SecretReader, now time.Time) (tokens session.Tokens, expiresIn time.Duration, found bool, err error) {
	access, ok, err := store.GetString(StoreKeyAccessToken)
	if err != nil || !ok {
		return session.Tokens{}, 0, false, wrapStoreErr(err, StoreKeyAccessToken)
	}
	refresh, ok, err := store.GetString(StoreKeyRefreshToken)
	if err != nil || !ok {
		return session.Tokens{}, 0, false, wrapStoreErr(err, StoreKeyRefreshToken)
	}
	tokens = session.Tokens{AccessToken: access, RefreshToken: refresh}

	raw, ok, err := store.GetString(StoreKeyExpiresAt)
	if err != nil {
		return session.Tokens{}, 0, false, wrapStoreErr(err, StoreKeyExpiresAt)
	}
	if ok {
		if expiresAt, perr := time.Parse(time.RFC3339, raw); perr == nil && expiresAt.After(now) {
			expiresIn = expiresAt.Sub(now)
		}
	}
	return tokens, expiresIn, true, nil
}

// TokenSink 返回一个把轮换后的 token 写回存储的续期回调
// refresh token 通常只能使用一次，重启后必须使用最新的那个
func TokenSink(store SecretWriter) session.RenewalSink {
	return func(tokens session.Tokens, expiresAt time.Time) {
		if err := store.SetString(StoreKeyAccessToken, tokens.AccessToken); err != nil {
			log.Errorf("保存 access token 失败: %v", err)
			return
		}
		if err := store.SetString(StoreKeyRefreshToken, tokens.RefreshToken); err != nil {
			log.Errorf("保存 refresh token 失败: %v", err)
			return
		}
		if err := store.SetString(StoreKeyExpiresAt, expiresAt.UTC().Format(time.RFC3339)); err != nil {
			log.Errorf("保存 token 过期时间失败: %v", err)
			return
		}
		log.Debug("token 已写入加密存储")
	}
}

func getRequired(store SecretReader, key string) (string, error) {
	val, ok, err := store.GetString(key)
	if err != nil {
		return "", wrapStoreErr(err, key)
	}
	if !ok || strings.TrimSpace(val) == "" {
		return "", errors.Wrapf(types.ErrIO, "secret %s not found", key)
	}
	return strings.TrimSpace(val), nil
}

func wrapStoreErr(err error, key string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(types.ErrIO, "read secret %s: %v", key, err)
}

// readFirstLine 读取文件第一行并去掉首尾空白
func readFirstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(types.ErrIO, "failed to open file %s: %v", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", errors.Wrapf(types.ErrIO, "failed to read file %s: %v", path, err)
		}
		return "", nil
	}
	return strings.TrimSpace(scanner.Text()), nil
}
