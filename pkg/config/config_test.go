package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv 清理本包读取的环境变量，避免宿主环境干扰
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"DERIBIT_BASE_URL", "DERIBIT_WS_URL", "DERIBIT_API_KEY_FILE", "DERIBIT_API_SECRET_FILE",
		"DERIBIT_ACCESS_TOKEN_FILE", "DERIBIT_REFRESH_TOKEN_FILE", "DERIBIT_TOKEN_EXPIRES_IN",
		"DERIBIT_RENEW_LEAD", "DERIBIT_REQUEST_TIMEOUT", "LOG_LEVEL", "LOG_FILE",
		"DERIBIT_SECRET_STORE", "DERIBIT_SECRET_STORE_KEY", "DERIBIT_JOURNAL_DB",
		"DERIBIT_RATE_MATCHING", "DERIBIT_RATE_NON_MATCHING", "DERIBIT_STREAM_ENABLED",
		"DERIBIT_STREAM_INSTRUMENT", "DERIBIT_STREAM_INTERVAL", "PROXY_HOST", "PROXY_PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultWSURL, cfg.WSURL)
	assert.Equal(t, "api_key.txt", cfg.APIKeyFile)
	assert.Equal(t, "refresh_token.txt", cfg.RefreshTokenFile)
	assert.Equal(t, 2505599*time.Second, cfg.TokenExpiresIn)
	assert.Equal(t, time.Duration(0), cfg.RenewLead)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Nil(t, cfg.Proxy)
	assert.False(t, cfg.Stream.Enabled)
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://www.deribit.com/
credentials:
  api_key_file: /secrets/key
  token_expires_in: 900
  renew_lead: 30
log_level: debug
journal_db: data/journal.db
rate_limit:
  matching_per_second: 5
stream:
  enabled: true
  instrument: BTC-PERPETUAL
proxy:
  host: 127.0.0.1
  port: 7890
`), 0o600))

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DERIBIT_RATE_NON_MATCHING", "20")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://www.deribit.com", cfg.BaseURL)
	assert.Equal(t, "/secrets/key", cfg.APIKeyFile)
	assert.Equal(t, 900*time.Second, cfg.TokenExpiresIn)
	assert.Equal(t, 30*time.Second, cfg.RenewLead)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "data/journal.db", cfg.JournalDB)
	assert.Equal(t, 5, cfg.RateLimit.MatchingPerSecond)
	assert.Equal(t, 20, cfg.RateLimit.NonMatchingPerSecond)
	assert.True(t, cfg.Stream.Enabled)
	assert.Equal(t, "BTC-PERPETUAL", cfg.Stream.Instrument)
	assert.Equal(t, "100ms", cfg.Stream.Interval)
	require.NotNil(t, cfg.Proxy)
	assert.Equal(t, "http://127.0.0.1:7890", cfg.Proxy.URL())
}

func TestLoad_JSON(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ws_url":"wss://example.test/ws","log_file":"logs/x.log"}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://example.test/ws", cfg.WSURL)
	assert.Equal(t, "logs/x.log", cfg.LogFile)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	txt := filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o600))
	_, err = Load(txt)
	assert.Error(t, err)

	t.Setenv("DERIBIT_BASE_URL", "not a url")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			BaseURL:        DefaultBaseURL,
			WSURL:          DefaultWSURL,
			APIKeyFile:     "k",
			APISecretFile:  "s",
			TokenExpiresIn: time.Hour,
			RequestTimeout: time.Second,
		}
	}
	require.NoError(t, base().Validate())

	c := base()
	c.RenewLead = 2 * time.Hour
	assert.Error(t, c.Validate())

	c = base()
	c.SecretStorePath = "data/secrets"
	assert.Error(t, c.Validate(), "加密存储需要 key")

	c = base()
	c.Stream.Enabled = true
	c.Stream.Instrument = "ETH-PERPETUAL"
	c.WSURL = "https://wrong"
	assert.Error(t, c.Validate())

	c = base()
	c.RateLimit.MatchingPerSecond = -1
	assert.Error(t, c.Validate())
}
