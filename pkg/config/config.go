package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 默认值
const (
	DefaultBaseURL = "https://test.deribit.com"
	DefaultWSURL   = "wss://test.deribit.com/ws/api/v2"
	// DefaultTokenExpiresIn 启动 token 的初始有效期（秒）
	DefaultTokenExpiresIn = 2505599
)

// ProxyConfig 代理配置
type ProxyConfig struct {
	Host string
	Port int
}

// URL 代理地址
func (p *ProxyConfig) URL() string {
	return fmt.Sprintf("http://%s:%d", p.Host, p.Port)
}

// RateLimitConfig 限流配置（每秒请求数，0 表示不限流）
type RateLimitConfig struct {
	MatchingPerSecond    int
	NonMatchingPerSecond int
}

// StreamConfig 行情订阅配置
type StreamConfig struct {
	Enabled    bool
	Instrument string
	Interval   string
}

// Config 应用配置
type Config struct {
	BaseURL string
	WSURL   string

	APIKeyFile       string
	APISecretFile    string
	AccessTokenFile  string
	RefreshTokenFile string
	TokenExpiresIn   time.Duration
	RenewLead        time.Duration
	RequestTimeout   time.Duration

	LogLevel string
	LogFile  string

	SecretStorePath string // badger 目录（可选）
	SecretStoreKey  string // 16/24/32 字节 AES key，hex 或 base64
	JournalDB       string // sqlite 文件路径（可选）

	RateLimit RateLimitConfig
	Stream    StreamConfig
	Proxy     *ProxyConfig
}

// ConfigFile 配置文件结构（用于 YAML/JSON 解析）
type ConfigFile struct {
	BaseURL     string `yaml:"base_url" json:"base_url"`
	WSURL       string `yaml:"ws_url" json:"ws_url"`
	Credentials struct {
		APIKeyFile       string `yaml:"api_key_file" json:"api_key_file"`
		APISecretFile    string `yaml:"api_secret_file" json:"api_secret_file"`
		AccessTokenFile  string `yaml:"access_token_file" json:"access_token_file"`
		RefreshTokenFile string `yaml:"refresh_token_file" json:"refresh_token_file"`
		TokenExpiresIn   int64  `yaml:"token_expires_in" json:"token_expires_in"` // 秒
		RenewLead        int64  `yaml:"renew_lead" json:"renew_lead"`             // 秒
	} `yaml:"credentials" json:"credentials"`
	RequestTimeout int64  `yaml:"request_timeout" json:"request_timeout"` // 秒
	LogLevel       string `yaml:"log_level" json:"log_level"`
	LogFile        string `yaml:"log_file" json:"log_file"`
	SecretStore    struct {
		Path string `yaml:"path" json:"path"`
		Key  string `yaml:"key" json:"key"`
	} `yaml:"secret_store" json:"secret_store"`
	JournalDB string `yaml:"journal_db" json:"journal_db"`
	RateLimit struct {
		MatchingPerSecond    int `yaml:"matching_per_second" json:"matching_per_second"`
		NonMatchingPerSecond int `yaml:"non_matching_per_second" json:"non_matching_per_second"`
	} `yaml:"rate_limit" json:"rate_limit"`
	Stream struct {
		Enabled    bool   `yaml:"enabled" json:"enabled"`
		Instrument string `yaml:"instrument" json:"instrument"`
		Interval   string `yaml:"interval" json:"interval"`
	} `yaml:"stream" json:"stream"`
	Proxy struct {
		Host string `yaml:"host" json:"host"`
		Port int    `yaml:"port" json:"port"`
	} `yaml:"proxy" json:"proxy"`
}

// Load 加载配置
//
// 优先级：环境变量 > 配置文件 > 默认值；filePath 为空时只使用环境变量和默认值
func Load(filePath string) (*Config, error) {
	cf := &ConfigFile{}
	if filePath != "" {
		loaded, err := loadConfigFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
		cf = loaded
	}

	cfg := &Config{
		BaseURL: strings.TrimSuffix(getEnv("DERIBIT_BASE_URL", orDefault(cf.BaseURL, DefaultBaseURL)), "/"),
		WSURL:   getEnv("DERIBIT_WS_URL", orDefault(cf.WSURL, DefaultWSURL)),

		APIKeyFile:       getEnv("DERIBIT_API_KEY_FILE", orDefault(cf.Credentials.APIKeyFile, "api_key.txt")),
		APISecretFile:    getEnv("DERIBIT_API_SECRET_FILE", orDefault(cf.Credentials.APISecretFile, "api_secret.txt")),
		AccessTokenFile:  getEnv("DERIBIT_ACCESS_TOKEN_FILE", orDefault(cf.Credentials.AccessTokenFile, "access_token.txt")),
		RefreshTokenFile: getEnv("DERIBIT_REFRESH_TOKEN_FILE", orDefault(cf.Credentials.RefreshTokenFile, "refresh_token.txt")),
		TokenExpiresIn:   seconds(parseInt64Env("DERIBIT_TOKEN_EXPIRES_IN", orDefaultInt(cf.Credentials.TokenExpiresIn, DefaultTokenExpiresIn))),
		RenewLead:        seconds(parseInt64Env("DERIBIT_RENEW_LEAD", cf.Credentials.RenewLead)),
		RequestTimeout:   seconds(parseInt64Env("DERIBIT_REQUEST_TIMEOUT", orDefaultInt(cf.RequestTimeout, 30))),

		LogLevel: getEnv("LOG_LEVEL", orDefault(cf.LogLevel, "info")),
		LogFile:  getEnv("LOG_FILE", cf.LogFile),

		SecretStorePath: getEnv("DERIBIT_SECRET_STORE", cf.SecretStore.Path),
		SecretStoreKey:  getEnv("DERIBIT_SECRET_STORE_KEY", cf.SecretStore.Key),
		JournalDB:       getEnv("DERIBIT_JOURNAL_DB", cf.JournalDB),

		RateLimit: RateLimitConfig{
			MatchingPerSecond:    parseIntEnv("DERIBIT_RATE_MATCHING", cf.RateLimit.MatchingPerSecond),
			NonMatchingPerSecond: parseIntEnv("DERIBIT_RATE_NON_MATCHING", cf.RateLimit.NonMatchingPerSecond),
		},
		Stream: StreamConfig{
			Enabled:    parseBoolEnv("DERIBIT_STREAM_ENABLED", cf.Stream.Enabled),
			Instrument: getEnv("DERIBIT_STREAM_INSTRUMENT", orDefault(cf.Stream.Instrument, "ETH-PERPETUAL")),
			Interval:   getEnv("DERIBIT_STREAM_INTERVAL", orDefault(cf.Stream.Interval, "100ms")),
		},
	}

	proxyHost := getEnv("PROXY_HOST", cf.Proxy.Host)
	proxyPort := parseIntEnv("PROXY_PORT", cf.Proxy.Port)
	if proxyHost != "" && proxyPort > 0 {
		cfg.Proxy = &ProxyConfig{Host: proxyHost, Port: proxyPort}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return cfg, nil
}

// ApplyProxyEnv 设置代理环境变量（resty 与 websocket dialer 都从环境变量读取代理）
func (c *Config) ApplyProxyEnv() {
	if c.Proxy == nil {
		return
	}
	proxyURL := c.Proxy.URL()
	os.Setenv("HTTP_PROXY", proxyURL)
	os.Setenv("HTTPS_PROXY", proxyURL)
	os.Setenv("http_proxy", proxyURL)
	os.Setenv("https_proxy", proxyURL)
}

// Validate 验证配置
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("DERIBIT_BASE_URL 无效: %q", c.BaseURL)
	}
	if c.Stream.Enabled {
		ws, err := url.Parse(c.WSURL)
		if err != nil || (ws.Scheme != "ws" && ws.Scheme != "wss") {
			return fmt.Errorf("DERIBIT_WS_URL 无效: %q", c.WSURL)
		}
		if c.Stream.Instrument == "" {
			return fmt.Errorf("行情订阅已启用但未配置合约")
		}
	}
	if c.APIKeyFile == "" || c.APISecretFile == "" {
		if c.SecretStorePath == "" {
			return fmt.Errorf("未配置 API 凭证来源（凭证文件或加密存储）")
		}
	}
	if c.TokenExpiresIn <= 0 {
		return fmt.Errorf("DERIBIT_TOKEN_EXPIRES_IN 必须大于 0")
	}
	if c.RenewLead < 0 || c.RenewLead >= c.TokenExpiresIn {
		return fmt.Errorf("DERIBIT_RENEW_LEAD 必须在 0 到 token 有效期之间")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("DERIBIT_REQUEST_TIMEOUT 必须大于 0")
	}
	if c.RateLimit.MatchingPerSecond < 0 || c.RateLimit.NonMatchingPerSecond < 0 {
		return fmt.Errorf("限流配置不能为负数")
	}
	if c.SecretStorePath != "" && c.SecretStoreKey == "" {
		return fmt.Errorf("启用加密存储时必须配置 DERIBIT_SECRET_STORE_KEY")
	}
	return nil
}

// loadConfigFile 加载配置文件（支持 YAML 和 JSON）
func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var configFile ConfigFile
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}

	return &configFile, nil
}

func seconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orDefaultInt(v, def int64) int64 {
	if v != 0 {
		return v
	}
	return def
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv 解析整数环境变量
func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseInt64Env(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseBoolEnv 解析布尔环境变量
func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
