// secrets-import 把 API 凭证和启动 token 写入 badger 加密存储，供 trader 使用
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/gobet-deribit/deribit/credentials"
	"github.com/betbot/gobet-deribit/pkg/config"
	"github.com/betbot/gobet-deribit/pkg/secretstore"
)

func main() {
	var (
		dbPath      = flag.String("badger", getenv("DERIBIT_SECRET_STORE", "data/secrets.badger"), "badger 存储目录")
		secretKey   = flag.String("secret-key", getenv("DERIBIT_SECRET_STORE_KEY", ""), "加密 key（16/24/32 字节，hex 或 base64）")
		keyFile     = flag.String("key-file", "api_key.txt", "API key 文件")
		secretFile  = flag.String("secret-file", "api_secret.txt", "API secret 文件")
		accessFile  = flag.String("access-file", "access_token.txt", "access token 文件（不存在时跳过 token）")
		refreshFile = flag.String("refresh-file", "refresh_token.txt", "refresh token 文件（不存在时跳过 token）")
		expiresIn   = flag.Int64("expires-in", config.DefaultTokenExpiresIn, "启动 token 剩余有效期（秒）")
		envFile     = flag.String("env", "", "额外导入的 .env 文件（写入 env/ 前缀）")
	)
	flag.Parse()

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fatal(fmt.Errorf("secret key is required: set DERIBIT_SECRET_STORE_KEY or pass -secret-key"))
	}

	creds, err := credentials.LoadCredentials(*keyFile, *secretFile)
	if err != nil {
		fatal(err)
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		fatal(fmt.Errorf("API key/secret 文件为空"))
	}

	ss, err := secretstore.Open(secretstore.OpenOptions{Path: *dbPath, EncryptionKey: keyBytes})
	if err != nil {
		fatal(err)
	}
	defer ss.Close()

	written := 0
	for k, v := range map[string]string{
		credentials.StoreKeyAPIKey:    creds.APIKey,
		credentials.StoreKeyAPISecret: creds.APISecret,
	} {
		if err := ss.SetString(k, v); err != nil {
			fatal(err)
		}
		written++
	}

	if exists(*accessFile) && exists(*refreshFile) {
		tokens, err := credentials.LoadBootstrapTokens(*accessFile, *refreshFile)
		if err != nil {
			fatal(err)
		}
		credentials.TokenSink(ss)(tokens, time.Now().Add(time.Duration(*expiresIn)*time.Second))
		written += 3
	}

	if *envFile != "" {
		kv, err := godotenv.Read(*envFile)
		if err != nil {
			fatal(err)
		}
		for k, v := range kv {
			if err := ss.SetString("env/"+k, v); err != nil {
				fatal(err)
			}
			written++
		}
	}

	fmt.Fprintf(os.Stderr, "已写入 %d 项到 badger：%s\n", written, *dbPath)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
