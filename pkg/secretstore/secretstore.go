// Package secretstore 基于 Badger 的加密 KV，用于保存 API 凭证和轮换后的 token
package secretstore

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// ErrNotOpened 存储未打开
var ErrNotOpened = errors.New("secretstore: not opened")

// Store 加密存储（加密由 Badger 的 value log + key registry 提供）
type Store struct {
	db *badger.DB
}

// OpenOptions 打开参数
type OpenOptions struct {
	Path          string
	EncryptionKey []byte // 16/24/32 字节；为空时不加密
	ReadOnly      bool
}

// Open 打开存储
func Open(opts OpenOptions) (*Store, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("secretstore: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithReadOnly(opts.ReadOnly)
	if len(opts.EncryptionKey) > 0 {
		// 加密模式下 Badger 要求设置 index cache
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(16 << 20)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, errors.Wrapf(err, "secretstore: open %s", opts.Path)
	}
	return &Store{db: db}, nil
}

// Close 关闭存储
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func normalizeKey(key string) ([]byte, error) {
	k := strings.TrimSpace(key)
	if k == "" {
		return nil, errors.New("secretstore: key is empty")
	}
	return []byte(k), nil
}

// GetString 读取字符串；found=false 表示 key 不存在（空值也算存在）
func (s *Store) GetString(key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, ErrNotOpened
	}
	k, err := normalizeKey(key)
	if err != nil {
		return "", false, err
	}
	var (
		out   string
		found bool
	)
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, err
	}
	return out, found, nil
}

// SetString 写入字符串
func (s *Store) SetString(key string, val string) error {
	if s == nil || s.db == nil {
		return ErrNotOpened
	}
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, []byte(val))
	})
}

// Delete 删除 key，不存在时不报错
func (s *Store) Delete(key string) error {
	if s == nil || s.db == nil {
		return ErrNotOpened
	}
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
}

// ParseKey 解析 hex 或 base64 编码的 AES key，长度须为 16/24/32 字节
// 输入为空时返回 nil
//
// 带 0x 前缀或恰好 64 个 hex 字符时按 hex 解析；其余先按 base64，
// 解出的长度不合法时再按 hex。不带前缀的 32 字符 hex 与 base64 无法区分，按 base64 处理。
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		b, err := hex.DecodeString(raw[2:])
		if err != nil {
			return nil, errors.Wrap(err, "secretstore: invalid hex key")
		}
		return checkKeyLen(b)
	}
	if len(raw) == 64 {
		if b, err := hex.DecodeString(raw); err == nil {
			return checkKeyLen(b)
		}
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if k, lerr := checkKeyLen(b); lerr == nil {
			return k, nil
		}
	}
	if b, err := hex.DecodeString(raw); err == nil {
		return checkKeyLen(b)
	}
	return nil, errors.New("secretstore: key must be hex or base64 of 16, 24 or 32 bytes")
}

func checkKeyLen(b []byte) ([]byte, error) {
	switch len(b) {
	case 16, 24, 32:
		return b, nil
	default:
		return nil, errors.Errorf("secretstore: decoded key length must be 16, 24 or 32, got %d", len(b))
	}
}
