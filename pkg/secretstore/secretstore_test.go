package secretstore

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	hex32 := strings.Repeat("ab", 32)

	k, err := ParseKey(hex32)
	require.NoError(t, err)
	assert.Len(t, k, 32)

	k, err = ParseKey("0x" + strings.Repeat("01", 16))
	require.NoError(t, err)
	assert.Len(t, k, 16)

	k, err = ParseKey(base64.StdEncoding.EncodeToString(make([]byte, 24)))
	require.NoError(t, err)
	assert.Len(t, k, 24)

	// 只含 hex 字符的 base64 仍按 base64 解析
	k, err = ParseKey(strings.Repeat("A", 32))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 24), k)

	k, err = ParseKey(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32))))
	require.NoError(t, err)
	assert.Equal(t, []byte(strings.Repeat("k", 32)), k)

	// 48 字符 hex 按 base64 解出 36 字节，不合法，回退到 hex
	k, err = ParseKey(strings.Repeat("0f", 24))
	require.NoError(t, err)
	assert.Len(t, k, 24)
	assert.Equal(t, byte(0x0f), k[0])

	_, err = ParseKey("0xzz")
	assert.Error(t, err)

	k, err = ParseKey("  ")
	require.NoError(t, err)
	assert.Nil(t, k)

	_, err = ParseKey(strings.Repeat("ab", 10))
	assert.Error(t, err)

	_, err = ParseKey("not a key!")
	assert.Error(t, err)
}

func TestStore_RoundTripEncrypted(t *testing.T) {
	dir := t.TempDir()
	key, err := ParseKey(strings.Repeat("cd", 32))
	require.NoError(t, err)

	s, err := Open(OpenOptions{Path: dir, EncryptionKey: key})
	require.NoError(t, err)

	require.NoError(t, s.SetString("deribit/refresh_token", "r-1"))
	require.NoError(t, s.SetString(" deribit/empty ", ""))

	v, found, err := s.GetString("deribit/refresh_token")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "r-1", v)

	v, found, err = s.GetString("deribit/empty")
	require.NoError(t, err)
	assert.True(t, found, "空值也算存在")
	assert.Equal(t, "", v)

	_, found, err = s.GetString("deribit/missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Delete("deribit/refresh_token"))
	_, found, err = s.GetString("deribit/refresh_token")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetString("deribit/api_key", "k"))
	require.NoError(t, s.Close())

	// 重新打开后数据仍在
	s, err = Open(OpenOptions{Path: dir, EncryptionKey: key})
	require.NoError(t, err)
	defer s.Close()
	v, found, err = s.GetString("deribit/api_key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "k", v)
}

func TestStore_Errors(t *testing.T) {
	_, err := Open(OpenOptions{})
	assert.Error(t, err)

	var s *Store
	_, _, err = s.GetString("x")
	assert.ErrorIs(t, err, ErrNotOpened)
	assert.ErrorIs(t, s.SetString("x", "y"), ErrNotOpened)
	assert.NoError(t, s.Close())

	opened, err := Open(OpenOptions{Path: t.TempDir()})
	require.NoError(t, err)
	defer opened.Close()
	assert.Error(t, opened.SetString("  ", "v"))
}
