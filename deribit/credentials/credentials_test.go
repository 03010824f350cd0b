package credentials

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gobet-deribit/deribit/session"
	"github.com/betbot/gobet-deribit/deribit/types"
)

type memStore struct {
	data    map[string]string
	failGet bool
}

func newMemStore() *memStore { return &memStore{data: map[string]string{}} }

func (m *memStore) GetString(key string) (string, bool, error) {
	if m.failGet {
		return "", false, errors.New("disk gone")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) SetString(key, val string) error {
	m.data[key] = val
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCredentials_FirstLineTrimmed(t *testing.T) {
	dir := t.TempDir()
	key := writeFile(t, dir, "api_key.txt", "  abc123  \nignored\n")
	secret := writeFile(t, dir, "api_secret.txt", "s3cr3t\r\n")

	creds, err := LoadCredentials(key, secret)
	require.NoError(t, err)
	assert.Equal(t, "abc123", creds.APIKey)
	assert.Equal(t, "s3cr3t", creds.APISecret)
}

func TestLoadCredentials_MissingFile(t *testing.T) {
	dir := t.TempDir()
	key := writeFile(t, dir, "api_key.txt", "abc")

	_, err := LoadCredentials(key, filepath.Join(dir, "nope.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrIO))
	assert.Contains(t, err.Error(), "nope.txt")
}

func TestLoadBootstrapTokens_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	access := writeFile(t, dir, "access_token.txt", "")
	refresh := writeFile(t, dir, "refresh_token.txt", "r-1\n")

	tokens, err := LoadBootstrapTokens(access, refresh)
	require.NoError(t, err)
	assert.Equal(t, "", tokens.AccessToken)
	assert.Equal(t, "r-1", tokens.RefreshToken)
}

func TestLoadCredentialsFromStore(t *testing.T) {
	store := newMemStore()
	store.data[StoreKeyAPIKey] = "k "
	store.data[StoreKeyAPISecret] = "s"

	creds, err := LoadCredentialsFromStore(store, "", "")
	require.NoError(t, err)
	assert.Equal(t, types.Credentials{APIKey: "k", APISecret: "s"}, creds)

	_, err = LoadCredentialsFromStore(store, "other/key", "")
	assert.True(t, errors.Is(err, types.ErrIO))

	store.failGet = true
	_, err = LoadCredentialsFromStore(store, "", "")
	assert.True(t, errors.Is(err, types.ErrIO))
}

func TestTokenSinkRoundTrip(t *testing.T) {
	store := newMemStore()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	sink := TokenSink(store)
	sink(session.Tokens{AccessToken: "a2", RefreshToken: "r2"}, now.Add(15*time.Minute))
	assert.Equal(t, "2024-06-01T12:15:00Z", store.data[StoreKeyExpiresAt])

	tokens, expiresIn, found, err := LoadTokensFromStore(store, now)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "a2", tokens.AccessToken)
	assert.Equal(t, "r2", tokens.RefreshToken)
	assert.Equal(t, 15*time.Minute, expiresIn)

	// 已过期的 token 仍返回，有效期为 0
	_, expiresIn, found, err = LoadTokensFromStore(store, now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, time.Duration(0), expiresIn)
}

func TestLoadTokensFromStore_NotFound(t *testing.T) {
	_, _, found, err := LoadTokensFromStore(newMemStore(), time.Now())
	require.NoError(t, err)
	assert.False(t, found)
}
