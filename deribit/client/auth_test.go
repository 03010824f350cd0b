package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gobet-deribit/deribit/session"
	"github.com/betbot/gobet-deribit/deribit/types"
	sdkhttp "github.com/betbot/gobet-deribit/pkg/sdk/http"
)

func authServer(t *testing.T, status int, body string, form *url.Values) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathAuth || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = r.ParseForm()
		if form != nil {
			*form = r.PostForm
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthAPI_RenewSendsRefreshGrant(t *testing.T) {
	var form url.Values
	srv := authServer(t, http.StatusOK, `{"jsonrpc":"2.0","result":{"access_token":"A1","refresh_token":"R1","expires_in":900,"token_type":"bearer"}}`, &form)
	api := NewAuthAPI(sdkhttp.NewClient(srv.URL))

	res, err := api.Renew(context.Background(), "R0", testCreds)
	require.NoError(t, err)
	assert.Equal(t, "A1", res.AccessToken)
	assert.Equal(t, "R1", res.RefreshToken)
	assert.Equal(t, 900*time.Second, res.ExpiresIn)

	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "R0", form.Get("refresh_token"))
	assert.Equal(t, "client-id", form.Get("client_id"))
	assert.Equal(t, "client-secret", form.Get("client_secret"))
}

func TestAuthAPI_RejectsBadEnvelopes(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"missing expires_in": {http.StatusOK, `{"result":{"access_token":"A1","refresh_token":"R1"}}`},
		"zero expires_in":    {http.StatusOK, `{"result":{"access_token":"A1","refresh_token":"R1","expires_in":0}}`},
		"missing refresh":    {http.StatusOK, `{"result":{"access_token":"A1","expires_in":900}}`},
		"error envelope":     {http.StatusOK, `{"error":{"code":13004,"message":"invalid_credentials"}}`},
		"http 401":           {http.StatusUnauthorized, `{"error":{"code":13009,"message":"unauthorized"}}`},
		"not json":           {http.StatusOK, `<html>`},
		"empty":              {http.StatusOK, ``},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := authServer(t, tc.status, tc.body, nil)
			api := NewAuthAPI(sdkhttp.NewClient(srv.URL))
			res, err := api.Renew(context.Background(), "R0", testCreds)
			assert.Error(t, err)
			assert.Nil(t, res)
		})
	}
}

func TestRenewal_MissingExpiresIn_LeavesSessionUnchanged(t *testing.T) {
	srv := authServer(t, http.StatusOK, `{"jsonrpc":"2.0","result":{"access_token":"A1","refresh_token":"R1"}}`, nil)
	api := NewAuthAPI(sdkhttp.NewClient(srv.URL))

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sess := session.New(session.Tokens{AccessToken: "A0", RefreshToken: "R0"}, 0, api, session.WithClock(clock))
	before := sess.ExpiresAt()

	_, err := sess.EnsureValid(context.Background(), testCreds)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrRenewalFailed))
	assert.Equal(t, "A0", sess.GetAccessToken())
	assert.Equal(t, "R0", sess.RefreshToken())
	assert.Equal(t, before, sess.ExpiresAt())
}

func TestAuthAPI_LoginRequiresCredentials(t *testing.T) {
	api := NewAuthAPI(sdkhttp.NewClient("http://127.0.0.1:1"))
	_, err := api.Login(context.Background(), types.Credentials{})
	assert.Error(t, err)
}
