package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/betbot/gobet-deribit/deribit/types"
	sdkhttp "github.com/betbot/gobet-deribit/pkg/sdk/http"
)

// AuthAPI /public/auth 接口
//
// 实现 session.Renewer；续期请求不携带 Bearer token
type AuthAPI struct {
	http *sdkhttp.Client
}

// NewAuthAPI 创建认证 API
func NewAuthAPI(httpClient *sdkhttp.Client) *AuthAPI {
	return &AuthAPI{http: httpClient}
}

// Renew 使用 refresh token 换取新的 token 对（grant_type=refresh_token）
func (a *AuthAPI) Renew(ctx context.Context, refreshToken string, creds types.Credentials) (*types.AuthResult, error) {
	return a.exchange(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     creds.APIKey,
		"client_secret": creds.APISecret,
	})
}

// Login 使用 API 凭证直接登录（grant_type=client_credentials）
func (a *AuthAPI) Login(ctx context.Context, creds types.Credentials) (*types.AuthResult, error) {
	if creds.IsZero() {
		return nil, errors.New("credentials are empty")
	}
	return a.exchange(ctx, map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     creds.APIKey,
		"client_secret": creds.APISecret,
	})
}

func (a *AuthAPI) exchange(ctx context.Context, form map[string]string) (*types.AuthResult, error) {
	resp, err := a.http.DoRequest(ctx, http.MethodPost, PathAuth, &sdkhttp.RequestOptions{Form: form})
	if err != nil {
		return nil, errors.Wrap(err, "auth request failed")
	}

	body := resp.Body()
	var envelope types.AuthResponse
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, errors.Wrapf(err, "decode auth response (status %d)", resp.StatusCode())
		}
	}
	if resp.StatusCode() != http.StatusOK {
		if envelope.Error != nil {
			return nil, errors.Wrapf(envelope.Error, "auth http status %d", resp.StatusCode())
		}
		return nil, errors.Errorf("auth http status %d", resp.StatusCode())
	}
	return envelope.Validate()
}
