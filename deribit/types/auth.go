package types

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// AuthResult 认证/续期成功后得到的 token 三元组
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	Scope        string
}

// AuthResponse /public/auth 的响应信封
//
// 字段全部使用指针，便于区分“缺失”和“零值”
type AuthResponse struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      *int64       `json:"id,omitempty"`
	Result  *AuthPayload `json:"result"`
	Error   *RPCError    `json:"error,omitempty"`
	UsIn    int64        `json:"usIn,omitempty"`
	UsOut   int64        `json:"usOut,omitempty"`
}

// AuthPayload result 字段
type AuthPayload struct {
	AccessToken  *string `json:"access_token"`
	RefreshToken *string `json:"refresh_token"`
	ExpiresIn    *int64  `json:"expires_in"`
	TokenType    string  `json:"token_type,omitempty"`
	Scope        string  `json:"scope,omitempty"`
}

// Validate 检查信封完整性并转换为 AuthResult
// 任何字段缺失或非法都视为整体失败，不允许部分采用
func (r *AuthResponse) Validate() (*AuthResult, error) {
	if r == nil {
		return nil, errors.New("empty auth response")
	}
	if r.Error != nil {
		return nil, errors.Wrap(r.Error, "auth rejected")
	}
	p := r.Result
	if p == nil {
		return nil, errors.New("auth response missing result")
	}
	if p.AccessToken == nil || strings.TrimSpace(*p.AccessToken) == "" {
		return nil, errors.New("auth response missing result.access_token")
	}
	if p.RefreshToken == nil || strings.TrimSpace(*p.RefreshToken) == "" {
		return nil, errors.New("auth response missing result.refresh_token")
	}
	if p.ExpiresIn == nil {
		return nil, errors.New("auth response missing result.expires_in")
	}
	if *p.ExpiresIn <= 0 {
		return nil, errors.Errorf("auth response has invalid result.expires_in=%d", *p.ExpiresIn)
	}
	return &AuthResult{
		AccessToken:  *p.AccessToken,
		RefreshToken: *p.RefreshToken,
		ExpiresIn:    time.Duration(*p.ExpiresIn) * time.Second,
		Scope:        p.Scope,
	}, nil
}
