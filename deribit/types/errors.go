package types

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// 错误分类
// 构建/认证错误在任何网络 IO 之前返回；传输/协议错误只通过 Outcome 暴露
var (
	// ErrIO 凭证或 token 启动文件不可读（启动期致命错误）
	ErrIO = errors.New("io error")

	// ErrInvalidParams 订单参数非法，未发送任何请求
	ErrInvalidParams = errors.New("invalid params")

	// ErrRenewalFailed token 续期失败，会话状态保持不变
	ErrRenewalFailed = errors.New("token renewal failed")

	// ErrTransport 连接失败、超时或非 200 状态码
	ErrTransport = errors.New("transport error")

	// ErrProtocol 响应信封中带有交易所的 error 字段
	ErrProtocol = errors.New("protocol error")
)

// InvalidParamsf 构造带上下文的参数错误
func InvalidParamsf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidParams, format, args...)
}

// RPCError 交易所 JSON-RPC 错误
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("deribit error %d: %s", e.Code, e.Message)
}
