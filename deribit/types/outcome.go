package types

import (
	"time"
)

// FailureKind 失败类别（成功时为 FailureNone）
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureBuild     FailureKind = "build"
	FailureAuth      FailureKind = "auth"
	FailureTransport FailureKind = "transport"
	FailureProtocol  FailureKind = "protocol"
)

// NoResponseBody 没有拿到任何响应体时保存到 RawBody 的占位文本
const NoResponseBody = "No response body"

// Outcome 每个操作统一返回的结果
//
// 成功时 Body 与 RawBody 相同（原样透传）；
// 失败时 Body 为客户端生成的失败文本，RawBody 保留原始响应体用于诊断。
type Outcome struct {
	Success    bool
	Body       string
	RawBody    string
	HTTPStatus int
	Kind       FailureKind
	Operation  Operation
	RequestID  string
	Err        error
}

// Record 一次操作的审计记录（写入 journal）
type Record struct {
	RequestID  string
	Operation  Operation
	Path       string
	Success    bool
	HTTPStatus int
	Kind       FailureKind
	Body       string
	Error      string
	StartedAt  time.Time
	Duration   time.Duration
}

// NewRecord 从 Outcome 构建审计记录
func NewRecord(outcome *Outcome, path string, startedAt time.Time, duration time.Duration) Record {
	rec := Record{
		RequestID:  outcome.RequestID,
		Operation:  outcome.Operation,
		Path:       path,
		Success:    outcome.Success,
		HTTPStatus: outcome.HTTPStatus,
		Kind:       outcome.Kind,
		Body:       outcome.RawBody,
		StartedAt:  startedAt,
		Duration:   duration,
	}
	if outcome.Err != nil {
		rec.Error = outcome.Err.Error()
	}
	return rec
}
