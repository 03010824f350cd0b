package client

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/betbot/gobet-deribit/deribit/types"
)

// classify 把一次往返的结果映射为 Outcome
//
//	传输失败或非 200           -> FailureTransport
//	200 但信封带非 null 的 error 字段 -> FailureProtocol
//	200 且无 error 字段（或为 null）   -> 成功，Body 原样透传
func classify(op types.Operation, status int, body []byte, transportErr error) *types.Outcome {
	raw := string(body)
	if strings.TrimSpace(raw) == "" {
		raw = types.NoResponseBody
	}
	out := &types.Outcome{
		RawBody:    raw,
		HTTPStatus: status,
		Operation:  op,
	}

	if transportErr != nil {
		return fail(out, types.FailureTransport, errors.Wrap(types.ErrTransport, transportErr.Error()))
	}
	if status != http.StatusOK {
		err := errors.Wrapf(types.ErrTransport, "http status %d", status)
		if rpcErr := decodeRPCError(body); rpcErr != nil {
			err = errors.Wrapf(types.ErrTransport, "http status %d: %s", status, rpcErr.Error())
		}
		return fail(out, types.FailureTransport, err)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fail(out, types.FailureProtocol, errors.Wrapf(types.ErrProtocol, "malformed response: %v", err))
	}
	// "error": null 等同于没有 error 字段
	if rawErr, ok := envelope["error"]; ok && strings.TrimSpace(string(rawErr)) != "null" {
		err := errors.Wrap(types.ErrProtocol, "error member in response")
		if rpcErr := decodeRPCError(body); rpcErr != nil {
			err = errors.Wrap(types.ErrProtocol, rpcErr.Error())
		}
		return fail(out, types.FailureProtocol, err)
	}

	out.Success = true
	out.Body = raw
	return out
}

func fail(out *types.Outcome, kind types.FailureKind, err error) *types.Outcome {
	out.Success = false
	out.Kind = kind
	out.Body = out.Operation.FailureText()
	out.Err = err
	return out
}

// failure 构建/认证失败（未发生网络 IO）
func failure(op types.Operation, requestID string, kind types.FailureKind, err error) *types.Outcome {
	out := &types.Outcome{
		RawBody:   types.NoResponseBody,
		Operation: op,
		RequestID: requestID,
	}
	return fail(out, kind, err)
}

func decodeRPCError(body []byte) *types.RPCError {
	var envelope struct {
		Error *types.RPCError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	return envelope.Error
}
