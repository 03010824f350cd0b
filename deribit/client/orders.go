package client

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gobet-deribit/deribit/types"
	sdkhttp "github.com/betbot/gobet-deribit/pkg/sdk/http"
)

// PlaceOrder 下单（方向由 params.Side 决定 buy/sell 路径）
func (c *Client) PlaceOrder(ctx context.Context, params types.PlaceOrderParams) (*types.Outcome, error) {
	return c.await(c.Submit(ctx, params))
}

// ModifyOrder 改单
func (c *Client) ModifyOrder(ctx context.Context, params types.ModifyOrderParams) (*types.Outcome, error) {
	return c.await(c.Submit(ctx, params))
}

// CancelOrder 撤单
func (c *Client) CancelOrder(ctx context.Context, params types.CancelOrderParams) (*types.Outcome, error) {
	return c.await(c.Submit(ctx, params))
}

// GetOrderBook 查询订单簿（公共接口，不检查 token）
func (c *Client) GetOrderBook(ctx context.Context, params types.OrderBookParams) (*types.Outcome, error) {
	return c.await(c.Submit(ctx, params))
}

// GetPositions 查询持仓
func (c *Client) GetPositions(ctx context.Context, params types.PositionsParams) (*types.Outcome, error) {
	return c.await(c.Submit(ctx, params))
}

// GetOpenOrders 查询挂单
func (c *Client) GetOpenOrders(ctx context.Context) (*types.Outcome, error) {
	return c.await(c.Submit(ctx, types.OpenOrdersParams{}))
}

// await 发送协程总会完成 Future（ctx 取消时表现为传输失败），这里无需再监听 ctx
func (c *Client) await(f *Future) (*types.Outcome, error) {
	<-f.Done()
	return f.outcome, f.err
}

// Submit 异步提交一个操作
//
// 参数构建和 token 检查在调用方协程同步完成；发送在独立协程中进行并完成 Future。
// 构建失败或续期失败时 Future 立即完成，不会发送请求。
func (c *Client) Submit(ctx context.Context, op types.OrderRequest) *Future {
	startedAt := time.Now()
	op = deref(op)
	operation := types.Operation(0)
	if op != nil {
		operation = op.Operation()
	}
	f := newFuture(uuid.NewString(), operation)
	entry := log.WithFields(logrus.Fields{
		"request_id": f.requestID,
		"operation":  operation.String(),
	})

	req, err := BuildRequest(op)
	if err != nil {
		entry.Warnf("构建请求失败: %v", err)
		c.complete(ctx, f, "", startedAt, failure(operation, f.requestID, types.FailureBuild, err), err)
		return f
	}

	var token string
	if req.Private {
		f.setState(StateAwaitingTokenCheck)
		if c.session == nil {
			err = errors.Wrap(types.ErrRenewalFailed, "no token session configured")
		} else {
			token, err = c.session.EnsureValid(ctx, c.creds)
		}
		if err != nil {
			entry.Errorf("token 不可用，放弃发送: %v", err)
			c.complete(ctx, f, req.RequestLine(), startedAt, failure(operation, f.requestID, types.FailureAuth, err), err)
			return f
		}
	}

	f.setState(StateSending)
	go c.dispatch(ctx, f, req, token, startedAt, entry)
	return f
}

func (c *Client) dispatch(ctx context.Context, f *Future, req *Request, token string, startedAt time.Time, entry *logrus.Entry) {
	var outcome *types.Outcome
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, req.LimiterKey); err != nil {
			outcome = classify(req.Operation, 0, nil, errors.Wrap(err, "rate limiter"))
		}
	}

	if outcome == nil {
		// GET 请求没有请求体，不带 Content-Type
		headers := map[string]string{}
		if req.Private {
			headers["Authorization"] = "Bearer " + token
		}
		resp, err := c.http.DoRequest(ctx, req.Method, req.RequestLine(), &sdkhttp.RequestOptions{Headers: headers})
		var (
			status int
			body   []byte
		)
		if resp != nil {
			status = resp.StatusCode()
			body = resp.Body()
		}
		outcome = classify(req.Operation, status, body, err)
	}
	outcome.RequestID = f.requestID

	fields := logrus.Fields{"status": outcome.HTTPStatus, "elapsed": time.Since(startedAt).String()}
	if outcome.Success {
		entry.WithFields(fields).Debug("请求成功")
	} else {
		entry.WithFields(fields).Warnf("%s: %v", outcome.Body, outcome.Err)
	}
	// 传输/协议失败只通过 Outcome 暴露
	c.complete(ctx, f, req.RequestLine(), startedAt, outcome, nil)
}

// complete 写审计记录后完成 Future（保证 Wait 返回时记录已写入）
func (c *Client) complete(ctx context.Context, f *Future, path string, startedAt time.Time, outcome *types.Outcome, err error) {
	if c.recorder != nil {
		rec := types.NewRecord(outcome, path, startedAt, time.Since(startedAt))
		if rerr := c.recorder.Record(context.WithoutCancel(ctx), rec); rerr != nil {
			log.Warnf("写入审计记录失败: %v", rerr)
		}
	}
	if !f.resolve(outcome, err) {
		log.WithField("request_id", f.requestID).Error("Future 被重复完成")
	}
}
