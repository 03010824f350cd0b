package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/betbot/gobet-deribit/deribit/display"
	"github.com/betbot/gobet-deribit/deribit/stream"
	"github.com/betbot/gobet-deribit/deribit/types"
	"github.com/betbot/gobet-deribit/pkg/config"
)

var log = logrus.WithField("component", "trader")

type step struct {
	name string
	op   types.Operation
	run  func(ctx context.Context) (*types.Outcome, error)
}

// runDemoSequence 演示流程：挂买单、吃单、再挂买单，改单、撤单，然后查询订单簿/持仓/挂单
func runDemoSequence(ctx context.Context, a *app) {
	c := a.client
	buy := types.PlaceOrderParams{Instrument: "ETH-PERPETUAL", Side: types.SideBuy, Amount: 2, Price: 2320, Label: "market0000234", Type: types.OrderTypeLimit}
	sell := types.PlaceOrderParams{Instrument: "ETH-PERPETUAL", Side: types.SideSell, Amount: 2, Price: 2420, Label: "market0000234", Type: types.OrderTypeLimit}
	rebuy := sell
	rebuy.Side = types.SideBuy

	steps := []step{
		{"place buy", types.OpPlaceOrder, func(ctx context.Context) (*types.Outcome, error) { return c.PlaceOrder(ctx, buy) }},
		{"place sell", types.OpPlaceOrder, func(ctx context.Context) (*types.Outcome, error) { return c.PlaceOrder(ctx, sell) }},
		{"place buy", types.OpPlaceOrder, func(ctx context.Context) (*types.Outcome, error) { return c.PlaceOrder(ctx, rebuy) }},
		{"modify", types.OpModifyOrder, func(ctx context.Context) (*types.Outcome, error) {
			return c.ModifyOrder(ctx, types.ModifyOrderParams{OrderID: "ETH-14308636889", NewAmount: 4, NewPrice: 2200})
		}},
		{"cancel", types.OpCancelOrder, func(ctx context.Context) (*types.Outcome, error) {
			return c.CancelOrder(ctx, types.CancelOrderParams{OrderID: "ETH-14323480383"})
		}},
		{"order book", types.OpGetOrderBook, func(ctx context.Context) (*types.Outcome, error) {
			return c.GetOrderBook(ctx, types.OrderBookParams{Instrument: "ETH-PERPETUAL"})
		}},
		{"positions", types.OpGetPositions, func(ctx context.Context) (*types.Outcome, error) {
			return c.GetPositions(ctx, types.PositionsParams{Currency: "ETH", Kind: types.KindFuture})
		}},
		{"open orders", types.OpGetOpenOrders, c.GetOpenOrders},
	}

	for _, s := range steps {
		if ctx.Err() != nil {
			log.Warn("收到退出信号，停止演示")
			return
		}
		entry := log.WithField("step", s.name)
		outcome, err := s.run(ctx)
		if err != nil {
			entry.Warnf("%s: %v", outcome.Body, err)
			continue
		}
		show(entry, s.op, outcome)
	}
}

// show 解析并展示交易所响应；失败时仍尽量解析原始响应体中的错误信息
func show(entry *logrus.Entry, op types.Operation, outcome *types.Outcome) {
	if !outcome.Success {
		entry.WithFields(logrus.Fields{
			"kind":        outcome.Kind,
			"http_status": outcome.HTTPStatus,
		}).Warn(outcome.Body)
		if outcome.RawBody == types.NoResponseBody {
			return
		}
	}
	ev, err := display.ClassifyAs(op, outcome.RawBody)
	if err != nil {
		entry.Warnf("无法解析响应: %v", err)
		return
	}
	display.Log(entry, ev)
	fmt.Println(display.Render(ev))
}

// summarize 打印本次运行写入 journal 的失败统计
func (a *app) summarize(ctx context.Context) {
	if a.journal == nil {
		return
	}
	counts, err := a.journal.CountFailures(ctx)
	if err != nil {
		log.Warnf("读取 journal 失败: %v", err)
		return
	}
	if len(counts) == 0 {
		log.Info("journal: 没有失败记录")
		return
	}
	for kind, n := range counts {
		log.WithField("kind", kind).Infof("journal: %d 次失败", n)
	}
}

// ticker 推送中用到的字段
type ticker struct {
	Instrument   string      `json:"instrument_name"`
	BestBidPrice display.Num `json:"best_bid_price"`
	BestAskPrice display.Num `json:"best_ask_price"`
	MarkPrice    display.Num `json:"mark_price"`
	Timestamp    int64       `json:"timestamp"`
}

func startStream(ctx context.Context, cfg *config.Config) (*stream.MarketStream, error) {
	scfg := stream.DefaultConfig()
	scfg.URL = cfg.WSURL
	if cfg.Proxy != nil {
		scfg.ProxyURL = cfg.Proxy.URL()
	}
	ms := stream.New(scfg)

	streamLog := logrus.WithField("component", "market_stream")
	ms.OnNotification(func(n stream.Notification) {
		var t ticker
		if err := json.Unmarshal(n.Data, &t); err != nil {
			streamLog.Debugf("忽略无法解析的推送: %v", err)
			return
		}
		streamLog.WithFields(logrus.Fields{
			"instrument": t.Instrument,
			"bid":        t.BestBidPrice.String(),
			"ask":        t.BestAskPrice.String(),
			"mark":       t.MarkPrice.String(),
			"time":       display.FormatTimestamp(t.Timestamp),
		}).Info("ticker")
	})

	if err := ms.Connect(ctx); err != nil {
		return nil, err
	}
	channel := stream.TickerChannel(cfg.Stream.Instrument, cfg.Stream.Interval)
	if err := ms.Subscribe(channel); err != nil {
		_ = ms.Close()
		return nil, err
	}
	streamLog.WithField("channel", channel).Info("已订阅行情")
	return ms, nil
}
