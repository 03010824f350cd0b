// Package display 解析交易所响应并输出到日志或终端
package display

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/gobet-deribit/deribit/types"
)

// EventKind 响应种类
type EventKind string

const (
	EventOrder         EventKind = "order"
	EventCancellation  EventKind = "cancellation"
	EventOpenOrders    EventKind = "open_orders"
	EventPositions     EventKind = "positions"
	EventOrderBook     EventKind = "order_book"
	EventExchangeError EventKind = "exchange_error"
	EventUnknown       EventKind = "unknown"
)

// Num 容错数值：非数字取值（例如市价单的 "market_price"）解析为 0
type Num struct {
	decimal.Decimal
}

func (n *Num) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		n.Decimal = decimal.Zero
		return nil
	}
	n.Decimal = d
	return nil
}

// Order 订单
type Order struct {
	OrderID           string `json:"order_id"`
	Instrument        string `json:"instrument_name"`
	OrderType         string `json:"order_type"`
	OrderState        string `json:"order_state"`
	Direction         string `json:"direction"`
	Amount            Num    `json:"amount"`
	FilledAmount      Num    `json:"filled_amount"`
	Price             Num    `json:"price"`
	TimeInForce       string `json:"time_in_force"`
	Label             string `json:"label"`
	CreationTimestamp int64  `json:"creation_timestamp"`
}

// Position 持仓
type Position struct {
	Instrument         string `json:"instrument_name"`
	Kind               string `json:"kind"`
	Direction          string `json:"direction"`
	Size               Num    `json:"size"`
	MarkPrice          Num    `json:"mark_price"`
	AveragePrice       Num    `json:"average_price"`
	FloatingProfitLoss Num    `json:"floating_profit_loss"`
	TotalProfitLoss    Num    `json:"total_profit_loss"`
	Leverage           Num    `json:"leverage"`
	MaintenanceMargin  Num    `json:"maintenance_margin"`
	InitialMargin      Num    `json:"initial_margin"`
	OpenOrdersMargin   Num    `json:"open_orders_margin"`
	CreationTimestamp  int64  `json:"creation_timestamp"`
}

// Level 订单簿档位
type Level struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// OrderBook 订单簿快照
type OrderBook struct {
	Instrument   string
	BestBidPrice decimal.Decimal
	BestAskPrice decimal.Decimal
	MarkPrice    decimal.Decimal
	IndexPrice   decimal.Decimal
	Timestamp    int64
	Bids         []Level
	Asks         []Level
}

type rawOrderBook struct {
	Instrument   string  `json:"instrument_name"`
	BestBidPrice Num     `json:"best_bid_price"`
	BestAskPrice Num     `json:"best_ask_price"`
	MarkPrice    Num     `json:"mark_price"`
	IndexPrice   Num     `json:"index_price"`
	Timestamp    int64   `json:"timestamp"`
	Bids         [][]Num `json:"bids"`
	Asks         [][]Num `json:"asks"`
}

// Event 解析后的响应
type Event struct {
	Kind             EventKind
	Order            *Order
	CancelledOrderID string
	OpenOrders       []Order
	Positions        []Position
	OrderBook        *OrderBook
	Error            *types.RPCError
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *types.RPCError `json:"error"`
}

// Classify 根据响应结构推断种类
//
// 数组结果仅凭结构无法区分挂单和持仓：带 size 字段视为持仓，否则视为挂单
func Classify(body string) (*Event, error) {
	return classify(body, 0)
}

// ClassifyAs 已知操作种类时使用，数组结果按操作区分
func ClassifyAs(op types.Operation, body string) (*Event, error) {
	return classify(body, op)
}

func classify(body string, op types.Operation) (*Event, error) {
	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return nil, errors.Wrap(err, "failed to parse JSON")
	}
	if env.Error != nil {
		return &Event{Kind: EventExchangeError, Error: env.Error}, nil
	}
	result := strings.TrimSpace(string(env.Result))
	if result == "" || result == "null" {
		return &Event{Kind: EventUnknown}, nil
	}

	if strings.HasPrefix(result, "[") {
		return classifyArray(env.Result, op)
	}
	if !strings.HasPrefix(result, "{") {
		return &Event{Kind: EventUnknown}, nil
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(env.Result, &members); err != nil {
		return nil, errors.Wrap(err, "failed to parse result")
	}

	switch {
	case has(members, "order"):
		var order Order
		if err := json.Unmarshal(members["order"], &order); err != nil {
			return nil, errors.Wrap(err, "failed to parse order")
		}
		return &Event{Kind: EventOrder, Order: &order}, nil

	case has(members, "bids") || has(members, "asks"):
		var raw rawOrderBook
		if err := json.Unmarshal(env.Result, &raw); err != nil {
			return nil, errors.Wrap(err, "failed to parse order book")
		}
		return &Event{Kind: EventOrderBook, OrderBook: raw.toOrderBook()}, nil

	case has(members, "order_id"):
		var id string
		if err := json.Unmarshal(members["order_id"], &id); err != nil {
			return nil, errors.Wrap(err, "failed to parse order_id")
		}
		return &Event{Kind: EventCancellation, CancelledOrderID: id}, nil
	}
	return &Event{Kind: EventUnknown}, nil
}

func classifyArray(result json.RawMessage, op types.Operation) (*Event, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(result, &items); err != nil {
		return nil, errors.Wrap(err, "failed to parse result array")
	}

	positions := op == types.OpGetPositions
	if op == 0 && len(items) > 0 {
		positions = has(items[0], "size") && !has(items[0], "order_id")
	}

	if positions {
		var list []Position
		if err := json.Unmarshal(result, &list); err != nil {
			return nil, errors.Wrap(err, "failed to parse positions")
		}
		return &Event{Kind: EventPositions, Positions: list}, nil
	}

	var list []Order
	if err := json.Unmarshal(result, &list); err != nil {
		return nil, errors.Wrap(err, "failed to parse open orders")
	}
	return &Event{Kind: EventOpenOrders, OpenOrders: list}, nil
}

func (r *rawOrderBook) toOrderBook() *OrderBook {
	return &OrderBook{
		Instrument:   r.Instrument,
		BestBidPrice: r.BestBidPrice.Decimal,
		BestAskPrice: r.BestAskPrice.Decimal,
		MarkPrice:    r.MarkPrice.Decimal,
		IndexPrice:   r.IndexPrice.Decimal,
		Timestamp:    r.Timestamp,
		Bids:         toLevels(r.Bids),
		Asks:         toLevels(r.Asks),
	}
}

func toLevels(raw [][]Num) []Level {
	levels := make([]Level, 0, len(raw))
	for _, lv := range raw {
		if len(lv) < 2 {
			continue
		}
		levels = append(levels, Level{Price: lv[0].Decimal, Amount: lv[1].Decimal})
	}
	return levels
}

func has(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}

// FormatTimestamp 毫秒时间戳转 UTC 文本
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
