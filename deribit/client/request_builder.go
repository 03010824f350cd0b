package client

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/betbot/gobet-deribit/deribit/types"
)

// Request 构建完成、尚未发送的请求
type Request struct {
	Method     string
	Path       string
	Query      string
	Private    bool
	LimiterKey string
	Operation  types.Operation
}

// RequestLine 返回 path?query（无参数时只有 path）
func (r *Request) RequestLine() string {
	if r.Query == "" {
		return r.Path
	}
	return r.Path + "?" + r.Query
}

// queryWriter 按调用顺序拼接 query，键的顺序即规范顺序
type queryWriter struct {
	sb strings.Builder
}

func (w *queryWriter) add(key, value string) {
	if w.sb.Len() > 0 {
		w.sb.WriteByte('&')
	}
	w.sb.WriteString(key)
	w.sb.WriteByte('=')
	w.sb.WriteString(url.QueryEscape(value))
}

func (w *queryWriter) String() string {
	return w.sb.String()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// BuildRequest 把订单操作映射为规范的 path + query
//
// 纯函数：相同输入总是得到相同输出，不同输入不会得到相同输出（字符串值经过转义）。
// 参数非法或请求行超过 MaxRequestLineLength 时返回 types.ErrInvalidParams。
func BuildRequest(op types.OrderRequest) (*Request, error) {
	op = deref(op)
	if op == nil {
		return nil, types.InvalidParamsf("nil order request")
	}

	var (
		path  string
		query queryWriter
	)

	switch p := op.(type) {
	case types.PlaceOrderParams:
		if err := validatePlace(p); err != nil {
			return nil, err
		}
		path = PathBuy
		if p.Side == types.SideSell {
			path = PathSell
		}
		query.add("amount", formatAmount(p.Amount))
		query.add("instrument_name", p.Instrument)
		if p.Label != "" {
			query.add("label", p.Label)
		}
		if p.Type.UsesLimitPrice() {
			query.add("price", formatPrice(p.Price))
		}
		if p.TimeInForce != "" {
			query.add("time_in_force", string(p.TimeInForce))
		}
		if p.Type.IsStop() && p.Trigger != "" {
			query.add("trigger", string(p.Trigger))
		}
		if p.Type.IsStop() {
			query.add("trigger_price", formatPrice(p.TriggerPrice))
		}
		query.add("type", string(p.Type))

	case types.ModifyOrderParams:
		if strings.TrimSpace(p.OrderID) == "" {
			return nil, types.InvalidParamsf("order_id is required")
		}
		if !positiveFinite(p.NewAmount) {
			return nil, types.InvalidParamsf("amount must be > 0, got %v", p.NewAmount)
		}
		if !positiveFinite(p.NewPrice) {
			return nil, types.InvalidParamsf("price must be > 0, got %v", p.NewPrice)
		}
		path = PathEdit
		query.add("order_id", p.OrderID)
		query.add("amount", formatAmount(p.NewAmount))
		query.add("price", formatPrice(p.NewPrice))

	case types.CancelOrderParams:
		if strings.TrimSpace(p.OrderID) == "" {
			return nil, types.InvalidParamsf("order_id is required")
		}
		path = PathCancel
		query.add("order_id", p.OrderID)

	case types.OrderBookParams:
		if strings.TrimSpace(p.Instrument) == "" {
			return nil, types.InvalidParamsf("instrument_name is required")
		}
		if p.Depth < 0 || p.Depth > MaxOrderBookDepth {
			return nil, types.InvalidParamsf("depth must be within 1..%d, got %d", MaxOrderBookDepth, p.Depth)
		}
		path = PathOrderBook
		query.add("instrument_name", p.Instrument)
		if p.Depth > 0 {
			query.add("depth", strconv.Itoa(p.Depth))
		}

	case types.PositionsParams:
		if strings.TrimSpace(p.Currency) == "" {
			return nil, types.InvalidParamsf("currency is required")
		}
		if !p.Kind.Valid() {
			return nil, types.InvalidParamsf("invalid kind %q", p.Kind)
		}
		path = PathPositions
		query.add("currency", p.Currency)
		if p.Kind != "" {
			query.add("kind", string(p.Kind))
		}

	case types.OpenOrdersParams:
		path = PathOpenOrders

	default:
		return nil, types.InvalidParamsf("unsupported order request %T", op)
	}

	req := &Request{
		Method:     http.MethodGet,
		Path:       path,
		Query:      query.String(),
		Private:    op.Operation().IsPrivate(),
		LimiterKey: limiterKey(op.Operation()),
		Operation:  op.Operation(),
	}
	if n := len(req.RequestLine()); n > MaxRequestLineLength {
		return nil, types.InvalidParamsf("request line is %d bytes, exceeds %d", n, MaxRequestLineLength)
	}
	return req, nil
}

func validatePlace(p types.PlaceOrderParams) error {
	if strings.TrimSpace(p.Instrument) == "" {
		return types.InvalidParamsf("instrument_name is required")
	}
	if !p.Side.Valid() {
		return types.InvalidParamsf("invalid side %q", p.Side)
	}
	if !p.Type.Valid() {
		return types.InvalidParamsf("invalid order type %q", p.Type)
	}
	if !positiveFinite(p.Amount) {
		return types.InvalidParamsf("amount must be > 0, got %v", p.Amount)
	}
	if p.Type.UsesLimitPrice() && !positiveFinite(p.Price) {
		return types.InvalidParamsf("%s order requires price > 0, got %v", p.Type, p.Price)
	}
	if p.Price < 0 || math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
		return types.InvalidParamsf("price must not be negative, got %v", p.Price)
	}
	if p.Type.IsStop() && !positiveFinite(p.TriggerPrice) {
		return types.InvalidParamsf("%s order requires trigger_price > 0, got %v", p.Type, p.TriggerPrice)
	}
	if !p.TimeInForce.Valid() {
		return types.InvalidParamsf("invalid time_in_force %q", p.TimeInForce)
	}
	if !p.Trigger.Valid() {
		return types.InvalidParamsf("invalid trigger %q", p.Trigger)
	}
	return nil
}

// deref 允许调用方传入指针形式的参数；nil 指针视为 nil 请求
func deref(op types.OrderRequest) types.OrderRequest {
	switch p := op.(type) {
	case *types.PlaceOrderParams:
		if p == nil {
			return nil
		}
		return *p
	case *types.ModifyOrderParams:
		if p == nil {
			return nil
		}
		return *p
	case *types.CancelOrderParams:
		if p == nil {
			return nil
		}
		return *p
	case *types.OrderBookParams:
		if p == nil {
			return nil
		}
		return *p
	case *types.PositionsParams:
		if p == nil {
			return nil
		}
		return *p
	case *types.OpenOrdersParams:
		if p == nil {
			return nil
		}
		return *p
	}
	return op
}

func limiterKey(op types.Operation) string {
	switch op {
	case types.OpPlaceOrder, types.OpModifyOrder, types.OpCancelOrder:
		return LimiterKeyMatching
	default:
		return LimiterKeyNonMatching
	}
}
