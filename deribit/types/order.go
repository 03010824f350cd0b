package types

// Operation 交易操作种类
type Operation int

const (
	OpPlaceOrder Operation = iota + 1
	OpModifyOrder
	OpCancelOrder
	OpGetOrderBook
	OpGetPositions
	OpGetOpenOrders
)

func (o Operation) String() string {
	switch o {
	case OpPlaceOrder:
		return "place_order"
	case OpModifyOrder:
		return "modify_order"
	case OpCancelOrder:
		return "cancel_order"
	case OpGetOrderBook:
		return "get_order_book"
	case OpGetPositions:
		return "get_positions"
	case OpGetOpenOrders:
		return "get_open_orders"
	default:
		return "unknown"
	}
}

// ParseOperation String 的逆运算，未知名称返回 0
func ParseOperation(name string) Operation {
	for op := OpPlaceOrder; op <= OpGetOpenOrders; op++ {
		if op.String() == name {
			return op
		}
	}
	return 0
}

// IsPrivate 私有接口需要 Bearer token，公共接口（订单簿）不需要
func (o Operation) IsPrivate() bool {
	return o != OpGetOrderBook
}

// FailureText 失败时返回给调用方的诊断文本
func (o Operation) FailureText() string {
	switch o {
	case OpPlaceOrder:
		return "Failed to place order"
	case OpModifyOrder:
		return "Failed to modify order"
	case OpCancelOrder:
		return "Failed to cancel order"
	case OpGetOrderBook:
		return "Failed to get Order Book"
	case OpGetPositions:
		return "Failed to get positions"
	case OpGetOpenOrders:
		return "Failed to get open orders"
	default:
		return "Request failed"
	}
}

// OrderRequest 订单操作描述（六种变体之一）
// 每个变体只携带与其相关的字段
type OrderRequest interface {
	Operation() Operation
	isOrderRequest()
}

// PlaceOrderParams 下单参数
type PlaceOrderParams struct {
	// Instrument 合约名，例如 ETH-PERPETUAL、BTC-28JUN24
	Instrument string

	// Side 买卖方向
	Side Side

	// Amount 数量（必须大于 0）
	Amount float64

	// Type 订单类型
	Type OrderType

	// Price 限价（limit/stop_limit 必填，market/stop_market 忽略）
	Price float64

	// Label 客户端订单标识
	Label string

	// TimeInForce 有效期，可选
	TimeInForce TimeInForce

	// TriggerPrice 条件单触发价（stop_limit/stop_market 必填）
	TriggerPrice float64

	// Trigger 触发价格来源，可选
	Trigger Trigger
}

func (PlaceOrderParams) Operation() Operation { return OpPlaceOrder }
func (PlaceOrderParams) isOrderRequest()      {}

// ModifyOrderParams 改单参数
type ModifyOrderParams struct {
	OrderID   string
	NewAmount float64
	NewPrice  float64
}

func (ModifyOrderParams) Operation() Operation { return OpModifyOrder }
func (ModifyOrderParams) isOrderRequest()      {}

// CancelOrderParams 撤单参数
type CancelOrderParams struct {
	OrderID string
}

func (CancelOrderParams) Operation() Operation { return OpCancelOrder }
func (CancelOrderParams) isOrderRequest()      {}

// OrderBookParams 订单簿查询参数
type OrderBookParams struct {
	Instrument string
	// Depth 档位数量，0 表示交易所默认
	Depth int
}

func (OrderBookParams) Operation() Operation { return OpGetOrderBook }
func (OrderBookParams) isOrderRequest()      {}

// PositionsParams 持仓查询参数
type PositionsParams struct {
	Currency string
	Kind     InstrumentKind
}

func (PositionsParams) Operation() Operation { return OpGetPositions }
func (PositionsParams) isOrderRequest()      {}

// OpenOrdersParams 挂单查询（无参数）
type OpenOrdersParams struct{}

func (OpenOrdersParams) Operation() Operation { return OpGetOpenOrders }
func (OpenOrdersParams) isOrderRequest()      {}
