package types

// Side 订单方向
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid 检查方向是否合法
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderType 订单类型（交易所原始取值）
type OrderType string

const (
	OrderTypeLimit      OrderType = "limit"
	OrderTypeMarket     OrderType = "market"
	OrderTypeStopLimit  OrderType = "stop_limit"
	OrderTypeStopMarket OrderType = "stop_market"
)

// Valid 检查订单类型是否合法
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeLimit, OrderTypeMarket, OrderTypeStopLimit, OrderTypeStopMarket:
		return true
	}
	return false
}

// UsesLimitPrice 是否需要限价（limit 族必须带 price，market 族忽略 price）
func (t OrderType) UsesLimitPrice() bool {
	return t == OrderTypeLimit || t == OrderTypeStopLimit
}

// IsStop 是否为条件单
func (t OrderType) IsStop() bool {
	return t == OrderTypeStopLimit || t == OrderTypeStopMarket
}

// TimeInForce 订单有效期
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "good_til_cancelled"
	TimeInForceGTD TimeInForce = "good_til_day"
	TimeInForceFOK TimeInForce = "fill_or_kill"
	TimeInForceIOC TimeInForce = "immediate_or_cancel"
)

// Valid 检查有效期取值（空值表示使用交易所默认）
func (t TimeInForce) Valid() bool {
	switch t {
	case "", TimeInForceGTC, TimeInForceGTD, TimeInForceFOK, TimeInForceIOC:
		return true
	}
	return false
}

// Trigger 条件单触发价格来源
type Trigger string

const (
	TriggerIndexPrice Trigger = "index_price"
	TriggerMarkPrice  Trigger = "mark_price"
	TriggerLastPrice  Trigger = "last_price"
)

// Valid 检查触发类型（空值表示使用交易所默认）
func (t Trigger) Valid() bool {
	switch t {
	case "", TriggerIndexPrice, TriggerMarkPrice, TriggerLastPrice:
		return true
	}
	return false
}

// InstrumentKind 合约品种
type InstrumentKind string

const (
	KindFuture      InstrumentKind = "future"
	KindOption      InstrumentKind = "option"
	KindSpot        InstrumentKind = "spot"
	KindFutureCombo InstrumentKind = "future_combo"
	KindOptionCombo InstrumentKind = "option_combo"
)

// Valid 检查品种取值（空值表示不过滤）
func (k InstrumentKind) Valid() bool {
	switch k {
	case "", KindFuture, KindOption, KindSpot, KindFutureCombo, KindOptionCombo:
		return true
	}
	return false
}

// Credentials API 凭证（进程生命周期内只读）
type Credentials struct {
	APIKey    string
	APISecret string
}

// IsZero 凭证是否为空
func (c Credentials) IsZero() bool {
	return c.APIKey == "" && c.APISecret == ""
}
