package client

// 默认测试网地址
const (
	DefaultBaseURL = "https://test.deribit.com"
	DefaultWSURL   = "wss://test.deribit.com/ws/api/v2"
)

// REST 路径
const (
	PathBuy        = "/api/v2/private/buy"
	PathSell       = "/api/v2/private/sell"
	PathEdit       = "/api/v2/private/edit"
	PathCancel     = "/api/v2/private/cancel"
	PathOrderBook  = "/api/v2/public/get_order_book"
	PathPositions  = "/api/v2/private/get_positions"
	PathOpenOrders = "/api/v2/private/get_open_orders"
	PathAuth       = "/api/v2/public/auth"
)

// MaxRequestLineLength 请求行（path?query）的最大字节数
const MaxRequestLineLength = 2048

// 限流 key：撮合引擎类请求与其余请求分别计数
const (
	LimiterKeyMatching    = "deribit:matching"
	LimiterKeyNonMatching = "deribit:non_matching"
)

// MaxOrderBookDepth 订单簿档位上限
const MaxOrderBookDepth = 10000
