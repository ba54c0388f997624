package models

type SubmitOrderRequest struct {
	Side     string `json:"side"`
	Price    string `json:"price"` // decimal string, e.g. "100.50"
	Quantity int64  `json:"quantity"`
}

type SubmitOrderResponse struct {
	OrderID           uint64      `json:"order_id"`
	Status            string      `json:"status"`
	Message           string      `json:"message,omitempty"`
	FilledQuantity    int64       `json:"filled_quantity"`
	RemainingQuantity int64       `json:"remaining_quantity"`
	Trades            []TradeInfo `json:"trades,omitempty"`
}

type TradeInfo struct {
	TradeID      string `json:"trade_id"`
	Price        string `json:"price"`
	Quantity     int64  `json:"quantity"`
	Timestamp    int64  `json:"timestamp"` // unix timestamp in milliseconds
	TakerOrderID uint64 `json:"taker_order_id"`
	MakerOrderID uint64 `json:"maker_order_id"`
}

type CancelOrderResponse struct {
	OrderID uint64 `json:"order_id"`
	Status  string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// TopOfBookResponse fields are null when the respective side is empty.
type TopOfBookResponse struct {
	Timestamp int64   `json:"timestamp"`
	BestBid   *string `json:"best_bid"`
	BestAsk   *string `json:"best_ask"`
	Spread    *string `json:"spread"`
	MidPrice  *string `json:"mid_price"`
}

type DepthResponse struct {
	Timestamp int64            `json:"timestamp"`
	Bids      []PriceLevelInfo `json:"bids"` // sorted descending (highest first)
	Asks      []PriceLevelInfo `json:"asks"` // sorted ascending (lowest first)
}

type PriceLevelInfo struct {
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"` // live quantity aggregated at this price
}

type VolumeResponse struct {
	Side   string `json:"side"`
	Price  string `json:"price"`
	Volume int64  `json:"volume"`
}

type OrderStatusResponse struct {
	OrderID        uint64 `json:"order_id"`
	Side           string `json:"side"`
	Price          string `json:"price"`
	Quantity       int64  `json:"quantity"`
	FilledQuantity int64  `json:"filled_quantity"`
	Status         string `json:"status"`
	Timestamp      int64  `json:"timestamp"` // unix timestamp in milliseconds
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	OpenOrders    int64  `json:"open_orders"`
}

type MetricsResponse struct {
	OrdersReceived         int64   `json:"orders_received"`
	OrdersMatched          int64   `json:"orders_matched"`
	OrdersCancelled        int64   `json:"orders_cancelled"`
	OpenOrders             int64   `json:"open_orders"`
	TradesExecuted         int64   `json:"trades_executed"`
	LatencyP50Ms           float64 `json:"latency_p50_ms"`
	LatencyP99Ms           float64 `json:"latency_p99_ms"`
	LatencyP999Ms          float64 `json:"latency_p999_ms"`
	ThroughputOrdersPerSec float64 `json:"throughput_orders_per_sec"`
}
