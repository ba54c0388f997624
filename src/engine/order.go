package engine

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderStatus string

const (
	StatusOpen      OrderStatus = "OPEN"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// PriceScale is the number of decimal digits in one tick. Every price the
// engine touches is an int64 tick count, so 100.5 is stored as 1005000.
const PriceScale = 4

// edge case: price stored as int64 ticks to avoid floating-point precision errors
type Order struct {
	ID        uint64 // assigned by the book, strictly increasing, doubles as time priority
	Side      Side
	Price     int64 // ticks
	Quantity  int64 // original quantity, never mutated
	Remaining int64
	Timestamp int64 // unix timestamp in milliseconds at acceptance
	Cancelled bool
	Status    OrderStatus
}

func (o *Order) IsFilled() bool {
	return o.Remaining <= 0
}

func (o *Order) FilledQuantity() int64 {
	return o.Quantity - o.Remaining
}

// Trade records one match. Price is always the resting (maker) order's price.
type Trade struct {
	TradeID      string
	Price        int64
	Quantity     int64
	Timestamp    int64
	TakerOrderID uint64
	MakerOrderID uint64
}

type PriceLevel struct {
	Price  int64
	Orders []*Order // fifo ordering for time priority
}
