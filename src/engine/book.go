package engine

import (
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
)

type bidItem struct {
	level *PriceLevel
}

func (b *bidItem) Less(than btree.Item) bool {
	other := than.(*bidItem)
	return b.level.Price > other.level.Price
}

type askItem struct {
	level *PriceLevel
}

func (a *askItem) Less(than btree.Item) bool {
	other := than.(*askItem)
	return a.level.Price < other.level.Price
}

// TradeListener receives every trade synchronously, in match order, before
// AddOrder returns.
type TradeListener func(Trade)

type LevelSnapshot struct {
	Price    int64
	Quantity int64
}

// OrderBook is a single-instrument limit order book with price-time priority
// matching. Cancellation is lazy: CancelOrder only flips a flag and drops the
// index entry, and the queue entry is physically removed when it next reaches
// the front of its level during matching or a best-price lookup.
type OrderBook struct {
	bids    *btree.BTree // sorted descending (highest first)
	asks    *btree.BTree // sorted ascending (lowest first)
	orders  map[uint64]*Order
	seq     uint64
	onTrade TradeListener

	// Best-price lookups prune exhausted queue fronts and empty levels, so
	// every public operation mutates. One lock covers the whole book.
	mu sync.Mutex
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids:   btree.New(32),
		asks:   btree.New(32),
		orders: make(map[uint64]*Order),
	}
}

// SetTradeListener installs the trade observer. Call before submitting orders.
func (ob *OrderBook) SetTradeListener(fn TradeListener) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.onTrade = fn
}

// AddOrder validates, assigns the next order id, matches against the opposite
// side while prices cross, and rests any remainder. The returned trades are in
// match order; the listener, if set, has already seen each of them.
func (ob *OrderBook) AddOrder(side Side, price, quantity int64) (uint64, []Trade, error) {
	if side != SideBuy && side != SideSell {
		return 0, nil, &InvalidOrderError{Reason: "side must be BUY or SELL"}
	}
	if price <= 0 {
		return 0, nil, &InvalidOrderError{Reason: "price must be positive"}
	}
	if quantity <= 0 {
		return 0, nil, &InvalidOrderError{Reason: "quantity must be positive"}
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.seq++
	order := &Order{
		ID:        ob.seq,
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		Remaining: quantity,
		Timestamp: time.Now().UnixMilli(),
		Status:    StatusOpen,
	}

	trades := ob.match(order)

	if order.Remaining > 0 {
		ob.rest(order)
	}

	return order.ID, trades, nil
}

func (ob *OrderBook) match(taker *Order) []Trade {
	var trades []Trade
	restingSide := opposite(taker.Side)

	for taker.Remaining > 0 {
		level := ob.bestLevel(restingSide)
		if level == nil || !crosses(taker, level.Price) {
			break
		}

		for taker.Remaining > 0 && len(level.Orders) > 0 {
			maker := level.Orders[0]
			if maker.Cancelled {
				// lazy deletion completes here
				level.Orders = level.Orders[1:]
				continue
			}

			qty := taker.Remaining
			if maker.Remaining < qty {
				qty = maker.Remaining
			}

			taker.Remaining -= qty
			maker.Remaining -= qty

			trade := Trade{
				TradeID:      uuid.New().String(),
				Price:        level.Price,
				Quantity:     qty,
				Timestamp:    time.Now().UnixMilli(),
				TakerOrderID: taker.ID,
				MakerOrderID: maker.ID,
			}
			trades = append(trades, trade)
			if ob.onTrade != nil {
				ob.onTrade(trade)
			}

			if maker.IsFilled() {
				maker.Status = StatusFilled
				delete(ob.orders, maker.ID)
				level.Orders = level.Orders[1:]
			}
		}

		// edge case: remove the price level once its queue is drained
		if len(level.Orders) == 0 {
			ob.treeFor(restingSide).Delete(itemFor(restingSide, level))
		}
	}

	if taker.Remaining == 0 {
		taker.Status = StatusFilled
	}

	return trades
}

func (ob *OrderBook) rest(order *Order) {
	ob.orders[order.ID] = order

	level := ob.findLevel(order.Side, order.Price)
	if level == nil {
		level = &PriceLevel{Price: order.Price}
		ob.treeFor(order.Side).ReplaceOrInsert(itemFor(order.Side, level))
	}
	level.Orders = append(level.Orders, order)
}

// CancelOrder cancels a resting order in O(1). Unknown ids and orders already
// filled or cancelled report false; that is an expected outcome, not an error.
func (ob *OrderBook) CancelOrder(id uint64) bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order, ok := ob.orders[id]
	if !ok {
		return false
	}

	order.Cancelled = true
	order.Status = StatusCancelled
	delete(ob.orders, id)
	// the queue entry stays in its price level until matching or a
	// best-price lookup reaches it
	return true
}

func (ob *OrderBook) BestBid() (int64, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	level := ob.bestLevel(SideBuy)
	if level == nil {
		return 0, false
	}
	return level.Price, true
}

func (ob *OrderBook) BestAsk() (int64, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	level := ob.bestLevel(SideSell)
	if level == nil {
		return 0, false
	}
	return level.Price, true
}

// Spread returns best ask minus best bid in ticks; false when a side is empty.
func (ob *OrderBook) Spread() (int64, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	bid := ob.bestLevel(SideBuy)
	ask := ob.bestLevel(SideSell)
	if bid == nil || ask == nil {
		return 0, false
	}
	return ask.Price - bid.Price, true
}

// MidPrice returns (best bid + best ask) / 2 in ticks. The value may land on a
// half tick; tick sums stay far below 2^53 so the float is exact.
func (ob *OrderBook) MidPrice() (float64, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	bid := ob.bestLevel(SideBuy)
	ask := ob.bestLevel(SideSell)
	if bid == nil || ask == nil {
		return 0, false
	}
	return float64(bid.Price+ask.Price) / 2, true
}

// TotalVolume sums the remaining quantity of the live orders at one exact
// price level. Cancelled entries still queued do not count.
func (ob *OrderBook) TotalVolume(side Side, price int64) int64 {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	level := ob.findLevel(side, price)
	if level == nil {
		return 0
	}

	var total int64
	for _, order := range level.Orders {
		if order.Cancelled {
			continue
		}
		total += order.Remaining
	}
	return total
}

// Lookup returns a copy of a resting order. Filled and cancelled orders are
// not retained.
func (ob *OrderBook) Lookup(id uint64) (Order, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order, ok := ob.orders[id]
	if !ok {
		return Order{}, false
	}
	return *order, true
}

func (ob *OrderBook) OpenOrders() int {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return len(ob.orders)
}

// Depth aggregates live volume for the top n levels per side. Levels whose
// queues hold only cancelled orders are skipped.
func (ob *OrderBook) Depth(n int) (bids, asks []LevelSnapshot) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	bids = snapshotSide(ob.bids, SideBuy, n)
	asks = snapshotSide(ob.asks, SideSell, n)
	return bids, asks
}

func snapshotSide(tree *btree.BTree, side Side, n int) []LevelSnapshot {
	out := make([]LevelSnapshot, 0, n)
	tree.Ascend(func(item btree.Item) bool {
		if len(out) >= n {
			return false
		}
		level := levelOf(side, item)
		var total int64
		for _, order := range level.Orders {
			if order.Cancelled {
				continue
			}
			total += order.Remaining
		}
		if total > 0 {
			out = append(out, LevelSnapshot{Price: level.Price, Quantity: total})
		}
		return true
	})
	return out
}

// bestLevel returns the first level on a side that still holds a live order,
// dropping cancelled front entries and pruning exhausted levels on the way.
func (ob *OrderBook) bestLevel(side Side) *PriceLevel {
	tree := ob.treeFor(side)
	for tree.Len() > 0 {
		level := levelOf(side, tree.Min())
		for len(level.Orders) > 0 {
			if level.Orders[0].Cancelled {
				level.Orders = level.Orders[1:]
				continue
			}
			return level
		}
		tree.Delete(itemFor(side, level))
	}
	return nil
}

func (ob *OrderBook) findLevel(side Side, price int64) *PriceLevel {
	probe := &PriceLevel{Price: price}
	item := ob.treeFor(side).Get(itemFor(side, probe))
	if item == nil {
		return nil
	}
	return levelOf(side, item)
}

func (ob *OrderBook) treeFor(side Side) *btree.BTree {
	if side == SideBuy {
		return ob.bids
	}
	return ob.asks
}

func itemFor(side Side, level *PriceLevel) btree.Item {
	if side == SideBuy {
		return &bidItem{level: level}
	}
	return &askItem{level: level}
}

func levelOf(side Side, item btree.Item) *PriceLevel {
	if side == SideBuy {
		return item.(*bidItem).level
	}
	return item.(*askItem).level
}

func crosses(taker *Order, restingPrice int64) bool {
	if taker.Side == SideBuy {
		return taker.Price >= restingPrice
	}
	return taker.Price <= restingPrice
}

func opposite(side Side) Side {
	if side == SideBuy {
		return SideSell
	}
	return SideBuy
}
