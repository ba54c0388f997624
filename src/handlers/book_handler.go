package handlers

import (
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"limit-book/src/engine"
	"limit-book/src/models"
)

type BookHandler struct {
	Book            *engine.OrderBook
	StartTime       time.Time
	OrdersReceived  int64
	OrdersMatched   int64
	OrdersCancelled int64
	TradesExecuted  int64

	latencies    []time.Duration
	latenciesMu  sync.RWMutex
	maxLatencies int
}

func NewBookHandler(book *engine.OrderBook) *BookHandler {
	maxLatencies := 10000
	if envMax := os.Getenv("METRICS_MAX_LATENCIES"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxLatencies = parsed
		}
	}

	return &BookHandler{
		Book:         book,
		StartTime:    time.Now(),
		latencies:    make([]time.Duration, 0, maxLatencies),
		maxLatencies: maxLatencies,
	}
}

func (h *BookHandler) SubmitOrder(c *fiber.Ctx) error {
	var req models.SubmitOrderRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Str("path", c.Path()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	side, price, err := parseSubmitOrderRequest(&req)
	if err != nil {
		log.Warn().
			Err(err).
			Str("side", req.Side).
			Str("price", req.Price).
			Int64("quantity", req.Quantity).
			Str("ip", c.IP()).
			Msg("Invalid order request")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: err.Error(),
		})
	}

	atomic.AddInt64(&h.OrdersReceived, 1)

	startTime := time.Now()
	orderID, bookTrades, err := h.Book.AddOrder(side, price, req.Quantity)
	h.recordLatency(time.Since(startTime))

	if err != nil {
		// edge case: the book re-validates; surface its rejection as 400
		if _, ok := err.(*engine.InvalidOrderError); ok {
			log.Warn().
				Err(err).
				Str("side", req.Side).
				Str("price", req.Price).
				Msg("Order rejected by book")
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
				Error: err.Error(),
			})
		}
		log.Error().
			Err(err).
			Str("side", req.Side).
			Msg("Error adding order")
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Internal server error",
		})
	}

	var filled int64
	trades := make([]models.TradeInfo, 0, len(bookTrades))
	for _, trade := range bookTrades {
		filled += trade.Quantity
		trades = append(trades, models.TradeInfo{
			TradeID:      trade.TradeID,
			Price:        models.FormatPrice(trade.Price),
			Quantity:     trade.Quantity,
			Timestamp:    trade.Timestamp,
			TakerOrderID: trade.TakerOrderID,
			MakerOrderID: trade.MakerOrderID,
		})
	}
	remaining := req.Quantity - filled

	response := models.SubmitOrderResponse{
		OrderID:           orderID,
		FilledQuantity:    filled,
		RemainingQuantity: remaining,
		Trades:            trades,
	}

	if filled > 0 {
		atomic.AddInt64(&h.OrdersMatched, 1)
	}
	atomic.AddInt64(&h.TradesExecuted, int64(len(trades)))

	log.Info().
		Uint64("order_id", orderID).
		Str("side", req.Side).
		Str("price", req.Price).
		Int64("quantity", req.Quantity).
		Int64("filled_quantity", filled).
		Int64("remaining_quantity", remaining).
		Int("trades_count", len(trades)).
		Str("ip", c.IP()).
		Msg("Order processed")

	if filled == 0 {
		response.Status = string(engine.StatusOpen)
		response.Message = "Order resting on the book"
		return c.Status(fiber.StatusCreated).JSON(response)
	} else if remaining > 0 {
		response.Status = "PARTIALLY_FILLED"
		return c.Status(fiber.StatusAccepted).JSON(response)
	}
	response.Status = string(engine.StatusFilled)
	return c.Status(fiber.StatusOK).JSON(response)
}

func (h *BookHandler) CancelOrder(c *fiber.Ctx) error {
	orderID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid order id",
		})
	}

	// edge case: unknown, filled, and already-cancelled ids all report false
	if !h.Book.CancelOrder(orderID) {
		log.Warn().
			Uint64("order_id", orderID).
			Str("ip", c.IP()).
			Msg("Cancel order: order not found or already terminal")
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Order not found or already terminal",
		})
	}

	atomic.AddInt64(&h.OrdersCancelled, 1)

	log.Info().
		Uint64("order_id", orderID).
		Str("ip", c.IP()).
		Msg("Order cancelled")

	return c.Status(fiber.StatusOK).JSON(models.CancelOrderResponse{
		OrderID: orderID,
		Status:  string(engine.StatusCancelled),
	})
}

func (h *BookHandler) GetOrder(c *fiber.Ctx) error {
	orderID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid order id",
		})
	}

	order, ok := h.Book.Lookup(orderID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Order not found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(models.OrderStatusResponse{
		OrderID:        order.ID,
		Side:           string(order.Side),
		Price:          models.FormatPrice(order.Price),
		Quantity:       order.Quantity,
		FilledQuantity: order.FilledQuantity(),
		Status:         string(order.Status),
		Timestamp:      order.Timestamp,
	})
}

func (h *BookHandler) GetTopOfBook(c *fiber.Ctx) error {
	response := models.TopOfBookResponse{Timestamp: time.Now().UnixMilli()}

	bid, hasBid := h.Book.BestBid()
	ask, hasAsk := h.Book.BestAsk()

	if hasBid {
		s := models.FormatPrice(bid)
		response.BestBid = &s
	}
	if hasAsk {
		s := models.FormatPrice(ask)
		response.BestAsk = &s
	}
	if hasBid && hasAsk {
		spread := models.FormatPrice(ask - bid)
		mid := models.FormatMidPrice(bid, ask)
		response.Spread = &spread
		response.MidPrice = &mid
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

func (h *BookHandler) GetDepth(c *fiber.Ctx) error {
	defaultDepth := 10
	if envDepth := os.Getenv("BOOK_DEFAULT_DEPTH"); envDepth != "" {
		if parsed, err := strconv.Atoi(envDepth); err == nil && parsed > 0 {
			defaultDepth = parsed
		}
	}

	maxDepth := 1000
	if envMaxDepth := os.Getenv("BOOK_MAX_DEPTH"); envMaxDepth != "" {
		if parsed, err := strconv.Atoi(envMaxDepth); err == nil && parsed > 0 {
			maxDepth = parsed
		}
	}

	depth, err := strconv.Atoi(c.Query("depth", strconv.Itoa(defaultDepth)))
	if err != nil || depth <= 0 {
		depth = defaultDepth
	}

	// edge case: enforce maximum depth limit
	if depth > maxDepth {
		depth = maxDepth
	}

	bidLevels, askLevels := h.Book.Depth(depth)

	bids := make([]models.PriceLevelInfo, 0, len(bidLevels))
	for _, level := range bidLevels {
		bids = append(bids, models.PriceLevelInfo{
			Price:    models.FormatPrice(level.Price),
			Quantity: level.Quantity,
		})
	}

	asks := make([]models.PriceLevelInfo, 0, len(askLevels))
	for _, level := range askLevels {
		asks = append(asks, models.PriceLevelInfo{
			Price:    models.FormatPrice(level.Price),
			Quantity: level.Quantity,
		})
	}

	return c.Status(fiber.StatusOK).JSON(models.DepthResponse{
		Timestamp: time.Now().UnixMilli(),
		Bids:      bids,
		Asks:      asks,
	})
}

func (h *BookHandler) GetVolume(c *fiber.Ctx) error {
	var side engine.Side
	switch c.Query("side") {
	case "BUY":
		side = engine.SideBuy
	case "SELL":
		side = engine.SideSell
	default:
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "side must be BUY or SELL",
		})
	}

	priceStr := c.Query("price")
	price, err := models.ParsePrice(priceStr)
	if err != nil || price <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "price must be a positive decimal number",
		})
	}

	return c.Status(fiber.StatusOK).JSON(models.VolumeResponse{
		Side:   string(side),
		Price:  models.FormatPrice(price),
		Volume: h.Book.TotalVolume(side, price),
	})
}

func (h *BookHandler) HealthCheck(c *fiber.Ctx) error {
	uptime := time.Since(h.StartTime).Seconds()

	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(uptime),
		OpenOrders:    int64(h.Book.OpenOrders()),
	})
}

func (h *BookHandler) Metrics(c *fiber.Ctx) error {
	p50, p99, p999 := h.calculateLatencyPercentiles()

	return c.Status(fiber.StatusOK).JSON(models.MetricsResponse{
		OrdersReceived:         atomic.LoadInt64(&h.OrdersReceived),
		OrdersMatched:          atomic.LoadInt64(&h.OrdersMatched),
		OrdersCancelled:        atomic.LoadInt64(&h.OrdersCancelled),
		OpenOrders:             int64(h.Book.OpenOrders()),
		TradesExecuted:         atomic.LoadInt64(&h.TradesExecuted),
		LatencyP50Ms:           p50,
		LatencyP99Ms:           p99,
		LatencyP999Ms:          p999,
		ThroughputOrdersPerSec: h.calculateThroughput(),
	})
}

func (h *BookHandler) recordLatency(latency time.Duration) {
	h.latenciesMu.Lock()
	defer h.latenciesMu.Unlock()

	h.latencies = append(h.latencies, latency)

	// edge case: maintain rolling window by removing oldest measurements
	if len(h.latencies) > h.maxLatencies {
		removeCount := len(h.latencies) - h.maxLatencies
		h.latencies = h.latencies[removeCount:]
	}
}

func (h *BookHandler) calculateLatencyPercentiles() (p50, p99, p999 float64) {
	h.latenciesMu.RLock()
	defer h.latenciesMu.RUnlock()

	if len(h.latencies) == 0 {
		return 0, 0, 0
	}

	sorted := make([]time.Duration, len(h.latencies))
	copy(sorted, h.latencies)

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	percentile := func(q float64) float64 {
		idx := int(float64(len(sorted)) * q)
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return float64(sorted[idx].Nanoseconds()) / 1e6
	}

	return percentile(0.50), percentile(0.99), percentile(0.999)
}

func (h *BookHandler) calculateThroughput() float64 {
	uptime := time.Since(h.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&h.OrdersReceived)) / uptime
}

func parseSubmitOrderRequest(req *models.SubmitOrderRequest) (engine.Side, int64, error) {
	var side engine.Side
	switch req.Side {
	case "BUY":
		side = engine.SideBuy
	case "SELL":
		side = engine.SideSell
	default:
		return "", 0, &ValidationError{Message: "Invalid order: side must be BUY or SELL"}
	}

	if req.Price == "" {
		return "", 0, &ValidationError{Message: "Invalid order: price is required"}
	}

	price, err := models.ParsePrice(req.Price)
	if err != nil {
		return "", 0, &ValidationError{Message: "Invalid order: " + err.Error()}
	}
	if price <= 0 {
		return "", 0, &ValidationError{Message: "Invalid order: price must be positive"}
	}

	if req.Quantity <= 0 {
		return "", 0, &ValidationError{Message: "Invalid order: quantity must be positive"}
	}

	return side, price, nil
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
