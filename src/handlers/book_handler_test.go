package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"limit-book/src/engine"
	"limit-book/src/handlers"
	"limit-book/src/logger"
	"limit-book/src/models"
	"limit-book/src/routes"
)

// setupTestServer creates a test Fiber app with routes. Rate limiting and
// request logging are disabled so assertions see engine behavior only.
func setupTestServer(t *testing.T) *fiber.App {
	t.Helper()

	t.Setenv("RATE_LIMIT_DISABLED", "1")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FILE", "none")
	t.Setenv("REQUEST_LOGGING_DISABLED", "1")

	logger.InitLogger()

	book := engine.NewOrderBook()
	bookHandler := handlers.NewBookHandler(book)

	app := fiber.New()
	routes.SetupRoutes(app, bookHandler)

	return app
}

func submitOrder(t *testing.T, app *fiber.App, side, price string, quantity int64) (*http.Response, models.SubmitOrderResponse) {
	t.Helper()

	body, _ := json.Marshal(models.SubmitOrderRequest{
		Side:     side,
		Price:    price,
		Quantity: quantity,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	var parsed models.SubmitOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp, parsed
}

func TestSubmitOrderAPI(t *testing.T) {
	app := setupTestServer(t)

	resp, parsed := submitOrder(t, app, "BUY", "100.50", 100)
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Expected status 201 for a resting order, got: %d", resp.StatusCode)
	}
	if parsed.Status != "OPEN" {
		t.Errorf("Expected status OPEN, got: %s", parsed.Status)
	}
	if parsed.OrderID == 0 {
		t.Error("Expected a non-zero order id")
	}
	if parsed.RemainingQuantity != 100 {
		t.Errorf("Expected remaining 100, got: %d", parsed.RemainingQuantity)
	}
}

func TestSubmitOrderValidationAPI(t *testing.T) {
	app := setupTestServer(t)

	cases := []struct {
		name     string
		side     string
		price    string
		quantity int64
	}{
		{"bad side", "HOLD", "100.50", 100},
		{"negative quantity", "BUY", "100.50", -100},
		{"zero quantity", "BUY", "100.50", 0},
		{"zero price", "BUY", "0", 100},
		{"negative price", "BUY", "-5", 100},
		{"non-numeric price", "BUY", "abc", 100},
		{"sub-tick price", "BUY", "100.00005", 100},
		{"missing price", "BUY", "", 100},
	}

	for _, tc := range cases {
		resp, _ := submitOrder(t, app, tc.side, tc.price, tc.quantity)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got: %d", tc.name, resp.StatusCode)
		}
	}
}

func TestSubmitOrderMalformedJSON(t *testing.T) {
	app := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400 for malformed JSON, got: %d", resp.StatusCode)
	}
}

func TestMatchingFlowAPI(t *testing.T) {
	app := setupTestServer(t)

	_, sell := submitOrder(t, app, "SELL", "100.50", 100)

	resp, buy := submitOrder(t, app, "BUY", "100.50", 75)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 for a fully filled order, got: %d", resp.StatusCode)
	}
	if buy.Status != "FILLED" {
		t.Errorf("Expected status FILLED, got: %s", buy.Status)
	}
	if buy.FilledQuantity != 75 || buy.RemainingQuantity != 0 {
		t.Errorf("Expected filled 75 / remaining 0, got: %d / %d",
			buy.FilledQuantity, buy.RemainingQuantity)
	}
	if len(buy.Trades) != 1 {
		t.Fatalf("Expected 1 trade, got: %d", len(buy.Trades))
	}

	trade := buy.Trades[0]
	if trade.Price != "100.5" {
		t.Errorf("Expected trade price \"100.5\", got: %q", trade.Price)
	}
	if trade.Quantity != 75 {
		t.Errorf("Expected trade quantity 75, got: %d", trade.Quantity)
	}
	if trade.MakerOrderID != sell.OrderID || trade.TakerOrderID != buy.OrderID {
		t.Errorf("Trade references wrong orders: %+v", trade)
	}
}

func TestPartialFillAPI(t *testing.T) {
	app := setupTestServer(t)

	submitOrder(t, app, "SELL", "100.50", 50)

	resp, buy := submitOrder(t, app, "BUY", "100.50", 80)
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("Expected status 202 for a partial fill, got: %d", resp.StatusCode)
	}
	if buy.Status != "PARTIALLY_FILLED" {
		t.Errorf("Expected status PARTIALLY_FILLED, got: %s", buy.Status)
	}
	if buy.FilledQuantity != 50 || buy.RemainingQuantity != 30 {
		t.Errorf("Expected filled 50 / remaining 30, got: %d / %d",
			buy.FilledQuantity, buy.RemainingQuantity)
	}
}

func TestCancelOrderAPI(t *testing.T) {
	app := setupTestServer(t)

	_, order := submitOrder(t, app, "BUY", "99.50", 100)

	url := fmt.Sprintf("/api/v1/orders/%d", order.OrderID)
	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, url, nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 on cancel, got: %d", resp.StatusCode)
	}

	// edge case: cancelling twice reports 404 the second time
	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, url, nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 on repeat cancel, got: %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/orders/999999", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown id, got: %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/orders/notanid", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400 for non-numeric id, got: %d", resp.StatusCode)
	}
}

func TestGetOrderAPI(t *testing.T) {
	app := setupTestServer(t)

	_, order := submitOrder(t, app, "SELL", "101.25", 40)

	url := fmt.Sprintf("/api/v1/orders/%d", order.OrderID)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, url, nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", resp.StatusCode)
	}

	var status models.OrderStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if status.Side != "SELL" || status.Price != "101.25" || status.Quantity != 40 {
		t.Errorf("Unexpected order status: %+v", status)
	}

	// terminal orders are not retained
	submitOrder(t, app, "BUY", "101.25", 40)
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, url, nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 after the order filled, got: %d", resp.StatusCode)
	}
}

func TestTopOfBookAPI(t *testing.T) {
	app := setupTestServer(t)

	// empty book: every field is null
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/book", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var top models.TopOfBookResponse
	if err := json.NewDecoder(resp.Body).Decode(&top); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if top.BestBid != nil || top.BestAsk != nil || top.Spread != nil || top.MidPrice != nil {
		t.Errorf("Empty book must report null quotes, got: %+v", top)
	}

	submitOrder(t, app, "BUY", "99.50", 100)
	submitOrder(t, app, "BUY", "99.00", 50)
	submitOrder(t, app, "SELL", "100.50", 100)
	submitOrder(t, app, "SELL", "101.00", 50)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/book", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&top); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if top.BestBid == nil || *top.BestBid != "99.5" {
		t.Errorf("Expected best bid \"99.5\", got: %v", top.BestBid)
	}
	if top.BestAsk == nil || *top.BestAsk != "100.5" {
		t.Errorf("Expected best ask \"100.5\", got: %v", top.BestAsk)
	}
	if top.Spread == nil || *top.Spread != "1" {
		t.Errorf("Expected spread \"1\", got: %v", top.Spread)
	}
	if top.MidPrice == nil || *top.MidPrice != "100" {
		t.Errorf("Expected mid price \"100\", got: %v", top.MidPrice)
	}
}

func TestDepthAPI(t *testing.T) {
	app := setupTestServer(t)

	submitOrder(t, app, "BUY", "99.50", 100)
	submitOrder(t, app, "BUY", "99.00", 50)
	submitOrder(t, app, "BUY", "99.50", 25)
	submitOrder(t, app, "SELL", "100.50", 60)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/book/depth?depth=5", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", resp.StatusCode)
	}

	var depth models.DepthResponse
	if err := json.NewDecoder(resp.Body).Decode(&depth); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(depth.Bids) != 2 {
		t.Fatalf("Expected 2 bid levels, got: %d", len(depth.Bids))
	}
	if depth.Bids[0].Price != "99.5" || depth.Bids[0].Quantity != 125 {
		t.Errorf("Expected top bid 99.5 x 125, got: %s x %d",
			depth.Bids[0].Price, depth.Bids[0].Quantity)
	}
	if len(depth.Asks) != 1 || depth.Asks[0].Quantity != 60 {
		t.Errorf("Unexpected asks: %+v", depth.Asks)
	}
}

func TestVolumeAPI(t *testing.T) {
	app := setupTestServer(t)

	submitOrder(t, app, "SELL", "100.25", 50)
	submitOrder(t, app, "SELL", "100.25", 50)
	_, cancelled := submitOrder(t, app, "SELL", "100.25", 50)

	url := fmt.Sprintf("/api/v1/orders/%d", cancelled.OrderID)
	if _, err := app.Test(httptest.NewRequest(http.MethodDelete, url, nil)); err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/book/volume?side=SELL&price=100.25", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var volume models.VolumeResponse
	if err := json.NewDecoder(resp.Body).Decode(&volume); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if volume.Volume != 100 {
		t.Errorf("Expected live volume 100 after cancellation, got: %d", volume.Volume)
	}

	// missing level reports zero volume
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/book/volume?side=BUY&price=100.25", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&volume); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if volume.Volume != 0 {
		t.Errorf("Expected volume 0 at a missing level, got: %d", volume.Volume)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/book/volume?side=WRONG&price=100.25", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a bad side, got: %d", resp.StatusCode)
	}
}

func TestHealthAndMetricsAPI(t *testing.T) {
	app := setupTestServer(t)

	submitOrder(t, app, "BUY", "99.50", 100)
	submitOrder(t, app, "SELL", "99.50", 40)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var health models.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("Expected healthy, got: %s", health.Status)
	}
	if health.OpenOrders != 1 {
		t.Errorf("Expected 1 open order, got: %d", health.OpenOrders)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var metrics models.MetricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if metrics.OrdersReceived != 2 {
		t.Errorf("Expected 2 orders received, got: %d", metrics.OrdersReceived)
	}
	if metrics.OrdersMatched != 1 {
		t.Errorf("Expected 1 order matched, got: %d", metrics.OrdersMatched)
	}
	if metrics.TradesExecuted != 1 {
		t.Errorf("Expected 1 trade executed, got: %d", metrics.TradesExecuted)
	}
}
