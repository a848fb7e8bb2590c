package handlers_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"threadline/internal/cache"
	"threadline/internal/handlers"
	"threadline/internal/middleware"
	"threadline/internal/models"
	"threadline/internal/payments"
	"threadline/internal/repositories"
	"threadline/internal/services"
)

const (
	testJWTSecret     = "test_jwt_secret"
	testWebhookSecret = "whsec_test"
)

type stubGateway struct {
	state payments.SessionState
}

func (g *stubGateway) CreateSession(_ context.Context, req payments.SessionRequest) (payments.Session, error) {
	token := "tok_" + req.OrderNumber
	return payments.Session{Token: token, CheckoutURL: "https://pay.example.com/c/" + token}, nil
}

func (g *stubGateway) VerifySession(context.Context, string) (payments.SessionState, error) {
	return g.state, nil
}

type testApp struct {
	app     *fiber.App
	shirtID string
	gateway *stubGateway
}

// setupApp wires the API against a private in-memory SQLite database.
func setupApp(t *testing.T) *testApp {
	t.Helper()
	return setupAppWith(t, testWebhookSecret)
}

// setupAppWith is setupApp with a chosen webhook secret. Without one, webhooks are checked
// against the gateway.
func setupAppWith(t *testing.T, webhookSecret string) *testApp {
	t.Helper()
	db, err := repositories.OpenDatabase("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))

	userRepo := repositories.NewGORMUserRepository(db)
	catalogRepo := repositories.NewGORMCatalogRepository(db)
	cartRepo := repositories.NewGORMCartRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	returnRepo := repositories.NewGORMReturnRepository(db)
	settingRepo := repositories.NewGORMSettingRepository(db)

	gateway := &stubGateway{state: payments.StatePaid}
	shipping := services.NewShippingService(settingRepo, cache.NewMemoryRateCache(), 0, nil)
	carts := services.NewCartService(cartRepo, catalogRepo, shipping, nil)
	authService := services.NewAuthService(userRepo, carts, testJWTSecret, nil)
	checkout := services.NewCheckoutService(carts, orderRepo, shipping, gateway, nil,
		services.CheckoutConfig{Currency: "PKR", PublicBaseURL: "https://shop.example.com", StatusRetries: 3}, nil)
	orders := services.NewOrderService(orderRepo, nil, services.OrderServiceConfig{StatusRetries: 3}, nil)
	paymentService := services.NewPaymentService(orderRepo, gateway, nil,
		services.PaymentServiceConfig{StatusRetries: 3, VerifyWebhooks: webhookSecret == ""}, nil)
	returns := services.NewReturnService(orderRepo, returnRepo, nil)
	reports := services.NewReportService(orderRepo, services.ExclusionAny)

	app := fiber.New()
	handlers.Router{
		Auth:     handlers.NewAuthHandler(authService, nil),
		Cart:     handlers.NewCartHandler(carts, shipping, nil),
		Checkout: handlers.NewCheckoutHandler(checkout, nil),
		Orders:   handlers.NewOrderHandler(orders, nil),
		Payments: handlers.NewPaymentHandler(paymentService, webhookSecret, nil),
		Returns:  handlers.NewReturnHandler(returns, nil),
		Admin:    handlers.NewAdminHandler(shipping, reports, nil),
	}.Mount(app.Group("/api/v1"), authService, nil)

	shirt := &models.Product{Name: "Linen Shirt", BasePrice: decimal.NewFromInt(1000), Stock: 10}
	require.NoError(t, catalogRepo.CreateProduct(context.Background(), shirt))
	require.NoError(t, authService.EnsureAdmin(context.Background(), "staff", "staff@example.com", "staffpass"))

	return &testApp{app: app, shirtID: shirt.ID, gateway: gateway}
}

// call sends a JSON request and decodes the JSON response into a map.
func (a *testApp) call(t *testing.T, method, path string, body interface{}, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if raw, ok := body.([]byte); ok {
		reader = bytes.NewReader(raw)
	} else if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

func (a *testApp) login(t *testing.T, username, password string) string {
	t.Helper()
	status, body := a.call(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": username, "password": password}, nil)
	require.Equal(t, http.StatusOK, status)
	return body["token"].(string)
}

func (a *testApp) newCart(t *testing.T) map[string]string {
	t.Helper()
	status, body := a.call(t, http.MethodPost, "/api/v1/cart/session", nil, nil)
	require.Equal(t, http.StatusCreated, status)
	return map[string]string{middleware.CartSessionHeader: body["session_token"].(string)}
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func customer() map[string]string {
	return map[string]string{
		"name":    "Ayesha Khan",
		"email":   "ayesha@example.com",
		"phone":   "03001234567",
		"address": "12 Mall Road",
		"city":    "Lahore",
	}
}

func amount(t *testing.T, v interface{}) decimal.Decimal {
	t.Helper()
	s, ok := v.(string)
	require.True(t, ok, "expected decimal string, got %T", v)
	return decimal.RequireFromString(s)
}

func signed(t *testing.T, payload interface{}) ([]byte, map[string]string) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw, map[string]string{
		middleware.WebhookSignatureHeader: hex.EncodeToString(middleware.Sign(testWebhookSecret, raw)),
	}
}

// placeOrder checks out one shirt from a fresh anonymous cart and returns the order JSON.
func (a *testApp) placeOrder(t *testing.T, method string) map[string]interface{} {
	t.Helper()
	cart := a.newCart(t)
	status, _ := a.call(t, http.MethodPost, "/api/v1/cart/items",
		map[string]interface{}{"product_id": a.shirtID, "quantity": 1}, cart)
	require.Equal(t, http.StatusCreated, status)
	status, body := a.call(t, http.MethodPost, "/api/v1/checkout",
		map[string]interface{}{"payment_method": method, "customer": customer()}, cart)
	require.Equal(t, http.StatusCreated, status)
	return body["order"].(map[string]interface{})
}

func successEvent(orderID string) map[string]interface{} {
	return map[string]interface{}{
		"event": "payment.succeeded",
		"data": map[string]interface{}{
			"metadata": map[string]string{"order_id": orderID},
			"amount":   2700.50,
			"currency": "PKR",
		},
	}
}

func stripeDelivery(t *testing.T, eventType, orderID, paymentStatus, secret string) ([]byte, map[string]string) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":          "evt_test_1",
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        eventType,
		"data": map[string]interface{}{"object": map[string]interface{}{
			"id":             "cs_test_1",
			"object":         "checkout.session",
			"payment_status": paymentStatus,
			"metadata":       map[string]string{"order_id": orderID},
		}},
	})
	require.NoError(t, err)
	signedPayload := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: secret, Timestamp: time.Now()})
	return signedPayload.Payload, map[string]string{payments.StripeSignatureHeader: signedPayload.Header}
}

func TestAuthRegisterAndLogin(t *testing.T) {
	a := setupApp(t)

	user := map[string]string{"username": "testuser", "email": "test@example.com", "password": "password123"}
	status, body := a.call(t, http.MethodPost, "/api/v1/auth/register", user, nil)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User registered successfully", body["message"])

	status, _ = a.call(t, http.MethodPost, "/api/v1/auth/register", user, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, body = a.call(t, http.MethodPost, "/api/v1/auth/register",
		map[string]string{"username": "x", "email": "not-an-email", "password": "1"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "Email")

	token := a.login(t, "testuser", "password123")
	assert.NotEmpty(t, token)

	status, _ = a.call(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "testuser", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = a.call(t, http.MethodGet, "/api/v1/admin/orders", nil, bearer(token))
	assert.Equal(t, http.StatusForbidden, status)
}

func TestCartRequiresOwner(t *testing.T) {
	a := setupApp(t)

	status, _ := a.call(t, http.MethodGet, "/api/v1/cart", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	cart := a.newCart(t)
	status, body := a.call(t, http.MethodPost, "/api/v1/cart/items",
		map[string]interface{}{"product_id": a.shirtID, "quantity": 2}, cart)
	require.Equal(t, http.StatusCreated, status)
	itemID := body["id"].(string)

	status, body = a.call(t, http.MethodGet, "/api/v1/cart", nil, cart)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, amount(t, body["subtotal"]).Equal(decimal.NewFromInt(2000)))

	status, _ = a.call(t, http.MethodPatch, "/api/v1/cart/items/"+itemID, map[string]int{"quantity": 0}, cart)
	assert.Equal(t, http.StatusBadRequest, status)

	other := a.newCart(t)
	status, _ = a.call(t, http.MethodDelete, "/api/v1/cart/items/"+itemID, nil, other)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.call(t, http.MethodPost, "/api/v1/cart/items",
		map[string]interface{}{"product_id": "missing", "quantity": 1}, cart)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestLoginMergesAnonymousCart(t *testing.T) {
	a := setupApp(t)
	status, _ := a.call(t, http.MethodPost, "/api/v1/auth/register",
		map[string]string{"username": "shopper", "email": "shopper@example.com", "password": "password123"}, nil)
	require.Equal(t, http.StatusCreated, status)

	cart := a.newCart(t)
	status, _ = a.call(t, http.MethodPost, "/api/v1/cart/items",
		map[string]interface{}{"product_id": a.shirtID, "quantity": 3}, cart)
	require.Equal(t, http.StatusCreated, status)

	status, body := a.call(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "shopper", "password": "password123"}, cart)
	require.Equal(t, http.StatusOK, status)
	token := body["token"].(string)

	status, body = a.call(t, http.MethodGet, "/api/v1/cart", nil, bearer(token))
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["item_count"])
}

func TestOrderLifecycle(t *testing.T) {
	a := setupApp(t)
	admin := bearer(a.login(t, "staff", "staffpass"))

	status, _ := a.call(t, http.MethodPut, "/api/v1/admin/settings/shipping", map[string]string{"amount": "200"}, admin)
	require.Equal(t, http.StatusOK, status)
	status, body := a.call(t, http.MethodGet, "/api/v1/shipping-rate", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, amount(t, body["shipping_rate"]).Equal(decimal.NewFromInt(200)))

	// Cash on delivery: order starts pending and the cart empties.
	cart := a.newCart(t)
	status, _ = a.call(t, http.MethodPost, "/api/v1/cart/items",
		map[string]interface{}{"product_id": a.shirtID, "quantity": 2}, cart)
	require.Equal(t, http.StatusCreated, status)

	status, body = a.call(t, http.MethodPost, "/api/v1/checkout",
		map[string]interface{}{"payment_method": "cod"}, cart)
	assert.Equal(t, http.StatusBadRequest, status, "customer details are required")
	assert.Equal(t, "Validation failed", body["message"])

	status, body = a.call(t, http.MethodPost, "/api/v1/checkout",
		map[string]interface{}{"payment_method": "cod", "customer": customer()}, cart)
	require.Equal(t, http.StatusCreated, status)
	codOrder := body["order"].(map[string]interface{})
	codNumber := body["order_number"].(string)
	assert.Equal(t, "pending", codOrder["status"])
	assert.True(t, amount(t, codOrder["total_amount"]).Equal(decimal.NewFromInt(2200)))

	status, body = a.call(t, http.MethodGet, "/api/v1/cart", nil, cart)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["item_count"])

	status, _ = a.call(t, http.MethodPost, "/api/v1/checkout",
		map[string]interface{}{"payment_method": "cod", "customer": customer()}, cart)
	assert.Equal(t, http.StatusBadRequest, status, "empty cart")

	// Online: order holds the checkout url and waits for the webhook.
	status, _ = a.call(t, http.MethodPost, "/api/v1/cart/items",
		map[string]interface{}{"product_id": a.shirtID, "quantity": 1}, cart)
	require.Equal(t, http.StatusCreated, status)
	headers := map[string]string{middleware.CartSessionHeader: cart[middleware.CartSessionHeader], handlers.IdempotencyKeyHeader: "chk-1"}
	status, body = a.call(t, http.MethodPost, "/api/v1/checkout",
		map[string]interface{}{"payment_method": "online", "customer": customer()}, headers)
	require.Equal(t, http.StatusCreated, status)
	onlineOrder := body["order"].(map[string]interface{})
	onlineID := onlineOrder["id"].(string)
	assert.Equal(t, "payment_pending", onlineOrder["status"])
	assert.Contains(t, body["checkout_url"], "https://pay.example.com/c/")

	status, body = a.call(t, http.MethodPost, "/api/v1/checkout",
		map[string]interface{}{"payment_method": "online", "customer": customer()}, headers)
	require.Equal(t, http.StatusOK, status, "same idempotency key replays")
	assert.Equal(t, true, body["replayed"])
	assert.Equal(t, onlineID, body["order"].(map[string]interface{})["id"])

	// Webhooks.
	unsigned, _ := json.Marshal(map[string]interface{}{"event": "payment.succeeded", "data": map[string]interface{}{"metadata": map[string]string{"order_id": onlineID}}})
	status, _ = a.call(t, http.MethodPost, "/api/v1/payments/webhook", unsigned, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	raw, sig := signed(t, map[string]interface{}{"event": "payment.refunded", "data": map[string]interface{}{"metadata": map[string]string{"order_id": onlineID}}})
	status, _ = a.call(t, http.MethodPost, "/api/v1/payments/webhook", raw, sig)
	assert.Equal(t, http.StatusOK, status, "unknown events are acknowledged")

	raw, sig = signed(t, map[string]interface{}{"event": "payment.succeeded", "data": map[string]interface{}{}})
	status, _ = a.call(t, http.MethodPost, "/api/v1/payments/webhook", raw, sig)
	assert.Equal(t, http.StatusBadRequest, status)

	raw, sig = signed(t, map[string]interface{}{"event": "payment.succeeded", "data": map[string]interface{}{"metadata": map[string]string{"order_id": "nope"}}})
	status, _ = a.call(t, http.MethodPost, "/api/v1/payments/webhook", raw, sig)
	assert.Equal(t, http.StatusBadRequest, status)

	raw, sig = signed(t, map[string]interface{}{"event": "payment.succeeded", "data": map[string]interface{}{"metadata": map[string]string{"order_id": onlineID}}})
	for i := 0; i < 2; i++ {
		status, body = a.call(t, http.MethodPost, "/api/v1/payments/webhook", raw, sig)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "confirmed", body["status"])
		assert.Equal(t, "paid", body["payment_status"])
	}

	status, body = a.call(t, http.MethodPost, "/api/v1/payments/verify",
		map[string]string{"session_token": "wrong", "order_id": onlineID}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// Returns need a delivered order.
	status, _ = a.call(t, http.MethodPost, "/api/v1/returns",
		map[string]string{"order_number": codNumber, "reason": "Too small"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, body = a.call(t, http.MethodPatch, "/api/v1/admin/orders/"+codOrder["id"].(string)+"/status",
		map[string]string{"status": "delivered"}, admin)
	require.Equal(t, http.StatusOK, status)
	status, _ = a.call(t, http.MethodPatch, "/api/v1/admin/orders/"+codOrder["id"].(string)+"/status",
		map[string]string{"status": "teleported"}, admin)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = a.call(t, http.MethodPost, "/api/v1/returns",
		map[string]string{"order_number": codNumber, "reason": "Too small"}, nil)
	require.Equal(t, http.StatusCreated, status)
	returnID := body["id"].(string)
	status, _ = a.call(t, http.MethodPost, "/api/v1/returns",
		map[string]string{"order_number": codNumber, "reason": "Again"}, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, body = a.call(t, http.MethodPatch, "/api/v1/admin/returns/"+returnID+"/status",
		map[string]string{"status": "rejected"}, admin)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "rejected", body["status"])

	// Any return row excludes its order, even a rejected one.
	status, body = a.call(t, http.MethodGet, "/api/v1/admin/reports/revenue", nil, admin)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, amount(t, body["revenue"]).Equal(decimal.NewFromInt(1200)))
	assert.EqualValues(t, 1, body["order_count"])
	assert.EqualValues(t, 1, body["excluded_returned"])

	status, body = a.call(t, http.MethodGet, "/api/v1/orders/track/"+codNumber, nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "delivered", body["status"])
	assert.Equal(t, codNumber, body["order_number"])
	status, _ = a.call(t, http.MethodGet, "/api/v1/orders/track/ORD-MISSING", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAdminBulkOperations(t *testing.T) {
	a := setupApp(t)
	admin := bearer(a.login(t, "staff", "staffpass"))

	var ids []string
	for i := 0; i < 3; i++ {
		cart := a.newCart(t)
		status, _ := a.call(t, http.MethodPost, "/api/v1/cart/items",
			map[string]interface{}{"product_id": a.shirtID, "quantity": 1}, cart)
		require.Equal(t, http.StatusCreated, status)
		status, body := a.call(t, http.MethodPost, "/api/v1/checkout",
			map[string]interface{}{"payment_method": "cod", "customer": customer()}, cart)
		require.Equal(t, http.StatusCreated, status)
		ids = append(ids, body["order"].(map[string]interface{})["id"].(string))
	}

	status, body := a.call(t, http.MethodPost, "/api/v1/admin/orders/bulk-status",
		map[string]interface{}{"ids": ids[:2], "status": "shipped"}, admin)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["updated"])

	status, _ = a.call(t, http.MethodPost, "/api/v1/admin/orders/bulk-status",
		map[string]interface{}{"ids": []string{}, "status": "shipped"}, admin)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = a.call(t, http.MethodPost, "/api/v1/admin/orders/bulk-delete",
		map[string]interface{}{"ids": ids}, admin)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["deleted"])

	status, _ = a.call(t, http.MethodGet, "/api/v1/admin/orders/"+ids[0], nil, admin)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = a.call(t, http.MethodGet, "/api/v1/admin/reports/revenue", nil, admin)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["order_count"])
}

func TestTrackOrderHidesInternalFields(t *testing.T) {
	a := setupApp(t)
	order := a.placeOrder(t, "online")
	require.NotEmpty(t, order["session_token"])

	status, body := a.call(t, http.MethodGet, "/api/v1/orders/track/"+order["order_number"].(string), nil, nil)
	require.Equal(t, http.StatusOK, status)
	for _, field := range []string{"id", "session_token", "checkout_url", "version", "customer"} {
		assert.NotContains(t, body, field)
	}
	assert.Equal(t, "payment_pending", body["status"])
	assert.Equal(t, "Ayesha Khan", body["customer_name"])

	items := body["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.NotContains(t, item, "order_id")
	assert.True(t, amount(t, item["line_total"]).Equal(decimal.NewFromInt(1000)))
}

func TestUnsignedWebhookCannotConfirmOrder(t *testing.T) {
	a := setupAppWith(t, "")
	a.gateway.state = payments.StatePending
	online := a.placeOrder(t, "online")
	onlineID := online["id"].(string)

	forged, err := json.Marshal(successEvent(onlineID))
	require.NoError(t, err)
	status, body := a.call(t, http.MethodPost, "/api/v1/payments/webhook", forged, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["applied"])
	assert.Equal(t, "payment_pending", body["status"])
	assert.Equal(t, "pending", body["payment_status"])

	cod := a.placeOrder(t, "cod")
	forgedCOD, err := json.Marshal(successEvent(cod["id"].(string)))
	require.NoError(t, err)
	status, _ = a.call(t, http.MethodPost, "/api/v1/payments/webhook", forgedCOD, nil)
	assert.Equal(t, http.StatusBadRequest, status, "cash orders have no session to check")

	a.gateway.state = payments.StatePaid
	status, body = a.call(t, http.MethodPost, "/api/v1/payments/webhook", forged, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["applied"])
	assert.Equal(t, "confirmed", body["status"])
}

func TestSignedWebhookAcceptsDecimalAmount(t *testing.T) {
	a := setupApp(t)
	order := a.placeOrder(t, "online")

	raw, sig := signed(t, successEvent(order["id"].(string)))
	status, body := a.call(t, http.MethodPost, "/api/v1/payments/webhook", raw, sig)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "confirmed", body["status"])
}

func TestStripeWebhook(t *testing.T) {
	a := setupApp(t)
	paid := a.placeOrder(t, "online")
	expired := a.placeOrder(t, "online")

	raw, headers := stripeDelivery(t, payments.StripeEventSessionCompleted, paid["id"].(string), "paid", "whsec_attacker")
	status, _ := a.call(t, http.MethodPost, "/api/v1/payments/stripe/webhook", raw, headers)
	assert.Equal(t, http.StatusUnauthorized, status)

	generic, err := json.Marshal(successEvent(paid["id"].(string)))
	require.NoError(t, err)
	status, _ = a.call(t, http.MethodPost, "/api/v1/payments/stripe/webhook", generic, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	raw, headers = stripeDelivery(t, payments.StripeEventSessionCompleted, paid["id"].(string), "unpaid", testWebhookSecret)
	status, body := a.call(t, http.MethodPost, "/api/v1/payments/stripe/webhook", raw, headers)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["applied"], "completed but unpaid sessions wait for the async event")

	raw, headers = stripeDelivery(t, payments.StripeEventSessionCompleted, paid["id"].(string), "paid", testWebhookSecret)
	status, body = a.call(t, http.MethodPost, "/api/v1/payments/stripe/webhook", raw, headers)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["applied"])
	assert.Equal(t, "confirmed", body["status"])
	assert.Equal(t, "paid", body["payment_status"])

	raw, headers = stripeDelivery(t, payments.StripeEventSessionExpired, expired["id"].(string), "unpaid", testWebhookSecret)
	status, body = a.call(t, http.MethodPost, "/api/v1/payments/stripe/webhook", raw, headers)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cancelled", body["status"])

	raw, headers = stripeDelivery(t, payments.StripeEventSessionCompleted, "no-such-order", "paid", testWebhookSecret)
	status, _ = a.call(t, http.MethodPost, "/api/v1/payments/stripe/webhook", raw, headers)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStripeWebhookRequiresSecret(t *testing.T) {
	a := setupAppWith(t, "")
	order := a.placeOrder(t, "online")

	raw, headers := stripeDelivery(t, payments.StripeEventSessionCompleted, order["id"].(string), "paid", "")
	status, _ := a.call(t, http.MethodPost, "/api/v1/payments/stripe/webhook", raw, headers)
	assert.Equal(t, http.StatusUnauthorized, status)
}
