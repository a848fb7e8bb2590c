package services_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"threadline/internal/cache"
	"threadline/internal/models"
	"threadline/internal/payments"
	"threadline/internal/repositories"
	"threadline/internal/services"
)

type published struct {
	RoutingKey string
	Payload    any
}

// recordingPublisher keeps every published message in memory.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{RoutingKey: routingKey, Payload: payload})
	return nil
}

func (p *recordingPublisher) count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.messages {
		if m.RoutingKey == routingKey {
			n++
		}
	}
	return n
}

// fakeGateway is a scriptable payments.Gateway.
type fakeGateway struct {
	mu        sync.Mutex
	createErr error
	verifyErr error
	state     payments.SessionState
	requests  []payments.SessionRequest
	verified  []string
}

func (g *fakeGateway) CreateSession(_ context.Context, req payments.SessionRequest) (payments.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.createErr != nil {
		return payments.Session{}, g.createErr
	}
	token := fmt.Sprintf("tok_%d", len(g.requests))
	return payments.Session{Token: token, CheckoutURL: "https://pay.example.com/c/" + token}, nil
}

func (g *fakeGateway) VerifySession(_ context.Context, token string) (payments.SessionState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verified = append(g.verified, token)
	if g.verifyErr != nil {
		return "", g.verifyErr
	}
	return g.state, nil
}

type testEnv struct {
	db        *gorm.DB
	orders    *repositories.GORMOrderRepository
	returns   *repositories.GORMReturnRepository
	catalog   *repositories.GORMCatalogRepository
	gateway   *fakeGateway
	publisher *recordingPublisher

	shipping *services.ShippingService
	cart     *services.CartService
	checkout *services.CheckoutService
	order    *services.OrderService
	payment  *services.PaymentService
	returnS  *services.ReturnService

	shirt   *models.Product
	kurta   *models.Product
	kurtaRM models.ProductVariant
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithMode(t, services.BulkDeleteAtomic)
}

func newTestEnvWithMode(t *testing.T, mode services.BulkDeleteMode) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := repositories.OpenDatabase("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))

	env := &testEnv{
		db:        db,
		orders:    repositories.NewGORMOrderRepository(db),
		returns:   repositories.NewGORMReturnRepository(db),
		catalog:   repositories.NewGORMCatalogRepository(db),
		gateway:   &fakeGateway{state: payments.StatePending},
		publisher: &recordingPublisher{},
	}
	env.shipping = services.NewShippingService(repositories.NewGORMSettingRepository(db), cache.NewMemoryRateCache(), time.Minute, nil)
	env.cart = services.NewCartService(repositories.NewGORMCartRepository(db), env.catalog, env.shipping, nil)
	env.checkout = services.NewCheckoutService(env.cart, env.orders, env.shipping, env.gateway, env.publisher,
		services.CheckoutConfig{Currency: "PKR", PublicBaseURL: "https://shop.example.com", StatusRetries: 3}, nil)
	env.order = services.NewOrderService(env.orders, env.publisher, services.OrderServiceConfig{StatusRetries: 3, BulkDeleteMode: mode}, nil)
	env.payment = services.NewPaymentService(env.orders, env.gateway, env.publisher, services.PaymentServiceConfig{StatusRetries: 3}, nil)
	env.returnS = services.NewReturnService(env.orders, env.returns, nil)

	ctx := context.Background()
	env.shirt = &models.Product{Name: "Linen Shirt", BasePrice: decimal.NewFromInt(1000), Stock: 10}
	require.NoError(t, env.catalog.CreateProduct(ctx, env.shirt))
	env.kurta = &models.Product{Name: "Lawn Kurta", BasePrice: decimal.NewFromInt(800), Stock: 10,
		Variants: []models.ProductVariant{{Color: "red", Size: "M", Price: decimal.NewFromInt(500), Stock: 5}}}
	require.NoError(t, env.catalog.CreateProduct(ctx, env.kurta))
	env.kurtaRM = env.kurta.Variants[0]
	return env
}

var shopper = models.CustomerSnapshot{
	Name:    "Ayesha Khan",
	Email:   "ayesha@example.com",
	Phone:   "03001234567",
	Address: "12 Mall Road",
	City:    "Lahore",
}

func sessionOwner(id string) models.CartOwner {
	return models.CartOwner{Kind: models.OwnerSession, ID: id}
}

// fillCart puts two shirts and one red/M kurta in the cart: 2×1000 + 1×500.
func (e *testEnv) fillCart(t *testing.T, owner models.CartOwner) {
	t.Helper()
	ctx := context.Background()
	_, err := e.cart.AddItem(ctx, owner, services.AddItemInput{ProductID: e.shirt.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = e.cart.AddItem(ctx, owner, services.AddItemInput{ProductID: e.kurta.ID, VariantID: e.kurtaRM.ID, Quantity: 1})
	require.NoError(t, err)
}

func (e *testEnv) setShipping(t *testing.T, amount int64) {
	t.Helper()
	_, err := e.shipping.SetShippingRate(context.Background(), decimal.NewFromInt(amount))
	require.NoError(t, err)
}

func (e *testEnv) placeOrder(t *testing.T, owner models.CartOwner, method models.PaymentMethod) *models.Order {
	t.Helper()
	e.fillCart(t, owner)
	res, err := e.checkout.Checkout(context.Background(), services.CheckoutInput{Owner: owner, PaymentMethod: method, Customer: shopper})
	require.NoError(t, err)
	return res.Order
}

func (e *testEnv) reload(t *testing.T, id string) *models.Order {
	t.Helper()
	order, err := e.orders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (e *testEnv) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}
