package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadline/internal/models"
	"threadline/internal/payments"
	"threadline/internal/services"
)

func TestCheckout_CODScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := sessionOwner("sess-cod")
	env.fillCart(t, owner)
	env.setShipping(t, 200)

	res, err := env.checkout.Checkout(ctx, services.CheckoutInput{Owner: owner, PaymentMethod: models.PaymentMethodCOD, Customer: shopper})
	require.NoError(t, err)

	order := env.reload(t, res.Order.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(2700)), "got %s", order.TotalAmount)
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(2500)))
	assert.True(t, order.ShippingCost.Equal(decimal.NewFromInt(200)))
	assert.Len(t, order.Items, 2)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	assert.Equal(t, shopper, order.Customer)
	assert.Empty(t, res.CheckoutURL)

	view, err := env.cart.View(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.Equal(t, 1, env.publisher.count(services.RoutingOrderCreated))
	assert.Empty(t, env.gateway.requests)
}

func TestCheckout_OnlineHoldsCheckoutURL(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := sessionOwner("sess-online")
	env.fillCart(t, owner)
	env.setShipping(t, 200)

	res, err := env.checkout.Checkout(ctx, services.CheckoutInput{Owner: owner, PaymentMethod: models.PaymentMethodOnline, Customer: shopper})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/c/tok_1", res.CheckoutURL)

	order := env.reload(t, res.Order.ID)
	assert.Equal(t, models.OrderStatusPaymentPending, order.Status)
	assert.NotEqual(t, models.OrderStatusConfirmed, order.Status)
	assert.Equal(t, "tok_1", order.SessionToken)

	require.Len(t, env.gateway.requests, 1)
	req := env.gateway.requests[0]
	assert.Equal(t, order.ID, req.OrderID)
	assert.True(t, req.Amount.Equal(decimal.NewFromInt(2700)))
	assert.Equal(t, "https://shop.example.com/api/v1/payments/webhook", req.WebhookURL)
	assert.Contains(t, req.SuccessURL, "order_id="+order.ID)

	view, err := env.cart.View(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestCheckout_GatewayFailureKeepsCartAndRetrySameOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := sessionOwner("sess-retry")
	env.fillCart(t, owner)
	env.gateway.createErr = &payments.GatewayError{Op: "create session", StatusCode: 503, Message: "maintenance"}

	in := services.CheckoutInput{Owner: owner, PaymentMethod: models.PaymentMethodOnline, Customer: shopper, IdempotencyKey: "submit-1"}
	res, err := env.checkout.Checkout(ctx, in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrGateway))
	require.NotNil(t, res)
	assert.Equal(t, models.OrderStatusPaymentPending, env.reload(t, res.Order.ID).Status)

	view, err := env.cart.View(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, view.Lines, 2, "cart survives a gateway failure")

	env.gateway.createErr = nil
	retry, err := env.checkout.Checkout(ctx, in)
	require.NoError(t, err)
	assert.True(t, retry.Replayed)
	assert.Equal(t, res.Order.ID, retry.Order.ID)
	assert.NotEmpty(t, retry.CheckoutURL)
	assert.EqualValues(t, 1, env.count(t, &models.Order{}))

	view, err = env.cart.View(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestCheckout_IdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := sessionOwner("sess-idem")
	env.fillCart(t, owner)

	in := services.CheckoutInput{Owner: owner, PaymentMethod: models.PaymentMethodCOD, Customer: shopper, IdempotencyKey: "submit-2"}
	first, err := env.checkout.Checkout(ctx, in)
	require.NoError(t, err)

	second, err := env.checkout.Checkout(ctx, in)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.OrderNumber, second.Order.OrderNumber)
	assert.EqualValues(t, 1, env.count(t, &models.Order{}))
	assert.EqualValues(t, 2, env.count(t, &models.OrderItem{}))
}

func TestCheckout_TotalsAreFrozen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setShipping(t, 200)
	order := env.placeOrder(t, sessionOwner("sess-frozen"), models.PaymentMethodCOD)

	env.setShipping(t, 500)
	require.NoError(t, env.db.Model(&models.Product{}).Where("id = ?", env.shirt.ID).Update("base_price", decimal.NewFromInt(9999)).Error)
	require.NoError(t, env.db.Model(&models.Product{}).Where("id = ?", env.shirt.ID).Update("name", "Renamed Shirt").Error)

	stored, err := env.orders.GetByOrderNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(decimal.NewFromInt(2700)))
	assert.True(t, stored.ShippingCost.Equal(decimal.NewFromInt(200)))
	for _, item := range stored.Items {
		assert.NotEqual(t, "Renamed Shirt", item.ProductName)
	}
}

func TestCheckout_Preconditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.checkout.Checkout(ctx, services.CheckoutInput{Owner: sessionOwner("sess-empty"), PaymentMethod: models.PaymentMethodCOD, Customer: shopper})
	assert.ErrorIs(t, err, services.ErrEmptyCart)

	_, err = env.checkout.Checkout(ctx, services.CheckoutInput{Owner: sessionOwner("sess-empty"), PaymentMethod: "card", Customer: shopper})
	assert.ErrorIs(t, err, services.ErrInvalidPaymentMethod)

	owner := sessionOwner("sess-stock")
	_, err = env.cart.AddItem(ctx, owner, services.AddItemInput{ProductID: env.kurta.ID, VariantID: env.kurtaRM.ID, Quantity: 6})
	require.NoError(t, err)
	_, err = env.checkout.Checkout(ctx, services.CheckoutInput{Owner: owner, PaymentMethod: models.PaymentMethodCOD, Customer: shopper})
	assert.ErrorIs(t, err, services.ErrInsufficientStock)
	assert.EqualValues(t, 0, env.count(t, &models.Order{}))
}

func TestNewOrderNumber_UniqueAndOrdered(t *testing.T) {
	seen := make(map[string]struct{})
	prev := ""
	for i := 0; i < 500; i++ {
		n := services.NewOrderNumber()
		assert.True(t, strings.HasPrefix(n, "ORD-"))
		_, dup := seen[n]
		assert.False(t, dup)
		seen[n] = struct{}{}
		assert.Greater(t, n, prev)
		prev = n
	}
}
