package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"threadline/internal/models"
	"threadline/internal/payments"
	"threadline/internal/repositories"
	"threadline/pkg/logger"
)

// CheckoutInput is a validated checkout submission.
type CheckoutInput struct {
	Owner          models.CartOwner
	UserID         string
	PaymentMethod  models.PaymentMethod
	Customer       models.CustomerSnapshot
	IdempotencyKey string
}

// CheckoutResult is the placed order and, for online payment, where to send the shopper.
type CheckoutResult struct {
	Order       *models.Order
	CheckoutURL string
	Replayed    bool
}

// CheckoutConfig holds checkout settings.
type CheckoutConfig struct {
	Currency      string
	PublicBaseURL string
	StatusRetries int
}

// CheckoutService turns carts into orders.
type CheckoutService struct {
	carts     *CartService
	orders    repositories.OrderRepository
	shipping  *ShippingService
	gateway   payments.Gateway
	writer    *statusWriter
	publisher Publisher
	cfg       CheckoutConfig
	logger    *zap.Logger
	newNumber func() string
}

// NewCheckoutService creates a new CheckoutService. gateway may be nil when only cash on delivery
// is offered.
func NewCheckoutService(carts *CartService, orders repositories.OrderRepository, shipping *ShippingService,
	gateway payments.Gateway, publisher Publisher, cfg CheckoutConfig, log *zap.Logger) *CheckoutService {
	if cfg.Currency == "" {
		cfg.Currency = "PKR"
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	l := logger.OrNop(log)
	return &CheckoutService{
		carts:     carts,
		orders:    orders,
		shipping:  shipping,
		gateway:   gateway,
		writer:    &statusWriter{orders: orders, retries: cfg.StatusRetries, publisher: publisher, logger: l},
		publisher: publisher,
		cfg:       cfg,
		logger:    l,
		newNumber: NewOrderNumber,
	}
}

// Checkout places an order from the owner's cart. A repeated submission carrying the same
// idempotency key returns the order the first submission created.
func (s *CheckoutService) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if in.PaymentMethod != models.PaymentMethodCOD && in.PaymentMethod != models.PaymentMethodOnline {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, in.PaymentMethod)
	}
	if in.PaymentMethod == models.PaymentMethodOnline && s.gateway == nil {
		return nil, fmt.Errorf("%w: online payment is not configured", ErrInvalidPaymentMethod)
	}

	if in.IdempotencyKey != "" {
		existing, err := s.orders.GetByIdempotencyKey(ctx, in.IdempotencyKey)
		if err == nil {
			return s.replay(ctx, in.Owner, existing)
		}
		if !isNotFound(err) {
			return nil, err
		}
	}

	lines, subtotal, err := s.carts.Lines(ctx, in.Owner)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		if !line.Available {
			return nil, fmt.Errorf("%w: product %s is no longer available", ErrNotFound, line.ProductID)
		}
		if line.Quantity > line.Stock {
			return nil, fmt.Errorf("%w: %s has %d left, %d requested", ErrInsufficientStock, line.ProductName, line.Stock, line.Quantity)
		}
		items = append(items, models.OrderItem{
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			ProductName: line.ProductName,
			Color:       line.Color,
			Size:        line.Size,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
		})
	}

	shipping, err := s.shipping.CurrentRate(ctx)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderNumber:   s.newNumber(),
		UserID:        in.UserID,
		Customer:      in.Customer,
		Subtotal:      subtotal,
		ShippingCost:  shipping,
		TotalAmount:   subtotal.Add(shipping),
		Currency:      s.cfg.Currency,
		PaymentMethod: in.PaymentMethod,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		Items:         items,
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		order.IdempotencyKey = &key
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) && in.IdempotencyKey != "" {
			existing, getErr := s.orders.GetByIdempotencyKey(ctx, in.IdempotencyKey)
			if getErr != nil {
				return nil, getErr
			}
			return s.replay(ctx, in.Owner, existing)
		}
		return nil, err
	}
	s.logger.Info("order placed",
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.String("total", order.TotalAmount.StringFixed(2)))
	publish(ctx, s.publisher, s.logger, RoutingOrderCreated, newOrderEvent(order, "", "checkout"))

	if in.PaymentMethod == models.PaymentMethodCOD {
		s.clearCart(ctx, in.Owner)
		return &CheckoutResult{Order: order}, nil
	}
	return s.startPayment(ctx, in.Owner, order, false)
}

func (s *CheckoutService) replay(ctx context.Context, owner models.CartOwner, order *models.Order) (*CheckoutResult, error) {
	s.logger.Info("checkout replayed", zap.String("order_number", order.OrderNumber))
	if order.PaymentMethod == models.PaymentMethodOnline && order.SessionToken == "" && s.gateway != nil &&
		(order.Status == models.OrderStatusPending || order.Status == models.OrderStatusPaymentPending) {
		return s.startPayment(ctx, owner, order, true)
	}
	return &CheckoutResult{Order: order, CheckoutURL: order.CheckoutURL, Replayed: true}, nil
}

// startPayment opens a gateway session for an online order and moves it to payment_pending
// whether or not the gateway accepted. On failure the cart is kept so the shopper can retry.
func (s *CheckoutService) startPayment(ctx context.Context, owner models.CartOwner, order *models.Order, replayed bool) (*CheckoutResult, error) {
	session, gwErr := s.gateway.CreateSession(ctx, s.sessionRequest(order))
	if gwErr == nil {
		if err := s.orders.SetPaymentSession(ctx, order.ID, session.Token, session.CheckoutURL); err != nil {
			return nil, err
		}
	}

	updated, err := s.markPaymentPending(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	if gwErr != nil {
		s.logger.Error("payment session creation failed",
			zap.String("order_number", order.OrderNumber), zap.Error(gwErr))
		return &CheckoutResult{Order: updated, Replayed: replayed}, wrapGatewayErr(gwErr)
	}
	s.clearCart(ctx, owner)
	return &CheckoutResult{Order: updated, CheckoutURL: updated.CheckoutURL, Replayed: replayed}, nil
}

// markPaymentPending moves a pending order to payment_pending. An order a webhook already
// settled is left alone.
func (s *CheckoutService) markPaymentPending(ctx context.Context, orderID string) (*models.Order, error) {
	order, _, err := s.writer.apply(ctx, orderID, "checkout", func(o *models.Order) (repositories.StatusUpdate, bool) {
		if o.Status != models.OrderStatusPending {
			return repositories.StatusUpdate{}, false
		}
		return repositories.StatusUpdate{Status: models.OrderStatusPaymentPending}, true
	})
	return order, err
}

func (s *CheckoutService) sessionRequest(order *models.Order) payments.SessionRequest {
	query := "?order_id=" + url.QueryEscape(order.ID)
	return payments.SessionRequest{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Amount:      order.TotalAmount,
		Currency:    order.Currency,
		Customer: payments.Customer{
			Name:  order.Customer.Name,
			Email: order.Customer.Email,
			Phone: order.Customer.Phone,
		},
		SuccessURL: s.cfg.PublicBaseURL + "/checkout/success" + query,
		CancelURL:  s.cfg.PublicBaseURL + "/checkout/cancel" + query,
		WebhookURL: s.cfg.PublicBaseURL + "/api/v1/payments/webhook",
	}
}

func (s *CheckoutService) clearCart(ctx context.Context, owner models.CartOwner) {
	if owner.IsZero() {
		return
	}
	if err := s.carts.Clear(ctx, owner); err != nil {
		s.logger.Warn("failed to clear cart after checkout", zap.String("owner", owner.ID), zap.Error(err))
	}
}
