package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"threadline/internal/models"
	"threadline/internal/payments"
	"threadline/internal/repositories"
	"threadline/pkg/logger"
)

const defaultNotifyTimeout = 10 * time.Second

// WebhookEvent is the payload the payment gateway posts to the webhook endpoint.
type WebhookEvent struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

type WebhookData struct {
	Metadata WebhookMetadata `json:"metadata"`
	State    string          `json:"state"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type WebhookMetadata struct {
	OrderID string `json:"order_id"`
}

// PaymentResult reports what a gateway outcome did to the order.
type PaymentResult struct {
	OrderID       string               `json:"order_id,omitempty"`
	OrderNumber   string               `json:"order_number,omitempty"`
	Outcome       string               `json:"outcome"`
	Applied       bool                 `json:"applied"`
	Status        models.OrderStatus   `json:"status,omitempty"`
	PaymentStatus models.PaymentStatus `json:"payment_status,omitempty"`
}

// PaymentServiceConfig holds payment reconciliation settings. VerifyWebhooks makes HandleWebhook
// ask the gateway for the session state instead of trusting the event, for deployments that
// receive unsigned webhooks.
type PaymentServiceConfig struct {
	StatusRetries  int
	NotifyTimeout  time.Duration
	VerifyWebhooks bool
}

type paymentMetrics struct {
	events    metric.Int64Counter
	applied   metric.Int64Counter
	ignored   metric.Int64Counter
	conflicts metric.Int64Counter
}

// PaymentService reconciles gateway outcomes, from webhooks or explicit verification, into
// order state.
type PaymentService struct {
	orders         repositories.OrderRepository
	gateway        payments.Gateway
	writer         *statusWriter
	publisher      Publisher
	notifyTimeout  time.Duration
	verifyWebhooks bool
	metrics        paymentMetrics
	logger         *zap.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(orders repositories.OrderRepository, gateway payments.Gateway, publisher Publisher, cfg PaymentServiceConfig, log *zap.Logger) *PaymentService {
	l := logger.OrNop(log)
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	return &PaymentService{
		orders:         orders,
		gateway:        gateway,
		writer:         &statusWriter{orders: orders, retries: cfg.StatusRetries, publisher: publisher, logger: l},
		publisher:      publisher,
		notifyTimeout:  cfg.NotifyTimeout,
		verifyWebhooks: cfg.VerifyWebhooks,
		metrics:        newPaymentMetrics(l),
		logger:         l,
	}
}

func newPaymentMetrics(l *zap.Logger) paymentMetrics {
	meter := otel.Meter("threadline/payments")
	counter := func(name, description string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(description))
		if err != nil {
			l.Warn("payments: unable to register metric", zap.String("metric", name), zap.Error(err))
		}
		return c
	}
	return paymentMetrics{
		events:    counter("payments.events.received", "Gateway outcomes received from webhooks and verification"),
		applied:   counter("payments.transitions.applied", "Gateway outcomes that changed an order"),
		ignored:   counter("payments.transitions.ignored", "Gateway outcomes that left the order unchanged"),
		conflicts: counter("payments.transitions.conflicts", "Guarded writes that exhausted their retries"),
	}
}

func (m paymentMetrics) add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// HandleWebhook applies a gateway webhook to its order. Events the service does not know are
// acknowledged without effect.
func (s *PaymentService) HandleWebhook(ctx context.Context, event WebhookEvent) (*PaymentResult, error) {
	return s.handleEvent(ctx, payments.ProviderEvent{
		Type:    event.Event,
		OrderID: event.Data.Metadata.OrderID,
		Outcome: payments.OutcomeFromEvent(event.Event),
	}, "webhook", s.verifyWebhooks)
}

// HandleProviderEvent applies an event whose signature the provider SDK has already checked.
// source labels logs and metrics.
func (s *PaymentService) HandleProviderEvent(ctx context.Context, event payments.ProviderEvent, source string) (*PaymentResult, error) {
	return s.handleEvent(ctx, event, source, false)
}

func (s *PaymentService) handleEvent(ctx context.Context, event payments.ProviderEvent, source string, verify bool) (*PaymentResult, error) {
	orderID := strings.TrimSpace(event.OrderID)
	outcome := event.Outcome
	s.metrics.add(ctx, s.metrics.events, attribute.String("source", source), attribute.String("outcome", outcome.String()))

	if orderID == "" {
		s.logger.Warn("webhook without order id", zap.String("event", event.Type), zap.String("source", source))
		return nil, ErrMissingOrderID
	}
	if outcome == payments.OutcomeUnknown {
		s.logger.Info("ignoring unrecognised webhook event", zap.String("event", event.Type), zap.String("order_id", orderID))
		s.metrics.add(ctx, s.metrics.ignored, attribute.String("reason", "unknown_event"))
		return &PaymentResult{OrderID: orderID, Outcome: outcome.String()}, nil
	}
	if verify {
		return s.confirmWithGateway(ctx, orderID, event, source)
	}
	return s.applyOutcome(ctx, orderID, outcome, source)
}

// confirmWithGateway replaces the outcome an unsigned webhook claims with the session state the
// gateway reports. Orders without a payment session cannot be settled this way.
func (s *PaymentService) confirmWithGateway(ctx context.Context, orderID string, event payments.ProviderEvent, source string) (*PaymentResult, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.gateway == nil || order.SessionToken == "" {
		s.logger.Warn("unsigned webhook for order without payment session",
			zap.String("order_number", order.OrderNumber), zap.String("event", event.Type))
		return nil, ErrUnverifiedWebhook
	}

	state, err := s.gateway.VerifySession(ctx, order.SessionToken)
	if err != nil {
		s.logger.Error("webhook verification failed", zap.String("order_number", order.OrderNumber), zap.Error(err))
		return nil, wrapGatewayErr(err)
	}
	outcome := payments.OutcomeFromState(state)
	if outcome != event.Outcome {
		s.logger.Warn("webhook outcome disagrees with gateway",
			zap.String("order_number", order.OrderNumber),
			zap.String("claimed", event.Outcome.String()),
			zap.String("verified", outcome.String()))
	}
	if outcome == payments.OutcomeUnknown {
		s.metrics.add(ctx, s.metrics.ignored, attribute.String("reason", "unverified"))
		return resultFor(order, outcome, false), nil
	}
	return s.applyOutcome(ctx, orderID, outcome, source)
}

// Verify asks the gateway for the session state and applies it like a webhook would.
func (s *PaymentService) Verify(ctx context.Context, sessionToken, orderID string) (*PaymentResult, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if sessionToken == "" || order.SessionToken != sessionToken {
		return nil, ErrSessionMismatch
	}
	if s.gateway == nil {
		return nil, ErrGateway
	}

	state, err := s.gateway.VerifySession(ctx, sessionToken)
	if err != nil {
		s.logger.Error("payment verification failed", zap.String("order_number", order.OrderNumber), zap.Error(err))
		return nil, wrapGatewayErr(err)
	}
	outcome := payments.OutcomeFromState(state)
	s.metrics.add(ctx, s.metrics.events, attribute.String("source", "verify"), attribute.String("outcome", outcome.String()))
	if outcome == payments.OutcomeUnknown {
		return resultFor(order, outcome, false), nil
	}
	return s.applyOutcome(ctx, orderID, outcome, "verify")
}

func (s *PaymentService) applyOutcome(ctx context.Context, orderID string, outcome payments.Outcome, source string) (*PaymentResult, error) {
	order, applied, err := s.writer.apply(ctx, orderID, source, func(o *models.Order) (repositories.StatusUpdate, bool) {
		return outcomeTransition(o.Status, outcome)
	})
	if err != nil {
		if isVersionConflict(err) {
			s.metrics.add(ctx, s.metrics.conflicts)
		}
		return nil, err
	}

	if !applied {
		s.logger.Info("payment outcome left order unchanged",
			zap.String("order_number", order.OrderNumber),
			zap.String("status", string(order.Status)),
			zap.String("outcome", outcome.String()),
			zap.String("source", source))
		s.metrics.add(ctx, s.metrics.ignored, attribute.String("reason", "transition"))
		return resultFor(order, outcome, false), nil
	}

	s.metrics.add(ctx, s.metrics.applied, attribute.String("outcome", outcome.String()))
	if outcome == payments.OutcomeSucceeded {
		s.notifyPaid(*order)
	}
	return resultFor(order, outcome, true), nil
}

// notifyPaid queues the confirmation email and SMS without blocking the caller.
func (s *PaymentService) notifyPaid(order models.Order) {
	if s.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		items := newOrderTracking(&order).Items
		for _, channel := range []string{RoutingNotificationEmail, RoutingNotificationSMS} {
			publish(ctx, s.publisher, s.logger, channel, Notification{
				Channel:     strings.TrimPrefix(channel, "notification."),
				Template:    "order_confirmed",
				OrderNumber: order.OrderNumber,
				Customer:    order.Customer,
				TotalAmount: order.TotalAmount,
				Currency:    order.Currency,
				Items:       items,
			})
		}
	}()
}

func resultFor(order *models.Order, outcome payments.Outcome, applied bool) *PaymentResult {
	return &PaymentResult{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Outcome:       outcome.String(),
		Applied:       applied,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
	}
}
