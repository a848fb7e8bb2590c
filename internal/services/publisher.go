package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"threadline/internal/models"
)

const (
	RoutingOrderCreated       = "order.created"
	RoutingOrderStatusChanged = "order.status_changed"
	RoutingNotificationEmail  = "notification.email"
	RoutingNotificationSMS    = "notification.sms"
)

// Publisher delivers events to the message broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// OrderEvent is the body of order.* messages.
type OrderEvent struct {
	OrderID        string               `json:"order_id"`
	OrderNumber    string               `json:"order_number"`
	Status         models.OrderStatus   `json:"status"`
	PreviousStatus models.OrderStatus   `json:"previous_status,omitempty"`
	PaymentStatus  models.PaymentStatus `json:"payment_status"`
	PaymentMethod  models.PaymentMethod `json:"payment_method"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	Currency       string               `json:"currency"`
	Source         string               `json:"source,omitempty"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

// Notification is the body of notification.* messages consumed by the email/SMS sender.
type Notification struct {
	Channel     string                  `json:"channel"`
	Template    string                  `json:"template"`
	OrderNumber string                  `json:"order_number"`
	Customer    models.CustomerSnapshot `json:"customer"`
	TotalAmount decimal.Decimal         `json:"total_amount"`
	Currency    string                  `json:"currency"`
	Items       []TrackedItem           `json:"items"`
}

func newOrderEvent(order *models.Order, previous models.OrderStatus, source string) OrderEvent {
	return OrderEvent{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         order.Status,
		PreviousStatus: previous,
		PaymentStatus:  order.PaymentStatus,
		PaymentMethod:  order.PaymentMethod,
		TotalAmount:    order.TotalAmount,
		Currency:       order.Currency,
		Source:         source,
		OccurredAt:     time.Now().UTC(),
	}
}

// publish is best effort: a broker failure never fails the business operation.
func publish(ctx context.Context, p Publisher, logger *zap.Logger, routingKey string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, routingKey, payload); err != nil {
		logger.Warn("failed to publish event", zap.String("routing_key", routingKey), zap.Error(err))
	}
}
