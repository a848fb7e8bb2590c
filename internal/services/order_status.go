package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"threadline/internal/models"
	"threadline/internal/payments"
	"threadline/internal/repositories"
)

var orderStatuses = map[models.OrderStatus]struct{}{
	models.OrderStatusPending:        {},
	models.OrderStatusProcessing:     {},
	models.OrderStatusConfirmed:      {},
	models.OrderStatusPaymentPending: {},
	models.OrderStatusPaymentFailed:  {},
	models.OrderStatusCancelled:      {},
	models.OrderStatusShipped:        {},
	models.OrderStatusDelivered:      {},
}

// ParseOrderStatus validates a status string coming from staff input.
func ParseOrderStatus(raw string) (models.OrderStatus, error) {
	status := models.OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := orderStatuses[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// outcomeTransition returns the status write a gateway outcome causes from current, if any.
// Outcomes only move orders that are still waiting on payment; confirmed orders absorb
// duplicate success events and everything later in the lifecycle ignores the gateway.
func outcomeTransition(current models.OrderStatus, outcome payments.Outcome) (repositories.StatusUpdate, bool) {
	if current != models.OrderStatusPending && current != models.OrderStatusPaymentPending {
		return repositories.StatusUpdate{}, false
	}
	switch outcome {
	case payments.OutcomeSucceeded:
		return repositories.StatusUpdate{Status: models.OrderStatusConfirmed, PaymentStatus: models.PaymentStatusPaid}, true
	case payments.OutcomeFailed:
		return repositories.StatusUpdate{Status: models.OrderStatusPaymentFailed, PaymentStatus: models.PaymentStatusFailed}, true
	case payments.OutcomeCancelled:
		return repositories.StatusUpdate{Status: models.OrderStatusCancelled, PaymentStatus: models.PaymentStatusCancelled}, true
	default:
		return repositories.StatusUpdate{}, false
	}
}

// statusWriter applies status changes with optimistic concurrency: each attempt reads the
// order, decides, and writes conditioned on the version it read.
type statusWriter struct {
	orders    repositories.OrderRepository
	retries   int
	publisher Publisher
	logger    *zap.Logger
}

type decideFunc func(order *models.Order) (repositories.StatusUpdate, bool)

func (w *statusWriter) apply(ctx context.Context, orderID, source string, decide decideFunc) (*models.Order, bool, error) {
	attempts := w.retries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		order, err := w.orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, false, err
		}
		update, ok := decide(order)
		if !ok {
			return order, false, nil
		}

		err = w.orders.UpdateStatus(ctx, order.ID, order.Version, update)
		if errors.Is(err, repositories.ErrVersionConflict) {
			lastErr = err
			w.logger.Debug("order changed concurrently, re-evaluating",
				zap.String("order_id", orderID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, false, err
		}

		previous := order.Status
		order.Status = update.Status
		if update.PaymentStatus != "" {
			order.PaymentStatus = update.PaymentStatus
		}
		order.Version++
		w.logger.Info("order status changed",
			zap.String("order_number", order.OrderNumber),
			zap.String("from", string(previous)),
			zap.String("to", string(order.Status)),
			zap.String("source", source))
		publish(ctx, w.publisher, w.logger, RoutingOrderStatusChanged, newOrderEvent(order, previous, source))
		return order, true, nil
	}
	return nil, false, fmt.Errorf("gave up on order %s after %d attempts: %w", orderID, attempts, lastErr)
}
