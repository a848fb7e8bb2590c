package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"threadline/internal/models"
	"threadline/internal/repositories"
	"threadline/pkg/logger"
)

// BulkDeleteMode selects how BulkDelete removes orders and their items.
type BulkDeleteMode string

const (
	// BulkDeleteAtomic removes items and orders in one transaction.
	BulkDeleteAtomic BulkDeleteMode = "atomic"
	// BulkDeleteBestEffort removes items, then orders, as independent statements. A failure in
	// the second step leaves orders without items.
	BulkDeleteBestEffort BulkDeleteMode = "best_effort"
)

// OrderServiceConfig holds order management settings.
type OrderServiceConfig struct {
	StatusRetries  int
	BulkDeleteMode BulkDeleteMode
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orders    repositories.OrderRepository
	writer    *statusWriter
	publisher Publisher
	mode      BulkDeleteMode
	logger    *zap.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(orders repositories.OrderRepository, publisher Publisher, cfg OrderServiceConfig, log *zap.Logger) *OrderService {
	l := logger.OrNop(log)
	if cfg.BulkDeleteMode == "" {
		cfg.BulkDeleteMode = BulkDeleteAtomic
	}
	return &OrderService{
		orders:    orders,
		writer:    &statusWriter{orders: orders, retries: cfg.StatusRetries, publisher: publisher, logger: l},
		publisher: publisher,
		mode:      cfg.BulkDeleteMode,
		logger:    l,
	}
}

// ListOrders retrieves orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, filter repositories.OrderFilter) ([]models.Order, error) {
	return s.orders.List(ctx, filter)
}

// GetOrderByID retrieves a single order by its ID.
func (s *OrderService) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// TrackOrder retrieves the public view of an order by its order number.
func (s *OrderService) TrackOrder(ctx context.Context, orderNumber string) (*OrderTracking, error) {
	order, err := s.orders.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	return newOrderTracking(order), nil
}

// UpdateOrderStatus sets any valid status on an order. Staff edits are not restricted by the
// payment transition table.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, status string) (*models.Order, error) {
	target, err := ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	order, _, err := s.writer.apply(ctx, id, "staff", func(*models.Order) (repositories.StatusUpdate, bool) {
		return repositories.StatusUpdate{Status: target}, true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update order status for order %s: %w", id, err)
	}
	return order, nil
}

// BulkUpdateStatus sets status on every listed order and returns how many rows changed.
func (s *OrderService) BulkUpdateStatus(ctx context.Context, ids []string, status string) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrNoOrdersSelected
	}
	target, err := ParseOrderStatus(status)
	if err != nil {
		return 0, err
	}
	n, err := s.orders.BulkUpdateStatus(ctx, ids, target)
	if err != nil {
		return 0, err
	}
	s.logger.Info("bulk status update", zap.Int("requested", len(ids)), zap.Int64("updated", n), zap.String("status", string(target)))
	publish(ctx, s.publisher, s.logger, RoutingOrderStatusChanged, map[string]interface{}{
		"order_ids": ids,
		"status":    target,
		"source":    "staff_bulk",
	})
	return n, nil
}

// BulkDelete removes the listed orders with their items and returns how many orders were deleted.
func (s *OrderService) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrNoOrdersSelected
	}
	if s.mode == BulkDeleteBestEffort {
		items, err := s.orders.DeleteItems(ctx, ids)
		if err != nil {
			return 0, err
		}
		n, err := s.orders.DeleteOrders(ctx, ids)
		if err != nil {
			s.logger.Error("orders left without items after partial bulk delete",
				zap.Strings("order_ids", ids), zap.Int64("items_deleted", items), zap.Error(err))
			return 0, err
		}
		s.logger.Info("bulk delete", zap.Int64("orders", n), zap.Int64("items", items))
		return n, nil
	}

	n, err := s.orders.DeleteWithItems(ctx, ids)
	if err != nil {
		return 0, err
	}
	s.logger.Info("bulk delete", zap.Int64("orders", n))
	return n, nil
}
