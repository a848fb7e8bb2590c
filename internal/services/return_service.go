package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"threadline/internal/models"
	"threadline/internal/repositories"
	"threadline/pkg/logger"
)

// ReturnExclusion decides which returns remove an order from revenue.
type ReturnExclusion string

const (
	// ExclusionAny excludes an order as soon as any return exists for it, whatever its status.
	ExclusionAny ReturnExclusion = "any"
	// ExclusionApproved excludes only orders whose return was approved or completed.
	ExclusionApproved ReturnExclusion = "approved"
)

// Excludes reports whether an order with a return in status is left out of revenue.
func (e ReturnExclusion) Excludes(status models.ReturnStatus) bool {
	if status == "" {
		return false
	}
	if e == ExclusionApproved {
		return status == models.ReturnStatusApproved || status == models.ReturnStatusCompleted
	}
	return true
}

var returnTransitions = map[models.ReturnStatus][]models.ReturnStatus{
	models.ReturnStatusPending:  {models.ReturnStatusApproved, models.ReturnStatusRejected},
	models.ReturnStatusApproved: {models.ReturnStatusCompleted},
}

// ReturnService handles return requests for delivered orders.
type ReturnService struct {
	orders  repositories.OrderRepository
	returns repositories.ReturnRepository
	logger  *zap.Logger
}

// NewReturnService creates a new ReturnService.
func NewReturnService(orders repositories.OrderRepository, returns repositories.ReturnRepository, log *zap.Logger) *ReturnService {
	return &ReturnService{orders: orders, returns: returns, logger: logger.OrNop(log)}
}

// RequestReturn opens a return for a delivered order, snapshotting the order's customer, total
// and items. The order itself is not modified.
func (s *ReturnService) RequestReturn(ctx context.Context, orderNumber, reason string) (*models.Return, error) {
	order, err := s.orders.GetByOrderNumber(ctx, strings.TrimSpace(orderNumber))
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusDelivered {
		return nil, fmt.Errorf("%w: order %s is %s", ErrReturnNotAllowed, order.OrderNumber, order.Status)
	}
	exists, err := s.returns.ExistsForOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrReturnExists
	}

	ret := &models.Return{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Customer:    order.Customer,
		TotalAmount: order.TotalAmount,
		Reason:      strings.TrimSpace(reason),
		Status:      models.ReturnStatusPending,
	}
	for _, item := range order.Items {
		ret.Items = append(ret.Items, models.ReturnItem{
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			Color:       item.Color,
			Size:        item.Size,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		})
	}
	if err := s.returns.Create(ctx, ret); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrReturnExists
		}
		return nil, err
	}
	s.logger.Info("return requested", zap.String("order_number", order.OrderNumber), zap.String("return_id", ret.ID))
	return ret, nil
}

// UpdateStatus moves a return along pending → approved|rejected and approved → completed.
func (s *ReturnService) UpdateStatus(ctx context.Context, id, status string) (*models.Return, error) {
	target := models.ReturnStatus(strings.ToLower(strings.TrimSpace(status)))
	ret, err := s.returns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canMoveReturn(ret.Status, target) {
		return nil, fmt.Errorf("%w: return cannot move from %s to %q", ErrInvalidStatus, ret.Status, status)
	}
	if err := s.returns.UpdateStatus(ctx, id, ret.Status, target); err != nil {
		if errors.Is(err, repositories.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: return %s changed concurrently", ErrInvalidStatus, id)
		}
		return nil, err
	}
	s.logger.Info("return status changed", zap.String("return_id", id),
		zap.String("from", string(ret.Status)), zap.String("to", string(target)))
	ret.Status = target
	return ret, nil
}

func canMoveReturn(from, to models.ReturnStatus) bool {
	for _, allowed := range returnTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// List returns return requests, optionally filtered by status.
func (s *ReturnService) List(ctx context.Context, status string) ([]models.Return, error) {
	return s.returns.List(ctx, models.ReturnStatus(strings.ToLower(strings.TrimSpace(status))))
}

func (s *ReturnService) Get(ctx context.Context, id string) (*models.Return, error) {
	return s.returns.GetByID(ctx, id)
}
