package repositories

import (
	"context"

	"github.com/shopspring/decimal"

	"threadline/internal/models"
)

// OrderFilter narrows order listings for the back office.
type OrderFilter struct {
	Status models.OrderStatus
	Limit  int
	Offset int
}

// StatusUpdate is a guarded status write. PaymentStatus is left untouched when empty.
type StatusUpdate struct {
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
}

// RevenueRow is the per-order projection reporting aggregates over.
type RevenueRow struct {
	ID           string
	TotalAmount  decimal.Decimal
	Status       models.OrderStatus
	ItemCount    int
	ReturnStatus *string
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// Create stores the order and its items atomically.
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	// UpdateStatus applies the update only if the row still carries expectedVersion.
	UpdateStatus(ctx context.Context, id string, expectedVersion int, update StatusUpdate) error
	SetPaymentSession(ctx context.Context, id, sessionToken, checkoutURL string) error
	BulkUpdateStatus(ctx context.Context, ids []string, status models.OrderStatus) (int64, error)
	DeleteItems(ctx context.Context, orderIDs []string) (int64, error)
	DeleteOrders(ctx context.Context, orderIDs []string) (int64, error)
	// DeleteWithItems removes orders and their items in one transaction.
	DeleteWithItems(ctx context.Context, orderIDs []string) (int64, error)
	RevenueRows(ctx context.Context) ([]RevenueRow, error)
}
