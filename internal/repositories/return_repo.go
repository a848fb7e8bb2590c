package repositories

import (
	"context"

	"threadline/internal/models"
)

// ReturnRepository defines the interface for return request storage.
type ReturnRepository interface {
	// Create stores the return and its item snapshots atomically.
	Create(ctx context.Context, ret *models.Return) error
	GetByID(ctx context.Context, id string) (*models.Return, error)
	ExistsForOrder(ctx context.Context, orderID string) (bool, error)
	List(ctx context.Context, status models.ReturnStatus) ([]models.Return, error)
	UpdateStatus(ctx context.Context, id string, from, to models.ReturnStatus) error
}
