package repositories

import (
	"context"

	"threadline/internal/models"
)

// CartRepository defines the interface for cart line storage.
type CartRepository interface {
	ListItems(ctx context.Context, owner models.CartOwner) ([]models.CartItem, error)
	FindLine(ctx context.Context, owner models.CartOwner, productID, variantID, color string) (*models.CartItem, error)
	// AddOrIncrement inserts the line or, when the combination already exists, adds its quantity.
	AddOrIncrement(ctx context.Context, item *models.CartItem) error
	UpdateQuantity(ctx context.Context, owner models.CartOwner, itemID string, quantity int) error
	RemoveItem(ctx context.Context, owner models.CartOwner, itemID string) error
	Clear(ctx context.Context, owner models.CartOwner) error
	// Merge moves every line of from into to, adding quantities on collisions, and returns the
	// number of lines moved.
	Merge(ctx context.Context, from, to models.CartOwner) (int, error)
}
