package repositories

import (
	"context"

	"threadline/internal/models"
)

// CatalogRepository is the read side of the product catalog used to price carts.
type CatalogRepository interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetVariant(ctx context.Context, id string) (*models.ProductVariant, error)
	CreateProduct(ctx context.Context, product *models.Product) error
}
