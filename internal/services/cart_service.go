package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"threadline/internal/models"
	"threadline/internal/repositories"
	"threadline/pkg/logger"
)

// AddItemInput is a request to put a product (optionally a specific variant) in the cart.
type AddItemInput struct {
	ProductID string `json:"product_id" validate:"required"`
	VariantID string `json:"variant_id"`
	Color     string `json:"color" validate:"max=50"`
	Size      string `json:"size" validate:"max=20"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

// CartLine is a cart item priced against the live catalog.
type CartLine struct {
	models.CartItem
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Stock       int             `json:"stock"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Available   bool            `json:"available"`
}

// CartView is the priced cart shown to the shopper.
type CartView struct {
	Lines        []CartLine      `json:"lines"`
	ItemCount    int             `json:"item_count"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Total        decimal.Decimal `json:"total"`
}

// CartService handles business logic for shopping carts.
type CartService struct {
	carts    repositories.CartRepository
	catalog  repositories.CatalogRepository
	shipping *ShippingService
	logger   *zap.Logger
}

// NewCartService creates a new CartService.
func NewCartService(carts repositories.CartRepository, catalog repositories.CatalogRepository, shipping *ShippingService, log *zap.Logger) *CartService {
	return &CartService{carts: carts, catalog: catalog, shipping: shipping, logger: logger.OrNop(log)}
}

// NewSessionToken issues an identifier for an anonymous cart.
func (s *CartService) NewSessionToken() string {
	return uuid.New().String()
}

// AddItem adds the product to the cart, incrementing the existing line for the same
// product, variant and color.
func (s *CartService) AddItem(ctx context.Context, owner models.CartOwner, in AddItemInput) (*models.CartItem, error) {
	if in.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}

	product, err := s.catalog.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if in.VariantID != "" {
		variant, err := s.catalog.GetVariant(ctx, in.VariantID)
		if err != nil {
			return nil, err
		}
		if variant.ProductID != product.ID {
			return nil, fmt.Errorf("%w: %s is not a variant of %s", ErrInvalidVariant, variant.ID, product.ID)
		}
		if in.Color == "" {
			in.Color = variant.Color
		}
		if in.Size == "" {
			in.Size = variant.Size
		}
	}

	item := &models.CartItem{
		OwnerKind: owner.Kind,
		OwnerID:   owner.ID,
		ProductID: product.ID,
		VariantID: in.VariantID,
		Color:     in.Color,
		Size:      in.Size,
		Quantity:  in.Quantity,
	}
	if err := s.carts.AddOrIncrement(ctx, item); err != nil {
		return nil, err
	}
	return s.carts.FindLine(ctx, owner, item.ProductID, item.VariantID, item.Color)
}

// UpdateQuantity sets a line's quantity. Removing a line goes through RemoveItem.
func (s *CartService) UpdateQuantity(ctx context.Context, owner models.CartOwner, itemID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	return s.carts.UpdateQuantity(ctx, owner, itemID, quantity)
}

func (s *CartService) RemoveItem(ctx context.Context, owner models.CartOwner, itemID string) error {
	return s.carts.RemoveItem(ctx, owner, itemID)
}

func (s *CartService) Clear(ctx context.Context, owner models.CartOwner) error {
	return s.carts.Clear(ctx, owner)
}

// Lines prices every cart line against the current catalog.
func (s *CartService) Lines(ctx context.Context, owner models.CartOwner) ([]CartLine, decimal.Decimal, error) {
	items, err := s.carts.ListItems(ctx, owner)
	if err != nil {
		return nil, decimal.Zero, err
	}
	lines := make([]CartLine, 0, len(items))
	subtotal := decimal.Zero
	for _, item := range items {
		line := priceLine(item)
		if line.Available {
			subtotal = subtotal.Add(line.LineTotal)
		}
		lines = append(lines, line)
	}
	return lines, subtotal, nil
}

func priceLine(item models.CartItem) CartLine {
	line := CartLine{CartItem: item, UnitPrice: decimal.Zero, LineTotal: decimal.Zero}
	if item.Product == nil {
		return line
	}
	line.ProductName = item.Product.Name
	line.UnitPrice = item.Product.BasePrice
	line.Stock = item.Product.Stock
	if item.VariantID != "" {
		if item.Variant == nil {
			return line
		}
		line.UnitPrice = item.Variant.Price
		line.Stock = item.Variant.Stock
	}
	line.Available = true
	line.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	return line
}

// TotalPrice returns the cart subtotal.
func (s *CartService) TotalPrice(ctx context.Context, owner models.CartOwner) (decimal.Decimal, error) {
	_, subtotal, err := s.Lines(ctx, owner)
	return subtotal, err
}

// View returns the priced cart including shipping.
func (s *CartService) View(ctx context.Context, owner models.CartOwner) (*CartView, error) {
	lines, subtotal, err := s.Lines(ctx, owner)
	if err != nil {
		return nil, err
	}
	shipping, err := s.shipping.CurrentRate(ctx)
	if err != nil {
		return nil, err
	}
	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	return &CartView{
		Lines:        lines,
		ItemCount:    count,
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Total:        subtotal.Add(shipping),
	}, nil
}

// MergeSessionIntoUser moves an anonymous cart into the user's cart after sign-in.
func (s *CartService) MergeSessionIntoUser(ctx context.Context, sessionToken, userID string) (int, error) {
	if sessionToken == "" || userID == "" {
		return 0, nil
	}
	from := models.CartOwner{Kind: models.OwnerSession, ID: sessionToken}
	to := models.CartOwner{Kind: models.OwnerUser, ID: userID}
	moved, err := s.carts.Merge(ctx, from, to)
	if err != nil {
		return 0, err
	}
	if moved > 0 {
		s.logger.Info("merged anonymous cart", zap.String("user_id", userID), zap.Int("lines", moved))
	}
	return moved, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, repositories.ErrNotFound)
}
