package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"threadline/internal/models"
)

var cartLineColumns = []clause.Column{
	{Name: "owner_kind"}, {Name: "owner_id"}, {Name: "product_id"}, {Name: "variant_id"}, {Name: "color"},
}

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{db: db}
}

func ownedBy(owner models.CartOwner) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("owner_kind = ? AND owner_id = ?", owner.Kind, owner.ID)
	}
}

// ListItems returns the owner's lines with product and variant resolved at read time.
func (r *GORMCartRepository) ListItems(ctx context.Context, owner models.CartOwner) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Scopes(ownedBy(owner)).
		Preload("Product").
		Preload("Variant").
		Order("created_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	return items, nil
}

// FindLine returns the line matching the merge key.
func (r *GORMCartRepository) FindLine(ctx context.Context, owner models.CartOwner, productID, variantID, color string) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Scopes(ownedBy(owner)).
		Where("product_id = ? AND variant_id = ? AND color = ?", productID, variantID, color).
		First(&item).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find cart line: %w", translate(err))
	}
	return &item, nil
}

// AddOrIncrement upserts on the cart line unique index.
func (r *GORMCartRepository) AddOrIncrement(ctx context.Context, item *models.CartItem) error {
	if err := upsertLine(r.db.WithContext(ctx), item); err != nil {
		return fmt.Errorf("failed to add cart item: %w", err)
	}
	return nil
}

func upsertLine(db *gorm.DB, item *models.CartItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	return db.Clauses(clause.OnConflict{
		Columns: cartLineColumns,
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_items.quantity + excluded.quantity"),
			"updated_at": time.Now(),
		}),
	}).Create(item).Error
}

// UpdateQuantity sets the quantity of one of the owner's lines.
func (r *GORMCartRepository) UpdateQuantity(ctx context.Context, owner models.CartOwner, itemID string, quantity int) error {
	res := r.db.WithContext(ctx).Model(&models.CartItem{}).
		Scopes(ownedBy(owner)).
		Where("id = ?", itemID).
		Updates(map[string]interface{}{"quantity": quantity, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to update cart item %s: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cart item %s: %w", itemID, ErrNotFound)
	}
	return nil
}

// RemoveItem deletes one of the owner's lines.
func (r *GORMCartRepository) RemoveItem(ctx context.Context, owner models.CartOwner, itemID string) error {
	res := r.db.WithContext(ctx).Scopes(ownedBy(owner)).Where("id = ?", itemID).Delete(&models.CartItem{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove cart item %s: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cart item %s: %w", itemID, ErrNotFound)
	}
	return nil
}

// Clear deletes all of the owner's lines. Clearing an empty cart is not an error.
func (r *GORMCartRepository) Clear(ctx context.Context, owner models.CartOwner) error {
	if err := r.db.WithContext(ctx).Scopes(ownedBy(owner)).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Merge moves the lines of one owner into another inside a single transaction.
func (r *GORMCartRepository) Merge(ctx context.Context, from, to models.CartOwner) (int, error) {
	moved := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lines []models.CartItem
		if err := tx.Scopes(ownedBy(from)).Order("created_at asc").Find(&lines).Error; err != nil {
			return err
		}
		for _, line := range lines {
			merged := models.CartItem{
				OwnerKind: to.Kind,
				OwnerID:   to.ID,
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Color:     line.Color,
				Size:      line.Size,
				Quantity:  line.Quantity,
			}
			if err := upsertLine(tx, &merged); err != nil {
				return err
			}
			moved++
		}
		return tx.Scopes(ownedBy(from)).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to merge cart: %w", err)
	}
	return moved, nil
}
