package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"threadline/internal/models"
)

// GORMReturnRepository is a GORM implementation of ReturnRepository.
type GORMReturnRepository struct {
	db *gorm.DB
}

// NewGORMReturnRepository creates a new instance of GORMReturnRepository.
func NewGORMReturnRepository(db *gorm.DB) *GORMReturnRepository {
	return &GORMReturnRepository{db: db}
}

// Create inserts the return and its items in one transaction.
func (r *GORMReturnRepository) Create(ctx context.Context, ret *models.Return) error {
	if ret.ID == "" {
		ret.ID = uuid.New().String()
	}
	for i := range ret.Items {
		if ret.Items[i].ID == "" {
			ret.Items[i].ID = uuid.New().String()
		}
		ret.Items[i].ReturnID = ret.ID
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Create(ret).Error; err != nil {
			return err
		}
		if len(ret.Items) > 0 {
			return tx.Create(&ret.Items).Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create return: %w", translate(err))
	}
	return nil
}

// GetByID returns a return request with its items.
func (r *GORMReturnRepository) GetByID(ctx context.Context, id string) (*models.Return, error) {
	var ret models.Return
	if err := r.db.WithContext(ctx).Preload("Items").First(&ret, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get return %s: %w", id, translate(err))
	}
	return &ret, nil
}

// ExistsForOrder reports whether any return row references the order.
func (r *GORMReturnRepository) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Return{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up returns for order %s: %w", orderID, err)
	}
	return count > 0, nil
}

// List returns return requests newest first, optionally filtered by status.
func (r *GORMReturnRepository) List(ctx context.Context, status models.ReturnStatus) ([]models.Return, error) {
	q := r.db.WithContext(ctx).Preload("Items").Order("created_at desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var returns []models.Return
	if err := q.Find(&returns).Error; err != nil {
		return nil, fmt.Errorf("failed to list returns: %w", err)
	}
	return returns, nil
}

// UpdateStatus moves a return from one status to another. A row no longer in from yields
// ErrVersionConflict.
func (r *GORMReturnRepository) UpdateStatus(ctx context.Context, id string, from, to models.ReturnStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Return{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to update return %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("return %s no longer %s: %w", id, from, ErrVersionConflict)
	}
	return nil
}
