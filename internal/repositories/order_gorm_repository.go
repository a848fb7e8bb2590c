package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"threadline/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// Create inserts the order and all of its items in a single transaction, so an order never
// exists without items.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.Version == 0 {
		order.Version = 1
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := order.Items
		if err := tx.Omit("Items").Create(order).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create order: %w", translate(err))
	}
	return nil
}

// GetByID returns an order with its items.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByOrderNumber returns an order by its public order number.
func (r *GORMOrderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.first(ctx, "order_number = ?", orderNumber)
}

// GetByIdempotencyKey returns the order a checkout submission key produced.
func (r *GORMOrderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	return r.first(ctx, "idempotency_key = ?", key)
}

func (r *GORMOrderRepository) first(ctx context.Context, query string, arg string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc, id asc") }).
		First(&order, query, arg).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get order (%s %s): %w", query, arg, translate(err))
	}
	return &order, nil
}

// List returns orders newest first.
func (r *GORMOrderRepository) List(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Preload("Items").Order("created_at desc")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus performs a compare-and-set on the order version.
func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int, update StatusUpdate) error {
	values := map[string]interface{}{
		"status":     update.Status,
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now(),
	}
	if update.PaymentStatus != "" {
		values["payment_status"] = update.PaymentStatus
	}

	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update status for order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check order %s: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("order %s at version %d: %w", id, expectedVersion, ErrVersionConflict)
}

// SetPaymentSession records the hosted payment session handed to the shopper.
func (r *GORMOrderRepository) SetPaymentSession(ctx context.Context, id, sessionToken, checkoutURL string) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"session_token": sessionToken,
			"checkout_url":  checkoutURL,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to store payment session for order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return nil
}

// BulkUpdateStatus overrides the status of every listed order and bumps their versions so that
// in-flight guarded writers notice.
func (r *GORMOrderRepository) BulkUpdateStatus(ctx context.Context, ids []string, status models.OrderStatus) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":     status,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to bulk update order status: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteItems removes the items of the listed orders.
func (r *GORMOrderRepository) DeleteItems(ctx context.Context, orderIDs []string) (int64, error) {
	res := r.db.WithContext(ctx).Where("order_id IN ?", orderIDs).Delete(&models.OrderItem{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete order items: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteOrders removes the listed order rows only.
func (r *GORMOrderRepository) DeleteOrders(ctx context.Context, orderIDs []string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id IN ?", orderIDs).Delete(&models.Order{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete orders: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteWithItems removes items then orders; either both succeed or neither is applied.
func (r *GORMOrderRepository) DeleteWithItems(ctx context.Context, orderIDs []string) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id IN ?", orderIDs).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", orderIDs).Delete(&models.Order{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete orders: %w", err)
	}
	return deleted, nil
}

// RevenueRows projects every order with its item count and the status of its return, if any.
func (r *GORMOrderRepository) RevenueRows(ctx context.Context) ([]RevenueRow, error) {
	var rows []RevenueRow
	err := r.db.WithContext(ctx).
		Table("orders").
		Select("orders.id AS id, orders.total_amount AS total_amount, orders.status AS status, " +
			"(SELECT COUNT(*) FROM order_items WHERE order_items.order_id = orders.id) AS item_count, " +
			"returns.status AS return_status").
		Joins("LEFT JOIN returns ON returns.order_id = orders.id").
		Order("orders.created_at asc").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load revenue rows: %w", err)
	}
	return rows, nil
}
