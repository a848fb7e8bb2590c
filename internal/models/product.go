package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog read model the cart resolves prices and stock against.
// Catalog maintenance happens elsewhere; this service only reads these rows.
type Product struct {
	ID        string           `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name      string           `json:"name" gorm:"type:varchar(200)" validate:"required,min=3,max=200"`
	BasePrice decimal.Decimal  `json:"base_price" gorm:"type:decimal(12,2);not null"`
	Stock     int              `json:"stock" validate:"gte=0"`
	Variants  []ProductVariant `json:"variants,omitempty" gorm:"foreignKey:ProductID"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ProductVariant is a color/size combination with its own price and stock.
type ProductVariant struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProductID string          `json:"product_id" gorm:"type:varchar(36);index;not null"`
	Color     string          `json:"color" gorm:"type:varchar(50)"`
	Size      string          `json:"size" gorm:"type:varchar(20)"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
