package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReturnStatus string

const (
	ReturnStatusPending   ReturnStatus = "pending"
	ReturnStatusApproved  ReturnStatus = "approved"
	ReturnStatusRejected  ReturnStatus = "rejected"
	ReturnStatusCompleted ReturnStatus = "completed"
)

// Return is a customer's post-delivery return request. It snapshots the order at request time
// and never modifies the order row.
type Return struct {
	ID          string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID     string           `json:"order_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	OrderNumber string           `json:"order_number" gorm:"type:varchar(40);index;not null"`
	Customer    CustomerSnapshot `json:"customer" gorm:"embedded"`
	TotalAmount decimal.Decimal  `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	Reason      string           `json:"reason" gorm:"type:text"`
	Status      ReturnStatus     `json:"status" gorm:"type:varchar(20);not null;index"`
	Items       []ReturnItem     `json:"items,omitempty" gorm:"foreignKey:ReturnID"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type ReturnItem struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ReturnID    string          `json:"return_id" gorm:"type:varchar(36);index;not null"`
	ProductID   string          `json:"product_id" gorm:"type:varchar(36)"`
	VariantID   string          `json:"variant_id,omitempty" gorm:"type:varchar(36)"`
	ProductName string          `json:"product_name" gorm:"type:varchar(200);not null"`
	Color       string          `json:"color,omitempty" gorm:"type:varchar(50)"`
	Size        string          `json:"size,omitempty" gorm:"type:varchar(20)"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	CreatedAt   time.Time       `json:"created_at"`
}
