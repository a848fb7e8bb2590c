package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPaymentPending OrderStatus = "payment_pending"
	OrderStatusPaymentFailed  OrderStatus = "payment_failed"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusDelivered      OrderStatus = "delivered"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodOnline PaymentMethod = "online"
)

// CustomerSnapshot is copied from the checkout form so later profile edits never alter a placed order.
type CustomerSnapshot struct {
	Name       string `json:"name" gorm:"column:customer_name;type:varchar(150)" validate:"required,max=150"`
	Email      string `json:"email" gorm:"column:customer_email;type:varchar(255)" validate:"required,email"`
	Phone      string `json:"phone" gorm:"column:customer_phone;type:varchar(30)" validate:"required,min=7,max=30"`
	Address    string `json:"address" gorm:"column:shipping_address;type:varchar(500)" validate:"required,max=500"`
	City       string `json:"city" gorm:"column:shipping_city;type:varchar(100)" validate:"required,max=100"`
	PostalCode string `json:"postal_code" gorm:"column:shipping_postal_code;type:varchar(20)" validate:"omitempty,max=20"`
}

// Order is the durable record of a placed order. Only Status, PaymentStatus, the payment session
// fields, Version and UpdatedAt change after creation.
type Order struct {
	ID             string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderNumber    string           `json:"order_number" gorm:"type:varchar(40);uniqueIndex;not null"`
	IdempotencyKey *string          `json:"-" gorm:"type:varchar(100);uniqueIndex"`
	UserID         string           `json:"user_id,omitempty" gorm:"type:varchar(36);index"`
	Customer       CustomerSnapshot `json:"customer" gorm:"embedded"`
	Subtotal       decimal.Decimal  `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	ShippingCost   decimal.Decimal  `json:"shipping_cost" gorm:"type:decimal(12,2);not null"`
	TotalAmount    decimal.Decimal  `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	Currency       string           `json:"currency" gorm:"type:varchar(3);not null"`
	PaymentMethod  PaymentMethod    `json:"payment_method" gorm:"type:varchar(10);not null"`
	Status         OrderStatus      `json:"status" gorm:"type:varchar(20);not null;index"`
	PaymentStatus  PaymentStatus    `json:"payment_status" gorm:"type:varchar(20);not null"`
	SessionToken   string           `json:"session_token,omitempty" gorm:"type:varchar(255)"`
	CheckoutURL    string           `json:"checkout_url,omitempty" gorm:"type:varchar(1000)"`
	Version        int              `json:"version" gorm:"not null;default:1"`
	Items          []OrderItem      `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// OrderItem snapshots the purchased line; it is never joined back to the live catalog.
type OrderItem struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID     string          `json:"order_id" gorm:"type:varchar(36);index;not null"`
	ProductID   string          `json:"product_id" gorm:"type:varchar(36)"`
	VariantID   string          `json:"variant_id,omitempty" gorm:"type:varchar(36)"`
	ProductName string          `json:"product_name" gorm:"type:varchar(200);not null"`
	Color       string          `json:"color,omitempty" gorm:"type:varchar(50)"`
	Size        string          `json:"size,omitempty" gorm:"type:varchar(20)"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	CreatedAt   time.Time       `json:"created_at"`
}

// LineTotal is UnitPrice × Quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
