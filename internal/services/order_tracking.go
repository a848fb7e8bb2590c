package services

import (
	"time"

	"github.com/shopspring/decimal"

	"threadline/internal/models"
)

// OrderTracking is what anyone holding an order number may see. Internal ids, the payment
// session and contact details stay out of it.
type OrderTracking struct {
	OrderNumber   string               `json:"order_number"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	CustomerName  string               `json:"customer_name"`
	City          string               `json:"city"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	ShippingCost  decimal.Decimal      `json:"shipping_cost"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	Currency      string               `json:"currency"`
	Items         []TrackedItem        `json:"items"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// TrackedItem is one purchased line in an OrderTracking.
type TrackedItem struct {
	ProductName string          `json:"product_name"`
	Color       string          `json:"color,omitempty"`
	Size        string          `json:"size,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

func newOrderTracking(order *models.Order) *OrderTracking {
	items := make([]TrackedItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, TrackedItem{
			ProductName: item.ProductName,
			Color:       item.Color,
			Size:        item.Size,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal(),
		})
	}
	return &OrderTracking{
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		CustomerName:  order.Customer.Name,
		City:          order.Customer.City,
		Subtotal:      order.Subtotal,
		ShippingCost:  order.ShippingCost,
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		Items:         items,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}
