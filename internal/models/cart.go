package models

import "time"

// OwnerKind tells whether a cart belongs to a signed-in user or an anonymous session token.
type OwnerKind string

const (
	OwnerUser    OwnerKind = "user"
	OwnerSession OwnerKind = "session"
)

// CartOwner identifies whose cart a request operates on.
type CartOwner struct {
	Kind OwnerKind
	ID   string
}

// IsZero reports whether the owner could not be resolved.
func (o CartOwner) IsZero() bool {
	return o.Kind == "" || o.ID == ""
}

// CartItem is one line of a cart. The (owner, product, variant, color) combination is unique, so
// adding an already present combination increases the quantity instead of inserting a row.
// VariantID is empty when the base product was added.
type CartItem struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerKind OwnerKind       `json:"-" gorm:"type:varchar(10);not null;uniqueIndex:idx_cart_line,priority:1"`
	OwnerID   string          `json:"-" gorm:"type:varchar(64);not null;uniqueIndex:idx_cart_line,priority:2"`
	ProductID string          `json:"product_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_line,priority:3"`
	VariantID string          `json:"variant_id,omitempty" gorm:"type:varchar(36);not null;default:'';uniqueIndex:idx_cart_line,priority:4"`
	Color     string          `json:"color,omitempty" gorm:"type:varchar(50);not null;default:'';uniqueIndex:idx_cart_line,priority:5"`
	Size      string          `json:"size,omitempty" gorm:"type:varchar(20)"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Product   *Product        `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Variant   *ProductVariant `json:"variant,omitempty" gorm:"foreignKey:VariantID"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
