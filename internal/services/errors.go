package services

import (
	"errors"
	"fmt"

	"threadline/internal/repositories"
)

var (
	ErrNotFound        = repositories.ErrNotFound
	ErrVersionConflict = repositories.ErrVersionConflict

	ErrEmptyCart            = errors.New("cart is empty")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrInvalidVariant       = errors.New("variant does not belong to product")
	ErrInvalidAmount        = errors.New("amount must not be negative")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrGateway              = errors.New("payment gateway unavailable")
	ErrMissingOrderID       = errors.New("webhook payload has no order id")
	ErrSessionMismatch      = errors.New("session token does not match order")
	ErrUnverifiedWebhook    = errors.New("webhook cannot be verified with the payment gateway")
	ErrReturnNotAllowed     = errors.New("only delivered orders can be returned")
	ErrReturnExists         = errors.New("a return already exists for this order")
	ErrNoOrdersSelected     = errors.New("no orders selected")
	ErrUserExists           = errors.New("username or email already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUnauthorized         = errors.New("unauthorized")
)

func isVersionConflict(err error) bool {
	return errors.Is(err, repositories.ErrVersionConflict)
}

func wrapGatewayErr(err error) error {
	return fmt.Errorf("%w: %v", ErrGateway, err)
}
