package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrGatewayRejected is wrapped by every GatewayError.
var ErrGatewayRejected = errors.New("payment gateway rejected the request")

// GatewayError describes a non-success answer from a payment provider.
type GatewayError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: gateway returned %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *GatewayError) Unwrap() error { return ErrGatewayRejected }

// Customer is the subset of the order snapshot forwarded to the provider.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// SessionRequest asks the provider for a hosted checkout page.
type SessionRequest struct {
	OrderID     string
	OrderNumber string
	Amount      decimal.Decimal
	Currency    string
	Customer    Customer
	SuccessURL  string
	CancelURL   string
	WebhookURL  string
}

// Session is the provider's answer: a token identifying the session and the URL to redirect to.
type Session struct {
	Token       string
	CheckoutURL string
}

// Gateway creates hosted payment sessions and reports their state.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	VerifySession(ctx context.Context, token string) (SessionState, error)
}

// SessionState is a provider session state normalised across providers.
type SessionState string

const (
	StatePending   SessionState = "pending"
	StatePaid      SessionState = "paid"
	StateFailed    SessionState = "failed"
	StateCancelled SessionState = "cancelled"
)

// ParseState normalises a provider state string. Unrecognised values are pending.
func ParseState(raw string) SessionState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "paid", "completed", "succeeded", "success":
		return StatePaid
	case "failed", "declined":
		return StateFailed
	case "cancelled", "canceled", "expired":
		return StateCancelled
	default:
		return StatePending
	}
}

// Outcome is the payment result that drives order status transitions.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ProviderEvent is a gateway notification reduced to what reconciliation needs.
type ProviderEvent struct {
	Type    string
	OrderID string
	Outcome Outcome
}

const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentCancelled = "payment.cancelled"
)

// OutcomeFromEvent maps a webhook event name.
func OutcomeFromEvent(event string) Outcome {
	switch strings.ToLower(strings.TrimSpace(event)) {
	case EventPaymentSucceeded:
		return OutcomeSucceeded
	case EventPaymentFailed:
		return OutcomeFailed
	case EventPaymentCancelled, "payment.canceled":
		return OutcomeCancelled
	default:
		return OutcomeUnknown
	}
}

// OutcomeFromState maps a verified session state. Pending sessions have no outcome yet.
func OutcomeFromState(state SessionState) Outcome {
	switch state {
	case StatePaid:
		return OutcomeSucceeded
	case StateFailed:
		return OutcomeFailed
	case StateCancelled:
		return OutcomeCancelled
	default:
		return OutcomeUnknown
	}
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount to the provider's integer minor units.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
