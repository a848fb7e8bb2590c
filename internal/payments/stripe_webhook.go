package payments

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeSignatureHeader carries the signature Stripe puts on every webhook delivery.
const StripeSignatureHeader = "Stripe-Signature"

const (
	StripeEventSessionCompleted          = "checkout.session.completed"
	StripeEventSessionAsyncPaymentPaid   = "checkout.session.async_payment_succeeded"
	StripeEventSessionAsyncPaymentFailed = "checkout.session.async_payment_failed"
	StripeEventSessionExpired            = "checkout.session.expired"
)

// ErrWebhookSignature is wrapped when a delivery fails signature verification.
var ErrWebhookSignature = errors.New("invalid webhook signature")

// ParseStripeEvent verifies a Stripe delivery against the endpoint secret and maps Checkout
// Session events to outcomes. Other event types come back with OutcomeUnknown.
func ParseStripeEvent(payload []byte, signature, secret string) (ProviderEvent, error) {
	if secret == "" {
		return ProviderEvent{}, fmt.Errorf("%w: no endpoint secret configured", ErrWebhookSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return ProviderEvent{}, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	parsed := ProviderEvent{Type: string(event.Type)}
	switch parsed.Type {
	case StripeEventSessionCompleted, StripeEventSessionAsyncPaymentPaid,
		StripeEventSessionAsyncPaymentFailed, StripeEventSessionExpired:
	default:
		return parsed, nil
	}
	if event.Data == nil {
		return parsed, errors.New("stripe: event has no data")
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return parsed, fmt.Errorf("stripe: decode checkout session: %w", err)
	}
	parsed.OrderID = session.Metadata["order_id"]

	switch parsed.Type {
	case StripeEventSessionCompleted:
		// Delayed payment methods complete the session before the money arrives.
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			parsed.Outcome = OutcomeSucceeded
		}
	case StripeEventSessionAsyncPaymentPaid:
		parsed.Outcome = OutcomeSucceeded
	case StripeEventSessionAsyncPaymentFailed:
		parsed.Outcome = OutcomeFailed
	case StripeEventSessionExpired:
		parsed.Outcome = OutcomeCancelled
	}
	return parsed, nil
}
