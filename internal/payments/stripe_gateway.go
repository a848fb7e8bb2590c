package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeGatewayConfig configures StripeGateway. Sessions overrides the Stripe client in tests.
type StripeGatewayConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Sessions stripeSessionAPI
}

// StripeGateway implements Gateway with Stripe Checkout Sessions.
type StripeGateway struct {
	sessions stripeSessionAPI
}

// NewStripeGateway builds the adapter from an API key or injected sessions client.
func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	sessions := cfg.Sessions
	if sessions == nil {
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, errors.New("stripe: api key is required")
		}
		sessions = client.New(apiKey, cfg.Backends).CheckoutSessions
	}
	return &StripeGateway{sessions: sessions}, nil
}

// CreateSession opens a one-line Checkout session for the whole order total.
func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(ToMinorUnits(req.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Order " + req.OrderNumber),
				},
			},
		}},
		Metadata: map[string]string{
			"order_id":     req.OrderID,
			"order_number": req.OrderNumber,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("session-" + req.OrderID)
	if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}

	session, err := g.sessions.New(params)
	if err != nil {
		return Session{}, wrapStripeError("create session", err)
	}
	if session.ID == "" || session.URL == "" {
		return Session{}, &GatewayError{Op: "create session", Message: "stripe returned a session without id or url"}
	}
	return Session{Token: session.ID, CheckoutURL: session.URL}, nil
}

// VerifySession reads the session back and normalises its state.
func (g *StripeGateway) VerifySession(ctx context.Context, token string) (SessionState, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	session, err := g.sessions.Get(token, params)
	if err != nil {
		return "", wrapStripeError("verify session", err)
	}
	switch {
	case session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		return StatePaid, nil
	case session.Status == stripe.CheckoutSessionStatusExpired:
		return StateCancelled, nil
	default:
		return StatePending, nil
	}
}

func wrapStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &GatewayError{Op: op, StatusCode: stripeErr.HTTPStatusCode, Message: stripeErr.Msg}
	}
	return fmt.Errorf("stripe: %s: %w", op, err)
}
