package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"threadline/internal/middleware"
	"threadline/internal/payments"
	"threadline/internal/services"
	"threadline/pkg/logger"
)

// PaymentHandler receives gateway webhooks and shopper-initiated verification.
type PaymentHandler struct {
	payments      *services.PaymentService
	webhookSecret string
	validate      *validator.Validate
	logger        *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler. webhookSecret signs both the generic and the
// Stripe webhook. When it is empty the generic webhook accepts unsigned posts and the Stripe
// webhook rejects everything.
func NewPaymentHandler(payments *services.PaymentService, webhookSecret string, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments:      payments,
		webhookSecret: webhookSecret,
		validate:      validator.New(),
		logger:        logger.OrNop(log),
	}
}

// RegisterRoutes registers the payment routes.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	paymentRoutes := router.Group("/payments")
	paymentRoutes.Post("/webhook", middleware.WebhookSignature(h.webhookSecret, h.logger), h.HandleWebhook)
	paymentRoutes.Post("/stripe/webhook", h.HandleStripeWebhook)
	paymentRoutes.Post("/verify", h.HandleVerify)
}

// HandleWebhook applies a gateway event. Malformed payloads get 400 so the gateway stops
// retrying them; storage failures get 500 so it retries.
func (h *PaymentHandler) HandleWebhook(c *fiber.Ctx) error {
	var event services.WebhookEvent
	if err := c.BodyParser(&event); err != nil {
		h.logger.Warn("unparseable webhook payload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid webhook payload",
			"error":   err.Error(),
		})
	}

	result, err := h.payments.HandleWebhook(c.UserContext(), event)
	return h.respondToWebhook(c, event.Event, event.Data.Metadata.OrderID, result, err)
}

// HandleStripeWebhook applies a Checkout Session event delivered by Stripe.
func (h *PaymentHandler) HandleStripeWebhook(c *fiber.Ctx) error {
	event, err := payments.ParseStripeEvent(c.Body(), c.Get(payments.StripeSignatureHeader), h.webhookSecret)
	if err != nil {
		if errors.Is(err, payments.ErrWebhookSignature) {
			h.logger.Warn("rejected stripe webhook", zap.String("ip", c.IP()), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid webhook signature",
			})
		}
		h.logger.Warn("unparseable stripe webhook", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid webhook payload",
			"error":   err.Error(),
		})
	}
	if event.Outcome == payments.OutcomeUnknown && event.OrderID == "" {
		return c.JSON(services.PaymentResult{Outcome: event.Outcome.String()})
	}

	result, err := h.payments.HandleProviderEvent(c.UserContext(), event, "stripe")
	return h.respondToWebhook(c, event.Type, event.OrderID, result, err)
}

func (h *PaymentHandler) respondToWebhook(c *fiber.Ctx, eventType, orderID string, result *services.PaymentResult, err error) error {
	switch {
	case err == nil:
		return c.JSON(result)
	case errors.Is(err, services.ErrMissingOrderID),
		errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrUnverifiedWebhook):
		h.logger.Warn("webhook rejected", zap.String("event", eventType),
			zap.String("order_id", orderID), zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid webhook metadata",
			"error":   err.Error(),
		})
	case errors.Is(err, services.ErrGateway):
		return failWith(c, h.logger, fiber.StatusBadGateway, "Could not verify webhook with the payment gateway", err)
	default:
		return failWith(c, h.logger, fiber.StatusInternalServerError, "Could not process webhook", err)
	}
}

type verifyRequest struct {
	SessionToken string `json:"session_token" validate:"required"`
	OrderID      string `json:"order_id" validate:"required"`
}

// HandleVerify checks the session with the gateway when the shopper returns from checkout.
func (h *PaymentHandler) HandleVerify(c *fiber.Ctx) error {
	var req verifyRequest
	if ok, err := decode(c, h.validate, &req); !ok {
		return err
	}
	result, err := h.payments.Verify(c.UserContext(), req.SessionToken, req.OrderID)
	if err != nil {
		return fail(c, h.logger, "Could not verify payment", err)
	}
	return c.JSON(result)
}
