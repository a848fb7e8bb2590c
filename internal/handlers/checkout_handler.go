package handlers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"threadline/internal/middleware"
	"threadline/internal/models"
	"threadline/internal/services"
	"threadline/pkg/logger"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// CheckoutRequest is the checkout form. The Idempotency-Key header wins over the body field.
type CheckoutRequest struct {
	PaymentMethod  string                  `json:"payment_method" validate:"required,oneof=cod online"`
	Customer       models.CustomerSnapshot `json:"customer"`
	IdempotencyKey string                  `json:"idempotency_key" validate:"max=100"`
}

// CheckoutHandler places orders from carts.
type CheckoutHandler struct {
	checkout *services.CheckoutService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkout *services.CheckoutService, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		validate: validator.New(),
		logger:   logger.OrNop(log),
	}
}

// RegisterRoutes registers the checkout route.
func (h *CheckoutHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/checkout", middleware.CartOwner(), h.HandleCheckout)
}

// HandleCheckout places an order. Online orders answer with the gateway checkout URL; when the
// gateway is down the order stays payment_pending and the same idempotency key can retry.
func (h *CheckoutHandler) HandleCheckout(c *fiber.Ctx) error {
	var req CheckoutRequest
	if ok, err := decode(c, h.validate, &req); !ok {
		return err
	}
	key := strings.TrimSpace(c.Get(IdempotencyKeyHeader))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}
	if len(key) > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Idempotency key is too long",
		})
	}

	result, err := h.checkout.Checkout(c.UserContext(), services.CheckoutInput{
		Owner:          middleware.OwnerFrom(c),
		UserID:         middleware.UserID(c),
		PaymentMethod:  models.PaymentMethod(req.PaymentMethod),
		Customer:       req.Customer,
		IdempotencyKey: key,
	})
	if err != nil {
		if errors.Is(err, services.ErrGateway) && result != nil && result.Order != nil {
			h.logger.Warn("checkout left order awaiting payment session",
				zap.String("order_number", result.Order.OrderNumber), zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"message":      "Payment gateway unavailable, retry checkout with the same idempotency key",
				"error":        err.Error(),
				"order_number": result.Order.OrderNumber,
				"order":        result.Order,
			})
		}
		return fail(c, h.logger, "Checkout failed", err)
	}

	status := fiber.StatusCreated
	if result.Replayed {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"message":      "Order placed",
		"order_number": result.Order.OrderNumber,
		"order":        result.Order,
		"checkout_url": result.CheckoutURL,
		"replayed":     result.Replayed,
	})
}
