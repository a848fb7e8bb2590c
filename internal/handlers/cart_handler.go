package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"threadline/internal/middleware"
	"threadline/internal/services"
	"threadline/pkg/logger"
)

// CartHandler serves the shopper's cart and the shipping rate shown next to it.
type CartHandler struct {
	carts    *services.CartService
	shipping *services.ShippingService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(carts *services.CartService, shipping *services.ShippingService, log *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:    carts,
		shipping: shipping,
		validate: validator.New(),
		logger:   logger.OrNop(log),
	}
}

// RegisterRoutes registers the cart routes.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/shipping-rate", h.HandleShippingRate)

	cartRoutes := router.Group("/cart")
	cartRoutes.Post("/session", h.HandleNewSession)
	cartRoutes.Get("/", middleware.CartOwner(), h.HandleView)
	cartRoutes.Delete("/", middleware.CartOwner(), h.HandleClear)
	cartRoutes.Post("/items", middleware.CartOwner(), h.HandleAddItem)
	cartRoutes.Patch("/items/:id", middleware.CartOwner(), h.HandleUpdateQuantity)
	cartRoutes.Delete("/items/:id", middleware.CartOwner(), h.HandleRemoveItem)
}

// HandleNewSession issues a token for an anonymous cart.
func (h *CartHandler) HandleNewSession(c *fiber.Ctx) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_token": h.carts.NewSessionToken(),
		"header":        middleware.CartSessionHeader,
	})
}

// HandleView returns the priced cart.
func (h *CartHandler) HandleView(c *fiber.Ctx) error {
	view, err := h.carts.View(c.UserContext(), middleware.OwnerFrom(c))
	if err != nil {
		return fail(c, h.logger, "Could not load cart", err)
	}
	return c.JSON(view)
}

// HandleAddItem adds a product or variant to the cart.
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req services.AddItemInput
	if ok, err := decode(c, h.validate, &req); !ok {
		return err
	}
	item, err := h.carts.AddItem(c.UserContext(), middleware.OwnerFrom(c), req)
	if err != nil {
		return fail(c, h.logger, "Could not add item to cart", err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// HandleUpdateQuantity sets the quantity of one cart line.
func (h *CartHandler) HandleUpdateQuantity(c *fiber.Ctx) error {
	var req updateQuantityRequest
	if ok, err := decode(c, h.validate, &req); !ok {
		return err
	}
	itemID := c.Params("id")
	if err := h.carts.UpdateQuantity(c.UserContext(), middleware.OwnerFrom(c), itemID, req.Quantity); err != nil {
		return fail(c, h.logger, "Could not update cart item", err)
	}
	return c.JSON(fiber.Map{"message": "Cart item updated"})
}

// HandleRemoveItem deletes one cart line.
func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	if err := h.carts.RemoveItem(c.UserContext(), middleware.OwnerFrom(c), c.Params("id")); err != nil {
		return fail(c, h.logger, "Could not remove cart item", err)
	}
	return c.JSON(fiber.Map{"message": "Cart item removed"})
}

// HandleClear empties the cart.
func (h *CartHandler) HandleClear(c *fiber.Ctx) error {
	if err := h.carts.Clear(c.UserContext(), middleware.OwnerFrom(c)); err != nil {
		return fail(c, h.logger, "Could not clear cart", err)
	}
	return c.JSON(fiber.Map{"message": "Cart cleared"})
}

// HandleShippingRate returns the flat shipping charge currently in force.
func (h *CartHandler) HandleShippingRate(c *fiber.Ctx) error {
	rate, err := h.shipping.CurrentRate(c.UserContext())
	if err != nil {
		return fail(c, h.logger, "Could not load shipping rate", err)
	}
	return c.JSON(fiber.Map{"shipping_rate": rate})
}
