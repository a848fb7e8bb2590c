package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"threadline/internal/services"
	"threadline/pkg/logger"
)

// ReturnHandler handles return requests and their review.
type ReturnHandler struct {
	returns  *services.ReturnService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewReturnHandler creates a new ReturnHandler.
func NewReturnHandler(returns *services.ReturnService, log *zap.Logger) *ReturnHandler {
	return &ReturnHandler{
		returns:  returns,
		validate: validator.New(),
		logger:   logger.OrNop(log),
	}
}

// RegisterRoutes registers the shopper facing return route.
func (h *ReturnHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/returns", h.HandleRequestReturn)
}

// RegisterAdminRoutes registers the return review routes.
func (h *ReturnHandler) RegisterAdminRoutes(router fiber.Router) {
	returnRoutes := router.Group("/returns")
	returnRoutes.Get("/", h.HandleList)
	returnRoutes.Get("/:id", h.HandleGet)
	returnRoutes.Patch("/:id/status", h.HandleUpdateStatus)
}

type returnRequest struct {
	OrderNumber string `json:"order_number" validate:"required,max=40"`
	Reason      string `json:"reason" validate:"required,max=1000"`
}

// HandleRequestReturn files a return for a delivered order.
func (h *ReturnHandler) HandleRequestReturn(c *fiber.Ctx) error {
	var req returnRequest
	if ok, err := decode(c, h.validate, &req); !ok {
		return err
	}
	ret, err := h.returns.RequestReturn(c.UserContext(), req.OrderNumber, req.Reason)
	if err != nil {
		return fail(c, h.logger, "Could not request return", err)
	}
	return c.Status(fiber.StatusCreated).JSON(ret)
}

// HandleList lists returns, optionally filtered by ?status=.
func (h *ReturnHandler) HandleList(c *fiber.Ctx) error {
	returns, err := h.returns.List(c.UserContext(), c.Query("status"))
	if err != nil {
		return fail(c, h.logger, "Could not retrieve returns", err)
	}
	return c.JSON(returns)
}

// HandleGet returns one return request.
func (h *ReturnHandler) HandleGet(c *fiber.Ctx) error {
	ret, err := h.returns.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, h.logger, "Could not retrieve return", err)
	}
	return c.JSON(ret)
}

// HandleUpdateStatus approves, rejects or completes a return.
func (h *ReturnHandler) HandleUpdateStatus(c *fiber.Ctx) error {
	var req statusRequest
	if ok, err := decode(c, h.validate, &req); !ok {
		return err
	}
	ret, err := h.returns.UpdateStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return fail(c, h.logger, "Could not update return", err)
	}
	return c.JSON(ret)
}
