package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"threadline/internal/services"
	"threadline/pkg/logger"
)

// AdminHandler serves store settings and reports.
type AdminHandler struct {
	shipping *services.ShippingService
	reports  *services.ReportService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(shipping *services.ShippingService, reports *services.ReportService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		shipping: shipping,
		reports:  reports,
		validate: validator.New(),
		logger:   logger.OrNop(log),
	}
}

// RegisterAdminRoutes registers the settings and report routes.
func (h *AdminHandler) RegisterAdminRoutes(router fiber.Router) {
	router.Put("/settings/shipping", h.HandleSetShipping)
	router.Get("/settings/shipping/history", h.HandleShippingHistory)
	router.Get("/reports/revenue", h.HandleRevenue)
}

type shippingRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
}

// HandleSetShipping appends a new shipping charge.
func (h *AdminHandler) HandleSetShipping(c *fiber.Ctx) error {
	var req shippingRequest
	if ok, err := decode(c, h.validate, &req); !ok {
		return err
	}
	setting, err := h.shipping.SetShippingRate(c.UserContext(), *req.Amount)
	if err != nil {
		return fail(c, h.logger, "Could not update shipping rate", err)
	}
	return c.JSON(fiber.Map{
		"message": "Shipping rate updated",
		"setting": setting,
	})
}

// HandleShippingHistory lists previous shipping charges, newest first.
func (h *AdminHandler) HandleShippingHistory(c *fiber.Ctx) error {
	history, err := h.shipping.History(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		return fail(c, h.logger, "Could not load shipping history", err)
	}
	return c.JSON(history)
}

// HandleRevenue returns the revenue summary.
func (h *AdminHandler) HandleRevenue(c *fiber.Ctx) error {
	summary, err := h.reports.Revenue(c.UserContext())
	if err != nil {
		return fail(c, h.logger, "Could not compute revenue", err)
	}
	return c.JSON(summary)
}
