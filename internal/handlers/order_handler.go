package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"threadline/internal/repositories"
	"threadline/internal/services"
	"threadline/pkg/logger"
)

const maxListLimit = 200

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger.OrNop(log),
	}
}

// RegisterRoutes registers the public order routes.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/orders/track/:orderNumber", h.HandleTrackOrder)
}

// RegisterAdminRoutes registers the back office order routes. router must already require the
// admin role.
func (h *OrderHandler) RegisterAdminRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Post("/bulk-status", h.HandleBulkUpdateStatus)
	orderRoutes.Post("/bulk-delete", h.HandleBulkDelete)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Patch("/:id/status", h.HandleUpdateOrderStatus)
}

// HandleTrackOrder looks an order up by its public order number.
func (h *OrderHandler) HandleTrackOrder(c *fiber.Ctx) error {
	orderNumber := c.Params("orderNumber")
	order, err := h.service.TrackOrder(c.UserContext(), orderNumber)
	if err != nil {
		return fail(c, h.logger, fmt.Sprintf("Order %s not found", orderNumber), err)
	}
	return c.JSON(order)
}

// HandleGetOrders lists orders, newest first, optionally filtered by ?status=.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	filter := repositories.OrderFilter{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if raw := c.Query("status"); raw != "" {
		status, err := services.ParseOrderStatus(raw)
		if err != nil {
			return fail(c, h.logger, "Invalid status filter", err)
		}
		filter.Status = status
	}

	orders, err := h.service.ListOrders(c.UserContext(), filter)
	if err != nil {
		return fail(c, h.logger, "Could not retrieve orders", err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.service.GetOrderByID(c.UserContext(), orderID)
	if err != nil {
		return fail(c, h.logger, fmt.Sprintf("Could not retrieve order %s", orderID), err)
	}
	return c.JSON(order)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// HandleUpdateOrderStatus sets the status of an existing order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var req statusRequest
	if ok, err := decode(c, h.validate, &req); !ok {
		return err
	}

	order, err := h.service.UpdateOrderStatus(c.UserContext(), orderID, req.Status)
	if err != nil {
		return fail(c, h.logger, "Could not update order status", err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %s status updated successfully to %s", order.OrderNumber, order.Status),
		"order":   order,
	})
}

type bulkRequest struct {
	IDs    []string `json:"ids" validate:"dive,required"`
	Status string   `json:"status"`
}

// HandleBulkUpdateStatus sets one status on many orders.
func (h *OrderHandler) HandleBulkUpdateStatus(c *fiber.Ctx) error {
	var req bulkRequest
	if ok, err := decode(c, h.validate, &req); !ok {
		return err
	}
	n, err := h.service.BulkUpdateStatus(c.UserContext(), req.IDs, req.Status)
	if err != nil {
		return fail(c, h.logger, "Could not update orders", err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("%d orders updated", n),
		"updated": n,
	})
}

// HandleBulkDelete removes many orders with their items.
func (h *OrderHandler) HandleBulkDelete(c *fiber.Ctx) error {
	var req bulkRequest
	if ok, err := decode(c, h.validate, &req); !ok {
		return err
	}
	n, err := h.service.BulkDelete(c.UserContext(), req.IDs)
	if err != nil {
		return fail(c, h.logger, "Could not delete orders", err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("%d orders deleted", n),
		"deleted": n,
	})
}
