package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"threadline/internal/middleware"
	"threadline/internal/services"
)

// Router groups every handler of the API.
type Router struct {
	Auth     *AuthHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Orders   *OrderHandler
	Payments *PaymentHandler
	Returns  *ReturnHandler
	Admin    *AdminHandler
}

// Mount registers the public routes on api and the staff routes under api/admin.
func (r Router) Mount(api fiber.Router, authService *services.AuthService, log *zap.Logger) {
	public := api.Group("", middleware.OptionalAuth(authService))
	r.Auth.RegisterRoutes(public)
	r.Cart.RegisterRoutes(public)
	r.Checkout.RegisterRoutes(public)
	r.Orders.RegisterRoutes(public)
	r.Payments.RegisterRoutes(public)
	r.Returns.RegisterRoutes(public)

	admin := api.Group("/admin", middleware.AuthRequired(authService, log), middleware.AdminOnly())
	r.Orders.RegisterAdminRoutes(admin)
	r.Returns.RegisterAdminRoutes(admin)
	r.Admin.RegisterAdminRoutes(admin)
}
