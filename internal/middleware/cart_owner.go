package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"threadline/internal/models"
)

const (
	CartSessionHeader = "X-Cart-Session"
	localCartOwner    = "cart_owner"
)

// CartOwner resolves whose cart the request addresses: the signed-in user, else the anonymous
// session token header. Requests with neither are rejected.
func CartOwner() fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := ResolveCartOwner(c)
		if owner.IsZero() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Sign in or send an " + CartSessionHeader + " header",
			})
		}
		c.Locals(localCartOwner, owner)
		return c.Next()
	}
}

// ResolveCartOwner computes the owner without storing it.
func ResolveCartOwner(c *fiber.Ctx) models.CartOwner {
	if userID := UserID(c); userID != "" {
		return models.CartOwner{Kind: models.OwnerUser, ID: userID}
	}
	if token := strings.TrimSpace(c.Get(CartSessionHeader)); token != "" && len(token) <= 64 {
		return models.CartOwner{Kind: models.OwnerSession, ID: token}
	}
	return models.CartOwner{}
}

// OwnerFrom returns the owner stored by CartOwner.
func OwnerFrom(c *fiber.Ctx) models.CartOwner {
	owner, _ := c.Locals(localCartOwner).(models.CartOwner)
	return owner
}
