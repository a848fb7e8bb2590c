package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"threadline/internal/middleware"
	"threadline/internal/models"
	"threadline/internal/services"
	"threadline/pkg/logger"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
		logger:      logger.OrNop(log),
	}
}

// RegisterRoutes registers the authentication routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var user models.User
	if ok, err := decode(c, h.validate, &user); !ok {
		return err
	}

	if err := h.authService.RegisterUser(c.UserContext(), &user); err != nil {
		if statusFor(err) == fiber.StatusConflict {
			return fail(c, h.logger, "Registration failed", err)
		}
		return failWith(c, h.logger, fiber.StatusInternalServerError, "Could not register user", err)
	}

	// For security, do not return the password hash
	user.Password = ""
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

// LoginRequest represents the request body for login. CartSession names an anonymous cart to
// merge into the user's cart; the X-Cart-Session header is used when it is empty.
type LoginRequest struct {
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password" validate:"required"`
	CartSession string `json:"cart_session" validate:"max=64"`
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if ok, err := decode(c, h.validate, &req); !ok {
		return err
	}
	if req.CartSession == "" {
		req.CartSession = c.Get(middleware.CartSessionHeader)
	}

	token, err := h.authService.LoginUser(c.UserContext(), req.Username, req.Password, req.CartSession)
	if err != nil {
		h.logger.Info("login failed", zap.String("username", req.Username), zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication failed",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
	})
}
