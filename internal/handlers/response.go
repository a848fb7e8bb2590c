package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"threadline/internal/services"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInsufficientStock),
		errors.Is(err, services.ErrReturnExists),
		errors.Is(err, services.ErrUserExists),
		errors.Is(err, services.ErrVersionConflict):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrReturnNotAllowed):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrGateway):
		return fiber.StatusBadGateway
	case errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrInvalidVariant),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidPaymentMethod),
		errors.Is(err, services.ErrMissingOrderID),
		errors.Is(err, services.ErrSessionMismatch),
		errors.Is(err, services.ErrUnverifiedWebhook),
		errors.Is(err, services.ErrNoOrdersSelected):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// fail writes the error response for err. Server-side failures are logged at error level.
func fail(c *fiber.Ctx, log *zap.Logger, message string, err error) error {
	return failWith(c, log, statusFor(err), message, err)
}

func failWith(c *fiber.Ctx, log *zap.Logger, status int, message string, err error) error {
	fields := []zap.Field{zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err)}
	if status >= fiber.StatusInternalServerError {
		log.Error(message, fields...)
	} else {
		log.Debug(message, fields...)
	}
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}

// decode parses the JSON body into out and validates it. When ok is false the error response
// has already been written and err is what the handler should return.
func decode(c *fiber.Ctx, validate *validator.Validate, out interface{}) (ok bool, err error) {
	if err := c.BodyParser(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := validate.Struct(out); err != nil {
		return false, validationFailed(c, err)
	}
	return true, nil
}

func validationFailed(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}
	errorMessages := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
