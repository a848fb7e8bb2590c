package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"threadline/pkg/logger"
)

const WebhookSignatureHeader = "X-Webhook-Signature"

// WebhookSignature checks the hex HMAC-SHA256 of the raw body against the signature header.
// An empty secret disables the check.
func WebhookSignature(secret string, log *zap.Logger) fiber.Handler {
	log = logger.OrNop(log)
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}
		given, err := hex.DecodeString(strings.TrimSpace(c.Get(WebhookSignatureHeader)))
		if err != nil || len(given) == 0 || !hmac.Equal(given, Sign(secret, c.Body())) {
			log.Warn("rejected webhook with bad signature", zap.String("ip", c.IP()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid webhook signature",
			})
		}
		return c.Next()
	}
}

// Sign returns the HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
