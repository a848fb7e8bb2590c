package middleware_test

import (
	"bytes"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadline/internal/middleware"
	"threadline/internal/models"
	"threadline/internal/services"
)

const secret = "middleware-secret"

func signToken(t *testing.T, userID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  userID,
		"username": "u-" + userID,
		"role":     role,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newAuth() *services.AuthService {
	return services.NewAuthService(nil, nil, secret, nil)
}

func ownerApp() *fiber.App {
	app := fiber.New()
	app.Get("/cart", middleware.OptionalAuth(newAuth()), middleware.CartOwner(), func(c *fiber.Ctx) error {
		owner := middleware.OwnerFrom(c)
		return c.SendString(string(owner.Kind) + ":" + owner.ID)
	})
	return app
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	buf := new(bytes.Buffer)
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.String()
}

func TestCartOwner_Resolution(t *testing.T) {
	app := ownerApp()

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set(middleware.CartSessionHeader, "sess-1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "session:sess-1", body(t, resp))

	req = httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set(middleware.CartSessionHeader, "sess-1")
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-7", models.RoleCustomer))
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "user:user-7", body(t, resp), "signed-in user wins over the session header")

	req = httptest.NewRequest(http.MethodGet, "/cart", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminOnly(t *testing.T) {
	app := fiber.New()
	app.Get("/admin", middleware.AuthRequired(newAuth(), nil), middleware.AdminOnly(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"bad format", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"customer", "Bearer " + signToken(t, "c1", models.RoleCustomer), http.StatusForbidden},
		{"admin", "Bearer " + signToken(t, "a1", models.RoleAdmin), http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestWebhookSignature(t *testing.T) {
	app := fiber.New()
	app.Post("/hook", middleware.WebhookSignature("whsec", nil), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	payload := `{"event":"payment.succeeded"}`

	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(payload))
	req.Header.Set(middleware.WebhookSignatureHeader, hex.EncodeToString(middleware.Sign("whsec", []byte(payload))))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(payload))
	req.Header.Set(middleware.WebhookSignatureHeader, hex.EncodeToString(middleware.Sign("other", []byte(payload))))
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	open := fiber.New()
	open.Post("/hook", middleware.WebhookSignature("", nil), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	resp, err = open.Test(httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(payload)), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
