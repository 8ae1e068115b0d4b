package middleware_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"duka/internal/middleware"
	"duka/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "middleware_secret"

func setupApp(t *testing.T) (*fiber.App, *services.AuthService) {
	t.Helper()
	auth := services.NewAuthService(nil, services.AuthConfig{
		JWTSecret:     secret,
		TokenTTL:      time.Hour,
		AdminEmail:    "admin@duka.test",
		AdminPassword: "admin-password",
	}, zap.NewNop())

	app := fiber.New()
	whoami := func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": c.Locals("user_id"), "role": c.Locals("role")})
	}
	app.Get("/user", middleware.AuthRequired(auth, zap.NewNop()), whoami)
	app.Get("/admin", middleware.AdminRequired(auth, zap.NewNop()), whoami)
	return app, auth
}

func userToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    services.RoleUser,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func get(t *testing.T, app *fiber.App, path, authHeader string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestAuthRequired(t *testing.T) {
	app, _ := setupApp(t)

	status, body := get(t, app, "/user", "Bearer "+userToken(t, "u-1"))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "u-1", body["user_id"])

	status, body = get(t, app, "/user", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])

	status, _ = get(t, app, "/user", "Token abc")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = get(t, app, "/user", "Bearer not.a.token")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestAdminRequired(t *testing.T) {
	app, auth := setupApp(t)

	status, _ := get(t, app, "/admin", "Bearer "+userToken(t, "u-1"))
	assert.Equal(t, fiber.StatusForbidden, status)

	adminToken, err := auth.AdminLogin("admin@duka.test", "admin-password")
	require.NoError(t, err)
	status, body := get(t, app, "/admin", "Bearer "+adminToken)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, services.RoleAdmin, body["role"])
}
