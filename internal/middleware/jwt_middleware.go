package middleware

import (
	"strings"

	"duka/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// TokenValidator parses a bearer token into its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (jwt.MapClaims, error)
}

// AuthRequired is a Fiber middleware to check for a valid user JWT.
// It stores the user_id and role claims in the request locals.
func AuthRequired(auth TokenValidator, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, reason := bearerClaims(c, auth, logger)
		if reason != "" {
			return unauthorized(c, reason)
		}
		userID, _ := claims["user_id"].(string)
		if userID == "" {
			return unauthorized(c, "Token carries no user")
		}

		c.Locals("user_id", userID)
		c.Locals("role", claims["role"])
		return c.Next()
	}
}

// AdminRequired lets through only tokens issued by admin login.
func AdminRequired(auth TokenValidator, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, reason := bearerClaims(c, auth, logger)
		if reason != "" {
			return unauthorized(c, reason)
		}
		if role, _ := claims["role"].(string); role != services.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Not authorized, admin only",
			})
		}

		c.Locals("user_id", claims["user_id"])
		c.Locals("role", services.RoleAdmin)
		return c.Next()
	}
}

// bearerClaims validates the Authorization header. A non-empty message
// describes why the request is rejected.
func bearerClaims(c *fiber.Ctx, auth TokenValidator, logger *zap.Logger) (jwt.MapClaims, string) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return nil, "Authorization header is required"
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") {
		return nil, "Authorization header format must be 'Bearer <token>'"
	}

	claims, err := auth.ValidateToken(parts[1])
	if err != nil {
		logger.Debug("JWT validation failed", zap.String("path", c.Path()), zap.Error(err))
		return nil, "Invalid or expired token"
	}
	return claims, ""
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
