package handlers

import (
	"errors"

	"duka/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondError maps a service error onto a status code and JSON body.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	status := fiber.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, services.ErrValidation):
		status, message = fiber.StatusBadRequest, services.Message(err)
	case errors.Is(err, services.ErrNotFound):
		status, message = fiber.StatusNotFound, services.Message(err)
	case errors.Is(err, services.ErrUnauthorized):
		status, message = fiber.StatusUnauthorized, services.Message(err)
	case errors.Is(err, services.ErrGateway):
		status, message = fiber.StatusBadGateway, services.Message(err)
	case errors.Is(err, services.ErrConflict):
		// Informational: the request was valid but there is nothing left to do.
		status, message = fiber.StatusOK, services.Message(err)
	default:
		logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// parseBody decodes the request body into out, answering 400 on failure.
func parseBody(c *fiber.Ctx, logger *zap.Logger, out interface{}) bool {
	if err := c.BodyParser(out); err != nil {
		logger.Debug("Error parsing request body", zap.String("path", c.Path()), zap.Error(err))
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
		return false
	}
	return true
}

// currentUser prefers the authenticated user over a user id in the body.
func currentUser(c *fiber.Ctx, fromBody string) string {
	if id, ok := c.Locals("user_id").(string); ok && id != "" {
		return id
	}
	return fromBody
}
