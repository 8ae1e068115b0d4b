package handlers

import (
	"duka/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UserHandler handles registration and login.
type UserHandler struct {
	authService *services.AuthService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(authService *services.AuthService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		authService: authService,
		logger:      logger,
	}
}

// RegisterRoutes registers the public user routes.
func (h *UserHandler) RegisterRoutes(router fiber.Router) {
	userRoutes := router.Group("/user")
	userRoutes.Post("/register", h.HandleRegister)
	userRoutes.Post("/login", h.HandleLogin)
	userRoutes.Post("/admin", h.HandleAdminLogin)
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister handles new user registration.
func (h *UserHandler) HandleRegister(c *fiber.Ctx) error {
	var in services.RegisterInput
	if !parseBody(c, h.logger, &in) {
		return nil
	}

	token, err := h.authService.Register(c.UserContext(), in)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "User Created",
		"token":   token,
	})
}

// HandleLogin handles user login and issues a JWT token.
func (h *UserHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if !parseBody(c, h.logger, &req) {
		return nil
	}

	token, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"token":   token,
	})
}

// HandleAdminLogin issues an admin token for the configured credentials.
func (h *UserHandler) HandleAdminLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if !parseBody(c, h.logger, &req) {
		return nil
	}

	token, err := h.authService.AdminLogin(req.Email, req.Password)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Welcome, Admin!",
		"token":   token,
	})
}
