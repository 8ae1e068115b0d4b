package handlers

import (
	"duka/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CartHandler handles HTTP requests for the user's cart.
type CartHandler struct {
	service *services.CartService
	logger  *zap.Logger
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{service: service, logger: logger}
}

// RegisterRoutes registers the cart routes behind userAuth.
func (h *CartHandler) RegisterRoutes(router fiber.Router, userAuth fiber.Handler) {
	cartRoutes := router.Group("/cart", userAuth)
	cartRoutes.Post("/get", h.HandleGetCart)
	cartRoutes.Post("/add", h.HandleAddToCart)
	cartRoutes.Post("/update", h.HandleUpdateCart)
}

type cartRequest struct {
	UserID   string `json:"userId"`
	ItemID   string `json:"itemId"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	var req cartRequest
	if !parseBody(c, h.logger, &req) {
		return nil
	}
	cart, err := h.service.GetCart(c.UserContext(), currentUser(c, req.UserID))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "",
		"cartData": cart,
	})
}

func (h *CartHandler) HandleAddToCart(c *fiber.Ctx) error {
	var req cartRequest
	if !parseBody(c, h.logger, &req) {
		return nil
	}
	if err := h.service.AddToCart(c.UserContext(), currentUser(c, req.UserID), req.ItemID, req.Size); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Added to cart"})
}

func (h *CartHandler) HandleUpdateCart(c *fiber.Ctx) error {
	var req cartRequest
	if !parseBody(c, h.logger, &req) {
		return nil
	}
	if err := h.service.UpdateCart(c.UserContext(), currentUser(c, req.UserID), req.ItemID, req.Size, req.Quantity); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Cart updated"})
}
