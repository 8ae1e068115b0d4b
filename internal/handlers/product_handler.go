package handlers

import (
	"duka/internal/models"
	"duka/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service *services.ProductService
	logger  *zap.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the product routes. Mutations require adminAuth.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, adminAuth fiber.Handler) {
	productRoutes := router.Group("/product")
	productRoutes.Get("/list", h.HandleListProducts)
	productRoutes.Post("/single", h.HandleSingleProduct)
	productRoutes.Post("/add", adminAuth, h.HandleAddProduct)
	productRoutes.Post("/remove", adminAuth, h.HandleRemoveProduct)
}

// HandleListProducts retrieves all products.
func (h *ProductHandler) HandleListProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "",
		"products": products,
	})
}

// HandleSingleProduct retrieves one product by id.
func (h *ProductHandler) HandleSingleProduct(c *fiber.Ctx) error {
	var req struct {
		ProductID string `json:"productId"`
	}
	if !parseBody(c, h.logger, &req) {
		return nil
	}
	product, err := h.service.GetProductByID(c.UserContext(), req.ProductID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "",
		"product": product,
	})
}

// HandleAddProduct creates a product. Image URLs are taken as given.
func (h *ProductHandler) HandleAddProduct(c *fiber.Ctx) error {
	var product models.Product
	if !parseBody(c, h.logger, &product) {
		return nil
	}
	if err := h.service.CreateProduct(c.UserContext(), &product); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Product added!",
		"product": product,
	})
}

// HandleRemoveProduct deletes a product.
func (h *ProductHandler) HandleRemoveProduct(c *fiber.Ctx) error {
	var req struct {
		ID string `json:"id"`
	}
	if !parseBody(c, h.logger, &req) {
		return nil
	}
	if err := h.service.DeleteProduct(c.UserContext(), req.ID); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Product Removed",
	})
}
