package handlers

import (
	"duka/internal/models"
	"duka/internal/services"
	"duka/pkg/mpesa"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// OrderHandler handles HTTP requests for orders and payments.
type OrderHandler struct {
	service *services.OrderService
	logger  *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the order routes. The webhook is left open for the gateway.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, userAuth, adminAuth fiber.Handler) {
	orderRoutes := router.Group("/order")
	orderRoutes.Post("/place", userAuth, h.HandlePlaceOrder)
	orderRoutes.Post("/mpesa", userAuth, h.HandleMpesaOrder)
	orderRoutes.Post("/confirmpayment", userAuth, h.HandleConfirmPayment)
	orderRoutes.Post("/cancelorder", userAuth, h.HandleCancelOrder)
	orderRoutes.Post("/userorders", userAuth, h.HandleUserOrders)
	orderRoutes.Post("/mpesa-webhook", h.HandleMpesaWebhook)

	orderRoutes.Post("/list", adminAuth, h.HandleListOrders)
	orderRoutes.Post("/status", adminAuth, h.HandleUpdateStatus)
	orderRoutes.Post("/payments", adminAuth, h.HandleOrderPayments)
}

// HandlePlaceOrder places a cash-on-delivery order.
func (h *OrderHandler) HandlePlaceOrder(c *fiber.Ctx) error {
	var in services.PlaceOrderInput
	if !parseBody(c, h.logger, &in) {
		return nil
	}
	in.UserID = currentUser(c, in.UserID)

	order, err := h.service.PlaceOrder(c.UserContext(), in)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Order Placed!",
		"orderId": order.ID,
	})
}

// HandleMpesaOrder places an order and sends an STK push for it.
func (h *OrderHandler) HandleMpesaOrder(c *fiber.Ctx) error {
	var in services.PlaceOrderInput
	if !parseBody(c, h.logger, &in) {
		return nil
	}
	in.UserID = currentUser(c, in.UserID)

	res, err := h.service.PlaceMpesaOrder(c.UserContext(), in)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"message":    res.Message,
		"orderId":    res.OrderID,
		"checkoutId": res.CheckoutRequestID,
	})
}

// HandleConfirmPayment checks a push payment and optionally retries it.
func (h *OrderHandler) HandleConfirmPayment(c *fiber.Ctx) error {
	var in services.ConfirmPaymentInput
	if !parseBody(c, h.logger, &in) {
		return nil
	}
	in.UserID = currentUser(c, "")

	res, err := h.service.ConfirmPayment(c.UserContext(), in)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"success":    res.Paid || res.Pending,
		"message":    res.Message,
		"paid":       res.Paid,
		"checkoutId": res.CheckoutID,
	})
}

// HandleMpesaWebhook ingests gateway callbacks. It always answers 200 "OK" so
// the gateway never retries a delivery.
func (h *OrderHandler) HandleMpesaWebhook(c *fiber.Ctx) error {
	cb, err := mpesa.ParseCallback(c.Body())
	if err != nil {
		h.logger.Warn("Ignoring malformed M-Pesa callback", zap.Error(err))
		return c.Status(fiber.StatusOK).SendString("OK")
	}
	if err := h.service.HandleCallback(c.UserContext(), *cb); err != nil {
		h.logger.Error("Failed to process M-Pesa callback",
			zap.String("merchant_request_id", cb.MerchantRequestID),
			zap.String("checkout_request_id", cb.CheckoutRequestID),
			zap.Error(err))
	}
	return c.Status(fiber.StatusOK).SendString("OK")
}

// HandleCancelOrder cancels an unpaid order of the calling user.
func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	var req struct {
		OrderID string `json:"orderId"`
	}
	if !parseBody(c, h.logger, &req) {
		return nil
	}

	if err := h.service.CancelOrder(c.UserContext(), req.OrderID, currentUser(c, "")); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Order cancelled",
	})
}

// HandleUserOrders lists the calling user's orders.
func (h *OrderHandler) HandleUserOrders(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"userId"`
	}
	if !parseBody(c, h.logger, &req) {
		return nil
	}

	orders, err := h.service.UserOrders(c.UserContext(), currentUser(c, req.UserID))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "",
		"orders":  orders,
	})
}

// HandleListOrders lists every order for the admin panel.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "",
		"orders":  orders,
	})
}

// HandleUpdateStatus sets the display status of an order.
func (h *OrderHandler) HandleUpdateStatus(c *fiber.Ctx) error {
	var req struct {
		OrderID string `json:"orderId"`
		Status  string `json:"status"`
	}
	if !parseBody(c, h.logger, &req) {
		return nil
	}

	if err := h.service.UpdateStatus(c.UserContext(), req.OrderID, req.Status); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Status Updated",
	})
}

// HandleOrderPayments lists the push attempts of one order.
func (h *OrderHandler) HandleOrderPayments(c *fiber.Ctx) error {
	var req struct {
		OrderID string `json:"orderId"`
	}
	if !parseBody(c, h.logger, &req) {
		return nil
	}

	attempts, err := h.service.OrderPayments(c.UserContext(), req.OrderID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if attempts == nil {
		attempts = []models.PaymentAttempt{}
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "",
		"payments": attempts,
	})
}
