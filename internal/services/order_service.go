package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"duka/internal/metrics"
	"duka/internal/models"
	"duka/internal/repositories"
	"duka/pkg/mpesa"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentGateway starts push payments and reports their status.
type PaymentGateway interface {
	InitiatePush(ctx context.Context, req mpesa.PushRequest) (*mpesa.PushResult, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.StatusResult, error)
}

// EventPublisher announces order lifecycle changes.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

// CartClearer empties a user's cart once an order is placed.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

// PaymentSettings tunes the confirmation workflow.
type PaymentSettings struct {
	// SettleDelay is the single pause between a retried push and its one re-query.
	SettleDelay time.Duration
}

const (
	sourcePoll    = "poll"
	sourceRetry   = "retry"
	sourceWebhook = "webhook"

	msgPaymentConfirmed = "Payment confirmed"
	msgAlreadyConfirmed = "Payment already confirmed"
	msgPushSent         = "STK push sent, awaiting confirmation"
	msgAlreadyProcessed = "Order already processed"
)

// PlaceOrderInput is the checkout request for both payment methods.
type PlaceOrderInput struct {
	UserID  string             `json:"userId" validate:"required"`
	Items   []models.OrderItem `json:"items" validate:"required,min=1,dive"`
	Amount  int64              `json:"amount" validate:"gt=0"`
	Address models.Address     `json:"address"`
}

// CheckoutResult is returned once the gateway has accepted a push request.
type CheckoutResult struct {
	OrderID           string
	CheckoutRequestID string
	MerchantRequestID string
	Message           string
}

// ConfirmPaymentInput asks for the status of a push, optionally retrying it.
type ConfirmPaymentInput struct {
	// UserID, when set, restricts confirmation to that user's orders.
	UserID     string `json:"-"`
	OrderID    string `json:"orderId"`
	CheckoutID string `json:"checkoutId"`
	Retry      bool   `json:"retryPurchase"`
	Amount     int64  `json:"amount"`
	Phone      string `json:"phoneNumber"`
}

// ConfirmResult is the outcome of a confirmation request.
type ConfirmResult struct {
	Paid bool
	// Pending is set when a fresh push was sent but has not settled yet.
	Pending    bool
	Message    string
	CheckoutID string
}

// OrderService coordinates order placement, payment confirmation, gateway
// callbacks and cancellation.
type OrderService struct {
	orders   repositories.OrderRepository
	attempts repositories.PaymentAttemptRepository
	gateway  PaymentGateway
	carts    CartClearer
	events   EventPublisher
	settings PaymentSettings
	validate *validator.Validate
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *zap.Logger
}

// NewOrderService creates a new OrderService. events may be nil.
func NewOrderService(
	orders repositories.OrderRepository,
	attempts repositories.PaymentAttemptRepository,
	gateway PaymentGateway,
	carts CartClearer,
	events EventPublisher,
	settings PaymentSettings,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		attempts: attempts,
		gateway:  gateway,
		carts:    carts,
		events:   events,
		settings: settings,
		validate: newValidator(),
		sleep:    sleepContext,
		logger:   logger,
	}
}

// PlaceOrder creates a cash-on-delivery order and clears the user's cart.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*models.Order, error) {
	order, err := s.newOrder(in, models.PaymentMethodCOD, models.StatusOrderPlaced)
	if err != nil {
		metrics.RecordOrderPlaced(models.PaymentMethodCOD, "invalid")
		return nil, err
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.clearCart(ctx, order.UserID)
	s.publish(ctx, models.EventOrderPlaced, order)
	metrics.RecordOrderPlaced(models.PaymentMethodCOD, "placed")
	s.logger.Info("Order placed", zap.String("order_id", order.ID), zap.String("payment_method", order.PaymentMethod))
	return order, nil
}

// PlaceMpesaOrder creates a pending order and sends a push request for it.
// If the gateway does not accept the push, the order is removed again.
func (s *OrderService) PlaceMpesaOrder(ctx context.Context, in PlaceOrderInput) (*CheckoutResult, error) {
	order, err := s.newOrder(in, models.PaymentMethodMpesa, models.StatusPending)
	if err != nil {
		metrics.RecordOrderPlaced(models.PaymentMethodMpesa, "invalid")
		return nil, err
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	push, err := s.gateway.InitiatePush(ctx, mpesa.PushRequest{
		Amount:           order.Amount,
		Phone:            order.Address.Phone,
		AccountReference: order.ID,
	})
	if err != nil || !push.OK {
		s.rollback(ctx, order.ID)
		metrics.RecordOrderPlaced(models.PaymentMethodMpesa, "gateway_rejected")
		if err != nil {
			s.logger.Error("STK push failed", zap.String("order_id", order.ID), zap.Error(err))
			return nil, gatewayError(err, "payment request failed")
		}
		s.logger.Warn("STK push rejected", zap.String("order_id", order.ID), zap.String("description", push.Description))
		return nil, gatewayError(nil, "%s", orDefault(push.Description, "payment request rejected"))
	}

	if err := s.orders.SetCheckout(ctx, order.ID, push.MerchantRequestID, push.CheckoutRequestID); err != nil {
		return nil, fmt.Errorf("failed to store checkout for order %s: %w", order.ID, err)
	}
	order.MerchantRequestID = push.MerchantRequestID
	order.CheckoutRequestID = push.CheckoutRequestID
	s.recordAttempt(ctx, order, order.Amount, order.Address.Phone, push)

	s.clearCart(ctx, order.UserID)
	s.publish(ctx, models.EventOrderPlaced, order)
	metrics.RecordOrderPlaced(models.PaymentMethodMpesa, "push_sent")
	s.logger.Info("Order awaiting mobile payment",
		zap.String("order_id", order.ID),
		zap.String("checkout_request_id", push.CheckoutRequestID))

	return &CheckoutResult{
		OrderID:           order.ID,
		CheckoutRequestID: push.CheckoutRequestID,
		MerchantRequestID: push.MerchantRequestID,
		Message:           orDefault(push.Description, "Payment request sent"),
	}, nil
}

// ConfirmPayment queries the gateway for a push and settles the order when it
// succeeded. With Retry set, an unsuccessful push is replaced by a fresh one,
// followed by exactly one re-query after the settling delay.
func (s *OrderService) ConfirmPayment(ctx context.Context, in ConfirmPaymentInput) (*ConfirmResult, error) {
	if in.CheckoutID == "" {
		return nil, validationError("checkoutId is required")
	}
	if in.OrderID != "" && in.UserID != "" {
		if _, err := s.ownedOrder(ctx, in.OrderID, in.UserID); err != nil {
			return nil, err
		}
	}

	status, err := s.gateway.QueryStatus(ctx, in.CheckoutID)
	if err != nil {
		metrics.RecordPaymentConfirmation(sourcePoll, "gateway_error")
		s.logger.Error("STK query failed", zap.String("checkout_request_id", in.CheckoutID), zap.Error(err))
		return nil, gatewayError(err, "could not query payment status")
	}

	if status.Succeeded() {
		if in.OrderID == "" {
			return nil, validationError("no order id provided")
		}
		return s.settle(ctx, in.OrderID, in.CheckoutID, status.ResultDescription, sourcePoll)
	}

	if !in.Retry {
		if status.OK {
			// A result code other than 0 is final for this push.
			s.markAttempt(ctx, in.CheckoutID, models.AttemptFailed, status.ResultDescription)
		}
		metrics.RecordPaymentConfirmation(sourcePoll, "not_paid")
		return &ConfirmResult{
			Message:    orDefault(status.ResultDescription, "Payment not completed"),
			CheckoutID: in.CheckoutID,
		}, nil
	}

	if in.OrderID == "" {
		return nil, validationError("orderId is required to retry a payment")
	}
	return s.retry(ctx, in)
}

func (s *OrderService) retry(ctx context.Context, in ConfirmPaymentInput) (*ConfirmResult, error) {
	order, err := s.ownedOrder(ctx, in.OrderID, in.UserID)
	if err != nil {
		return nil, err
	}
	if order.Payment {
		return &ConfirmResult{Paid: true, Message: msgAlreadyConfirmed, CheckoutID: order.CheckoutRequestID}, nil
	}
	if order.PaymentMethod != models.PaymentMethodMpesa {
		return nil, validationError("order %s is not a mobile-money order", order.ID)
	}
	if !models.IsCancellable(order.Status) {
		return nil, conflictError(msgAlreadyProcessed)
	}
	if in.Amount != 0 && in.Amount != order.Amount {
		return nil, validationError("amount %d does not match order amount %d", in.Amount, order.Amount)
	}
	phone := order.Address.Phone
	if in.Phone != "" {
		if phone, err = NormalizePhone(in.Phone); err != nil {
			return nil, err
		}
	}

	push, err := s.gateway.InitiatePush(ctx, mpesa.PushRequest{
		Amount:           order.Amount,
		Phone:            phone,
		AccountReference: order.ID,
	})
	if err != nil {
		metrics.RecordPaymentConfirmation(sourceRetry, "gateway_error")
		return nil, gatewayError(err, "payment request failed")
	}
	if !push.OK {
		metrics.RecordPaymentConfirmation(sourceRetry, "gateway_rejected")
		return nil, gatewayError(nil, "%s", orDefault(push.Description, "payment request rejected"))
	}

	if err := s.orders.SetCheckout(ctx, order.ID, push.MerchantRequestID, push.CheckoutRequestID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrOrderAlreadyPaid):
			return &ConfirmResult{Paid: true, Message: msgAlreadyConfirmed}, nil
		case errors.Is(err, repositories.ErrOrderNotFound):
			return nil, notFoundError("order %s not found", order.ID)
		default:
			return nil, fmt.Errorf("failed to store checkout for order %s: %w", order.ID, err)
		}
	}
	s.recordAttempt(ctx, order, order.Amount, phone, push)
	s.logger.Info("Payment retried",
		zap.String("order_id", order.ID),
		zap.String("previous_checkout_request_id", in.CheckoutID),
		zap.String("checkout_request_id", push.CheckoutRequestID))

	pending := &ConfirmResult{Pending: true, Message: msgPushSent, CheckoutID: push.CheckoutRequestID}

	if err := s.sleep(ctx, s.settings.SettleDelay); err != nil {
		metrics.RecordPaymentConfirmation(sourceRetry, "push_sent")
		return pending, nil
	}

	status, err := s.gateway.QueryStatus(ctx, push.CheckoutRequestID)
	if err != nil {
		s.logger.Warn("Re-query after retry failed", zap.String("order_id", order.ID), zap.Error(err))
		metrics.RecordPaymentConfirmation(sourceRetry, "push_sent")
		return pending, nil
	}
	if !status.Succeeded() {
		metrics.RecordPaymentConfirmation(sourceRetry, "push_sent")
		return pending, nil
	}
	return s.settle(ctx, order.ID, push.CheckoutRequestID, status.ResultDescription, sourceRetry)
}

// settle marks the order paid if checkoutID is still its active token.
func (s *OrderService) settle(ctx context.Context, orderID, checkoutID, description, source string) (*ConfirmResult, error) {
	outcome, err := s.orders.ConfirmPayment(ctx, orderID, checkoutID)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			return nil, notFoundError("order %s not found", orderID)
		}
		return nil, fmt.Errorf("failed to confirm payment for order %s: %w", orderID, err)
	}
	metrics.RecordPaymentConfirmation(source, outcome.String())

	switch outcome {
	case repositories.ConfirmApplied:
		s.markAttempt(ctx, checkoutID, models.AttemptSuccess, description)
		if order, err := s.orders.GetByID(ctx, orderID); err == nil {
			s.publish(ctx, models.EventOrderPaid, order)
		}
		s.logger.Info("Payment confirmed",
			zap.String("order_id", orderID),
			zap.String("checkout_request_id", checkoutID),
			zap.String("source", source))
		return &ConfirmResult{Paid: true, Message: msgPaymentConfirmed, CheckoutID: checkoutID}, nil
	case repositories.ConfirmAlreadyPaid:
		return &ConfirmResult{Paid: true, Message: msgAlreadyConfirmed, CheckoutID: checkoutID}, nil
	default:
		s.logger.Warn("Rejected confirmation for superseded checkout",
			zap.String("order_id", orderID),
			zap.String("checkout_request_id", checkoutID),
			zap.String("source", source))
		return nil, conflictError("checkout %s is not the active payment request for order %s", checkoutID, orderID)
	}
}

// HandleCallback applies a gateway webhook. Unknown correlation ids are logged
// and ignored; the caller must acknowledge the gateway whatever this returns.
func (s *OrderService) HandleCallback(ctx context.Context, cb mpesa.Callback) error {
	if cb.MerchantRequestID == "" && cb.CheckoutRequestID == "" {
		metrics.RecordWebhook("invalid")
		return validationError("callback carries no request id")
	}
	log := s.logger.With(
		zap.String("merchant_request_id", cb.MerchantRequestID),
		zap.String("checkout_request_id", cb.CheckoutRequestID),
		zap.Int("result_code", cb.ResultCode))

	orderID, checkoutID, err := s.matchCallback(ctx, cb)
	if err != nil {
		if errors.Is(err, repositories.ErrAttemptNotFound) || errors.Is(err, repositories.ErrOrderNotFound) {
			log.Warn("Transaction not found for callback")
			metrics.RecordWebhook("unmatched")
			return nil
		}
		metrics.RecordWebhook("error")
		return err
	}

	if !cb.Succeeded() {
		log.Info("Payment failed per callback", zap.String("order_id", orderID), zap.String("description", cb.ResultDesc))
		metrics.RecordWebhook("failed")
		return nil
	}

	if _, err := s.settle(ctx, orderID, checkoutID, cb.ResultDesc, sourceWebhook); err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			log.Warn("Callback for superseded checkout ignored", zap.String("order_id", orderID))
			metrics.RecordWebhook("stale")
			return nil
		case errors.Is(err, ErrNotFound):
			// The customer paid for an order that no longer exists.
			log.Error("Payment received for missing order", zap.String("order_id", orderID))
			metrics.RecordWebhook("orphaned")
			return nil
		default:
			metrics.RecordWebhook("error")
			return err
		}
	}
	metrics.RecordWebhook("success")
	return nil
}

// matchCallback resolves the order and checkout token a callback refers to and
// records the callback result on the attempt.
func (s *OrderService) matchCallback(ctx context.Context, cb mpesa.Callback) (string, string, error) {
	status := models.AttemptFailed
	if cb.Succeeded() {
		status = models.AttemptSuccess
	}

	attempt, err := s.findAttempt(ctx, cb)
	if err == nil {
		if err := s.attempts.UpdateResult(ctx, attempt.ID, status, cb.ResultDesc); err != nil {
			return "", "", fmt.Errorf("failed to record callback on attempt %s: %w", attempt.ID, err)
		}
		return attempt.OrderID, attempt.CheckoutRequestID, nil
	}
	if !errors.Is(err, repositories.ErrAttemptNotFound) {
		return "", "", err
	}

	// No attempt row; fall back to the order's own correlation ids.
	filter := repositories.OrderFilter{MerchantRequestID: cb.MerchantRequestID}
	if cb.MerchantRequestID == "" {
		filter = repositories.OrderFilter{CheckoutRequestID: cb.CheckoutRequestID}
	}
	order, err := s.orders.FindOne(ctx, filter)
	if err != nil {
		return "", "", err
	}
	s.logger.Info("Callback matched order without attempt record",
		zap.String("order_id", order.ID),
		zap.String("status", status),
		zap.String("description", cb.ResultDesc))
	attempt = &models.PaymentAttempt{
		OrderID:           order.ID,
		UserID:            order.UserID,
		MerchantRequestID: orDefault(cb.MerchantRequestID, order.MerchantRequestID),
		CheckoutRequestID: orDefault(cb.CheckoutRequestID, order.CheckoutRequestID),
		Amount:            order.Amount,
		Phone:             order.Address.Phone,
		Status:            status,
		ResultDescription: cb.ResultDesc,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		s.logger.Warn("Failed to record callback attempt", zap.String("order_id", order.ID), zap.Error(err))
	}
	return order.ID, order.CheckoutRequestID, nil
}

func (s *OrderService) findAttempt(ctx context.Context, cb mpesa.Callback) (*models.PaymentAttempt, error) {
	if cb.MerchantRequestID != "" {
		attempt, err := s.attempts.GetByMerchantRequestID(ctx, cb.MerchantRequestID)
		if err == nil || !errors.Is(err, repositories.ErrAttemptNotFound) || cb.CheckoutRequestID == "" {
			return attempt, err
		}
	}
	return s.attempts.GetByCheckoutRequestID(ctx, cb.CheckoutRequestID)
}

// CancelOrder deletes an unpaid order that has not been finalized. A non-empty
// userID restricts cancellation to that user's orders.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID string) error {
	if orderID == "" {
		return validationError("orderId is required")
	}
	order, err := s.ownedOrder(ctx, orderID, userID)
	if err != nil {
		return err
	}
	if order.Payment || !models.IsCancellable(order.Status) {
		return conflictError(msgAlreadyProcessed)
	}

	deleted, err := s.orders.DeleteUnpaid(ctx, orderID, models.CancellableStatuses)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			return notFoundError("order %s not found", orderID)
		}
		return fmt.Errorf("failed to cancel order %s: %w", orderID, err)
	}
	if !deleted {
		// Paid or advanced between the read and the delete.
		return conflictError(msgAlreadyProcessed)
	}

	order.Status = models.StatusCancelled
	s.publish(ctx, models.EventOrderCancelled, order)
	s.logger.Info("Order cancelled", zap.String("order_id", orderID))
	return nil
}

// ListOrders returns every order, newest first.
func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.orders.Find(ctx, repositories.OrderFilter{})
}

// UserOrders returns the orders of one user, newest first.
func (s *OrderService) UserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	if userID == "" {
		return nil, validationError("userId is required")
	}
	return s.orders.Find(ctx, repositories.OrderFilter{UserID: userID})
}

// OrderPayments returns the push attempts made for an order, oldest first.
func (s *OrderService) OrderPayments(ctx context.Context, orderID string) ([]models.PaymentAttempt, error) {
	if orderID == "" {
		return nil, validationError("orderId is required")
	}
	if _, err := s.getOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.attempts.ListByOrder(ctx, orderID)
}

// UpdateStatus sets the display status of an order. It never touches the payment flag.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, status string) error {
	if orderID == "" {
		return validationError("orderId is required")
	}
	if !models.IsKnownStatus(status) {
		return validationError("invalid order status: %s", status)
	}
	if err := s.orders.UpdateStatus(ctx, orderID, status); err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			return notFoundError("order %s not found", orderID)
		}
		return fmt.Errorf("failed to update order status for order %s: %w", orderID, err)
	}
	return nil
}

func (s *OrderService) newOrder(in PlaceOrderInput, method, status string) (*models.Order, error) {
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}
	phone, err := NormalizePhone(in.Address.Phone)
	if err != nil {
		return nil, err
	}
	address := in.Address
	address.Phone = phone

	return &models.Order{
		ID:            uuid.New().String(),
		UserID:        in.UserID,
		Items:         in.Items,
		Amount:        in.Amount,
		Address:       address,
		PaymentMethod: method,
		Payment:       false,
		Status:        status,
		Date:          time.Now(),
	}, nil
}

func (s *OrderService) getOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			return nil, notFoundError("order %s not found", id)
		}
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}
	return order, nil
}

// ownedOrder loads an order and, when userID is set, hides it from anyone but
// its owner.
func (s *OrderService) ownedOrder(ctx context.Context, id, userID string) (*models.Order, error) {
	order, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != "" && order.UserID != userID {
		return nil, notFoundError("order %s not found", id)
	}
	return order, nil
}

func (s *OrderService) rollback(ctx context.Context, orderID string) {
	if err := s.orders.Delete(ctx, orderID); err != nil {
		s.logger.Error("Failed to roll back order after gateway rejection", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *OrderService) recordAttempt(ctx context.Context, order *models.Order, amount int64, phone string, push *mpesa.PushResult) {
	attempt := &models.PaymentAttempt{
		OrderID:           order.ID,
		UserID:            order.UserID,
		MerchantRequestID: push.MerchantRequestID,
		CheckoutRequestID: push.CheckoutRequestID,
		Amount:            amount,
		Phone:             phone,
		Status:            models.AttemptPending,
		ResultDescription: push.Description,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		s.logger.Error("Failed to record payment attempt",
			zap.String("order_id", order.ID),
			zap.String("checkout_request_id", push.CheckoutRequestID),
			zap.Error(err))
	}
}

func (s *OrderService) markAttempt(ctx context.Context, checkoutID, status, description string) {
	attempt, err := s.attempts.GetByCheckoutRequestID(ctx, checkoutID)
	if err != nil {
		if !errors.Is(err, repositories.ErrAttemptNotFound) {
			s.logger.Warn("Failed to load payment attempt", zap.String("checkout_request_id", checkoutID), zap.Error(err))
		}
		return
	}
	if err := s.attempts.UpdateResult(ctx, attempt.ID, status, description); err != nil {
		s.logger.Warn("Failed to update payment attempt", zap.String("checkout_request_id", checkoutID), zap.Error(err))
	}
}

func (s *OrderService) clearCart(ctx context.Context, userID string) {
	if s.carts == nil {
		return
	}
	if err := s.carts.ClearCart(ctx, userID); err != nil {
		s.logger.Warn("Failed to clear cart after order", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order) {
	if s.events == nil {
		return
	}
	event := models.OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		UserID:        order.UserID,
		Amount:        order.Amount,
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
		OccurredAt:    time.Now(),
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("order_id", order.ID),
			zap.String("event", eventType),
			zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
