package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"duka/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// Create inserts a new order.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.Date.IsZero() {
		order.Date = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves a single order by its ID.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// FindOne returns the newest order matching filter.
func (r *GORMOrderRepository) FindOne(ctx context.Context, filter OrderFilter) (*models.Order, error) {
	var order models.Order
	err := r.filtered(ctx, filter).Order("date DESC").First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return &order, nil
}

// Find returns all orders matching filter, newest first.
func (r *GORMOrderRepository) Find(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	orders := make([]models.Order, 0)
	if err := r.filtered(ctx, filter).Order("date DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to find orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus updates the status of an order.
func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, status string) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to update order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
	}
	return nil
}

// SetCheckout replaces the correlation tokens of an unpaid order.
func (r *GORMOrderRepository) SetCheckout(ctx context.Context, id, merchantRequestID, checkoutRequestID string) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment = ?", id, false).
		Updates(map[string]interface{}{
			"merchant_request_id": merchantRequestID,
			"checkout_request_id": checkoutRequestID,
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to set checkout for order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrOrderAlreadyPaid
	}
	return nil
}

// ConfirmPayment marks the order paid in a single conditional update keyed on
// the current checkout token.
func (r *GORMOrderRepository) ConfirmPayment(ctx context.Context, id, checkoutRequestID string) (ConfirmOutcome, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND checkout_request_id = ? AND payment = ?", id, checkoutRequestID, false).
		Updates(map[string]interface{}{
			"payment":    true,
			"status":     models.StatusConfirmed,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to confirm payment for order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return ConfirmApplied, nil
	}

	order, err := r.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if order.Payment {
		return ConfirmAlreadyPaid, nil
	}
	return ConfirmStaleToken, nil
}

// Delete removes an order unconditionally.
func (r *GORMOrderRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Order{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
	}
	return nil
}

// DeleteUnpaid removes the order if it is unpaid and in one of statuses.
func (r *GORMOrderRepository) DeleteUnpaid(ctx context.Context, id string, statuses []string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND payment = ? AND status IN ?", id, false, statuses).
		Delete(&models.Order{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (r *GORMOrderRepository) filtered(ctx context.Context, f OrderFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Order{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.CheckoutRequestID != "" {
		q = q.Where("checkout_request_id = ?", f.CheckoutRequestID)
	}
	if f.MerchantRequestID != "" {
		q = q.Where("merchant_request_id = ?", f.MerchantRequestID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}
