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

// GORMPaymentAttemptRepository is a GORM implementation of PaymentAttemptRepository.
type GORMPaymentAttemptRepository struct {
	db *gorm.DB
}

// NewGORMPaymentAttemptRepository creates a new instance of GORMPaymentAttemptRepository.
func NewGORMPaymentAttemptRepository(db *gorm.DB) *GORMPaymentAttemptRepository {
	return &GORMPaymentAttemptRepository{db: db}
}

func (r *GORMPaymentAttemptRepository) Create(ctx context.Context, attempt *models.PaymentAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to create payment attempt: %w", err)
	}
	return nil
}

func (r *GORMPaymentAttemptRepository) GetByMerchantRequestID(ctx context.Context, merchantRequestID string) (*models.PaymentAttempt, error) {
	return r.first(ctx, "merchant_request_id = ?", merchantRequestID)
}

func (r *GORMPaymentAttemptRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.PaymentAttempt, error) {
	return r.first(ctx, "checkout_request_id = ?", checkoutRequestID)
}

func (r *GORMPaymentAttemptRepository) ListByOrder(ctx context.Context, orderID string) ([]models.PaymentAttempt, error) {
	attempts := make([]models.PaymentAttempt, 0)
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list attempts for order %s: %w", orderID, err)
	}
	return attempts, nil
}

func (r *GORMPaymentAttemptRepository) UpdateResult(ctx context.Context, id, status, description string) error {
	res := r.db.WithContext(ctx).Model(&models.PaymentAttempt{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":             status,
			"result_description": description,
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update attempt %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("attempt %s: %w", id, ErrAttemptNotFound)
	}
	return nil
}

func (r *GORMPaymentAttemptRepository) first(ctx context.Context, query string, arg string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	if err := r.db.WithContext(ctx).First(&attempt, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get payment attempt: %w", err)
	}
	return &attempt, nil
}
