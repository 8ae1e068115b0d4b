package repositories

import (
	"context"

	"duka/internal/models"
)

// PaymentAttemptRepository defines the interface for push-payment attempt records.
type PaymentAttemptRepository interface {
	Create(ctx context.Context, attempt *models.PaymentAttempt) error
	GetByMerchantRequestID(ctx context.Context, merchantRequestID string) (*models.PaymentAttempt, error)
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.PaymentAttempt, error)
	ListByOrder(ctx context.Context, orderID string) ([]models.PaymentAttempt, error)
	// UpdateResult overwrites status and description; repeating it is harmless.
	UpdateResult(ctx context.Context, id, status, description string) error
}
