package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"duka/internal/models"

	"github.com/google/uuid"
)

// MemoryPaymentAttemptRepository is an in-memory implementation of PaymentAttemptRepository.
type MemoryPaymentAttemptRepository struct {
	attempts map[string]models.PaymentAttempt
	mu       sync.RWMutex
}

// NewMemoryPaymentAttemptRepository creates a new instance of MemoryPaymentAttemptRepository.
func NewMemoryPaymentAttemptRepository() *MemoryPaymentAttemptRepository {
	return &MemoryPaymentAttemptRepository{
		attempts: make(map[string]models.PaymentAttempt),
	}
}

func (r *MemoryPaymentAttemptRepository) Create(_ context.Context, attempt *models.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	now := time.Now()
	attempt.CreatedAt = now
	attempt.UpdatedAt = now
	r.attempts[attempt.ID] = *attempt
	return nil
}

func (r *MemoryPaymentAttemptRepository) GetByMerchantRequestID(_ context.Context, merchantRequestID string) (*models.PaymentAttempt, error) {
	return r.findBy(func(a models.PaymentAttempt) bool { return a.MerchantRequestID == merchantRequestID })
}

func (r *MemoryPaymentAttemptRepository) GetByCheckoutRequestID(_ context.Context, checkoutRequestID string) (*models.PaymentAttempt, error) {
	return r.findBy(func(a models.PaymentAttempt) bool { return a.CheckoutRequestID == checkoutRequestID })
}

func (r *MemoryPaymentAttemptRepository) ListByOrder(_ context.Context, orderID string) ([]models.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.PaymentAttempt, 0)
	for _, a := range r.attempts {
		if a.OrderID == orderID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *MemoryPaymentAttemptRepository) UpdateResult(_ context.Context, id, status, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.attempts[id]
	if !ok {
		return fmt.Errorf("attempt %s: %w", id, ErrAttemptNotFound)
	}
	a.Status = status
	a.ResultDescription = description
	a.UpdatedAt = time.Now()
	r.attempts[id] = a
	return nil
}

func (r *MemoryPaymentAttemptRepository) findBy(pred func(models.PaymentAttempt) bool) (*models.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.attempts {
		if pred(a) {
			found := a
			return &found, nil
		}
	}
	return nil, ErrAttemptNotFound
}
