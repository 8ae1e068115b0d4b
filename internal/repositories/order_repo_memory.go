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

// MemoryOrderRepository is an in-memory implementation of OrderRepository.
type MemoryOrderRepository struct {
	orders map[string]models.Order
	mu     sync.RWMutex
}

// NewMemoryOrderRepository creates a new instance of MemoryOrderRepository.
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders: make(map[string]models.Order),
	}
}

// Create adds a new order.
func (r *MemoryOrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("order with ID %s already exists", order.ID)
	}
	if order.Date.IsZero() {
		order.Date = time.Now()
	}
	order.UpdatedAt = time.Now()
	r.orders[order.ID] = cloneOrder(*order)
	return nil
}

// GetByID returns an order by its ID.
func (r *MemoryOrderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
	}
	order = cloneOrder(order)
	return &order, nil
}

// FindOne returns the newest order matching filter.
func (r *MemoryOrderRepository) FindOne(ctx context.Context, filter OrderFilter) (*models.Order, error) {
	orders, err := r.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}
	return &orders[0], nil
}

// Find returns all orders matching filter, newest first.
func (r *MemoryOrderRepository) Find(_ context.Context, filter OrderFilter) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.Order, 0)
	for _, order := range r.orders {
		if matches(order, filter) {
			result = append(result, cloneOrder(order))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.After(result[j].Date) })
	return result, nil
}

// UpdateStatus updates the status of an order.
func (r *MemoryOrderRepository) UpdateStatus(_ context.Context, id string, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return nil
}

// SetCheckout replaces the correlation tokens of an unpaid order.
func (r *MemoryOrderRepository) SetCheckout(_ context.Context, id, merchantRequestID, checkoutRequestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
	}
	if order.Payment {
		return ErrOrderAlreadyPaid
	}
	order.MerchantRequestID = merchantRequestID
	order.CheckoutRequestID = checkoutRequestID
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return nil
}

// ConfirmPayment marks the order paid if checkoutRequestID is its current token.
func (r *MemoryOrderRepository) ConfirmPayment(_ context.Context, id, checkoutRequestID string) (ConfirmOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return 0, fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
	}
	if order.Payment {
		return ConfirmAlreadyPaid, nil
	}
	if order.CheckoutRequestID != checkoutRequestID {
		return ConfirmStaleToken, nil
	}
	order.Payment = true
	order.Status = models.StatusConfirmed
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return ConfirmApplied, nil
}

// Delete removes an order unconditionally.
func (r *MemoryOrderRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
	}
	delete(r.orders, id)
	return nil
}

// DeleteUnpaid removes the order if it is unpaid and in one of statuses.
func (r *MemoryOrderRepository) DeleteUnpaid(_ context.Context, id string, statuses []string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return false, fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
	}
	if order.Payment || !contains(statuses, order.Status) {
		return false, nil
	}
	delete(r.orders, id)
	return true, nil
}

func matches(order models.Order, f OrderFilter) bool {
	if f.UserID != "" && order.UserID != f.UserID {
		return false
	}
	if f.CheckoutRequestID != "" && order.CheckoutRequestID != f.CheckoutRequestID {
		return false
	}
	if f.MerchantRequestID != "" && order.MerchantRequestID != f.MerchantRequestID {
		return false
	}
	if f.Status != "" && order.Status != f.Status {
		return false
	}
	return true
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
