package repositories

import (
	"context"

	"duka/internal/models"
)

// ConfirmOutcome describes what a conditional payment confirmation did.
type ConfirmOutcome int

const (
	// ConfirmApplied means payment flipped to true in this call.
	ConfirmApplied ConfirmOutcome = iota
	// ConfirmAlreadyPaid means the order was already paid; nothing changed.
	ConfirmAlreadyPaid
	// ConfirmStaleToken means the token is not the order's current checkout token.
	ConfirmStaleToken
)

func (o ConfirmOutcome) String() string {
	switch o {
	case ConfirmApplied:
		return "applied"
	case ConfirmAlreadyPaid:
		return "already_paid"
	case ConfirmStaleToken:
		return "stale_token"
	default:
		return "unknown"
	}
}

// OrderFilter selects orders. Empty fields are ignored.
type OrderFilter struct {
	UserID            string
	CheckoutRequestID string
	MerchantRequestID string
	Status            string
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	FindOne(ctx context.Context, filter OrderFilter) (*models.Order, error)
	Find(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id string, status string) error
	// SetCheckout replaces the correlation tokens of an unpaid order.
	SetCheckout(ctx context.Context, id, merchantRequestID, checkoutRequestID string) error
	// ConfirmPayment marks the order paid only if checkoutRequestID is its current token.
	ConfirmPayment(ctx context.Context, id, checkoutRequestID string) (ConfirmOutcome, error)
	Delete(ctx context.Context, id string) error
	// DeleteUnpaid deletes the order only while unpaid and in one of statuses.
	DeleteUnpaid(ctx context.Context, id string, statuses []string) (bool, error)
}
