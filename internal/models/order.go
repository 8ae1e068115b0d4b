package models

import "time"

// Payment methods accepted at checkout.
const (
	PaymentMethodCOD   = "COD"
	PaymentMethodMpesa = "mpesa"
)

// Order lifecycle tags. Status is informational; the Payment flag is the
// source of truth for settlement.
const (
	StatusOrderPlaced    = "Order Placed"
	StatusPending        = "Pending"
	StatusConfirmed      = "Confirmed"
	StatusPacking        = "Packing"
	StatusShipped        = "Shipped"
	StatusOutForDelivery = "Out for delivery"
	StatusDelivered      = "Delivered"
	StatusCancelled      = "Cancelled"
)

// OrderStatuses lists every status an admin may assign.
var OrderStatuses = []string{
	StatusOrderPlaced,
	StatusPending,
	StatusConfirmed,
	StatusPacking,
	StatusShipped,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

// CancellableStatuses are the non-finalized statuses a customer may still cancel from.
var CancellableStatuses = []string{StatusOrderPlaced, StatusPending}

// IsKnownStatus reports whether status is one of OrderStatuses.
func IsKnownStatus(status string) bool {
	for _, s := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsCancellable reports whether an order in the given status can be cancelled.
func IsCancellable(status string) bool {
	for _, s := range CancellableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// OrderItem represents a single line within an order.
type OrderItem struct {
	ProductID string `json:"productId" validate:"required"`
	Name      string `json:"name,omitempty"`
	Price     int64  `json:"price,omitempty"` // Price at the time of order
	Quantity  int    `json:"quantity" validate:"gte=1"`
	Size      string `json:"size,omitempty"`
}

// Address holds the shipping and contact details of an order.
type Address struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Street    string `json:"street,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Zipcode   string `json:"zipcode,omitempty"`
	Country   string `json:"country,omitempty"`
	Phone     string `json:"phone" validate:"required"`
}

// Order represents a customer order.
type Order struct {
	ID                string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID            string      `json:"userId" gorm:"index;type:varchar(36);not null"`
	Items             []OrderItem `json:"items" gorm:"serializer:json"`
	Amount            int64       `json:"amount" gorm:"not null"`
	Address           Address     `json:"address" gorm:"serializer:json"`
	PaymentMethod     string      `json:"paymentMethod" gorm:"type:varchar(20);not null"`
	Payment           bool        `json:"payment" gorm:"not null;default:false"`
	Status            string      `json:"status" gorm:"type:varchar(32);not null"`
	MerchantRequestID string      `json:"merchantRequestId,omitempty" gorm:"index;type:varchar(64)"`
	CheckoutRequestID string      `json:"checkoutRequestId,omitempty" gorm:"index;type:varchar(64)"`
	Date              time.Time   `json:"date" gorm:"not null"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// OrderEvent is published to the message broker on order lifecycle changes.
type OrderEvent struct {
	Type          string    `json:"type"` // order.placed, order.paid, order.cancelled
	OrderID       string    `json:"orderId"`
	UserID        string    `json:"userId"`
	Amount        int64     `json:"amount"`
	PaymentMethod string    `json:"paymentMethod"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Order event types.
const (
	EventOrderPlaced    = "order.placed"
	EventOrderPaid      = "order.paid"
	EventOrderCancelled = "order.cancelled"
)
