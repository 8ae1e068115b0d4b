package models

import "time"

// Payment attempt outcomes.
const (
	AttemptPending = "Pending"
	AttemptSuccess = "Success"
	AttemptFailed  = "Failed"
)

// PaymentAttempt records one push-payment request sent to the gateway.
// Only the attempt whose CheckoutRequestID matches the order's is authoritative.
type PaymentAttempt struct {
	ID                string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID           string    `json:"orderId" gorm:"index;type:varchar(36);not null"`
	UserID            string    `json:"userId" gorm:"type:varchar(36)"`
	MerchantRequestID string    `json:"merchantRequestId" gorm:"uniqueIndex;type:varchar(64)"`
	CheckoutRequestID string    `json:"checkoutRequestId" gorm:"uniqueIndex;type:varchar(64)"`
	Amount            int64     `json:"amount"`
	Phone             string    `json:"phone" gorm:"type:varchar(12)"`
	Status            string    `json:"status" gorm:"type:varchar(16);not null"`
	ResultDescription string    `json:"resultDescription"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
