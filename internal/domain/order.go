// internal/domain/order.go
package domain

import "time"

type OrderPaymentStatus string

const (
	OrderPaymentPending  OrderPaymentStatus = "PENDING"
	OrderPaymentPaid     OrderPaymentStatus = "PAID"
	OrderPaymentFailed   OrderPaymentStatus = "FAILED"
	OrderPaymentRefunded OrderPaymentStatus = "REFUNDED"
)

// Order is owned by the store; the orchestrator only reads it and moves its
// payment status in lock-step with the owning transaction's resolution.
type Order struct {
	ID            string             `json:"id" db:"id"`
	CustomerPhone string             `json:"customer_phone" db:"customer_phone"`
	TotalAmount   int                `json:"total_amount" db:"total_amount"`
	PaymentStatus OrderPaymentStatus `json:"payment_status" db:"payment_status"`
	Status        string             `json:"status" db:"status"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" db:"updated_at"`
}
