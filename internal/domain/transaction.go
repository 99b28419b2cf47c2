// internal/domain/transaction.go
package domain

import (
	"encoding/json"
	"time"
)

type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "PENDING"
	TxStatusCompleted TransactionStatus = "COMPLETED"
	TxStatusFailed    TransactionStatus = "FAILED"
	TxStatusCancelled TransactionStatus = "CANCELLED"
)

// Terminal reports whether the status is final. Terminal rows are immutable.
func (s TransactionStatus) Terminal() bool {
	return s == TxStatusCompleted || s == TxStatusFailed || s == TxStatusCancelled
}

// Transaction is one STK push attempt against the gateway. Rows are never
// deleted; a retry for the same order creates a new row.
type Transaction struct {
	ID          string            `json:"id" db:"id"`
	CheckoutRef string            `json:"checkout_ref" db:"checkout_ref"`
	MerchantRef string            `json:"merchant_ref" db:"merchant_ref"`
	OrderID     string            `json:"order_id" db:"order_id"`
	PhoneNumber string            `json:"phone_number" db:"phone_number"`
	Amount      int               `json:"amount" db:"amount"`
	Status      TransactionStatus `json:"status" db:"status"`

	// As reported by the gateway on resolution.
	ConfirmedAmount *float64 `json:"confirmed_amount,omitempty" db:"confirmed_amount"`
	ConfirmedPhone  *string  `json:"confirmed_phone,omitempty" db:"confirmed_phone"`
	ReceiptID       *string  `json:"receipt_id,omitempty" db:"receipt_id"`

	ResultCode   *int            `json:"result_code,omitempty" db:"result_code"`
	ResultDesc   *string         `json:"result_desc,omitempty" db:"result_desc"`
	CallbackData json.RawMessage `json:"callback_data,omitempty" db:"callback_data"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Outcome is a proposed terminal resolution for a transaction, produced by
// either the callback path or the status poller.
type Outcome struct {
	Status     TransactionStatus
	Kind       ErrorKind
	ResultCode int
	ResultDesc string

	ConfirmedAmount *float64
	ConfirmedPhone  *string
	ReceiptID       *string

	// Raw gateway payload kept for the audit trail.
	Raw json.RawMessage
}

// OutcomeFromResultCode maps a gateway result code onto a terminal outcome.
// Code 0 is the only success; 1032 is an explicit cancel on the handset.
func OutcomeFromResultCode(code int, desc string) Outcome {
	out := Outcome{ResultCode: code, ResultDesc: desc}
	switch code {
	case ResultCodeSuccess:
		out.Status = TxStatusCompleted
	case ResultCodeUserCancelled:
		out.Status = TxStatusCancelled
		out.Kind = KindUserRejected
	case ResultCodeDSTimeout:
		out.Status = TxStatusFailed
		out.Kind = KindTimeout
	case ResultCodeInsufficientFunds, ResultCodeWrongPIN:
		out.Status = TxStatusFailed
		out.Kind = KindValidation
	case ResultCodeSubscriberLocked:
		out.Status = TxStatusFailed
		out.Kind = KindUpstreamInternal
	default:
		out.Status = TxStatusFailed
		out.Kind = KindUnknown
	}
	return out
}

// PaymentEvent is the payload broadcast to subscribers when a transaction
// resolves. Rooms are keyed by order id.
type PaymentEvent struct {
	OrderID     string `json:"order_id"`
	CheckoutRef string `json:"checkout_ref"`
	Status      string `json:"status"`
	Amount      int    `json:"amount"`
	ReceiptID   string `json:"receipt_id,omitempty"`
	ResultCode  int    `json:"result_code"`
	ResultDesc  string `json:"result_desc,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
)
