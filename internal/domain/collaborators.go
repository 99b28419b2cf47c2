// internal/domain/collaborators.go
package domain

import "context"

// OrderStore is the store-side view the orchestrator depends on. Nothing in
// the store depends back on this package's consumers.
type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	SetPaymentStatus(ctx context.Context, orderID string, status OrderPaymentStatus) error
}

// Fulfillment triggers downstream order processing (inventory decrement,
// dispatch). Invoked fire-and-forget after a successful payment.
type Fulfillment interface {
	ProcessOrder(ctx context.Context, orderID string) error
}

// ConfirmationSender asks the store to send the customer a payment
// confirmation. Failures are logged, never propagated.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, order *Order, tx *Transaction) error
}

// Broadcaster fans a resolution event out to subscribers, best effort. A
// broadcast failure must never fail the reconciliation that produced it.
type Broadcaster interface {
	Emit(ctx context.Context, room, event string, payload any) error
}
