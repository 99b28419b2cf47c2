// internal/repository/transaction_repo.go
package repository

import (
	"context"
	"errors"
	"fmt"

	"dukastore/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionLedger is the persisted state machine for payment attempts.
// TryTransition is the only lawful write path to a terminal status.
type TransactionLedger interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByCheckoutRef(ctx context.Context, checkoutRef string) (*domain.Transaction, error)

	// TryTransition atomically moves a PENDING row to the outcome's terminal
	// status and applies its fields. It returns false without touching the
	// row when the stored status is no longer PENDING.
	TryTransition(ctx context.Context, checkoutRef string, outcome domain.Outcome) (bool, error)

	// CancelPendingForOrder marks every still-PENDING attempt for an order
	// CANCELLED and returns how many rows it resolved.
	CancelPendingForOrder(ctx context.Context, orderID, reason string) (int, error)
}

type transactionLedger struct {
	db *pgxpool.Pool
}

func NewTransactionLedger(db *pgxpool.Pool) TransactionLedger {
	return &transactionLedger{db: db}
}

const transactionColumns = `
	id, checkout_ref, merchant_ref, order_id, phone_number, amount, status,
	confirmed_amount, confirmed_phone, receipt_id,
	result_code, result_desc, callback_data,
	created_at, updated_at, resolved_at
`

func (r *transactionLedger) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, checkout_ref, merchant_ref, order_id, phone_number, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	return r.db.QueryRow(ctx, query,
		tx.ID,
		tx.CheckoutRef,
		tx.MerchantRef,
		tx.OrderID,
		tx.PhoneNumber,
		tx.Amount,
		tx.Status,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
}

func (r *transactionLedger) GetByCheckoutRef(ctx context.Context, checkoutRef string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE checkout_ref = $1`

	var tx domain.Transaction
	err := r.db.QueryRow(ctx, query, checkoutRef).Scan(
		&tx.ID,
		&tx.CheckoutRef,
		&tx.MerchantRef,
		&tx.OrderID,
		&tx.PhoneNumber,
		&tx.Amount,
		&tx.Status,
		&tx.ConfirmedAmount,
		&tx.ConfirmedPhone,
		&tx.ReceiptID,
		&tx.ResultCode,
		&tx.ResultDesc,
		&tx.CallbackData,
		&tx.CreatedAt,
		&tx.UpdatedAt,
		&tx.ResolvedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionLedger) TryTransition(ctx context.Context, checkoutRef string, outcome domain.Outcome) (bool, error) {
	if !outcome.Status.Terminal() {
		return false, fmt.Errorf("transition target %q is not terminal", outcome.Status)
	}

	query := `
		UPDATE transactions
		SET
			status = $2,
			result_code = $3,
			result_desc = $4,
			confirmed_amount = $5,
			confirmed_phone = $6,
			receipt_id = $7,
			callback_data = COALESCE($8, callback_data),
			resolved_at = NOW(),
			updated_at = NOW()
		WHERE checkout_ref = $1 AND status = 'PENDING'
	`

	tag, err := r.db.Exec(ctx, query,
		checkoutRef,
		outcome.Status,
		outcome.ResultCode,
		outcome.ResultDesc,
		outcome.ConfirmedAmount,
		outcome.ConfirmedPhone,
		outcome.ReceiptID,
		outcome.Raw,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Distinguish "lost the race" from "no such transaction".
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE checkout_ref = $1)`,
		checkoutRef,
	).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrTransactionNotFound
	}
	return false, nil
}

func (r *transactionLedger) CancelPendingForOrder(ctx context.Context, orderID, reason string) (int, error) {
	query := `
		UPDATE transactions
		SET
			status = 'CANCELLED',
			result_desc = $2,
			resolved_at = NOW(),
			updated_at = NOW()
		WHERE order_id = $1 AND status = 'PENDING'
	`

	tag, err := r.db.Exec(ctx, query, orderID, reason)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
