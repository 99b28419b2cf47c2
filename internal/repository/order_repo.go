// internal/repository/order_repo.go
package repository

import (
	"context"
	"errors"

	"dukastore/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// orderStore is the pgx-backed view over the store's orders table. It
// implements domain.OrderStore; the orchestrator never writes anything on an
// order besides its payment status.
type orderStore struct {
	db *pgxpool.Pool
}

func NewOrderStore(db *pgxpool.Pool) domain.OrderStore {
	return &orderStore{db: db}
}

func (r *orderStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `
		SELECT id, customer_phone, total_amount, payment_status, status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var order domain.Order
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&order.ID,
		&order.CustomerPhone,
		&order.TotalAmount,
		&order.PaymentStatus,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderStore) SetPaymentStatus(ctx context.Context, orderID string, status domain.OrderPaymentStatus) error {
	query := `UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, orderID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
