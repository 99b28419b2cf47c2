// internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dukastore/internal/domain"
	"dukastore/internal/repository"

	"go.uber.org/zap"
)

// ReconcileUsecase is the single synchronization point where an asynchronous
// outcome, whether from the webhook or from the status poller, becomes the
// authoritative transaction and order state. The ledger CAS guarantees at
// most one caller wins per checkout ref; the loser's call is a no-op.
type ReconcileUsecase struct {
	ledger        repository.TransactionLedger
	orders        domain.OrderStore
	fulfillment   domain.Fulfillment
	confirmations domain.ConfirmationSender
	broadcaster   domain.Broadcaster
	logger        *zap.Logger
}

func NewReconcileUsecase(
	ledger repository.TransactionLedger,
	orders domain.OrderStore,
	fulfillment domain.Fulfillment,
	confirmations domain.ConfirmationSender,
	broadcaster domain.Broadcaster,
	logger *zap.Logger,
) *ReconcileUsecase {
	return &ReconcileUsecase{
		ledger:        ledger,
		orders:        orders,
		fulfillment:   fulfillment,
		confirmations: confirmations,
		broadcaster:   broadcaster,
		logger:        logger,
	}
}

// Reconcile applies a proposed terminal outcome for checkoutRef exactly once.
// An unmatched ref or an already-resolved transaction is logged and absorbed,
// never surfaced; the webhook contract depends on that.
func (uc *ReconcileUsecase) Reconcile(ctx context.Context, checkoutRef string, outcome domain.Outcome) error {
	if !outcome.Status.Terminal() {
		return fmt.Errorf("reconcile called with non-terminal status %q", outcome.Status)
	}

	won, err := uc.ledger.TryTransition(ctx, checkoutRef, outcome)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			uc.logger.Warn("outcome for unknown checkout ref ignored",
				zap.String("checkout_ref", checkoutRef),
				zap.String("status", string(outcome.Status)))
			return nil
		}
		return fmt.Errorf("transition %s: %w", checkoutRef, err)
	}
	if !won {
		uc.logger.Info("transaction already resolved, outcome dropped",
			zap.String("checkout_ref", checkoutRef),
			zap.String("proposed_status", string(outcome.Status)))
		return nil
	}

	tx, err := uc.ledger.GetByCheckoutRef(ctx, checkoutRef)
	if err != nil {
		return fmt.Errorf("load resolved transaction %s: %w", checkoutRef, err)
	}

	uc.logger.Info("transaction resolved",
		zap.String("checkout_ref", checkoutRef),
		zap.String("order_id", tx.OrderID),
		zap.String("status", string(tx.Status)),
		zap.Int("result_code", outcome.ResultCode),
		zap.String("result_desc", outcome.ResultDesc))

	switch tx.Status {
	case domain.TxStatusCompleted:
		if err := uc.orders.SetPaymentStatus(ctx, tx.OrderID, domain.OrderPaymentPaid); err != nil {
			uc.logger.Error("failed to mark order paid, flagging for review",
				zap.String("order_id", tx.OrderID),
				zap.String("checkout_ref", checkoutRef),
				zap.Error(err))
		}
		go uc.triggerFulfillment(tx.OrderID)
		go uc.sendConfirmation(tx)
		uc.emit(ctx, tx, domain.EventPaymentCompleted, outcome)

	default:
		if err := uc.orders.SetPaymentStatus(ctx, tx.OrderID, domain.OrderPaymentFailed); err != nil {
			uc.logger.Error("failed to mark order payment failed",
				zap.String("order_id", tx.OrderID),
				zap.String("checkout_ref", checkoutRef),
				zap.Error(err))
		}
		uc.emit(ctx, tx, domain.EventPaymentFailed, outcome)
	}

	return nil
}

func (uc *ReconcileUsecase) triggerFulfillment(orderID string) {
	if uc.fulfillment == nil {
		return
	}
	ctx := context.Background()
	if err := uc.fulfillment.ProcessOrder(ctx, orderID); err != nil {
		uc.logger.Error("fulfillment trigger failed",
			zap.String("order_id", orderID),
			zap.Error(err))
	}
}

func (uc *ReconcileUsecase) sendConfirmation(tx *domain.Transaction) {
	if uc.confirmations == nil {
		return
	}
	ctx := context.Background()

	order, err := uc.orders.GetOrder(ctx, tx.OrderID)
	if err != nil {
		uc.logger.Error("confirmation skipped, order lookup failed",
			zap.String("order_id", tx.OrderID),
			zap.Error(err))
		return
	}

	if err := uc.confirmations.SendConfirmation(ctx, order, tx); err != nil {
		uc.logger.Error("confirmation send failed",
			zap.String("order_id", tx.OrderID),
			zap.String("checkout_ref", tx.CheckoutRef),
			zap.Error(err))
	}
}

// emit broadcasts the resolution, best effort. A broadcast failure never
// fails the reconciliation that produced it.
func (uc *ReconcileUsecase) emit(ctx context.Context, tx *domain.Transaction, event string, outcome domain.Outcome) {
	if uc.broadcaster == nil {
		return
	}

	payload := domain.PaymentEvent{
		OrderID:     tx.OrderID,
		CheckoutRef: tx.CheckoutRef,
		Status:      string(tx.Status),
		Amount:      tx.Amount,
		ResultCode:  outcome.ResultCode,
		ResultDesc:  outcome.ResultDesc,
		Timestamp:   time.Now().Unix(),
	}
	if tx.ReceiptID != nil {
		payload.ReceiptID = *tx.ReceiptID
	}

	if err := uc.broadcaster.Emit(ctx, tx.OrderID, event, payload); err != nil {
		uc.logger.Error("broadcast failed",
			zap.String("order_id", tx.OrderID),
			zap.String("event", event),
			zap.Error(err))
	}
}
