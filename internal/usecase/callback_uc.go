// internal/usecase/callback_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dukastore/internal/domain"
	"dukastore/internal/provider/mpesa"
	"dukastore/internal/repository"

	"go.uber.org/zap"
)

// CallbackUsecase consumes asynchronous gateway notifications. Every failure
// here is logged and absorbed by the handler; the gateway always gets its
// acknowledgement.
type CallbackUsecase struct {
	ledger     repository.TransactionLedger
	reconciler *ReconcileUsecase
	logger     *zap.Logger
}

func NewCallbackUsecase(
	ledger repository.TransactionLedger,
	reconciler *ReconcileUsecase,
	logger *zap.Logger,
) *CallbackUsecase {
	return &CallbackUsecase{
		ledger:     ledger,
		reconciler: reconciler,
		logger:     logger,
	}
}

// ProcessSTKCallback parses a webhook delivery and, when it matches a
// PENDING transaction, proposes its outcome to the reconciler. Duplicate
// deliveries and unmatched refs are acknowledged no-ops.
func (uc *CallbackUsecase) ProcessSTKCallback(ctx context.Context, payload []byte) error {
	result, err := mpesa.ParseSTKCallback(payload)
	if err != nil {
		return fmt.Errorf("stk callback: %w", err)
	}

	uc.logger.Info("stk callback received",
		zap.String("checkout_ref", result.CheckoutRequestID),
		zap.Int("result_code", result.ResultCode),
		zap.Bool("success", result.Success))

	tx, err := uc.ledger.GetByCheckoutRef(ctx, result.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			uc.logger.Warn("callback for unknown checkout ref ignored",
				zap.String("checkout_ref", result.CheckoutRequestID))
			return nil
		}
		return err
	}

	if tx.MerchantRef != "" && result.MerchantRequestID != tx.MerchantRef {
		uc.logger.Warn("callback merchant ref mismatch, ignored",
			zap.String("checkout_ref", result.CheckoutRequestID),
			zap.String("expected", tx.MerchantRef),
			zap.String("got", result.MerchantRequestID))
		return nil
	}

	if tx.Status.Terminal() {
		uc.logger.Info("duplicate callback delivery ignored",
			zap.String("checkout_ref", result.CheckoutRequestID),
			zap.String("status", string(tx.Status)))
		return nil
	}

	outcome := domain.OutcomeFromResultCode(result.ResultCode, result.ResultDesc)
	outcome.ConfirmedAmount = result.Amount
	outcome.ConfirmedPhone = result.PhoneNumber
	outcome.ReceiptID = result.ReceiptID
	outcome.Raw = json.RawMessage(payload)

	return uc.reconciler.Reconcile(ctx, result.CheckoutRequestID, outcome)
}
