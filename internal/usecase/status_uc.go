// internal/usecase/status_uc.go
package usecase

import (
	"context"
	"errors"
	"strconv"
	"time"

	"dukastore/internal/domain"
	"dukastore/internal/provider/mpesa"
	"dukastore/internal/repository"

	"go.uber.org/zap"
)

// StatusUsecase is the active query path: a customer-initiated "check
// status" that polls the gateway while the prompt is still outstanding.
type StatusUsecase struct {
	ledger     repository.TransactionLedger
	gateway    Gateway
	reconciler *ReconcileUsecase
	attempts   int
	delay      time.Duration
	logger     *zap.Logger
}

func NewStatusUsecase(
	ledger repository.TransactionLedger,
	gateway Gateway,
	reconciler *ReconcileUsecase,
	attempts int,
	delay time.Duration,
	logger *zap.Logger,
) *StatusUsecase {
	return &StatusUsecase{
		ledger:     ledger,
		gateway:    gateway,
		reconciler: reconciler,
		attempts:   attempts,
		delay:      delay,
		logger:     logger,
	}
}

// QueryStatus resolves the current state of a payment attempt. A transaction
// that is already terminal short-circuits with the cached outcome. Otherwise
// the gateway is polled up to the configured attempt count at a fixed delay;
// "still being processed" is not a failure, it just burns an attempt.
// Exhausting the bound always resolves the attempt FAILED with a timeout
// reason rather than looping or surfacing an error to the caller.
func (uc *StatusUsecase) QueryStatus(ctx context.Context, checkoutRef string) (*domain.Transaction, error) {
	tx, err := uc.ledger.GetByCheckoutRef(ctx, checkoutRef)
	if err != nil {
		return nil, err
	}
	if tx.Status.Terminal() {
		return tx, nil
	}

	for attempt := 1; attempt <= uc.attempts; attempt++ {
		resp, err := uc.gateway.QueryStatus(ctx, checkoutRef)
		if err == nil {
			return uc.resolve(ctx, checkoutRef, resp)
		}

		if !errors.Is(err, mpesa.ErrStillProcessing) {
			perr := domain.Classify(err)
			if !perr.Retryable {
				return nil, perr
			}
			uc.logger.Warn("status query failed, will retry",
				zap.String("checkout_ref", checkoutRef),
				zap.String("kind", string(perr.Kind)),
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else {
			uc.logger.Debug("transaction still processing",
				zap.String("checkout_ref", checkoutRef),
				zap.Int("attempt", attempt))
		}

		if attempt == uc.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(uc.delay):
		}
	}

	uc.logger.Warn("status poll bound exhausted, resolving as timeout",
		zap.String("checkout_ref", checkoutRef),
		zap.Int("attempts", uc.attempts))

	timeout := domain.Outcome{
		Status:     domain.TxStatusFailed,
		Kind:       domain.KindTimeout,
		ResultCode: domain.ResultCodeDSTimeout,
		ResultDesc: "status query retries exhausted while transaction was processing",
	}
	if err := uc.reconciler.Reconcile(ctx, checkoutRef, timeout); err != nil {
		return nil, err
	}
	return uc.ledger.GetByCheckoutRef(ctx, checkoutRef)
}

// resolve feeds a definitive query answer through the reconciler and returns
// the authoritative row, whichever path won.
func (uc *StatusUsecase) resolve(ctx context.Context, checkoutRef string, resp *mpesa.STKQueryResponse) (*domain.Transaction, error) {
	code, err := strconv.Atoi(resp.ResultCode)
	if err != nil {
		return nil, &domain.PaymentError{
			Kind:    domain.KindUnknown,
			Message: "gateway answered with a non-numeric result code",
			Err:     err,
		}
	}

	outcome := domain.OutcomeFromResultCode(code, resp.ResultDesc)
	if err := uc.reconciler.Reconcile(ctx, checkoutRef, outcome); err != nil {
		return nil, err
	}
	return uc.ledger.GetByCheckoutRef(ctx, checkoutRef)
}
