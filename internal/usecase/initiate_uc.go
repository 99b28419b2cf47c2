// internal/usecase/initiate_uc.go
package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"dukastore/internal/domain"
	"dukastore/internal/provider/mpesa"
	"dukastore/internal/repository"
	"dukastore/pkg/phone"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// supersededDesc is recorded on a PENDING attempt that a newer attempt for
// the same order replaced.
const supersededDesc = "superseded by a newer payment attempt"

type InitiateUsecase struct {
	ledger  repository.TransactionLedger
	orders  domain.OrderStore
	gateway Gateway
	retries int
	backoff time.Duration
	logger  *zap.Logger
}

func NewInitiateUsecase(
	ledger repository.TransactionLedger,
	orders domain.OrderStore,
	gateway Gateway,
	retries int,
	backoff time.Duration,
	logger *zap.Logger,
) *InitiateUsecase {
	return &InitiateUsecase{
		ledger:  ledger,
		orders:  orders,
		gateway: gateway,
		retries: retries,
		backoff: backoff,
		logger:  logger,
	}
}

type InitiateRequest struct {
	OrderID string `json:"order_id"`
	Phone   string `json:"phone"`
	Amount  int    `json:"amount"`
}

type InitiateResult struct {
	CheckoutRef     string `json:"checkout_ref"`
	MerchantRef     string `json:"merchant_ref"`
	CustomerMessage string `json:"customer_message,omitempty"`
}

// Initiate normalizes the input, pushes the payment prompt to the payer's
// handset and records the attempt as PENDING under the gateway-assigned
// checkout ref. Any still-PENDING prior attempt for the order is cancelled
// first so at most one attempt per order can resolve COMPLETED.
func (uc *InitiateUsecase) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	msisdn, err := phone.Normalize(req.Phone)
	if err != nil {
		return nil, &domain.PaymentError{
			Kind:       domain.KindValidation,
			Message:    fmt.Sprintf("invalid phone number %q", req.Phone),
			Suggestion: "use a local (07...) or international (2547...) mobile number",
			Err:        err,
		}
	}
	if req.Amount <= 0 {
		return nil, &domain.PaymentError{
			Kind:    domain.KindValidation,
			Message: "amount must be a positive whole amount",
		}
	}

	order, err := uc.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, &domain.PaymentError{
				Kind:    domain.KindValidation,
				Message: fmt.Sprintf("order %s not found", req.OrderID),
				Err:     err,
			}
		}
		return nil, err
	}
	if order.PaymentStatus == domain.OrderPaymentPaid {
		return nil, &domain.PaymentError{
			Kind:    domain.KindValidation,
			Message: fmt.Sprintf("order %s is already paid", req.OrderID),
		}
	}

	superseded, err := uc.ledger.CancelPendingForOrder(ctx, req.OrderID, supersededDesc)
	if err != nil {
		return nil, fmt.Errorf("cancel prior attempts for %s: %w", req.OrderID, err)
	}
	if superseded > 0 {
		uc.logger.Info("cancelled prior pending attempts",
			zap.String("order_id", req.OrderID),
			zap.Int("count", superseded))
	}

	resp, err := uc.submitWithRetry(ctx, msisdn, req.Amount, req.OrderID)
	if err != nil {
		return nil, err
	}

	tx := &domain.Transaction{
		ID:          ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		CheckoutRef: resp.CheckoutRequestID,
		MerchantRef: resp.MerchantRequestID,
		OrderID:     req.OrderID,
		PhoneNumber: msisdn,
		Amount:      req.Amount,
		Status:      domain.TxStatusPending,
	}
	if err := uc.ledger.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("record pending transaction: %w", err)
	}

	uc.logger.Info("payment attempt recorded",
		zap.String("order_id", req.OrderID),
		zap.String("checkout_ref", tx.CheckoutRef),
		zap.String("phone", msisdn),
		zap.Int("amount", req.Amount))

	return &InitiateResult{
		CheckoutRef:     resp.CheckoutRequestID,
		MerchantRef:     resp.MerchantRequestID,
		CustomerMessage: resp.CustomerMessage,
	}, nil
}

// submitWithRetry drives a bounded, iterative retry loop around the push
// submit. Only classifier-marked-retryable failures are retried; an
// ambiguous in-flight failure ends the attempt immediately because the
// charge may already be live.
func (uc *InitiateUsecase) submitWithRetry(ctx context.Context, msisdn string, amount int, orderID string) (resp *mpesa.STKPushResponse, err error) {
	attempts := uc.retries + 1
	desc := fmt.Sprintf("Payment for order %s", orderID)

	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err = uc.gateway.InitiateSTKPush(ctx, msisdn, amount, orderID, desc)
		if err == nil {
			return resp, nil
		}

		perr := domain.Classify(err)
		if !perr.Retryable || attempt == attempts {
			uc.logger.Warn("push submit failed",
				zap.String("order_id", orderID),
				zap.String("kind", string(perr.Kind)),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return nil, perr
		}

		uc.logger.Info("retrying push submit",
			zap.String("order_id", orderID),
			zap.String("kind", string(perr.Kind)),
			zap.Int("attempt", attempt))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(uc.backoff * time.Duration(attempt)):
		}
	}
	return nil, err
}
