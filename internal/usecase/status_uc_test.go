// internal/usecase/status_uc_test.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"dukastore/internal/domain"
	"dukastore/internal/provider/mpesa"

	"go.uber.org/zap"
)

func newStatusFixture(t *testing.T, gateway *fakeGateway, attempts int) (*StatusUsecase, *memLedger, *memOrders, *recordingBroadcaster, *fakeFulfillment) {
	t.Helper()

	ledger := newMemLedger()
	orders := newMemOrders(pendingOrder("ord-1"))
	fulfillment := newFakeFulfillment()
	broadcaster := &recordingBroadcaster{}
	reconciler := NewReconcileUsecase(ledger, orders, fulfillment, newFakeConfirmation(), broadcaster, zap.NewNop())
	uc := NewStatusUsecase(ledger, gateway, reconciler, attempts, time.Millisecond, zap.NewNop())
	return uc, ledger, orders, broadcaster, fulfillment
}

func TestQueryStatus(t *testing.T) {
	t.Run("Given an already terminal attempt When queried Then the cached outcome returns without polling", func(t *testing.T) {
		gateway := &fakeGateway{queryScript: []gatewayCall{{err: errors.New("must not be called")}}}
		uc, ledger, _, _, _ := newStatusFixture(t, gateway, 3)

		seedPending(t, ledger, "ws_CO_1", "ord-1")
		if _, err := ledger.TryTransition(context.Background(), "ws_CO_1",
			domain.OutcomeFromResultCode(domain.ResultCodeSuccess, "ok")); err != nil {
			t.Fatalf("seed transition: %v", err)
		}

		tx, err := uc.QueryStatus(context.Background(), "ws_CO_1")
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if tx.Status != domain.TxStatusCompleted {
			t.Errorf("expected COMPLETED, got %s", tx.Status)
		}
		if gateway.queryCount() != 0 {
			t.Errorf("expected no gateway calls, got %d", gateway.queryCount())
		}
	})

	t.Run("Given a definitive success answer When queried Then the attempt completes through the reconciler", func(t *testing.T) {
		gateway := &fakeGateway{queryScript: []gatewayCall{
			{queryResp: &mpesa.STKQueryResponse{
				ResponseCode: "0",
				ResultCode:   "0",
				ResultDesc:   "The service request is processed successfully.",
			}},
		}}
		uc, ledger, orders, broadcaster, _ := newStatusFixture(t, gateway, 3)

		seedPending(t, ledger, "ws_CO_1", "ord-1")

		tx, err := uc.QueryStatus(context.Background(), "ws_CO_1")
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if tx.Status != domain.TxStatusCompleted {
			t.Errorf("expected COMPLETED, got %s", tx.Status)
		}
		if got := orders.paymentStatus("ord-1"); got != domain.OrderPaymentPaid {
			t.Errorf("expected order PAID, got %s", got)
		}
		if events := broadcaster.recorded(); len(events) != 1 || events[0].event != domain.EventPaymentCompleted {
			t.Errorf("expected one payment.completed event, got %+v", events)
		}
	})

	t.Run("Given a user cancel answer When queried Then the attempt resolves CANCELLED", func(t *testing.T) {
		gateway := &fakeGateway{queryScript: []gatewayCall{
			{queryResp: &mpesa.STKQueryResponse{
				ResponseCode: "0",
				ResultCode:   "1032",
				ResultDesc:   "Request cancelled by user",
			}},
		}}
		uc, ledger, _, _, _ := newStatusFixture(t, gateway, 3)

		seedPending(t, ledger, "ws_CO_1", "ord-1")

		tx, err := uc.QueryStatus(context.Background(), "ws_CO_1")
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if tx.Status != domain.TxStatusCancelled {
			t.Errorf("expected CANCELLED, got %s", tx.Status)
		}
	})

	t.Run("Given the prompt stays outstanding When the attempt bound exhausts Then the attempt resolves FAILED with a timeout", func(t *testing.T) {
		gateway := &fakeGateway{queryScript: []gatewayCall{
			{err: mpesa.ErrStillProcessing},
		}}
		uc, ledger, orders, broadcaster, fulfillment := newStatusFixture(t, gateway, 3)

		seedPending(t, ledger, "ws_CO_1", "ord-1")

		tx, err := uc.QueryStatus(context.Background(), "ws_CO_1")
		if err != nil {
			t.Fatalf("exhausted poll must resolve, not error: %v", err)
		}
		if gateway.queryCount() != 3 {
			t.Errorf("expected exactly 3 query calls, got %d", gateway.queryCount())
		}
		if tx.Status != domain.TxStatusFailed {
			t.Errorf("expected FAILED, got %s", tx.Status)
		}
		if tx.ResultCode == nil || *tx.ResultCode != domain.ResultCodeDSTimeout {
			t.Errorf("expected result code %d, got %v", domain.ResultCodeDSTimeout, tx.ResultCode)
		}
		if got := orders.paymentStatus("ord-1"); got != domain.OrderPaymentFailed {
			t.Errorf("expected order payment FAILED, got %s", got)
		}
		if events := broadcaster.recorded(); len(events) != 1 || events[0].event != domain.EventPaymentFailed {
			t.Errorf("expected one payment.failed event, got %+v", events)
		}
		if _, ok := fulfillment.waitForCall(50 * time.Millisecond); ok {
			t.Error("fulfillment must not fire on a timeout resolution")
		}
	})

	t.Run("Given a still-processing answer then a definitive one When polled Then the definitive answer wins", func(t *testing.T) {
		gateway := &fakeGateway{queryScript: []gatewayCall{
			{err: mpesa.ErrStillProcessing},
			{queryResp: &mpesa.STKQueryResponse{
				ResponseCode: "0",
				ResultCode:   "0",
				ResultDesc:   "The service request is processed successfully.",
			}},
		}}
		uc, ledger, _, _, _ := newStatusFixture(t, gateway, 3)

		seedPending(t, ledger, "ws_CO_1", "ord-1")

		tx, err := uc.QueryStatus(context.Background(), "ws_CO_1")
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if tx.Status != domain.TxStatusCompleted {
			t.Errorf("expected COMPLETED, got %s", tx.Status)
		}
		if gateway.queryCount() != 2 {
			t.Errorf("expected 2 query calls, got %d", gateway.queryCount())
		}
	})

	t.Run("Given a non-retryable query failure When polled Then the error surfaces without resolving the attempt", func(t *testing.T) {
		gateway := &fakeGateway{queryScript: []gatewayCall{
			{err: fmt.Errorf("token: %w", domain.ErrAuthRejected)},
		}}
		uc, ledger, _, _, _ := newStatusFixture(t, gateway, 3)

		seedPending(t, ledger, "ws_CO_1", "ord-1")

		_, err := uc.QueryStatus(context.Background(), "ws_CO_1")
		var perr *domain.PaymentError
		if !errors.As(err, &perr) || perr.Kind != domain.KindAuthFailed {
			t.Fatalf("expected auth failure, got %v", err)
		}

		tx, _ := ledger.GetByCheckoutRef(context.Background(), "ws_CO_1")
		if tx.Status != domain.TxStatusPending {
			t.Errorf("attempt must stay PENDING after an auth failure, got %s", tx.Status)
		}
	})

	t.Run("Given an unknown checkout ref When queried Then not-found surfaces", func(t *testing.T) {
		gateway := &fakeGateway{queryScript: []gatewayCall{{err: mpesa.ErrStillProcessing}}}
		uc, _, _, _, _ := newStatusFixture(t, gateway, 3)

		_, err := uc.QueryStatus(context.Background(), "ws_CO_missing")
		if !errors.Is(err, domain.ErrTransactionNotFound) {
			t.Fatalf("expected ErrTransactionNotFound, got %v", err)
		}
	})
}
