// internal/usecase/callback_uc_test.go
package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dukastore/internal/domain"

	"go.uber.org/zap"
)

func successCallbackPayload(checkoutRef, merchantRef string) []byte {
	return []byte(fmt.Sprintf(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": %q,
				"CheckoutRequestID": %q,
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 1500.00},
						{"Name": "MpesaReceiptNumber", "Value": "QK12XYZ89"},
						{"Name": "TransactionDate", "Value": 20260829143022},
						{"Name": "PhoneNumber", "Value": 254722123456}
					]
				}
			}
		}
	}`, merchantRef, checkoutRef))
}

func failureCallbackPayload(checkoutRef, merchantRef string, code int, desc string) []byte {
	return []byte(fmt.Sprintf(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": %q,
				"CheckoutRequestID": %q,
				"ResultCode": %d,
				"ResultDesc": %q
			}
		}
	}`, merchantRef, checkoutRef, code, desc))
}

func newCallbackFixture(t *testing.T) (*CallbackUsecase, *memLedger, *memOrders, *recordingBroadcaster, *fakeFulfillment) {
	t.Helper()

	ledger := newMemLedger()
	orders := newMemOrders(pendingOrder("ord-1"))
	fulfillment := newFakeFulfillment()
	broadcaster := &recordingBroadcaster{}
	reconciler := NewReconcileUsecase(ledger, orders, fulfillment, newFakeConfirmation(), broadcaster, zap.NewNop())
	uc := NewCallbackUsecase(ledger, reconciler, zap.NewNop())
	return uc, ledger, orders, broadcaster, fulfillment
}

func TestProcessSTKCallback(t *testing.T) {
	t.Run("Given a success delivery When processed Then the attempt completes with the confirmed details", func(t *testing.T) {
		uc, ledger, orders, broadcaster, fulfillment := newCallbackFixture(t)
		seedPending(t, ledger, "ws_CO_1", "ord-1")

		payload := successCallbackPayload("ws_CO_1", "mr-ws_CO_1")
		if err := uc.ProcessSTKCallback(context.Background(), payload); err != nil {
			t.Fatalf("process: %v", err)
		}

		tx, _ := ledger.GetByCheckoutRef(context.Background(), "ws_CO_1")
		if tx.Status != domain.TxStatusCompleted {
			t.Errorf("expected COMPLETED, got %s", tx.Status)
		}
		if tx.ConfirmedAmount == nil || *tx.ConfirmedAmount != 1500.00 {
			t.Errorf("expected confirmed amount 1500, got %v", tx.ConfirmedAmount)
		}
		if tx.ReceiptID == nil || *tx.ReceiptID != "QK12XYZ89" {
			t.Errorf("expected receipt QK12XYZ89, got %v", tx.ReceiptID)
		}
		if tx.ConfirmedPhone == nil || *tx.ConfirmedPhone != "254722123456" {
			t.Errorf("expected confirmed phone 254722123456, got %v", tx.ConfirmedPhone)
		}
		if len(tx.CallbackData) == 0 {
			t.Error("expected the raw delivery kept on the row")
		}
		if got := orders.paymentStatus("ord-1"); got != domain.OrderPaymentPaid {
			t.Errorf("expected order PAID, got %s", got)
		}
		if _, ok := fulfillment.waitForCall(time.Second); !ok {
			t.Error("expected a fulfillment call")
		}
		if events := broadcaster.recorded(); len(events) != 1 || events[0].event != domain.EventPaymentCompleted {
			t.Errorf("expected one payment.completed event, got %+v", events)
		}
	})

	t.Run("Given a failure delivery When processed Then the attempt fails without fulfillment", func(t *testing.T) {
		uc, ledger, orders, _, fulfillment := newCallbackFixture(t)
		seedPending(t, ledger, "ws_CO_1", "ord-1")

		payload := failureCallbackPayload("ws_CO_1", "mr-ws_CO_1",
			domain.ResultCodeWrongPIN, "The initiator information is invalid.")
		if err := uc.ProcessSTKCallback(context.Background(), payload); err != nil {
			t.Fatalf("process: %v", err)
		}

		tx, _ := ledger.GetByCheckoutRef(context.Background(), "ws_CO_1")
		if tx.Status != domain.TxStatusFailed {
			t.Errorf("expected FAILED, got %s", tx.Status)
		}
		if got := orders.paymentStatus("ord-1"); got != domain.OrderPaymentFailed {
			t.Errorf("expected order payment FAILED, got %s", got)
		}
		if _, ok := fulfillment.waitForCall(50 * time.Millisecond); ok {
			t.Error("fulfillment must not fire for a failed payment")
		}
	})

	t.Run("Given a duplicate delivery When processed again Then it is a no-op", func(t *testing.T) {
		uc, ledger, _, broadcaster, fulfillment := newCallbackFixture(t)
		seedPending(t, ledger, "ws_CO_1", "ord-1")

		payload := successCallbackPayload("ws_CO_1", "mr-ws_CO_1")
		if err := uc.ProcessSTKCallback(context.Background(), payload); err != nil {
			t.Fatalf("first delivery: %v", err)
		}
		if err := uc.ProcessSTKCallback(context.Background(), payload); err != nil {
			t.Fatalf("duplicate delivery must be absorbed, got %v", err)
		}

		if _, ok := fulfillment.waitForCall(time.Second); !ok {
			t.Fatal("expected the first fulfillment call")
		}
		if _, ok := fulfillment.waitForCall(50 * time.Millisecond); ok {
			t.Error("duplicate delivery triggered a second fulfillment")
		}
		if events := broadcaster.recorded(); len(events) != 1 {
			t.Errorf("expected 1 event, got %d", len(events))
		}
	})

	t.Run("Given an unmatched checkout ref When processed Then the delivery is absorbed", func(t *testing.T) {
		uc, _, _, broadcaster, _ := newCallbackFixture(t)

		payload := successCallbackPayload("ws_CO_unknown", "mr-x")
		if err := uc.ProcessSTKCallback(context.Background(), payload); err != nil {
			t.Fatalf("unmatched delivery must be absorbed, got %v", err)
		}
		if events := broadcaster.recorded(); len(events) != 0 {
			t.Errorf("expected no events, got %d", len(events))
		}
	})

	t.Run("Given a merchant ref mismatch When processed Then the delivery is ignored", func(t *testing.T) {
		uc, ledger, _, _, _ := newCallbackFixture(t)
		seedPending(t, ledger, "ws_CO_1", "ord-1")

		payload := successCallbackPayload("ws_CO_1", "mr-spoofed")
		if err := uc.ProcessSTKCallback(context.Background(), payload); err != nil {
			t.Fatalf("mismatched delivery must be absorbed, got %v", err)
		}

		tx, _ := ledger.GetByCheckoutRef(context.Background(), "ws_CO_1")
		if tx.Status != domain.TxStatusPending {
			t.Errorf("attempt must stay PENDING, got %s", tx.Status)
		}
	})

	t.Run("Given a malformed payload When processed Then a parse error surfaces", func(t *testing.T) {
		uc, _, _, _, _ := newCallbackFixture(t)

		if err := uc.ProcessSTKCallback(context.Background(), []byte(`{"Body": {}}`)); err == nil {
			t.Fatal("expected a parse error for a payload without a checkout ref")
		}
	})
}
