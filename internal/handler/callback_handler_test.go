// internal/handler/callback_handler_test.go
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dukastore/internal/domain"
	"dukastore/internal/usecase"

	"go.uber.org/zap"
)

// emptyLedger satisfies the ledger interface with no rows, so every delivery
// resolves as an unmatched ref.
type emptyLedger struct{}

func (emptyLedger) Create(ctx context.Context, tx *domain.Transaction) error { return nil }

func (emptyLedger) GetByCheckoutRef(ctx context.Context, checkoutRef string) (*domain.Transaction, error) {
	return nil, domain.ErrTransactionNotFound
}

func (emptyLedger) TryTransition(ctx context.Context, checkoutRef string, outcome domain.Outcome) (bool, error) {
	return false, domain.ErrTransactionNotFound
}

func (emptyLedger) CancelPendingForOrder(ctx context.Context, orderID, reason string) (int, error) {
	return 0, nil
}

func newTestCallbackHandler() *CallbackHandler {
	logger := zap.NewNop()
	reconciler := usecase.NewReconcileUsecase(emptyLedger{}, nil, nil, nil, nil, logger)
	callbackUC := usecase.NewCallbackUsecase(emptyLedger{}, reconciler, logger)
	return NewCallbackHandler(callbackUC, logger)
}

func assertGatewayAck(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ack map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("ack decode: %v", err)
	}
	if ack["ResultCode"] != "0" || ack["ResultDesc"] != "Success" {
		t.Errorf("unexpected ack %v", ack)
	}
}

func TestSTKCallback(t *testing.T) {
	t.Run("Given a well-formed delivery for an unknown ref When posted Then the gateway still gets its ack", func(t *testing.T) {
		h := newTestCallbackHandler()

		payload := []byte(`{
			"Body": {
				"stkCallback": {
					"CheckoutRequestID": "ws_CO_unknown",
					"ResultCode": 0,
					"ResultDesc": "ok"
				}
			}
		}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/callbacks/mpesa/stk", bytes.NewReader(payload))
		rec := httptest.NewRecorder()

		h.STKCallback(rec, req)
		assertGatewayAck(t, rec)
	})

	t.Run("Given malformed JSON When posted Then the gateway still gets a 200 ack", func(t *testing.T) {
		h := newTestCallbackHandler()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/callbacks/mpesa/stk", bytes.NewReader([]byte(`{not json`)))
		rec := httptest.NewRecorder()

		h.STKCallback(rec, req)
		assertGatewayAck(t, rec)
	})

	t.Run("Given an empty body When posted Then the gateway still gets a 200 ack", func(t *testing.T) {
		h := newTestCallbackHandler()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/callbacks/mpesa/stk", bytes.NewReader(nil))
		rec := httptest.NewRecorder()

		h.STKCallback(rec, req)
		assertGatewayAck(t, rec)
	})
}
