// internal/handler/payment_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"dukastore/internal/domain"
	"dukastore/internal/repository"
	"dukastore/internal/usecase"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	initiateUC *usecase.InitiateUsecase
	statusUC   *usecase.StatusUsecase
	ledger     repository.TransactionLedger
	hub        *Hub
	logger     *zap.Logger
}

func NewPaymentHandler(
	initiateUC *usecase.InitiateUsecase,
	statusUC *usecase.StatusUsecase,
	ledger repository.TransactionLedger,
	hub *Hub,
	logger *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		initiateUC: initiateUC,
		statusUC:   statusUC,
		ledger:     ledger,
		hub:        hub,
		logger:     logger,
	}
}

// Initiate starts a push payment for an order.
func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req usecase.InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.initiateUC.Initiate(r.Context(), req)
	if err != nil {
		var perr *domain.PaymentError
		if errors.As(err, &perr) {
			PaymentError(w, perr)
			return
		}
		h.logger.Error("initiate failed",
			zap.String("order_id", req.OrderID),
			zap.Error(err))
		Error(w, http.StatusInternalServerError, "failed to initiate payment")
		return
	}

	JSON(w, http.StatusAccepted, result)
}

// GetTransaction returns the ledger row for a checkout ref.
func (h *PaymentHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	checkoutRef := chi.URLParam(r, "checkout_ref")

	tx, err := h.ledger.GetByCheckoutRef(r.Context(), checkoutRef)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			Error(w, http.StatusNotFound, "transaction not found")
			return
		}
		h.logger.Error("transaction lookup failed",
			zap.String("checkout_ref", checkoutRef),
			zap.Error(err))
		Error(w, http.StatusInternalServerError, "failed to load transaction")
		return
	}

	JSON(w, http.StatusOK, tx)
}

// CheckStatus runs the active poll path for a pending attempt. The request
// context carries the caller's disconnect, which cancels the poll loop.
func (h *PaymentHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	checkoutRef := chi.URLParam(r, "checkout_ref")

	tx, err := h.statusUC.QueryStatus(r.Context(), checkoutRef)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			Error(w, http.StatusNotFound, "transaction not found")
			return
		}
		var perr *domain.PaymentError
		if errors.As(err, &perr) {
			PaymentError(w, perr)
			return
		}
		h.logger.Error("status check failed",
			zap.String("checkout_ref", checkoutRef),
			zap.Error(err))
		Error(w, http.StatusInternalServerError, "failed to check status")
		return
	}

	JSON(w, http.StatusOK, tx)
}
