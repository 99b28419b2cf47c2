// internal/handler/callback_handler.go
package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"dukastore/internal/usecase"

	"go.uber.org/zap"
)

type CallbackHandler struct {
	callbackUC *usecase.CallbackUsecase
	logger     *zap.Logger
}

func NewCallbackHandler(callbackUC *usecase.CallbackUsecase, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{callbackUC: callbackUC, logger: logger}
}

// STKCallback receives the asynchronous payment result from the gateway.
// The gateway retries on anything other than 200, so the ack is sent
// unconditionally; processing failures are logged and absorbed.
func (h *CallbackHandler) STKCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.logger.Error("failed to read callback body", zap.Error(err))
		h.ack(w)
		return
	}

	if err := h.callbackUC.ProcessSTKCallback(r.Context(), body); err != nil {
		h.logger.Error("callback processing failed", zap.Error(err))
	}

	h.ack(w)
}

func (h *CallbackHandler) ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"ResultCode": "0",
		"ResultDesc": "Success",
	}); err != nil {
		h.logger.Error("failed to write callback ack", zap.Error(err))
	}
}
