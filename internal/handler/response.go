// internal/handler/response.go
package handler

import (
	"encoding/json"
	"net/http"

	"dukastore/internal/domain"
)

type APIResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Data       any    `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func Error(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: false, Message: msg})
}

// PaymentError renders a classified failure with its kind and suggestion.
func PaymentError(w http.ResponseWriter, perr *domain.PaymentError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForKind(perr.Kind))
	_ = json.NewEncoder(w).Encode(APIResponse{
		Success:    false,
		Message:    perr.Message,
		Kind:       string(perr.Kind),
		Suggestion: perr.Suggestion,
	})
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthFailed:
		return http.StatusBadGateway
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindNetwork, domain.KindUpstreamInternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
