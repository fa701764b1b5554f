package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"repair-job-service/internal/apperr"
)

const kindUnauthenticated = "unauthenticated"

type apiError struct {
	Kind      string `json:"kind,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, kind apperr.Kind, msg string) {
	writeJSON(w, code, apiError{Kind: string(kind), Message: msg})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindAuthorization:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// writeServiceError maps a service error onto its HTTP status. Unclassified
// errors are logged and reported as 500 without detail. An expired request
// deadline writes nothing: middleware.Timeout answers 504 once the handler
// returns.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	if e, ok := apperr.As(err); ok {
		writeJSON(w, statusFor(e.Kind), apiError{
			Kind:      string(e.Kind),
			Reason:    e.Reason,
			Message:   e.Message,
			Retryable: e.Retryable,
		})
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		log.Warn("request deadline exceeded", zap.Error(err))
		return
	}
	log.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, apiError{Message: "internal error"})
}
