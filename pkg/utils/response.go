package utils

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorBody is the payload of every non-2xx API response.
type ErrorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// RespondJSON writes payload as a JSON response.
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("encode response failed", zap.Int("status", status), zap.Error(err))
	}
}

// RespondError writes an ErrorBody tagged with the request id assigned by
// middleware.RequestID, so a client report can be matched to the server log.
func RespondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	body := ErrorBody{Error: message}
	if r != nil {
		body.RequestID = middleware.GetReqID(r.Context())
	}
	if status >= http.StatusInternalServerError {
		zap.L().Warn("request failed",
			zap.String("request_id", body.RequestID),
			zap.Int("status", status),
			zap.String("error", message),
		)
	}
	RespondJSON(w, status, body)
}
