package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/park285/chess-broadcast/pkg/broadcastdto"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("http_encode_error", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string, logger *zap.Logger) {
	writeJSON(w, status, broadcastdto.ErrorResponse{Error: message, RequestID: requestIDFromContext(r.Context())}, logger)
}
