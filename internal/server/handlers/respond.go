package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/gophsync/pkg/api"
)

// SendJSON отправляет JSON ответ
func SendJSON(logger *slog.Logger, w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// SendError отправляет ответ с ошибкой в формате api.ErrorResponse
func SendError(logger *slog.Logger, w http.ResponseWriter, code, message string, statusCode int) {
	SendJSON(logger, w, api.ErrorResponse{Error: code, Message: message}, statusCode)
}
