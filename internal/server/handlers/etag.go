package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
)

// computeETag строит валидатор кэша: SHA256 от канонического JSON-тела.
// Детерминированный хеш позволяет клиенту дёшево распознавать неизменившиеся
// ответы initial и pull через If-None-Match.
func computeETag(body []byte) string {
	hash := sha256.Sum256(body)
	return `"` + hex.EncodeToString(hash[:]) + `"`
}

// writeJSONWithETag сериализует ответ, выставляет ETag и отвечает 304,
// если клиент уже видел точно такое же тело
func writeJSONWithETag(w http.ResponseWriter, r *http.Request, logger *slog.Logger, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to encode response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	etag := computeETag(body)
	w.Header().Set("ETag", etag)

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.Error("Failed to write response", "error", err)
	}
}

// writeJSON сериализует ответ без валидатора кэша
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// writeError отвечает структурированной ошибкой в формате api.ErrorResponse
func writeError(w http.ResponseWriter, logger *slog.Logger, status int, code, message string) {
	writeJSON(w, logger, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
