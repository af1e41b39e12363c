package server

import (
	"encoding/json"
	"net/http"

	"github.com/myselfgus/vibe/internal/models"
)

// All error responses share the structured generation-error envelope so
// clients parse one shape regardless of where the failure originated.

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest,
		models.NewGenerationError("RequestError", "BAD_REQUEST", message, false))
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusNotFound,
		models.NewGenerationError("RequestError", "NOT_FOUND", message, false))
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed,
		models.NewGenerationError("RequestError", "METHOD_NOT_ALLOWED", "method not allowed", false))
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError,
		models.NewGenerationError("InternalError", "INTERNAL", err.Error(), false))
}
