package errors

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// JSON writes an error payload with the given status.
func JSON(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}

// InternalError logs err with its request ID and returns a generic 500.
func InternalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	LogError(r, message, err)
	JSON(w, http.StatusInternalServerError, "internal", "internal server error")
}

// BadRequest logs err and returns the client-safe message with a 400.
func BadRequest(w http.ResponseWriter, r *http.Request, err error, clientMessage string) {
	requestID := middleware.GetReqID(r.Context())
	if requestID != "" {
		log.Printf("[WARN] RequestID=%s: bad request: %v", requestID, err)
	} else {
		log.Printf("[WARN] bad request: %v", err)
	}
	JSON(w, http.StatusBadRequest, "bad_request", clientMessage)
}

// LogError logs an error with the request ID for correlation.
func LogError(r *http.Request, message string, err error) {
	requestID := middleware.GetReqID(r.Context())
	if requestID != "" {
		log.Printf("[ERROR] RequestID=%s: %s: %v", requestID, message, err)
	} else {
		log.Printf("[ERROR] %s: %v", message, err)
	}
}

// LogInfo logs an informational message with the request ID.
func LogInfo(r *http.Request, message string) {
	requestID := middleware.GetReqID(r.Context())
	if requestID != "" {
		log.Printf("[INFO] RequestID=%s: %s", requestID, message)
	} else {
		log.Printf("[INFO] %s", message)
	}
}
