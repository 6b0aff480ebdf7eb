package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/onpointsoft-solutions/shulegram/internal/apperr"
)

// response is the envelope every route answers with.
type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeOK(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, response{Success: true, Message: message, Data: data})
}

// writeError maps the error taxonomy onto HTTP statuses. Untyped and
// internal errors answer with a generic message unless debug mode is on.
func writeError(w http.ResponseWriter, err error, debug bool) {
	kind := apperr.KindOf(err)
	message := apperr.Message(err, "Something went wrong")

	switch kind {
	case apperr.KindGatewayAuth:
		log.Printf("ALERT: payment gateway rejected our credentials: %v", err)
		message = "Payment processing is temporarily unavailable"
	case apperr.KindInternal:
		log.Printf("Internal error: %v", err)
		message = "Something went wrong"
	}
	if debug {
		message = err.Error()
	}

	writeJSON(w, statusForKind(kind), response{Success: false, Message: message})
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindInvalidPhone, apperr.KindGatewayRejected:
		return http.StatusBadRequest
	case apperr.KindSignatureInvalid:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindPrecondition, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindGatewayUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
