package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/onpointsoft-solutions/shulegram/internal/paystack"
	"github.com/onpointsoft-solutions/shulegram/internal/services"
)

// WebhookHandler receives gateway callbacks. The HMAC signature is checked
// against the raw body before anything is decoded; an unsigned request
// never touches state. Non-2xx answers make the gateway redeliver.
type WebhookHandler struct {
	service *services.PaymentService
	secret  string
}

func NewWebhookHandler(service *services.PaymentService, secret string) *WebhookHandler {
	return &WebhookHandler{service: service, secret: secret}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "Unable to read request body"})
		return
	}

	signature := r.Header.Get(paystack.SignatureHeader)
	if !paystack.VerifySignature(h.secret, body, signature) {
		log.Printf("Webhook rejected: invalid signature from %s", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, response{Success: false, Message: "Invalid signature"})
		return
	}

	var event paystack.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Webhook rejected: undecodable payload: %v", err)
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "Invalid payload"})
		return
	}

	if err := h.service.HandleWebhookEvent(r.Context(), event); err != nil {
		log.Printf("Webhook %s for %s failed: %v", event.Event, event.Data.Reference, err)
		writeJSON(w, http.StatusInternalServerError, response{Success: false, Message: "Failed to process event"})
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Message: "Event processed"})
}
