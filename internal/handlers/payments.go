package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/onpointsoft-solutions/shulegram/internal/services"
)

// PaymentHandler exposes the payment engine over HTTP. Validation of
// business input lives in the service; handlers only decode and map errors.
type PaymentHandler struct {
	service *services.PaymentService
	debug   bool
}

func NewPaymentHandler(service *services.PaymentService, debug bool) *PaymentHandler {
	return &PaymentHandler{service: service, debug: debug}
}

type initializePaymentRequest struct {
	BookingID   string  `json:"booking_id"`
	Email       string  `json:"email"`
	Amount      float64 `json:"amount"`
	PaymentType string  `json:"payment_type"`
}

// InitializePayment starts a hosted-checkout payment for a booking.
func (h *PaymentHandler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	var req initializePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "Invalid request body"})
		return
	}

	result, err := h.service.InitializeBookingPayment(r.Context(), services.InitializePaymentInput{
		BookingID:   req.BookingID,
		Email:       req.Email,
		Amount:      req.Amount,
		PaymentType: req.PaymentType,
	})
	if err != nil {
		writeError(w, err, h.debug)
		return
	}

	writeOK(w, "Payment initialized", result)
}

type chargeMpesaRequest struct {
	BookingID   string  `json:"booking_id"`
	Email       string  `json:"email"`
	Amount      float64 `json:"amount"`
	Phone       string  `json:"phone"`
	Provider    string  `json:"provider"`
	PaymentType string  `json:"payment_type"`
}

// ChargeMpesa pushes an STK-style mobile money charge to the payer's phone.
func (h *PaymentHandler) ChargeMpesa(w http.ResponseWriter, r *http.Request) {
	var req chargeMpesaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "Invalid request body"})
		return
	}

	result, err := h.service.ChargeMpesa(r.Context(), services.ChargeMpesaInput{
		BookingID:   req.BookingID,
		Email:       req.Email,
		Amount:      req.Amount,
		Phone:       req.Phone,
		Provider:    req.Provider,
		PaymentType: req.PaymentType,
	})
	if err != nil {
		writeError(w, err, h.debug)
		return
	}

	writeOK(w, "Charge initiated", result)
}

// VerifyPayment re-queries the gateway for the transaction's current state
// and reconciles the ledger with whatever it says.
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	reference := mux.Vars(r)["reference"]

	txn, err := h.service.VerifyPayment(r.Context(), reference)
	if err != nil {
		writeError(w, err, h.debug)
		return
	}

	writeOK(w, "Payment verified", txn)
}

// GetPayment is a point read of one ledger row.
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	reference := mux.Vars(r)["reference"]

	txn, err := h.service.GetPayment(r.Context(), reference)
	if err != nil {
		writeError(w, err, h.debug)
		return
	}

	writeOK(w, "Payment retrieved", txn)
}

// ListBookingPayments returns the booking's ledger history, newest first.
func (h *PaymentHandler) ListBookingPayments(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["bookingID"]

	txns, err := h.service.ListBookingPayments(r.Context(), bookingID)
	if err != nil {
		writeError(w, err, h.debug)
		return
	}

	writeOK(w, "Payments retrieved", txns)
}

// RetryPayment re-runs a failed payment on its original rail under a fresh
// reference.
func (h *PaymentHandler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	reference := mux.Vars(r)["reference"]

	result, err := h.service.RetryPayment(r.Context(), reference)
	if err != nil {
		writeError(w, err, h.debug)
		return
	}

	writeOK(w, "Payment retry initiated", result)
}

// CancelPayment abandons a non-terminal payment and cancels the booking
// unless it already completed.
func (h *PaymentHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	reference := mux.Vars(r)["reference"]

	txn, err := h.service.CancelPayment(r.Context(), reference)
	if err != nil {
		writeError(w, err, h.debug)
		return
	}

	writeOK(w, "Payment cancelled", txn)
}

// ReleaseEscrow pays held escrow out once both parties confirmed completion.
func (h *PaymentHandler) ReleaseEscrow(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["bookingID"]

	booking, err := h.service.ReleaseEscrow(r.Context(), bookingID)
	if err != nil {
		writeError(w, err, h.debug)
		return
	}

	writeOK(w, "Escrow released", booking)
}
