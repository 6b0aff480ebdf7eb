package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires every route. All /api routes except the webhook sit
// behind JWT auth; the webhook authenticates with its body signature.
// CORS wraps the router itself so preflight requests get answered even
// when no route matches their method.
func NewRouter(payments *PaymentHandler, webhook *WebhookHandler, jwtSecret, allowedOrigins string) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	router.HandleFunc("/api/payments/webhook", webhook.Handle).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(JWTAuth(jwtSecret))
	api.HandleFunc("/payments/initialize", payments.InitializePayment).Methods(http.MethodPost)
	api.HandleFunc("/payments/mpesa", payments.ChargeMpesa).Methods(http.MethodPost)
	api.HandleFunc("/payments/verify/{reference}", payments.VerifyPayment).Methods(http.MethodGet)
	api.HandleFunc("/payments/{reference}", payments.GetPayment).Methods(http.MethodGet)
	api.HandleFunc("/payments/{reference}/retry", payments.RetryPayment).Methods(http.MethodPost)
	api.HandleFunc("/payments/{reference}/cancel", payments.CancelPayment).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{bookingID}/payments", payments.ListBookingPayments).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{bookingID}/escrow/release", payments.ReleaseEscrow).Methods(http.MethodPost)

	return CORS(allowedOrigins)(router)
}
