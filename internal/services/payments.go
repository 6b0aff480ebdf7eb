// Package services holds the reconciliation engine: the single owner of
// payment ledger writes and of the booking mutations payments cause. All
// collaborators are injected; nothing in here is package-level state.
package services

import (
	"context"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/onpointsoft-solutions/shulegram/internal/apperr"
	"github.com/onpointsoft-solutions/shulegram/internal/models"
	"github.com/onpointsoft-solutions/shulegram/internal/paystack"
	"github.com/onpointsoft-solutions/shulegram/internal/tasks"
	"github.com/onpointsoft-solutions/shulegram/internal/validate"
)

// TransactionStore is the ledger the engine reads and writes. The Mongo
// implementation lives in internal/store.
type TransactionStore interface {
	Create(ctx context.Context, txn *models.Transaction) error
	GetByReference(ctx context.Context, reference string) (*models.Transaction, error)
	ListByBooking(ctx context.Context, bookingID string) ([]models.Transaction, error)
	UpdateFields(ctx context.Context, reference string, fields bson.M) error
	TransitionStatus(ctx context.Context, reference string, to models.TransactionStatus, fields bson.M) (bool, error)
}

// BookingStore is the payment-owned window onto booking records.
type BookingStore interface {
	Get(ctx context.Context, id string) (*models.Booking, error)
	UpdateFields(ctx context.Context, id string, fields bson.M) error
	AppendActivity(ctx context.Context, id string, entry models.ActivityEntry) error
}

// Gateway is the payment gateway surface the engine depends on.
type Gateway interface {
	InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error)
	ChargeMobileMoney(ctx context.Context, req paystack.ChargeRequest) (*paystack.ChargeResponse, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyResponse, error)
}

// PaymentService brokers between the client app, the payment gateway and
// the booking records.
type PaymentService struct {
	transactions TransactionStore
	bookings     BookingStore
	gateway      Gateway
	tasks        *tasks.Runner
	callbackURL  string
	locks        *refLocks
}

func NewPaymentService(transactions TransactionStore, bookings BookingStore, gateway Gateway, runner *tasks.Runner, callbackURL string) *PaymentService {
	return &PaymentService{
		transactions: transactions,
		bookings:     bookings,
		gateway:      gateway,
		tasks:        runner,
		callbackURL:  callbackURL,
		locks:        newRefLocks(),
	}
}

// checkoutChannels are the rails offered on a hosted checkout page.
var checkoutChannels = []string{"card", "mobile_money"}

type InitializePaymentInput struct {
	BookingID   string
	Email       string
	Amount      float64
	PaymentType string
}

type InitializePaymentResult struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// InitializeBookingPayment opens a hosted checkout for a booking fee or an
// escrow deposit and records the pending ledger entry.
func (s *PaymentService) InitializeBookingPayment(ctx context.Context, in InitializePaymentInput) (*InitializePaymentResult, error) {
	paymentType, err := normalizePaymentType(in.PaymentType)
	if err != nil {
		return nil, err
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := validate.CheckAmount(in.Amount); err != nil {
		return nil, err
	}
	if in.BookingID == "" {
		return nil, apperr.New(apperr.KindValidation, "booking_id is required")
	}
	if _, err := s.bookings.Get(ctx, in.BookingID); err != nil {
		return nil, err
	}

	reference := newReference(refBookingFee)
	if paymentType == models.PaymentTypeEscrow {
		reference = newReference(refInitialize)
	}
	metadata := paymentMetadata(paymentType, in.BookingID, in.Email)

	resp, err := s.gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       in.Email,
		AmountMinor: paystack.ToMinorUnits(in.Amount),
		Reference:   reference,
		Channels:    checkoutChannels,
		CallbackURL: s.callbackURL,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		Reference:     reference,
		BookingID:     in.BookingID,
		Email:         in.Email,
		Amount:        in.Amount,
		Status:        models.StatusPending,
		PaymentMethod: models.MethodUnknown,
		Metadata:      metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.transactions.Create(ctx, txn); err != nil {
		// The gateway already knows this reference; its webhook will be
		// acknowledged as unknown and the attempt stays auditable there.
		log.Printf("Ledger insert failed for initialized payment %s: %v", reference, err)
		return nil, err
	}

	log.Printf("Initialized %s payment %s for booking %s", paymentType, reference, in.BookingID)
	return &InitializePaymentResult{
		Reference:        reference,
		AuthorizationURL: resp.AuthorizationURL,
		AccessCode:       resp.AccessCode,
	}, nil
}

type ChargeMpesaInput struct {
	BookingID   string
	Email       string
	Amount      float64
	Phone       string
	Provider    string
	PaymentType string
}

type ChargeMpesaResult struct {
	Reference   string                   `json:"reference"`
	Status      models.TransactionStatus `json:"status"`
	DisplayText string                   `json:"display_text,omitempty"`
}

// ChargeMpesa pushes a mobile-money debit prompt to the payer's handset
// and records the pending ledger entry. Most charges settle later via
// webhook or verify poll; an immediately settled charge is folded in
// before returning.
func (s *PaymentService) ChargeMpesa(ctx context.Context, in ChargeMpesaInput) (*ChargeMpesaResult, error) {
	paymentType, err := normalizePaymentType(in.PaymentType)
	if err != nil {
		return nil, err
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := validate.CheckAmount(in.Amount); err != nil {
		return nil, err
	}
	if in.BookingID == "" {
		return nil, apperr.New(apperr.KindValidation, "booking_id is required")
	}
	phone, err := validate.NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	if _, err := s.bookings.Get(ctx, in.BookingID); err != nil {
		return nil, err
	}

	provider := in.Provider
	if provider == "" {
		provider = "mpesa"
	}
	reference := newReference(refMpesa)
	if provider != "mpesa" {
		reference = newReference(refCharge)
	}
	metadata := paymentMetadata(paymentType, in.BookingID, in.Email)

	resp, err := s.gateway.ChargeMobileMoney(ctx, paystack.ChargeRequest{
		Email:       in.Email,
		AmountMinor: paystack.ToMinorUnits(in.Amount),
		Reference:   reference,
		Phone:       phone,
		Provider:    provider,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		Reference:       reference,
		BookingID:       in.BookingID,
		Email:           in.Email,
		Phone:           phone,
		Amount:          in.Amount,
		Status:          models.StatusPending,
		PaymentMethod:   models.MethodMpesa,
		GatewayResponse: chargeText(resp),
		Metadata:        metadata,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.transactions.Create(ctx, txn); err != nil {
		log.Printf("Ledger insert failed for charge %s: %v", reference, err)
		return nil, err
	}
	log.Printf("Mobile money charge %s sent for booking %s phone %s", reference, in.BookingID, maskPhone(phone))

	status, err := s.applyChargeResult(ctx, txn, resp)
	if err != nil {
		return nil, err
	}
	return &ChargeMpesaResult{
		Reference:   reference,
		Status:      status,
		DisplayText: resp.DisplayText,
	}, nil
}

// VerifyPayment polls the gateway for a transaction's settled state and
// reconciles the ledger the same way a webhook would, then returns the
// post-reconciliation record.
func (s *PaymentService) VerifyPayment(ctx context.Context, reference string) (*models.Transaction, error) {
	if _, err := s.transactions.GetByReference(ctx, reference); err != nil {
		return nil, err
	}

	resp, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case "success":
		err = s.applySuccess(ctx, outcome{
			reference:       reference,
			amountMinor:     resp.AmountMinor,
			channel:         resp.Channel,
			gatewayResponse: resp.GatewayResponse,
			paidAt:          resp.PaidAtTime(),
		})
	case "failed", "abandoned", "reversed":
		err = s.applyFailure(ctx, reference, resp.GatewayResponse, resp.GatewayResponse)
	default:
		// Still in flight (pending, ongoing, queued...). Keep the freshest
		// gateway response on the record; the status does not move.
		if resp.GatewayResponse != "" {
			err = s.transactions.UpdateFields(ctx, reference, bson.M{"gateway_response": resp.GatewayResponse})
		}
	}
	if err != nil {
		return nil, err
	}

	return s.transactions.GetByReference(ctx, reference)
}

// GetPayment returns one ledger record.
func (s *PaymentService) GetPayment(ctx context.Context, reference string) (*models.Transaction, error) {
	return s.transactions.GetByReference(ctx, reference)
}

// ListBookingPayments returns every payment attempt against a booking,
// newest first.
func (s *PaymentService) ListBookingPayments(ctx context.Context, bookingID string) ([]models.Transaction, error) {
	txns, err := s.transactions.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	return txns, nil
}

func normalizePaymentType(paymentType string) (string, error) {
	switch paymentType {
	case "":
		return models.PaymentTypeBookingFee, nil
	case models.PaymentTypeBookingFee, models.PaymentTypeEscrow:
		return paymentType, nil
	default:
		return "", apperr.Newf(apperr.KindValidation, "unknown payment type %q", paymentType)
	}
}

func validateEmail(email string) error {
	if email == "" || !strings.Contains(email, "@") {
		return apperr.New(apperr.KindValidation, "a valid email is required")
	}
	return nil
}

// paymentMetadata builds the bag stored on the ledger record and echoed by
// the gateway. payment_type must survive every copy; the reconciliation
// branch depends on it.
func paymentMetadata(paymentType, bookingID, email string) map[string]interface{} {
	return map[string]interface{}{
		models.MetaPaymentType: paymentType,
		models.MetaBookingID:   bookingID,
		"email":                email,
	}
}

func chargeText(resp *paystack.ChargeResponse) string {
	if resp.DisplayText != "" {
		return resp.DisplayText
	}
	return resp.Message
}

// maskPhone hides the subscriber digits when a phone number is logged.
func maskPhone(phone string) string {
	if len(phone) < 6 {
		return "***"
	}
	return phone[:4] + "****" + phone[len(phone)-2:]
}
