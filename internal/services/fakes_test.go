package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/onpointsoft-solutions/shulegram/internal/apperr"
	"github.com/onpointsoft-solutions/shulegram/internal/models"
	"github.com/onpointsoft-solutions/shulegram/internal/paystack"
)

// fakeTransactions is an in-memory TransactionStore with the same contract
// as the Mongo implementation: merge updates, status-guarded transitions.
type fakeTransactions struct {
	mu   sync.Mutex
	rows map[string]*models.Transaction

	failCreate error
	failUpdate error
}

func newFakeTransactions() *fakeTransactions {
	return &fakeTransactions{rows: map[string]*models.Transaction{}}
}

func (f *fakeTransactions) Create(ctx context.Context, txn *models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	if _, ok := f.rows[txn.Reference]; ok {
		return apperr.Newf(apperr.KindConflict, "transaction %s already exists", txn.Reference)
	}
	cp := *txn
	f.rows[txn.Reference] = &cp
	return nil
}

func (f *fakeTransactions) GetByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.rows[reference]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "transaction %s not found", reference)
	}
	cp := *txn
	return &cp, nil
}

func (f *fakeTransactions) ListByBooking(ctx context.Context, bookingID string) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var txns []models.Transaction
	for _, txn := range f.rows {
		if txn.BookingID == bookingID {
			txns = append(txns, *txn)
		}
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].CreatedAt.After(txns[j].CreatedAt) })
	return txns, nil
}

func (f *fakeTransactions) UpdateFields(ctx context.Context, reference string, fields bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	txn, ok := f.rows[reference]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "transaction %s not found", reference)
	}
	applyTransactionFields(txn, fields)
	return nil
}

func (f *fakeTransactions) TransitionStatus(ctx context.Context, reference string, to models.TransactionStatus, fields bson.M) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return false, f.failUpdate
	}
	txn, ok := f.rows[reference]
	if !ok {
		return false, apperr.Newf(apperr.KindNotFound, "transaction %s not found", reference)
	}
	if !models.CanTransition(txn.Status, to) {
		return false, nil
	}
	txn.Status = to
	applyTransactionFields(txn, fields)
	return true, nil
}

func applyTransactionFields(txn *models.Transaction, fields bson.M) {
	for k, v := range fields {
		switch k {
		case "amount":
			txn.Amount = v.(float64)
		case "payment_method":
			txn.PaymentMethod = v.(models.PaymentMethod)
		case "gateway_response":
			txn.GatewayResponse = v.(string)
		case "failure_reason":
			txn.FailureReason = v.(string)
		case "verified_at":
			t := v.(time.Time)
			txn.VerifiedAt = &t
		case "completed_at":
			t := v.(time.Time)
			txn.CompletedAt = &t
		case "failed_at":
			t := v.(time.Time)
			txn.FailedAt = &t
		case "cancelled_at":
			t := v.(time.Time)
			txn.CancelledAt = &t
		}
	}
}

// fakeBookings is an in-memory BookingStore.
type fakeBookings struct {
	mu   sync.Mutex
	rows map[string]*models.Booking

	failUpdate error
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{rows: map[string]*models.Booking{}}
}

func (f *fakeBookings) put(b *models.Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	f.rows[b.ID] = &cp
}

func (f *fakeBookings) Get(ctx context.Context, id string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[id]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "booking %s not found", id)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) UpdateFields(ctx context.Context, id string, fields bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	b, ok := f.rows[id]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "booking %s not found", id)
	}
	applyBookingFields(b, fields)
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeBookings) AppendActivity(ctx context.Context, id string, entry models.ActivityEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[id]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "booking %s not found", id)
	}
	b.ActivityLog = append(b.ActivityLog, entry)
	return nil
}

func applyBookingFields(b *models.Booking, fields bson.M) {
	for k, v := range fields {
		switch k {
		case "status":
			b.Status = v.(models.BookingStatus)
		case "booking_fee_paid":
			b.BookingFeePaid = v.(bool)
		case "booking_fee_reference":
			b.BookingFeeReference = v.(string)
		case "booking_fee_paid_at":
			t := v.(time.Time)
			b.BookingFeePaidAt = &t
		case "negotiation_unlocked":
			b.NegotiationUnlocked = v.(bool)
		case "negotiation":
			b.Negotiation = v.(*models.Negotiation)
		case "escrow_paid":
			b.EscrowPaid = v.(bool)
		case "escrow_amount":
			b.EscrowAmount = v.(float64)
		case "escrow_status":
			b.EscrowStatus = v.(models.EscrowStatus)
		case "escrow_reference":
			b.EscrowReference = v.(string)
		case "escrow_paid_at":
			t := v.(time.Time)
			b.EscrowPaidAt = &t
		case "escrow_released_at":
			t := v.(time.Time)
			b.EscrowReleasedAt = &t
		}
	}
}

// fakeGateway records every call and replays configured responses.
type fakeGateway struct {
	mu sync.Mutex

	initResp   *paystack.InitializeResponse
	initErr    error
	chargeResp *paystack.ChargeResponse
	chargeErr  error
	verifyResp *paystack.VerifyResponse
	verifyErr  error

	initCalls   []paystack.InitializeRequest
	chargeCalls []paystack.ChargeRequest
	verifyCalls []string
}

func (g *fakeGateway) InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalls = append(g.initCalls, req)
	if g.initErr != nil {
		return nil, g.initErr
	}
	if g.initResp != nil {
		return g.initResp, nil
	}
	return &paystack.InitializeResponse{
		AuthorizationURL: "https://checkout.example/" + req.Reference,
		AccessCode:       "code_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *fakeGateway) ChargeMobileMoney(ctx context.Context, req paystack.ChargeRequest) (*paystack.ChargeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chargeCalls = append(g.chargeCalls, req)
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	if g.chargeResp != nil {
		return g.chargeResp, nil
	}
	return &paystack.ChargeResponse{
		Reference:   req.Reference,
		Status:      paystack.ChargePayOffline,
		DisplayText: "Please complete the authorization on your mobile phone",
	}, nil
}

func (g *fakeGateway) VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls = append(g.verifyCalls, reference)
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	if g.verifyResp != nil {
		return g.verifyResp, nil
	}
	return &paystack.VerifyResponse{Status: "pending"}, nil
}
