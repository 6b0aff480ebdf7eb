package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/onpointsoft-solutions/shulegram/internal/apperr"
	"github.com/onpointsoft-solutions/shulegram/internal/models"
	"github.com/onpointsoft-solutions/shulegram/internal/paystack"
	"github.com/onpointsoft-solutions/shulegram/internal/services"
	"github.com/onpointsoft-solutions/shulegram/internal/tasks"
)

const (
	testJWTSecret     = "handlers-test-secret"
	testWebhookSecret = "sk_test_webhook_secret"
)

// stubTransactions answers with canned behavior per test. Every method
// bumps the call counter so tests can assert the store was never touched.
type stubTransactions struct {
	mu           sync.Mutex
	calls        int
	created      []*models.Transaction
	onGet        func(reference string) (*models.Transaction, error)
	onList       func(bookingID string) ([]models.Transaction, error)
	onTransition func(reference string, to models.TransactionStatus) (bool, error)
}

func (s *stubTransactions) bump() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *stubTransactions) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubTransactions) Create(ctx context.Context, txn *models.Transaction) error {
	s.bump()
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *txn
	s.created = append(s.created, &copy)
	return nil
}

func (s *stubTransactions) GetByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	s.bump()
	if s.onGet != nil {
		return s.onGet(reference)
	}
	return nil, apperr.Newf(apperr.KindNotFound, "transaction %s not found", reference)
}

func (s *stubTransactions) ListByBooking(ctx context.Context, bookingID string) ([]models.Transaction, error) {
	s.bump()
	if s.onList != nil {
		return s.onList(bookingID)
	}
	return nil, nil
}

func (s *stubTransactions) UpdateFields(ctx context.Context, reference string, fields bson.M) error {
	s.bump()
	return nil
}

func (s *stubTransactions) TransitionStatus(ctx context.Context, reference string, to models.TransactionStatus, fields bson.M) (bool, error) {
	s.bump()
	if s.onTransition != nil {
		return s.onTransition(reference, to)
	}
	return true, nil
}

type stubBookings struct {
	mu       sync.Mutex
	calls    int
	updates  []bson.M
	activity []models.ActivityEntry
	onGet    func(id string) (*models.Booking, error)
}

func (s *stubBookings) bump() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *stubBookings) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubBookings) Get(ctx context.Context, id string) (*models.Booking, error) {
	s.bump()
	if s.onGet != nil {
		return s.onGet(id)
	}
	return nil, apperr.Newf(apperr.KindNotFound, "booking %s not found", id)
}

func (s *stubBookings) UpdateFields(ctx context.Context, id string, fields bson.M) error {
	s.bump()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, fields)
	return nil
}

func (s *stubBookings) AppendActivity(ctx context.Context, id string, entry models.ActivityEntry) error {
	s.bump()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, entry)
	return nil
}

type stubGateway struct {
	initResp   *paystack.InitializeResponse
	initErr    error
	chargeResp *paystack.ChargeResponse
	chargeErr  error
	verifyResp *paystack.VerifyResponse
	verifyErr  error
}

func (g *stubGateway) InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error) {
	if g.initErr != nil {
		return nil, g.initErr
	}
	if g.initResp != nil {
		return g.initResp, nil
	}
	return &paystack.InitializeResponse{
		AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
		AccessCode:       "access_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *stubGateway) ChargeMobileMoney(ctx context.Context, req paystack.ChargeRequest) (*paystack.ChargeResponse, error) {
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	if g.chargeResp != nil {
		return g.chargeResp, nil
	}
	return &paystack.ChargeResponse{
		Reference:   req.Reference,
		Status:      paystack.ChargePayOffline,
		DisplayText: "Enter your PIN to complete the payment",
	}, nil
}

func (g *stubGateway) VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyResponse, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	if g.verifyResp != nil {
		return g.verifyResp, nil
	}
	return &paystack.VerifyResponse{Status: "pending"}, nil
}

type testEnv struct {
	handler      http.Handler
	transactions *stubTransactions
	bookings     *stubBookings
	gateway      *stubGateway
}

// newTestEnv builds the real router over a real engine backed by stubs.
// The task runner is closed up front so activity appends run inline.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	transactions := &stubTransactions{}
	bookings := &stubBookings{}
	gateway := &stubGateway{}

	runner := tasks.NewRunner(time.Second)
	if err := runner.Close(context.Background()); err != nil {
		t.Fatalf("closing runner: %v", err)
	}

	service := services.NewPaymentService(transactions, bookings, gateway, runner, "https://app.shulegram.co.ke/payments/callback")
	payments := NewPaymentHandler(service, false)
	webhook := NewWebhookHandler(service, testWebhookSecret)

	return &testEnv{
		handler:      NewRouter(payments, webhook, testJWTSecret, "*"),
		transactions: transactions,
		bookings:     bookings,
		gateway:      gateway,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func pendingBooking(id string) *models.Booking {
	return &models.Booking{
		ID:        id,
		TeacherID: "teacher_1",
		StudentID: "student_1",
		Status:    models.BookingPending,
		CreatedAt: time.Now().Add(-time.Hour),
	}
}
