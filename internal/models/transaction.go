package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusSuccess   TransactionStatus = "success"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
	StatusRetrying  TransactionStatus = "retrying"
)

type PaymentMethod string

const (
	MethodCard    PaymentMethod = "card"
	MethodMpesa   PaymentMethod = "mpesa"
	MethodUnknown PaymentMethod = "unknown"
)

// Payment intents carried in transaction metadata under MetaPaymentType.
const (
	PaymentTypeBookingFee = "booking_fee"
	PaymentTypeEscrow     = "escrow"
)

// Metadata keys the reconciliation engine depends on. payment_type must
// survive every copy of the metadata bag.
const (
	MetaPaymentType       = "payment_type"
	MetaBookingID         = "booking_id"
	MetaOriginalReference = "original_reference"
)

// Transaction is one ledger entry per payment attempt, keyed by its
// reference. Entries are never deleted; the ledger is the audit trail.
type Transaction struct {
	ID              primitive.ObjectID     `bson:"_id,omitempty" json:"-"`
	Reference       string                 `bson:"reference" json:"reference"`
	BookingID       string                 `bson:"booking_id" json:"booking_id"`
	Email           string                 `bson:"email" json:"email"`
	Phone           string                 `bson:"phone,omitempty" json:"phone,omitempty"`
	Amount          float64                `bson:"amount" json:"amount"`
	Status          TransactionStatus      `bson:"status" json:"status"`
	PaymentMethod   PaymentMethod          `bson:"payment_method" json:"payment_method"`
	GatewayResponse string                 `bson:"gateway_response,omitempty" json:"gateway_response,omitempty"`
	FailureReason   string                 `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	Metadata        map[string]interface{} `bson:"metadata" json:"metadata"`
	CreatedAt       time.Time              `bson:"created_at" json:"created_at"`
	VerifiedAt      *time.Time             `bson:"verified_at,omitempty" json:"verified_at,omitempty"`
	CompletedAt     *time.Time             `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	FailedAt        *time.Time             `bson:"failed_at,omitempty" json:"failed_at,omitempty"`
	CancelledAt     *time.Time             `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
}

// PaymentType reads the payment intent out of the metadata bag. The
// stored bag is authoritative over anything a webhook echoes back.
func (t *Transaction) PaymentType() string {
	if t.Metadata == nil {
		return ""
	}
	if v, ok := t.Metadata[MetaPaymentType].(string); ok {
		return v
	}
	return ""
}

// validTransitions is the monotonic status table. success and cancelled
// are terminal; failed stays retryable; a late success may still land on
// a failed or retrying entry because the gateway, not the ledger, is the
// source of truth for whether money moved.
var validTransitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:   {StatusSuccess, StatusFailed, StatusCancelled},
	StatusFailed:    {StatusSuccess, StatusRetrying, StatusCancelled},
	StatusRetrying:  {StatusSuccess, StatusCancelled},
	StatusSuccess:   {},
	StatusCancelled: {},
}

// CanTransition reports whether moving from one status to another is
// legal under the monotonic table.
func CanTransition(from, to TransactionStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionSources lists every status from which `to` is reachable.
// Store-level compare-and-set filters use this as the allowed current set.
func TransitionSources(to TransactionStatus) []TransactionStatus {
	var from []TransactionStatus
	for _, s := range []TransactionStatus{StatusPending, StatusSuccess, StatusFailed, StatusCancelled, StatusRetrying} {
		if CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

// Terminal reports whether no further transition may leave this status.
func (s TransactionStatus) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// MethodFromChannel maps the gateway's channel discriminator onto the
// ledger's payment method.
func MethodFromChannel(channel string) PaymentMethod {
	switch channel {
	case "card":
		return MethodCard
	case "mobile_money":
		return MethodMpesa
	default:
		return MethodUnknown
	}
}
