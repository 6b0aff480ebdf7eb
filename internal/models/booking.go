package models

import "time"

type BookingStatus string

const (
	BookingPending     BookingStatus = "pending"
	BookingNegotiating BookingStatus = "negotiating"
	BookingConfirmed   BookingStatus = "confirmed"
	BookingCancelled   BookingStatus = "cancelled"
	BookingCompleted   BookingStatus = "completed"
)

type EscrowStatus string

const (
	EscrowNone     EscrowStatus = "none"
	EscrowHeld     EscrowStatus = "held"
	EscrowReleased EscrowStatus = "released"
)

// Booking is the business record owned by the booking subsystem. This
// service never creates or deletes one; it only merges the payment-owned
// subset of fields, so sibling fields written elsewhere survive.
type Booking struct {
	ID                  string          `bson:"_id" json:"id"`
	TeacherID           string          `bson:"teacher_id,omitempty" json:"teacher_id,omitempty"`
	StudentID           string          `bson:"student_id,omitempty" json:"student_id,omitempty"`
	Status              BookingStatus   `bson:"status" json:"status"`
	BookingFeePaid      bool            `bson:"booking_fee_paid" json:"booking_fee_paid"`
	BookingFeeReference string          `bson:"booking_fee_reference,omitempty" json:"booking_fee_reference,omitempty"`
	BookingFeePaidAt    *time.Time      `bson:"booking_fee_paid_at,omitempty" json:"booking_fee_paid_at,omitempty"`
	EscrowPaid          bool            `bson:"escrow_paid" json:"escrow_paid"`
	EscrowAmount        float64         `bson:"escrow_amount,omitempty" json:"escrow_amount,omitempty"`
	EscrowStatus        EscrowStatus    `bson:"escrow_status,omitempty" json:"escrow_status,omitempty"`
	EscrowReference     string          `bson:"escrow_reference,omitempty" json:"escrow_reference,omitempty"`
	EscrowPaidAt        *time.Time      `bson:"escrow_paid_at,omitempty" json:"escrow_paid_at,omitempty"`
	EscrowReleasedAt    *time.Time      `bson:"escrow_released_at,omitempty" json:"escrow_released_at,omitempty"`
	NegotiationUnlocked bool            `bson:"negotiation_unlocked" json:"negotiation_unlocked"`
	Negotiation         *Negotiation    `bson:"negotiation,omitempty" json:"negotiation,omitempty"`
	TeacherCompletedAt  *time.Time      `bson:"teacher_completed_at,omitempty" json:"teacher_completed_at,omitempty"`
	StudentCompletedAt  *time.Time      `bson:"student_completed_at,omitempty" json:"student_completed_at,omitempty"`
	ActivityLog         []ActivityEntry `bson:"activity_log,omitempty" json:"activity_log,omitempty"`
	CreatedAt           time.Time       `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt           time.Time       `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Negotiation opens once the booking fee clears. Messages and offers are
// appended by the client-facing booking subsystem, not here.
type Negotiation struct {
	Status     string               `bson:"status" json:"status"`
	UnlockedBy string               `bson:"unlocked_by,omitempty" json:"unlocked_by,omitempty"`
	Messages   []NegotiationMessage `bson:"messages" json:"messages"`
	Offers     []NegotiationOffer   `bson:"offers" json:"offers"`
}

type NegotiationMessage struct {
	Sender    string    `bson:"sender" json:"sender"`
	Body      string    `bson:"body" json:"body"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type NegotiationOffer struct {
	Sender    string    `bson:"sender" json:"sender"`
	Amount    float64   `bson:"amount" json:"amount"`
	Accepted  bool      `bson:"accepted" json:"accepted"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// ActivityEntry is one element of the booking's append-only audit log.
type ActivityEntry struct {
	Action         string        `bson:"action" json:"action"`
	PreviousStatus BookingStatus `bson:"previous_status,omitempty" json:"previous_status,omitempty"`
	NewStatus      BookingStatus `bson:"new_status,omitempty" json:"new_status,omitempty"`
	Reference      string        `bson:"reference,omitempty" json:"reference,omitempty"`
	Note           string        `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
}

// Activity log action names.
const (
	ActivityFeePaid        = "booking_fee_paid"
	ActivityEscrowHeld     = "escrow_held"
	ActivityEscrowReleased = "escrow_released"
	ActivityCancelled      = "payment_cancelled"
)

// CompletionConfirmed reports whether both parties have independently
// recorded completion, the gate for escrow release.
func (b *Booking) CompletionConfirmed() bool {
	return b.TeacherCompletedAt != nil && b.StudentCompletedAt != nil
}
