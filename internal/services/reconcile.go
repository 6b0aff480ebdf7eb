package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/onpointsoft-solutions/shulegram/internal/apperr"
	"github.com/onpointsoft-solutions/shulegram/internal/models"
	"github.com/onpointsoft-solutions/shulegram/internal/paystack"
)

// outcome is a settled gateway result, normalized from whichever leg
// observed it: webhook delivery, verify poll, or the immediate charge
// response. Zero fields mean the leg did not report that detail.
type outcome struct {
	reference       string
	amountMinor     int64
	channel         string
	gatewayResponse string
	paidAt          time.Time
}

// HandleWebhookEvent reconciles one verified gateway callback. The error
// return is reserved for store failures, which the HTTP layer turns into a
// 5xx so the gateway redelivers; everything else, including references we
// never issued, is acknowledged after a log note so the gateway stops
// retrying.
func (s *PaymentService) HandleWebhookEvent(ctx context.Context, event paystack.WebhookEvent) error {
	data := event.Data

	switch event.Event {
	case paystack.EventChargeSuccess, paystack.EventTransferSuccess:
		err := s.applySuccess(ctx, outcome{
			reference:       data.Reference,
			amountMinor:     data.AmountMinor,
			channel:         data.Channel,
			gatewayResponse: data.GatewayResponse,
			paidAt:          gatewayTime(data.PaidAt),
		})
		if apperr.IsKind(err, apperr.KindNotFound) {
			log.Printf("Webhook %s for unknown reference %s acknowledged", event.Event, data.Reference)
			return nil
		}
		return err

	case paystack.EventChargeFailed, paystack.EventTransferFailed:
		err := s.applyFailure(ctx, data.Reference, data.GatewayResponse, data.GatewayResponse)
		if apperr.IsKind(err, apperr.KindNotFound) {
			log.Printf("Webhook %s for unknown reference %s acknowledged", event.Event, data.Reference)
			return nil
		}
		return err

	default:
		if paystack.IsSubscriptionEvent(event.Event) {
			log.Printf("Subscription webhook %s acknowledged without action", event.Event)
			return nil
		}
		log.Printf("Unhandled webhook event %s acknowledged", event.Event)
		return nil
	}
}

// applySuccess settles a payment. The status transition is a guarded
// compare-and-set, so of N concurrent deliveries exactly one wins and
// performs the booking mutation; the rest are no-ops.
func (s *PaymentService) applySuccess(ctx context.Context, o outcome) error {
	unlock := s.locks.lock(o.reference)
	defer unlock()

	txn, err := s.transactions.GetByReference(ctx, o.reference)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	paidAt := o.paidAt
	if paidAt.IsZero() {
		paidAt = now
	}
	fields := bson.M{
		"verified_at":  now,
		"completed_at": paidAt,
	}
	if o.amountMinor > 0 {
		fields["amount"] = paystack.FromMinorUnits(o.amountMinor)
	}
	if o.channel != "" {
		fields["payment_method"] = models.MethodFromChannel(o.channel)
	}
	if o.gatewayResponse != "" {
		fields["gateway_response"] = o.gatewayResponse
	}

	won, err := s.transactions.TransitionStatus(ctx, o.reference, models.StatusSuccess, fields)
	if err != nil {
		return err
	}
	if !won {
		log.Printf("Transaction %s already settled; duplicate success ignored", o.reference)
		return nil
	}

	switch txn.PaymentType() {
	case models.PaymentTypeBookingFee:
		return s.settleBookingFee(ctx, txn, paidAt)
	case models.PaymentTypeEscrow:
		amount := txn.Amount
		if o.amountMinor > 0 {
			amount = paystack.FromMinorUnits(o.amountMinor)
		}
		return s.settleEscrow(ctx, txn, amount, paidAt)
	default:
		log.Printf("Transaction %s carries unrecognized payment type %q; ledger settled, booking untouched", o.reference, txn.PaymentType())
		return nil
	}
}

// settleBookingFee marks the fee as paid and unlocks negotiation. A
// booking whose fee is already recorded is left alone: the ledger keeps
// the extra settlement as audit trail, the booking does not move twice.
func (s *PaymentService) settleBookingFee(ctx context.Context, txn *models.Transaction, at time.Time) error {
	booking, err := s.bookings.Get(ctx, txn.BookingID)
	if apperr.IsKind(err, apperr.KindNotFound) {
		log.Printf("Booking %s missing while settling fee %s; ledger settled, nothing to unlock", txn.BookingID, txn.Reference)
		return nil
	}
	if err != nil {
		return err
	}
	if booking.BookingFeePaid {
		log.Printf("Booking %s fee already recorded under %s; settlement of %s is ledger-only", booking.ID, booking.BookingFeeReference, txn.Reference)
		return nil
	}

	fields := bson.M{
		"status":                models.BookingNegotiating,
		"booking_fee_paid":      true,
		"booking_fee_reference": txn.Reference,
		"booking_fee_paid_at":   at,
		"negotiation_unlocked":  true,
	}
	if booking.Negotiation == nil {
		fields["negotiation"] = &models.Negotiation{
			Status:     "open",
			UnlockedBy: "student",
			Messages:   []models.NegotiationMessage{},
			Offers:     []models.NegotiationOffer{},
		}
	}
	if err := s.bookings.UpdateFields(ctx, booking.ID, fields); err != nil {
		return err
	}

	s.appendActivity(booking.ID, models.ActivityEntry{
		Action:         models.ActivityFeePaid,
		PreviousStatus: booking.Status,
		NewStatus:      models.BookingNegotiating,
		Reference:      txn.Reference,
		CreatedAt:      at,
	})
	log.Printf("Booking fee %s settled for booking %s; negotiation unlocked", txn.Reference, booking.ID)
	return nil
}

// settleEscrow records the escrow hold. The booking status is not touched;
// confirming a booking is the negotiation flow's job.
func (s *PaymentService) settleEscrow(ctx context.Context, txn *models.Transaction, amount float64, at time.Time) error {
	booking, err := s.bookings.Get(ctx, txn.BookingID)
	if apperr.IsKind(err, apperr.KindNotFound) {
		log.Printf("Booking %s missing while settling escrow %s; ledger settled, nothing to hold", txn.BookingID, txn.Reference)
		return nil
	}
	if err != nil {
		return err
	}
	if booking.EscrowStatus == models.EscrowHeld || booking.EscrowStatus == models.EscrowReleased {
		log.Printf("Booking %s escrow already %s under %s; settlement of %s is ledger-only", booking.ID, booking.EscrowStatus, booking.EscrowReference, txn.Reference)
		return nil
	}

	fields := bson.M{
		"escrow_paid":      true,
		"escrow_amount":    amount,
		"escrow_status":    models.EscrowHeld,
		"escrow_reference": txn.Reference,
		"escrow_paid_at":   at,
	}
	if err := s.bookings.UpdateFields(ctx, booking.ID, fields); err != nil {
		return err
	}

	s.appendActivity(booking.ID, models.ActivityEntry{
		Action:    models.ActivityEscrowHeld,
		Reference: txn.Reference,
		Note:      fmt.Sprintf("escrow of %.2f held", amount),
		CreatedAt: at,
	})
	log.Printf("Escrow %s held for booking %s", txn.Reference, booking.ID)
	return nil
}

// applyFailure marks a pending payment failed. Late failures never demote
// a settled, cancelled or retrying record; the transition table only
// admits pending as a source.
func (s *PaymentService) applyFailure(ctx context.Context, reference, reason, gatewayResponse string) error {
	unlock := s.locks.lock(reference)
	defer unlock()

	if reason == "" {
		reason = "Unknown error"
	}
	fields := bson.M{
		"failed_at":      time.Now().UTC(),
		"failure_reason": reason,
	}
	if gatewayResponse != "" {
		fields["gateway_response"] = gatewayResponse
	}

	won, err := s.transactions.TransitionStatus(ctx, reference, models.StatusFailed, fields)
	if err != nil {
		return err
	}
	if !won {
		log.Printf("Stale failure for transaction %s ignored", reference)
	}
	return nil
}

// applyChargeResult folds the gateway's immediate charge status into the
// fresh ledger record and reports the record's status. Most charges come
// back pending and settle later by webhook or poll.
func (s *PaymentService) applyChargeResult(ctx context.Context, txn *models.Transaction, resp *paystack.ChargeResponse) (models.TransactionStatus, error) {
	switch resp.Status {
	case paystack.ChargeSuccess:
		err := s.applySuccess(ctx, outcome{
			reference:       txn.Reference,
			amountMinor:     paystack.ToMinorUnits(txn.Amount),
			channel:         "mobile_money",
			gatewayResponse: chargeText(resp),
			paidAt:          time.Now().UTC(),
		})
		if err != nil {
			return "", err
		}
		return models.StatusSuccess, nil
	case paystack.ChargeFailed:
		if err := s.applyFailure(ctx, txn.Reference, chargeText(resp), chargeText(resp)); err != nil {
			return "", err
		}
		return models.StatusFailed, nil
	default:
		return models.StatusPending, nil
	}
}

// appendActivity dispatches an audit-log append on the background runner.
// The entry is not needed for the caller's response; a failure is logged
// with enough context to replay it by hand.
func (s *PaymentService) appendActivity(bookingID string, entry models.ActivityEntry) {
	name := fmt.Sprintf("activity %s booking %s", entry.Action, bookingID)
	s.tasks.Go(name, func(ctx context.Context) error {
		return s.bookings.AppendActivity(ctx, bookingID, entry)
	})
}

func gatewayTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
