package services

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/onpointsoft-solutions/shulegram/internal/apperr"
	"github.com/onpointsoft-solutions/shulegram/internal/models"
	"github.com/onpointsoft-solutions/shulegram/internal/paystack"
)

type RetryPaymentResult struct {
	Reference         string                   `json:"reference"`
	OriginalReference string                   `json:"original_reference"`
	Status            models.TransactionStatus `json:"status"`
	AuthorizationURL  string                   `json:"authorization_url,omitempty"`
	AccessCode        string                   `json:"access_code,omitempty"`
	DisplayText       string                   `json:"display_text,omitempty"`
}

// RetryPayment re-runs a failed payment on its original rail: a mobile
// money charge when the failed attempt was one (the stored phone is
// reused), a hosted checkout otherwise. The retry is a fresh ledger entry
// linked back through metadata; the original moves failed -> retrying.
func (s *PaymentService) RetryPayment(ctx context.Context, reference string) (*RetryPaymentResult, error) {
	unlock := s.locks.lock(reference)
	defer unlock()

	original, err := s.transactions.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if original.Status != models.StatusFailed {
		return nil, apperr.Newf(apperr.KindConflict, "transaction %s is %s; only failed payments can be retried", reference, original.Status)
	}

	retryRef := newReference(refRetry)
	metadata := retryMetadata(original)
	result := &RetryPaymentResult{
		Reference:         retryRef,
		OriginalReference: reference,
		Status:            models.StatusPending,
	}

	txn := &models.Transaction{
		Reference:     retryRef,
		BookingID:     original.BookingID,
		Email:         original.Email,
		Amount:        original.Amount,
		Status:        models.StatusPending,
		PaymentMethod: models.MethodUnknown,
		Metadata:      metadata,
		CreatedAt:     time.Now().UTC(),
	}

	var chargeResp *paystack.ChargeResponse
	if original.PaymentMethod == models.MethodMpesa && original.Phone != "" {
		chargeResp, err = s.gateway.ChargeMobileMoney(ctx, paystack.ChargeRequest{
			Email:       original.Email,
			AmountMinor: paystack.ToMinorUnits(original.Amount),
			Reference:   retryRef,
			Phone:       original.Phone,
			Provider:    "mpesa",
			Metadata:    metadata,
		})
		if err != nil {
			return nil, err
		}
		txn.Phone = original.Phone
		txn.PaymentMethod = models.MethodMpesa
		txn.GatewayResponse = chargeText(chargeResp)
		result.DisplayText = chargeResp.DisplayText
	} else {
		initResp, err := s.gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
			Email:       original.Email,
			AmountMinor: paystack.ToMinorUnits(original.Amount),
			Reference:   retryRef,
			Channels:    checkoutChannels,
			CallbackURL: s.callbackURL,
			Metadata:    metadata,
		})
		if err != nil {
			return nil, err
		}
		result.AuthorizationURL = initResp.AuthorizationURL
		result.AccessCode = initResp.AccessCode
	}

	if err := s.transactions.Create(ctx, txn); err != nil {
		log.Printf("Ledger insert failed for retry %s of %s: %v", retryRef, reference, err)
		return nil, err
	}

	won, err := s.transactions.TransitionStatus(ctx, reference, models.StatusRetrying, nil)
	if err != nil {
		return nil, err
	}
	if !won {
		log.Printf("Transaction %s moved while retrying; retry %s stands on its own", reference, retryRef)
	}
	log.Printf("Retry %s issued for failed transaction %s", retryRef, reference)

	if chargeResp != nil {
		status, err := s.applyChargeResult(ctx, txn, chargeResp)
		if err != nil {
			return nil, err
		}
		result.Status = status
	}
	return result, nil
}

// CancelPayment abandons a payment attempt that has not settled. The
// cancellation reaches the booking too, unless the booking has already
// completed; completed bookings are immutable here.
func (s *PaymentService) CancelPayment(ctx context.Context, reference string) (*models.Transaction, error) {
	unlock := s.locks.lock(reference)
	defer unlock()

	txn, err := s.transactions.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if txn.Status == models.StatusSuccess || txn.Status == models.StatusCancelled {
		return nil, apperr.Newf(apperr.KindConflict, "transaction %s is %s and cannot be cancelled", reference, txn.Status)
	}

	now := time.Now().UTC()
	won, err := s.transactions.TransitionStatus(ctx, reference, models.StatusCancelled, bson.M{"cancelled_at": now})
	if err != nil {
		return nil, err
	}
	if !won {
		fresh, err := s.transactions.GetByReference(ctx, reference)
		if err != nil {
			return nil, err
		}
		return nil, apperr.Newf(apperr.KindConflict, "transaction %s is %s and cannot be cancelled", reference, fresh.Status)
	}

	booking, err := s.bookings.Get(ctx, txn.BookingID)
	switch {
	case apperr.IsKind(err, apperr.KindNotFound):
		log.Printf("Booking %s missing while cancelling %s; ledger cancelled", txn.BookingID, reference)
	case err != nil:
		return nil, err
	case booking.Status == models.BookingCompleted:
		log.Printf("Booking %s already completed; cancellation of %s not propagated", booking.ID, reference)
	default:
		if err := s.bookings.UpdateFields(ctx, booking.ID, bson.M{"status": models.BookingCancelled}); err != nil {
			return nil, err
		}
		s.appendActivity(booking.ID, models.ActivityEntry{
			Action:         models.ActivityCancelled,
			PreviousStatus: booking.Status,
			NewStatus:      models.BookingCancelled,
			Reference:      reference,
			CreatedAt:      now,
		})
	}

	log.Printf("Transaction %s cancelled", reference)
	return s.transactions.GetByReference(ctx, reference)
}

// ReleaseEscrow closes out a booking's escrow once both parties have
// confirmed completion. No funds move here; disbursement is the payout
// system's job.
func (s *PaymentService) ReleaseEscrow(ctx context.Context, bookingID string) (*models.Booking, error) {
	unlock := s.locks.lock("booking:" + bookingID)
	defer unlock()

	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.CompletionConfirmed() {
		return nil, apperr.Newf(apperr.KindPrecondition, "booking %s is not confirmed complete by both parties", bookingID)
	}
	switch booking.EscrowStatus {
	case models.EscrowHeld:
	case models.EscrowReleased:
		return nil, apperr.Newf(apperr.KindPrecondition, "escrow for booking %s already released", bookingID)
	default:
		return nil, apperr.Newf(apperr.KindPrecondition, "no escrow held for booking %s", bookingID)
	}

	now := time.Now().UTC()
	fields := bson.M{
		"escrow_status":      models.EscrowReleased,
		"escrow_released_at": now,
		"status":             models.BookingCompleted,
	}
	if err := s.bookings.UpdateFields(ctx, bookingID, fields); err != nil {
		return nil, err
	}
	s.appendActivity(bookingID, models.ActivityEntry{
		Action:         models.ActivityEscrowReleased,
		PreviousStatus: booking.Status,
		NewStatus:      models.BookingCompleted,
		Reference:      booking.EscrowReference,
		CreatedAt:      now,
	})

	log.Printf("Escrow released for booking %s (reference %s)", bookingID, booking.EscrowReference)
	return s.bookings.Get(ctx, bookingID)
}

// retryMetadata copies the original attempt's metadata and links the new
// attempt back through original_reference. payment_type survives the copy.
func retryMetadata(original *models.Transaction) map[string]interface{} {
	metadata := make(map[string]interface{}, len(original.Metadata)+1)
	for k, v := range original.Metadata {
		metadata[k] = v
	}
	metadata[models.MetaOriginalReference] = original.Reference
	return metadata
}
