package services

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// Ledger reference prefixes. The prefix names the rail and intent that
// minted the attempt. Retried attempts always carry retry_, whatever rail
// they re-run on.
const (
	refBookingFee = "booking_"
	refInitialize = "init_"
	refCharge     = "chg_"
	refMpesa      = "mpesa_"
	refRetry      = "retry_"
)

// newReference mints a prefixed globally unique reference: the prefix plus
// the 32 lowercase hex characters of a random UUID.
func newReference(prefix string) string {
	id := uuid.New()
	return prefix + hex.EncodeToString(id[:])
}
