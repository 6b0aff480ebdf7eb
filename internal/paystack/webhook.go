package paystack

import (
	"encoding/json"
	"strings"
)

// Webhook event names the reconciliation engine recognizes.
const (
	EventChargeSuccess   = "charge.success"
	EventChargeFailed    = "charge.failed"
	EventTransferSuccess = "transfer.success"
	EventTransferFailed  = "transfer.failed"
)

// IsSubscriptionEvent matches the subscription.* family, which is
// acknowledged and logged without any state change.
func IsSubscriptionEvent(event string) bool {
	return strings.HasPrefix(event, "subscription.")
}

// WebhookEvent is the payload of a gateway callback. The signature check
// runs over the raw bytes before this is ever decoded.
type WebhookEvent struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

type WebhookData struct {
	ID              int64    `json:"id"`
	Reference       string   `json:"reference"`
	Status          string   `json:"status"`
	AmountMinor     int64    `json:"amount"`
	GatewayResponse string   `json:"gateway_response"`
	PaidAt          string   `json:"paid_at"`
	Channel         string   `json:"channel"`
	Metadata        Metadata `json:"metadata"`
}

// Metadata tolerates the gateway's two encodings of the same bag: a JSON
// object, or that object serialized again into a JSON string. Anything
// else (null, numeric placeholders) decodes to nil rather than failing
// the whole callback.
type Metadata map[string]interface{}

func (m *Metadata) UnmarshalJSON(b []byte) error {
	*m = nil
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	var direct map[string]interface{}
	if err := json.Unmarshal(b, &direct); err == nil {
		*m = direct
		return nil
	}

	var quoted string
	if err := json.Unmarshal(b, &quoted); err == nil {
		var nested map[string]interface{}
		if err := json.Unmarshal([]byte(quoted), &nested); err == nil {
			*m = nested
		}
		return nil
	}
	return nil
}
