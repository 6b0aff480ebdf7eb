package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// SignatureHeader carries the gateway's HMAC of the raw callback body.
const SignatureHeader = "x-paystack-signature"

// Signature computes the hex HMAC-SHA512 of body under the shared secret.
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the header value matches the HMAC of the
// raw body. Constant-time comparison; a missing or malformed header is a
// plain mismatch, never an error. Secret presence is enforced at startup
// by config validation, so an empty secret cannot be reached here.
func VerifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}
