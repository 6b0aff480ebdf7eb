// Package validate holds the pure input checks performed at the HTTP
// boundary before anything reaches the reconciliation engine.
package validate

import (
	"regexp"
	"strings"

	"github.com/onpointsoft-solutions/shulegram/internal/apperr"
)

// canonicalPhone is the dialing format every accepted input collapses to:
// country code 254 followed by nine digits, the first of which must be a
// recognized Kenyan mobile network range (7xx and 1xx).
var canonicalPhone = regexp.MustCompile(`^254[17]\d{8}$`)

// NormalizePhone rewrites a free-form phone string to the canonical
// 254XXXXXXXXX form. Accepted inputs are the local 0XXXXXXXXX form and the
// international form with or without a leading plus. Idempotent: a
// canonical input normalizes to itself.
func NormalizePhone(input string) (string, error) {
	var digits strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	s := digits.String()
	if s == "" {
		return "", apperr.New(apperr.KindInvalidPhone, "phone number is required")
	}

	if strings.HasPrefix(s, "0") && len(s) == 10 {
		s = "254" + s[1:]
	}

	if !canonicalPhone.MatchString(s) {
		return "", apperr.New(apperr.KindInvalidPhone, "phone number must be a valid Kenyan mobile number")
	}
	return s, nil
}
