package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onpointsoft-solutions/shulegram/internal/apperr"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"local form", "0712345678", "254712345678", false},
		{"local form new range", "0110345678", "254110345678", false},
		{"international no plus", "254712345678", "254712345678", false},
		{"international with plus", "+254712345678", "254712345678", false},
		{"spaces and dashes", " 0712-345 678 ", "254712345678", false},
		{"parentheses", "(+254) 712 345678", "254712345678", false},
		{"empty", "", "", true},
		{"letters only", "call me", "", true},
		{"too short", "07123", "", true},
		{"too long", "25471234567890", "", true},
		{"bad subscriber range", "254912345678", "", true},
		{"local bad range", "0912345678", "", true},
		{"landline range", "254201234567", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperr.KindInvalidPhone, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Normalization must be idempotent: feeding a canonical number back in
// yields the same string.
func TestNormalizePhoneIdempotent(t *testing.T) {
	inputs := []string{"0712345678", "+254712345678", "254112345678", "0110345678"}
	for _, in := range inputs {
		once, err := NormalizePhone(in)
		require.NoError(t, err)
		twice, err := NormalizePhone(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

// All spellings of the same subscriber collapse to one canonical string.
func TestNormalizePhoneCanonicalEquivalence(t *testing.T) {
	forms := []string{"0712345678", "254712345678", "+254712345678", "0712 345 678"}
	want := "254712345678"
	for _, in := range forms {
		got, err := NormalizePhone(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", in)
	}
}
