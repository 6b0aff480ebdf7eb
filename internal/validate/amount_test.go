package validate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/onpointsoft-solutions/shulegram/internal/apperr"
)

func TestCheckAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  float64
		wantErr bool
	}{
		{"minimum", 1, false},
		{"typical fee", 500, false},
		{"two decimals", 499.99, false},
		{"maximum", 1_000_000, false},
		{"zero", 0, true},
		{"negative", -10, true},
		{"below minimum", 0.5, true},
		{"above maximum", 1_000_000.01, true},
		{"three decimals", 10.125, true},
		{"nan", math.NaN(), true},
		{"positive infinity", math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAmount(tt.amount)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}
