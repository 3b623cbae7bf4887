package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMicroToUSDC(t *testing.T) {
	tests := []struct {
		micro uint64
		want  string
	}{
		{0, "0.000000"},
		{1, "0.000001"},
		{1500000, "1.500000"},
		{123456789, "123.456789"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MicroToUSDC(tt.micro))
	}
}

func TestLamportsToSOL(t *testing.T) {
	assert.Equal(t, "0.024981836", LamportsToSOL(24981836))
	assert.Equal(t, "1.000000000", LamportsToSOL(1_000_000_000))
}

func TestUSDCToMicro(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    uint64
		wantErr bool
	}{
		{"whole", "12", 12_000_000, false},
		{"fraction", "0.5", 500_000, false},
		{"full precision", "1.000001", 1_000_001, false},
		{"leading dot", ".25", 250_000, false},
		{"too many decimals", "1.0000001", 0, true},
		{"negative", "-1", 0, true},
		{"letters", "1e6", 0, true},
		{"empty", "", 0, true},
		{"two dots", "1.2.3", 0, true},
		{"overflow", "18446744073709551615", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := USDCToMicro(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUSDCRoundTrip(t *testing.T) {
	for _, micro := range []uint64{0, 1, 999_999, 1_000_000, 987_654_321_012} {
		got, err := USDCToMicro(MicroToUSDC(micro))
		require.NoError(t, err)
		assert.Equal(t, micro, got)
	}
}

func TestValidatePin(t *testing.T) {
	assert.NoError(t, ValidatePin([]byte("0000")))
	assert.NoError(t, ValidatePin([]byte("1234")))

	for _, bad := range []string{"", "123", "12345", "12a4", " 123", "١٢٣٤"} {
		assert.ErrorIs(t, ValidatePin([]byte(bad)), ErrInvalidPin, "pin %q", bad)
	}
}

func TestSanitizeMemo(t *testing.T) {
	assert.Equal(t, "", SanitizeMemo(""))
	assert.Equal(t, "lunch", SanitizeMemo("  <b>lunch</b> "))
	assert.Equal(t, "its fine", SanitizeMemo(`it's "fine"`))

	long := strings.Repeat("a", MaxMemoLength+50)
	assert.Len(t, SanitizeMemo(long), MaxMemoLength)
}
