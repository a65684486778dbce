package utils

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/jpycpay/types"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"integer", "100", "100", false},
		{"fractional", "1500.50", "1500.5", false},
		{"padded", "  42 ", "42", false},
		{"small fraction", "0.01", "0.01", false},
		{"zero", "0", "", true},
		{"zero fraction", "0.00", "", true},
		{"negative", "-1", "", true},
		{"empty", "", "", true},
		{"whitespace", "   ", "", true},
		{"multiple points", "1.2.3", "", true},
		{"letters", "abc", "", true},
		{"exponent", "1e5", "", true},
		{"trailing point", "5.", "", true},
		{"leading point", ".5", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, types.IsKind(err, types.ErrInvalidAmount))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestScaleAmount(t *testing.T) {
	amount, err := ParseAmount("1500.50")
	require.NoError(t, err)

	scaled, err := ScaleAmount(amount, 18)
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("1500500000000000000000", 10)
	assert.Equal(t, 0, want.Cmp(scaled))

	scaled, err = ScaleAmount(decimal.RequireFromString("100"), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(100), scaled.Int64())

	_, err = ScaleAmount(decimal.RequireFromString("1.234"), 2)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrInvalidAmount))
}

func TestScaleAmountLargeDecimals(t *testing.T) {
	amount := decimal.RequireFromString("123456789.123456789123456789")
	scaled, err := ScaleAmount(amount, 18)
	require.Error(t, err, "27 fractional digits cannot fit 18 decimals")
	assert.Nil(t, scaled)

	amount = decimal.RequireFromString("123456789.123456789123456789")
	scaled, err = ScaleAmount(amount, 27)
	require.NoError(t, err)
	assert.Equal(t, "123456789123456789123456789123456789", scaled.String())
}

func TestFormatBalance(t *testing.T) {
	raw, _ := new(big.Int).SetString("1234567500000000000000000", 10)

	assert.Equal(t, "1,234,567", FormatBalance(raw, 18))
	assert.Equal(t, "1234567.5", FormatExact(raw, 18))
	assert.Equal(t, "0", FormatBalance(big.NewInt(999), 3))
	assert.Equal(t, "0", FormatBalance(nil, 18))
}

func TestFormatCompact(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2500000", "2.50M"},
		{"1500", "1.50K"},
		{"999", "999.00"},
		{"0.5", "0.5000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCompact(decimal.RequireFromString(tt.in)), tt.in)
	}
}

func TestCompareAmounts(t *testing.T) {
	assert.Equal(t, 1, CompareAmounts("100", "99.99"))
	assert.Equal(t, -1, CompareAmounts("2", "10"))
	assert.Equal(t, 0, CompareAmounts("1.0", "1"))
	assert.Equal(t, -1, CompareAmounts("junk", "1"))
}

func TestValidateTransactionHash(t *testing.T) {
	valid := "0x" + "ab12" + "00000000000000000000000000000000000000000000000000000000000f"
	require.Len(t, valid, 66)
	assert.NoError(t, ValidateTransactionHash(valid))
	assert.Error(t, ValidateTransactionHash(""))
	assert.Error(t, ValidateTransactionHash("0x1234"))
	assert.Error(t, ValidateTransactionHash("0x"+"zz"+valid[4:]))
}
