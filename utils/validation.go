package utils

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/vitwit/jpycpay/types"
)

var (
	amountPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	hexPattern    = regexp.MustCompile(`^[0-9a-fA-F]+$`)

	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
)

// ParseAmount validates a whole-unit amount string. Only plain digit strings
// with at most one decimal point are accepted, and the value must be positive.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, invalidAmount(raw, "amount cannot be empty")
	}

	if !amountPattern.MatchString(s) {
		return decimal.Zero, invalidAmount(raw, "invalid amount format")
	}

	dec, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &types.Error{
			Kind:    types.ErrInvalidAmount,
			Message: "invalid amount format",
			Raw:     raw,
			Err:     err,
		}
	}

	if !dec.IsPositive() {
		return decimal.Zero, invalidAmount(raw, "amount must be greater than zero")
	}

	return dec, nil
}

// ScaleAmount converts a whole-unit amount into the token's smallest unit.
// The conversion is exact; amounts finer than the token precision are rejected.
func ScaleAmount(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, invalidAmount(amount.String(), "amount cannot be negative")
	}

	scaled := amount.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, invalidAmount(amount.String(), "amount has more than %d decimal places", decimals)
	}

	return scaled.BigInt(), nil
}

// UnitsToDecimal converts a smallest-unit integer into whole token units.
func UnitsToDecimal(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// WholeUnits returns the integer part of raw / 10^decimals.
func WholeUnits(raw *big.Int, decimals uint8) *big.Int {
	if raw == nil {
		return new(big.Int)
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Int).Quo(raw, divisor)
}

// FormatBalance renders a raw balance for display: whole units with grouped
// digits, fractional remainder dropped.
func FormatBalance(raw *big.Int, decimals uint8) string {
	return humanize.BigComma(WholeUnits(raw, decimals))
}

// FormatExact renders a raw balance at full precision without trailing zeros.
func FormatExact(raw *big.Int, decimals uint8) string {
	return UnitsToDecimal(raw, decimals).String()
}

// FormatCompact renders an amount with K/M suffixes.
func FormatCompact(amount decimal.Decimal) string {
	abs := amount.Abs()
	switch {
	case abs.GreaterThanOrEqual(million):
		return amount.Div(million).StringFixed(2) + "M"
	case abs.GreaterThanOrEqual(thousand):
		return amount.Div(thousand).StringFixed(2) + "K"
	case abs.LessThan(decimal.NewFromInt(1)):
		return amount.StringFixed(4)
	default:
		return amount.StringFixed(2)
	}
}

// CompareAmounts compares two amount strings numerically. Unparseable
// values sort as zero.
func CompareAmounts(a, b string) int {
	da, err := decimal.NewFromString(strings.TrimSpace(a))
	if err != nil {
		da = decimal.Zero
	}
	db, err := decimal.NewFromString(strings.TrimSpace(b))
	if err != nil {
		db = decimal.Zero
	}
	return da.Cmp(db)
}

// ValidateTransactionHash checks a 0x-prefixed 32-byte hex hash.
func ValidateTransactionHash(hash string) error {
	if hash == "" {
		return types.NewError(types.ErrInvalidState, "transaction hash cannot be empty")
	}
	if !strings.HasPrefix(hash, "0x") || len(hash) != 66 {
		return types.NewError(types.ErrInvalidState, "transaction hash must be 0x followed by 64 hex digits")
	}
	if !isHexString(hash[2:]) {
		return types.NewError(types.ErrInvalidState, "transaction hash must be valid hex")
	}
	return nil
}

func invalidAmount(raw, format string, args ...any) *types.Error {
	e := types.NewError(types.ErrInvalidAmount, format, args...)
	e.Raw = raw
	return e
}

// Helper function to check if a string is valid hexadecimal
func isHexString(s string) bool {
	return hexPattern.MatchString(s)
}
