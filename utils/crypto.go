package utils

import (
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vitwit/jpycpay/types"
)

const addressHexLength = 40

// NormalizeAddress trims, prefixes and checksums an account address.
// Invalid input yields an InvalidAddress error, never a panic.
func NormalizeAddress(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", invalidAddress(raw, "address cannot be empty")
	}

	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}

	body := s[2:]
	if len(body) != addressHexLength {
		return "", invalidAddress(raw, "address must be %d hex characters", addressHexLength)
	}
	if !isHexString(body) {
		return "", invalidAddress(raw, "address must be valid hex")
	}

	return common.HexToAddress(body).Hex(), nil
}

// MustNormalizeAddress is NormalizeAddress for compile-time constants.
func MustNormalizeAddress(raw string) string {
	addr, err := NormalizeAddress(raw)
	if err != nil {
		panic(err)
	}
	return addr
}

// IsAddress reports whether raw normalizes to a valid address.
func IsAddress(raw string) bool {
	_, err := NormalizeAddress(raw)
	return err == nil
}

// SameAddress compares two addresses ignoring checksum case.
func SameAddress(a, b string) bool {
	na, errA := NormalizeAddress(a)
	nb, errB := NormalizeAddress(b)
	return errA == nil && errB == nil && na == nb
}

// ParseSignerKey loads a hex-encoded secp256k1 private key and returns
// it with its derived address.
func ParseSignerKey(hexKey string) (*ecdsa.PrivateKey, common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, common.Address{}, types.WrapError(types.ErrConfigError, err, "invalid signer key")
	}
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}

func invalidAddress(raw, format string, args ...any) *types.Error {
	e := types.NewError(types.ErrInvalidAddress, format, args...)
	e.Raw = raw
	return e
}
