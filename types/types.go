package types

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// PayloadKind identifies the QR grammar that produced a PaymentIntent.
type PayloadKind string

const (
	PayloadTaggedJSON   PayloadKind = "tagged_json"
	PayloadGenericJSON  PayloadKind = "generic_json"
	PayloadEthereumURI  PayloadKind = "ethereum_uri"
	PayloadJPYCScheme   PayloadKind = "jpyc_scheme"
	PayloadPaymentURI   PayloadKind = "payment_scheme"
	PayloadBareAddress  PayloadKind = "bare_address"
	PayloadUnrecognized PayloadKind = "unrecognized"
)

func (k PayloadKind) String() string {
	return string(k)
}

// PaymentIntent is the validated result of interpreting a scanned payload.
// Recipient is always EIP-55 checksummed.
type PaymentIntent struct {
	Kind PayloadKind `json:"kind"`

	// Amount in whole token units, as scanned.
	Amount    string          `json:"amount"`
	AmountDec decimal.Decimal `json:"-"`

	Recipient string `json:"recipient"`

	MerchantName string `json:"merchantName,omitempty"`
	MerchantID   string `json:"merchantId,omitempty"`
	Description  string `json:"description,omitempty"`

	// Informational fields carried by structured payloads.
	Network         string     `json:"network,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	ContractName    string     `json:"contractName,omitempty"`
	ContractAddress string     `json:"contractAddress,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
}

// Memo is the default history memo for a payment made from this intent.
func (p *PaymentIntent) Memo() string {
	if p.MerchantName != "" {
		return p.MerchantName
	}
	return p.Description
}

// Expired reports whether the payload carried an expiry that has passed.
func (p *PaymentIntent) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// TokenLabel tags a token deployment variant.
type TokenLabel string

const (
	TokenOfficial  TokenLabel = "official"
	TokenCommunity TokenLabel = "community"
)

func (l TokenLabel) String() string {
	return string(l)
}

// PaymentStatus is the lifecycle status of a persisted PaymentRecord.
type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusSuccess PaymentStatus = "success"
	StatusFailed  PaymentStatus = "failed"
)

// PaymentRecord is a single entry in the payment history.
type PaymentRecord struct {
	ID              string        `json:"id" validate:"required"`
	TransactionHash string        `json:"transactionHash" validate:"required"`
	To              string        `json:"to" validate:"required"`
	Amount          string        `json:"amount" validate:"required"`
	Timestamp       int64         `json:"timestamp" validate:"gt=0"`
	Memo            string        `json:"memo,omitempty"`
	Status          PaymentStatus `json:"status" validate:"required,oneof=pending success failed"`
	Network         string        `json:"network" validate:"required"`
	Token           string        `json:"token,omitempty"`
	MerchantName    string        `json:"merchantName,omitempty"`
}

// Time returns the record timestamp as a time.Time.
func (r PaymentRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// BalanceView is a point-in-time read of one token for one account.
// A nil field means the corresponding read failed; see the matching error.
type BalanceView struct {
	Token    TokenLabel `json:"token"`
	Account  string     `json:"account"`
	Balance  *big.Int   `json:"balance,omitempty"`
	Decimals *uint8     `json:"decimals,omitempty"`
	Symbol   string     `json:"symbol,omitempty"`
	ReadAt   time.Time  `json:"readAt"`

	BalanceErr  error `json:"-"`
	DecimalsErr error `json:"-"`
	SymbolErr   error `json:"-"`
}

// OK reports whether balance and decimals both resolved.
func (b *BalanceView) OK() bool {
	return b != nil && b.Balance != nil && b.Decimals != nil
}

// Err returns the first read error, if any.
func (b *BalanceView) Err() error {
	switch {
	case b.BalanceErr != nil:
		return b.BalanceErr
	case b.DecimalsErr != nil:
		return b.DecimalsErr
	default:
		return b.SymbolErr
	}
}

// VerificationResult is the outcome of a balance sufficiency check.
type VerificationResult struct {
	HasSufficientBalance bool     `json:"hasSufficientBalance"`
	Required             *big.Int `json:"required,omitempty"`
	Available            *big.Int `json:"available,omitempty"`
	Decimals             uint8    `json:"decimals"`
	Reason               string   `json:"reason,omitempty"`

	// View is the balance read the check was computed from.
	View *BalanceView `json:"view,omitempty"`
}

// SettlementResult contains the result of a transfer settlement
type SettlementResult struct {
	Success     bool      `json:"success"`
	TxHash      string    `json:"txHash,omitempty"`
	Network     string    `json:"network,omitempty"`
	BlockNumber uint64    `json:"blockNumber,omitempty"`
	Error       string    `json:"error,omitempty"`
	Submitted   bool      `json:"submitted"`
	Extra       ExtraData `json:"extra,omitempty"`
}

// ExtraData contains additional payment-specific data
type ExtraData map[string]interface{}

// ClientConfig contains configuration for the chain provider client
type ClientConfig struct {
	Network   Network `json:"network"`
	RPCUrl    string  `json:"rpcUrl" validate:"required,url"`
	ChainID   int64   `json:"chainId,omitempty"`
	SignerKey string  `json:"-"`
}

// Config contains global configuration for the payment library
type Config struct {
	Network         Network       `json:"network" validate:"required"`
	RPCUrl          string        `json:"rpcUrl,omitempty"`
	RetryCount      int           `json:"retryCount" validate:"gte=0,lte=10"`
	RefreshInterval time.Duration `json:"refreshInterval" validate:"gte=0"`
	LogLevel        string        `json:"logLevel,omitempty" validate:"omitempty,oneof=debug info warn error"`
	EnableMetrics   bool          `json:"enableMetrics,omitempty"`

	DefaultAmount             string `json:"defaultAmount" validate:"required"`
	MerchantFallbackRecipient string `json:"merchantFallbackRecipient" validate:"required"`

	HistoryKey            string `json:"historyKey" validate:"required"`
	MaxHistoryRecords     int    `json:"maxHistoryRecords" validate:"gt=0"`
	RecordFailedTransfers bool   `json:"recordFailedTransfers,omitempty"`
}

const (
	DefaultRefreshInterval    = 30 * time.Second
	DefaultRetryCount         = 3
	DefaultAmount             = "10"
	DefaultMerchantRecipient  = "0x5888578ad9a33Ce8a9FA3A0ca40816665bfaD8Fd"
	DefaultHistoryKey         = "jpyc-payment-history"
	DefaultMaxHistoryRecords  = 1000
	DefaultTokenDecimals      = 18
	DefaultRequestValidityMin = 5
)

// DefaultConfig returns the Sepolia configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Network:                   NetworkSepolia,
		RetryCount:                DefaultRetryCount,
		RefreshInterval:           DefaultRefreshInterval,
		LogLevel:                  "info",
		DefaultAmount:             DefaultAmount,
		MerchantFallbackRecipient: DefaultMerchantRecipient,
		HistoryKey:                DefaultHistoryKey,
		MaxHistoryRecords:         DefaultMaxHistoryRecords,
	}
}
