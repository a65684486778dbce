package qr

import (
	"encoding/json"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/vitwit/jpycpay/types"
	"github.com/vitwit/jpycpay/utils"
)

// PayloadVersion is written into every encoded payload.
const PayloadVersion = "1.0"

// DefaultImageSize is the PNG edge length in pixels.
const DefaultImageSize = 256

// PaymentRequest describes a payment a merchant wants to receive.
type PaymentRequest struct {
	Amount    string
	Recipient string

	MerchantName        string
	MerchantID          string
	MerchantDescription string

	Currency        string
	Network         string
	ContractName    string
	ContractAddress string

	// Validity defaults to five minutes.
	Validity time.Duration
}

type taggedPayload struct {
	Type            string        `json:"type"`
	Version         string        `json:"version"`
	Amount          string        `json:"amount"`
	Currency        string        `json:"currency,omitempty"`
	Network         string        `json:"network,omitempty"`
	ContractAddress string        `json:"contractAddress,omitempty"`
	ContractName    string        `json:"contractName,omitempty"`
	Merchant        *merchantInfo `json:"merchant,omitempty"`
	To              string        `json:"to"`
	Timestamp       int64         `json:"timestamp"`
	Expires         int64         `json:"expires"`
}

// Encode renders req as a tagged JSON payload stamped with the current time.
func Encode(req PaymentRequest) ([]byte, error) {
	return EncodeAt(req, time.Now())
}

// EncodeAt renders req as a tagged JSON payload stamped with now.
func EncodeAt(req PaymentRequest, now time.Time) ([]byte, error) {
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	to, err := utils.NormalizeAddress(req.Recipient)
	if err != nil {
		return nil, err
	}

	validity := req.Validity
	if validity <= 0 {
		validity = types.DefaultRequestValidityMin * time.Minute
	}

	payload := taggedPayload{
		Type:            TypeTag,
		Version:         PayloadVersion,
		Amount:          amount.String(),
		Currency:        req.Currency,
		Network:         req.Network,
		ContractAddress: req.ContractAddress,
		ContractName:    req.ContractName,
		To:              to,
		Timestamp:       now.UnixMilli(),
		Expires:         now.Add(validity).UnixMilli(),
	}
	if req.MerchantName != "" || req.MerchantID != "" || req.MerchantDescription != "" {
		payload.Merchant = &merchantInfo{
			Name:        req.MerchantName,
			ID:          req.MerchantID,
			Description: req.MerchantDescription,
		}
	}

	return json.Marshal(payload)
}

// EncodePNG renders payload as a QR code image.
func EncodePNG(payload []byte, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultImageSize
	}
	return qrcode.Encode(string(payload), qrcode.Medium, size)
}
