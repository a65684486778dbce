// Package qr interprets scanned payment payloads and renders payment
// requests as QR codes.
package qr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/vitwit/jpycpay/logger"
	"github.com/vitwit/jpycpay/metrics"
	"github.com/vitwit/jpycpay/types"
	"github.com/vitwit/jpycpay/utils"
)

// TypeTag marks the structured JSON payload.
const TypeTag = "JPYC_PAYMENT"

const (
	schemeEthereum = "ethereum:"
	schemeJPYC     = "jpyc:"
	schemePayment  = "payment:"
)

var bareAddressPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{40}$`)

// Parser turns raw scanned strings into payment intents. Grammars are tried
// in a fixed order and the first structural match is final.
type Parser struct {
	defaultAmount     string
	merchantRecipient string
	logger            logger.Logger
	metrics           metrics.Recorder
}

type Option func(*Parser)

// WithDefaultAmount sets the amount used by grammars that carry none.
func WithDefaultAmount(amount string) Option {
	return func(p *Parser) {
		p.defaultAmount = amount
	}
}

// WithMerchantRecipient sets the recipient of payment: scheme payloads.
func WithMerchantRecipient(address string) Option {
	return func(p *Parser) {
		p.merchantRecipient = address
	}
}

func WithLogger(l logger.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(p *Parser) {
		if m != nil {
			p.metrics = m
		}
	}
}

// NewParser validates the configured defaults up front.
func NewParser(opts ...Option) (*Parser, error) {
	p := &Parser{
		defaultAmount:     types.DefaultAmount,
		merchantRecipient: types.DefaultMerchantRecipient,
		logger:            logger.NoopLogger{},
		metrics:           metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}

	if _, err := utils.ParseAmount(p.defaultAmount); err != nil {
		return nil, types.WrapError(types.ErrConfigError, err, "invalid default amount")
	}
	recipient, err := utils.NormalizeAddress(p.merchantRecipient)
	if err != nil {
		return nil, types.WrapError(types.ErrConfigError, err, "invalid merchant fallback recipient")
	}
	p.merchantRecipient = recipient

	return p, nil
}

// Parse returns a fully validated intent or a ParseFailure carrying raw.
func (p *Parser) Parse(raw string) (*types.PaymentIntent, error) {
	intent, kind, err := p.parse(strings.TrimSpace(raw))
	if err != nil {
		p.metrics.IncCounter(metrics.ScanRejected, map[string]string{"kind": kind.String()})
		p.logger.Debug("payload rejected", map[string]any{"grammar": kind.String(), "error": err})

		msg := "unrecognized payload"
		if kind != types.PayloadUnrecognized {
			msg = fmt.Sprintf("invalid %s payload", kind)
		}
		return nil, &types.Error{Kind: types.ErrParseFailure, Message: msg, Raw: raw, Err: err}
	}

	intent.Kind = kind
	p.metrics.IncCounter(metrics.ScanParsed, map[string]string{"kind": kind.String()})
	return intent, nil
}

func (p *Parser) parse(s string) (*types.PaymentIntent, types.PayloadKind, error) {
	switch {
	case s == "":
		return nil, types.PayloadUnrecognized, errors.New("empty payload")
	case strings.HasPrefix(s, "{"):
		return p.parseJSON(s)
	case hasScheme(s, schemeEthereum):
		intent, err := p.parseEthereumURI(s[len(schemeEthereum):])
		return intent, types.PayloadEthereumURI, err
	case hasScheme(s, schemeJPYC):
		intent, err := p.parseJPYCScheme(s[len(schemeJPYC):])
		return intent, types.PayloadJPYCScheme, err
	case hasScheme(s, schemePayment):
		intent, err := p.parsePaymentScheme(s[len(schemePayment):])
		return intent, types.PayloadPaymentURI, err
	case bareAddressPattern.MatchString(s):
		intent, err := p.newIntent(p.defaultAmount, s)
		if err != nil {
			return nil, types.PayloadBareAddress, err
		}
		intent.Description = "Address transfer"
		return intent, types.PayloadBareAddress, nil
	default:
		return nil, types.PayloadUnrecognized, errors.New("no grammar matched")
	}
}

type merchantInfo struct {
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
	Description string `json:"description,omitempty"`
}

type jsonPayload struct {
	Type            string          `json:"type"`
	Amount          json.RawMessage `json:"amount"`
	To              *string         `json:"to"`
	Recipient       *string         `json:"recipient"`
	Merchant        json.RawMessage `json:"merchant"`
	Description     string          `json:"description"`
	Network         string          `json:"network"`
	Currency        string          `json:"currency"`
	ContractName    string          `json:"contractName"`
	ContractAddress string          `json:"contractAddress"`
	Expires         *json.Number    `json:"expires"`
}

// parseJSON handles both the tagged and the generic JSON grammar.
func (p *Parser) parseJSON(s string) (*types.PaymentIntent, types.PayloadKind, error) {
	var payload jsonPayload
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return nil, types.PayloadGenericJSON, fmt.Errorf("malformed JSON: %w", err)
	}

	kind := types.PayloadGenericJSON
	if payload.Type == TypeTag {
		kind = types.PayloadTaggedJSON
	}

	to := payload.To
	if (to == nil || strings.TrimSpace(*to) == "") && payload.Recipient != nil {
		to = payload.Recipient
	}

	if kind == types.PayloadGenericJSON && (payload.Amount == nil || to == nil) {
		return nil, types.PayloadUnrecognized, errors.New("JSON object has no amount and recipient")
	}
	if payload.Amount == nil {
		return nil, kind, errors.New("missing amount")
	}
	if to == nil {
		return nil, kind, errors.New("missing recipient")
	}

	amount, err := jsonAmount(payload.Amount)
	if err != nil {
		return nil, kind, err
	}

	intent, err := p.newIntent(amount, *to)
	if err != nil {
		return nil, kind, err
	}

	merchant, err := parseMerchant(payload.Merchant)
	if err != nil {
		return nil, kind, err
	}
	intent.MerchantName = merchant.Name
	intent.MerchantID = merchant.ID
	intent.Description = merchant.Description
	if intent.Description == "" {
		intent.Description = payload.Description
	}

	intent.Network = payload.Network
	intent.Currency = payload.Currency
	intent.ContractName = payload.ContractName
	intent.ContractAddress = payload.ContractAddress

	if payload.Expires != nil {
		ms, err := payload.Expires.Int64()
		if err != nil {
			return nil, kind, fmt.Errorf("invalid expires: %w", err)
		}
		expires := time.UnixMilli(ms)
		intent.ExpiresAt = &expires
	}

	return intent, kind, nil
}

// jsonAmount accepts the amount as a JSON string or number.
func jsonAmount(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.HasPrefix(raw, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("amount is not a number: %w", err)
	}
	return n.String(), nil
}

// parseMerchant accepts either a merchant object or a bare merchant name.
func parseMerchant(raw json.RawMessage) (merchantInfo, error) {
	var m merchantInfo
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return m, nil
	}
	if bytes.HasPrefix(raw, []byte(`"`)) {
		err := json.Unmarshal(raw, &m.Name)
		return m, err
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("invalid merchant: %w", err)
	}
	return m, nil
}

// parseEthereumURI reads ethereum:[pay-]<address>[@chain][/function][?params].
func (p *Parser) parseEthereumURI(rest string) (*types.PaymentIntent, error) {
	rest = strings.TrimPrefix(rest, "pay-")
	if i := strings.IndexAny(rest, "@/?"); i >= 0 {
		rest = rest[:i]
	}

	intent, err := p.newIntent(p.defaultAmount, rest)
	if err != nil {
		return nil, err
	}
	intent.Description = "Ethereum address transfer"
	return intent, nil
}

// parseJPYCScheme reads jpyc:amount=<n>&to=<address>.
func (p *Parser) parseJPYCScheme(rest string) (*types.PaymentIntent, error) {
	query, err := parseQuery(rest)
	if err != nil {
		return nil, err
	}

	amount, to := query.Get("amount"), query.Get("to")
	if amount == "" || to == "" {
		return nil, errors.New("amount and to are required")
	}

	intent, err := p.newIntent(amount, to)
	if err != nil {
		return nil, err
	}
	intent.Description = "JPYC payment"
	return intent, nil
}

// parsePaymentScheme reads payment:merchant=<name>&amount=<n>[&currency=..].
// The payment goes to the configured merchant recipient.
func (p *Parser) parsePaymentScheme(rest string) (*types.PaymentIntent, error) {
	query, err := parseQuery(rest)
	if err != nil {
		return nil, err
	}

	merchant, amount := strings.TrimSpace(query.Get("merchant")), query.Get("amount")
	if merchant == "" || amount == "" {
		return nil, errors.New("merchant and amount are required")
	}

	intent, err := p.newIntent(amount, p.merchantRecipient)
	if err != nil {
		return nil, err
	}
	intent.MerchantName = merchant
	intent.Currency = query.Get("currency")
	intent.Description = "Payment at " + merchant
	return intent, nil
}

func (p *Parser) newIntent(amount, recipient string) (*types.PaymentIntent, error) {
	dec, err := utils.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	to, err := utils.NormalizeAddress(recipient)
	if err != nil {
		return nil, err
	}
	return &types.PaymentIntent{
		Amount:    strings.TrimSpace(amount),
		AmountDec: dec,
		Recipient: to,
	}, nil
}

func parseQuery(rest string) (url.Values, error) {
	rest = strings.TrimPrefix(rest, "//")
	rest = strings.TrimPrefix(rest, "?")
	query, err := url.ParseQuery(rest)
	if err != nil {
		return nil, fmt.Errorf("malformed query: %w", err)
	}
	return query, nil
}

func hasScheme(s, scheme string) bool {
	return len(s) >= len(scheme) && strings.EqualFold(s[:len(scheme)], scheme)
}
