package verification

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/vitwit/jpycpay/logger"
	"github.com/vitwit/jpycpay/tokens"
	"github.com/vitwit/jpycpay/types"
	"github.com/vitwit/jpycpay/utils"
)

// Verifier interface defines the contract for balance sufficiency checks
type Verifier interface {
	Verify(ctx context.Context, intent *types.PaymentIntent, token tokens.Descriptor, account common.Address) (*types.VerificationResult, error)
}

// BalanceReader is the read side the service checks against.
type BalanceReader interface {
	Read(ctx context.Context, token tokens.Descriptor, account common.Address) *types.BalanceView
}

// VerificationService decides whether an account can cover a payment intent
type VerificationService struct {
	balances BalanceReader
	logger   logger.Logger
}

var _ Verifier = (*VerificationService)(nil)

// NewVerificationService creates a new verification service
func NewVerificationService(balances BalanceReader, l logger.Logger) *VerificationService {
	if l == nil {
		l = logger.NoopLogger{}
	}
	return &VerificationService{balances: balances, logger: l}
}

// Verify reads the live balance of token for account and compares it against
// the intent amount in smallest units. A failed balance read yields an
// insufficient result together with the read error.
func (s *VerificationService) Verify(
	ctx context.Context,
	intent *types.PaymentIntent,
	token tokens.Descriptor,
	account common.Address,
) (*types.VerificationResult, error) {
	amount, err := QuickVerify(intent)
	if err != nil {
		return &types.VerificationResult{Reason: err.Error()}, err
	}

	view := s.balances.Read(ctx, token, account)
	result, err := Check(amount, view, token)
	if err != nil {
		s.logger.Warn("balance verification incomplete", map[string]any{
			"token":   token.Label.String(),
			"account": account.Hex(),
			"error":   err,
		})
		return result, err
	}

	if view.Decimals == nil {
		s.logger.Warn("decimals unavailable, using fallback", map[string]any{
			"token":    token.Label.String(),
			"decimals": token.FallbackDecimals,
		})
	}

	return result, nil
}

// VerifyAll checks every descriptor concurrently through the reader, in order.
func (s *VerificationService) VerifyAll(
	ctx context.Context,
	intent *types.PaymentIntent,
	descriptors []tokens.Descriptor,
	account common.Address,
) ([]*types.VerificationResult, error) {
	if _, err := QuickVerify(intent); err != nil {
		return nil, err
	}

	type verificationResult struct {
		index  int
		result *types.VerificationResult
	}

	resultChan := make(chan verificationResult, len(descriptors))
	for i, d := range descriptors {
		go func(index int, d tokens.Descriptor) {
			// Per-token read errors are carried on the result's view.
			result, _ := s.Verify(ctx, intent, d, account)
			resultChan <- verificationResult{index: index, result: result}
		}(i, d)
	}

	results := make([]*types.VerificationResult, len(descriptors))
	for range descriptors {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-resultChan:
			results[res.index] = res.result
		}
	}
	return results, nil
}

// QuickVerify performs the checks that need no chain access and returns the
// intent amount.
func QuickVerify(intent *types.PaymentIntent) (decimal.Decimal, error) {
	if intent == nil {
		return decimal.Zero, types.NewError(types.ErrInvalidState, "no payment intent")
	}
	if _, err := utils.NormalizeAddress(intent.Recipient); err != nil {
		return decimal.Zero, err
	}

	amount := intent.AmountDec
	if !amount.IsPositive() {
		var err error
		if amount, err = utils.ParseAmount(intent.Amount); err != nil {
			return decimal.Zero, err
		}
	}
	return amount, nil
}

// Check compares amount against a completed balance read. Decimals fall back
// to the descriptor's value when their read has not resolved.
func Check(amount decimal.Decimal, view *types.BalanceView, token tokens.Descriptor) (*types.VerificationResult, error) {
	result := &types.VerificationResult{View: view}

	if view == nil || view.Balance == nil {
		result.Reason = "balance unavailable"
		if view != nil && view.BalanceErr != nil {
			return result, view.BalanceErr
		}
		return result, types.NewError(types.ErrBalanceRead, "balance for %s token not read", token.Label)
	}

	decimals := token.FallbackDecimals
	if view.Decimals != nil {
		decimals = *view.Decimals
	}
	result.Decimals = decimals
	result.Available = view.Balance

	required, err := utils.ScaleAmount(amount, decimals)
	if err != nil {
		result.Reason = err.Error()
		return result, err
	}
	result.Required = required

	result.HasSufficientBalance = view.Balance.Cmp(required) >= 0
	if !result.HasSufficientBalance {
		result.Reason = fmt.Sprintf("balance %s is below %s",
			utils.FormatExact(view.Balance, decimals),
			utils.FormatExact(required, decimals),
		)
	}
	return result, nil
}
