package clients

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/vitwit/jpycpay/tokens"
	paytypes "github.com/vitwit/jpycpay/types"
)

// SubmitTransfer signs and broadcasts an ERC-20 transfer. The returned handle
// refers to a transaction the node has accepted, not a mined one.
func (c *EVMClient) SubmitTransfer(
	ctx context.Context,
	token, to common.Address,
	amount *big.Int,
) (*paytypes.PendingTransfer, error) {
	if c.signer == nil {
		return nil, &ProviderError{Kind: KindRejected, Op: "submit", Err: ErrNoSigner}
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, &ProviderError{Kind: KindRejected, Op: "submit", Err: fmt.Errorf("invalid transfer amount %v", amount)}
	}

	callData, err := tokens.ERC20ABI().Pack(tokens.MethodTransfer, to, amount)
	if err != nil {
		return nil, &ProviderError{Kind: KindUnknown, Op: "pack", Err: err}
	}

	gasLimit, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &token, Data: callData})
	if err != nil {
		return nil, wrap("estimate gas", err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, wrap("suggest gas price", err)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, wrap("pending nonce", err)
	}

	tx := types.NewTransaction(nonce, token, big.NewInt(0), gasLimit, gasPrice, callData)

	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.signer)
	if err != nil {
		return nil, &ProviderError{Kind: KindRejected, Op: "sign", Err: err}
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, wrap("send transaction", err)
	}

	c.logger.Info("transfer submitted", map[string]any{
		"tx":      signed.Hash().Hex(),
		"token":   token.Hex(),
		"to":      to.Hex(),
		"network": c.network.String(),
	})

	return &paytypes.PendingTransfer{
		Hash:        signed.Hash().Hex(),
		From:        c.from.Hex(),
		To:          to.Hex(),
		Token:       token.Hex(),
		Amount:      new(big.Int).Set(amount),
		SubmittedAt: time.Now(),
	}, nil
}

// AwaitConfirmation polls for the transaction receipt until it is mined or ctx
// ends. A mined but reverted transaction is reported as not confirmed.
func (c *EVMClient) AwaitConfirmation(
	ctx context.Context,
	pending *paytypes.PendingTransfer,
) (*paytypes.TransferReceipt, error) {
	if pending == nil || pending.Hash == "" {
		return nil, &ProviderError{Kind: KindUnknown, Op: "await", Err: errors.New("missing transaction hash")}
	}
	hash := common.HexToHash(pending.Hash)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			return receiptResult(pending.Hash, receipt), nil
		case err == nil, errors.Is(err, ethereum.NotFound):
			// not mined yet
		default:
			if kind := Classify(err); !kind.Retryable() {
				return nil, &ProviderError{Kind: kind, Op: "receipt", Err: err}
			}
			c.logger.Warn("receipt lookup failed, retrying", map[string]any{
				"tx":    pending.Hash,
				"error": err.Error(),
			})
		}

		select {
		case <-ctx.Done():
			return nil, &ProviderError{Kind: KindUnknown, Op: "await", Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func receiptResult(hash string, receipt *types.Receipt) *paytypes.TransferReceipt {
	result := &paytypes.TransferReceipt{
		Hash:      hash,
		Confirmed: receipt.Status == types.ReceiptStatusSuccessful,
		GasUsed:   receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if !result.Confirmed {
		result.Err = &ProviderError{Kind: KindReverted, Op: "transfer", Err: errors.New("transaction reverted")}
	}
	return result
}
