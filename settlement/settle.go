package settlement

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/jpycpay/clients"
	"github.com/vitwit/jpycpay/logger"
	"github.com/vitwit/jpycpay/types"
)

// Settler interface defines the contract for transfer settlement
type Settler interface {
	Submit(ctx context.Context, token, to common.Address, amount *big.Int) (*types.PendingTransfer, error)
	Await(ctx context.Context, pending *types.PendingTransfer) (*types.SettlementResult, error)
}

// SettlementService drives a single transfer through the chain writer. It
// adds no deadlines of its own; callers bound each phase through ctx.
type SettlementService struct {
	writer  clients.ChainWriter
	network types.Network
	logger  logger.Logger
}

var _ Settler = (*SettlementService)(nil)

// NewSettlementService creates a new settlement service
func NewSettlementService(writer clients.ChainWriter, network types.Network, l logger.Logger) *SettlementService {
	if l == nil {
		l = logger.NoopLogger{}
	}
	return &SettlementService{writer: writer, network: network, logger: l}
}

// Submit asks the writer to sign and broadcast the transfer. Any failure is a
// TransferRejected error carrying the provider's reason verbatim.
func (s *SettlementService) Submit(
	ctx context.Context,
	token, to common.Address,
	amount *big.Int,
) (*types.PendingTransfer, error) {
	pending, err := s.writer.SubmitTransfer(ctx, token, to, amount)
	if err != nil {
		return nil, rejected(err)
	}
	if pending == nil || pending.Hash == "" {
		return nil, rejected(errors.New("provider returned no transaction hash"))
	}
	return pending, nil
}

// Await waits for the submitted transfer to be mined. A reverted transfer
// yields a result with Success false and a TransferRejected error. When ctx
// ends first the transfer is still pending and the error is of kind
// PendingConfirmation.
func (s *SettlementService) Await(
	ctx context.Context,
	pending *types.PendingTransfer,
) (*types.SettlementResult, error) {
	result := &types.SettlementResult{
		TxHash:    pending.Hash,
		Network:   s.network.Label(),
		Submitted: true,
		Extra: types.ExtraData{
			"explorerUrl": s.network.ExplorerTxURL(pending.Hash),
		},
	}

	receipt, err := s.writer.AwaitConfirmation(ctx, pending)
	if err != nil {
		result.Error = err.Error()
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return result, stillPending(pending.Hash, err)
		}
		return result, rejected(err)
	}

	result.BlockNumber = receipt.BlockNumber
	result.Extra["gasUsed"] = receipt.GasUsed

	if !receipt.Confirmed {
		cause := receipt.Err
		if cause == nil {
			cause = errors.New("transaction reverted")
		}
		result.Error = cause.Error()
		s.logger.Warn("transfer reverted", map[string]any{
			"tx":    pending.Hash,
			"block": receipt.BlockNumber,
		})
		return result, rejected(cause)
	}

	result.Success = true
	s.logger.Info("transfer confirmed", map[string]any{
		"tx":    pending.Hash,
		"block": receipt.BlockNumber,
	})
	return result, nil
}

// Settle submits and awaits in one call.
func (s *SettlementService) Settle(
	ctx context.Context,
	token, to common.Address,
	amount *big.Int,
) (*types.SettlementResult, error) {
	pending, err := s.Submit(ctx, token, to, amount)
	if err != nil {
		return &types.SettlementResult{Network: s.network.Label(), Error: err.Error()}, err
	}
	return s.Await(ctx, pending)
}

func rejected(err error) *types.Error {
	return &types.Error{
		Kind:         types.ErrTransferRejected,
		ProviderKind: clients.KindOf(err).String(),
		Err:          err,
	}
}

func stillPending(hash string, err error) *types.Error {
	return &types.Error{
		Kind:    types.ErrPendingConfirmation,
		Message: "transaction " + hash + " is still awaiting confirmation",
		Err:     err,
	}
}
