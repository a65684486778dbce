package clients

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	paytypes "github.com/vitwit/jpycpay/types"
)

// ChainReader executes read-only contract calls.
type ChainReader interface {
	Call(ctx context.Context, contract common.Address, contractABI abi.ABI, method string, args ...any) ([]any, error)
}

// ChainWriter broadcasts token transfers and waits for their outcome.
// Key management and signing are the writer's concern alone.
type ChainWriter interface {
	SubmitTransfer(ctx context.Context, token, to common.Address, amount *big.Int) (*paytypes.PendingTransfer, error)
	AwaitConfirmation(ctx context.Context, pending *paytypes.PendingTransfer) (*paytypes.TransferReceipt, error)
}

// Client is a chain provider bound to one network and, optionally, one
// signing account.
type Client interface {
	ChainReader
	ChainWriter
	Account() common.Address
	GetNetwork() paytypes.Network
	Close()
}
