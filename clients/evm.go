package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/vitwit/jpycpay/logger"
	paytypes "github.com/vitwit/jpycpay/types"
	"github.com/vitwit/jpycpay/utils"
)

const defaultPollInterval = 4 * time.Second

// Backend is the subset of ethclient.Client used by EVMClient.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// EVMClient is the chain provider for a single EVM network.
type EVMClient struct {
	network      paytypes.Network
	rpcURL       string
	backend      Backend
	closer       func()
	chainID      *big.Int
	signer       *ecdsa.PrivateKey // optional; required for SubmitTransfer
	from         common.Address
	pollInterval time.Duration
	logger       logger.Logger
}

var _ Client = (*EVMClient)(nil)

type EVMOption func(*EVMClient)

func WithSignerKey(key *ecdsa.PrivateKey, from common.Address) EVMOption {
	return func(c *EVMClient) {
		c.signer = key
		c.from = from
	}
}

func WithPollInterval(d time.Duration) EVMOption {
	return func(c *EVMClient) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func WithClientLogger(l logger.Logger) EVMOption {
	return func(c *EVMClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewEVMClient dials the configured RPC endpoint.
func NewEVMClient(config paytypes.ClientConfig, opts ...EVMOption) (*EVMClient, error) {
	if !config.Network.IsSupported() {
		return nil, paytypes.NewError(paytypes.ErrConfigError, "unsupported network: %s", config.Network)
	}

	eth, err := ethclient.Dial(config.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("ethereum rpc dial: %w", err)
	}

	if config.SignerKey != "" {
		key, from, err := utils.ParseSignerKey(config.SignerKey)
		if err != nil {
			eth.Close()
			return nil, err
		}
		opts = append([]EVMOption{WithSignerKey(key, from)}, opts...)
	}

	chainID := config.ChainID
	if chainID == 0 {
		chainID = config.Network.ChainID()
	}

	c := NewEVMClientWithBackend(config.Network, eth, big.NewInt(chainID), opts...)
	c.rpcURL = config.RPCUrl
	c.closer = eth.Close
	return c, nil
}

// NewEVMClientWithBackend wraps an existing backend, such as a simulated chain.
func NewEVMClientWithBackend(network paytypes.Network, backend Backend, chainID *big.Int, opts ...EVMOption) *EVMClient {
	c := &EVMClient{
		network:      network,
		backend:      backend,
		chainID:      chainID,
		pollInterval: defaultPollInterval,
		logger:       logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call packs, executes and unpacks a read-only contract method.
func (c *EVMClient) Call(
	ctx context.Context,
	contract common.Address,
	contractABI abi.ABI,
	method string,
	args ...any,
) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, &ProviderError{Kind: KindUnknown, Op: method, Err: fmt.Errorf("pack: %w", err)}
	}

	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, wrap(method, err)
	}
	if len(out) == 0 {
		return nil, &ProviderError{Kind: KindNotFound, Op: method, Err: ErrNoCode}
	}

	values, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, &ProviderError{Kind: KindUnknown, Op: method, Err: fmt.Errorf("unpack: %w", err)}
	}

	c.logger.Debug("contract call", map[string]any{
		"contract": contract.Hex(),
		"method":   method,
	})
	return values, nil
}

// Account returns the signer address, or the zero address when read-only.
func (c *EVMClient) Account() common.Address {
	return c.from
}

// HasSigner reports whether transfers can be submitted.
func (c *EVMClient) HasSigner() bool {
	return c.signer != nil
}

func (c *EVMClient) GetNetwork() paytypes.Network { return c.network }

func (c *EVMClient) Close() {
	if c.closer != nil {
		c.closer()
	}
}
