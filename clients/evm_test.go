package clients

import (
	"context"
	"errors"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/jpycpay/tokens"
	paytypes "github.com/vitwit/jpycpay/types"
	"github.com/vitwit/jpycpay/utils"
)

const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type codeError struct {
	code int
	msg  string
}

func (e codeError) Error() string  { return e.msg }
func (e codeError) ErrorCode() int { return e.code }

var _ rpc.Error = codeError{}

type fakeBackend struct {
	mu sync.Mutex

	callFn     func(msg ethereum.CallMsg) ([]byte, error)
	estimateFn func(msg ethereum.CallMsg) (uint64, error)
	receipts   []receiptStep
	sent       []*types.Transaction
	calls      []ethereum.CallMsg
}

type receiptStep struct {
	receipt *types.Receipt
	err     error
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msg)
	f.mu.Unlock()
	return f.callFn(msg)
}

func (f *fakeBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	if f.estimateFn != nil {
		return f.estimateFn(msg)
	}
	return 60_000, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.receipts) == 0 {
		return nil, ethereum.NotFound
	}
	step := f.receipts[0]
	if len(f.receipts) > 1 {
		f.receipts = f.receipts[1:]
	}
	return step.receipt, step.err
}

func packOutput(t *testing.T, method string, values ...any) []byte {
	t.Helper()
	out, err := tokens.ERC20ABI().Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

func newTestClient(t *testing.T, backend Backend, withSigner bool) *EVMClient {
	t.Helper()
	opts := []EVMOption{WithPollInterval(time.Millisecond)}
	if withSigner {
		key, from, err := utils.ParseSignerKey(devKey)
		require.NoError(t, err)
		opts = append(opts, WithSignerKey(key, from))
	}
	return NewEVMClientWithBackend(paytypes.NetworkSepolia, backend, big.NewInt(paytypes.NetworkSepolia.ChainID()), opts...)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"not found", ethereum.NotFound, KindNotFound},
		{"no code", ErrNoCode, KindNotFound},
		{"no signer", ErrNoSigner, KindRejected},
		{"deadline", context.DeadlineExceeded, KindTransient},
		{"user rejected", codeError{4001, "User rejected the request."}, KindRejected},
		{"reverted", codeError{3, "execution reverted"}, KindReverted},
		{"rate limited", codeError{-32005, "limit exceeded"}, KindTransient},
		{"http 503", rpc.HTTPError{StatusCode: 503, Status: "503 Service Unavailable"}, KindTransient},
		{"http 400", rpc.HTTPError{StatusCode: 400, Status: "400 Bad Request"}, KindUnknown},
		{"net error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, KindTransient},
		{"plain", errors.New("boom"), KindUnknown},
		{"provider error", &ProviderError{Kind: KindReverted, Op: "x", Err: errors.New("y")}, KindReverted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}

	assert.True(t, KindTransient.Retryable())
	assert.False(t, KindNotFound.Retryable())
	assert.False(t, KindRejected.Retryable())
}

func TestERC20Reads(t *testing.T) {
	owner := common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	erc20ABI := tokens.ERC20ABI()

	backend := &fakeBackend{}
	backend.callFn = func(msg ethereum.CallMsg) ([]byte, error) {
		method, err := erc20ABI.MethodById(msg.Data[:4])
		require.NoError(t, err)
		switch method.Name {
		case tokens.MethodBalanceOf:
			return packOutput(t, method.Name, big.NewInt(4200)), nil
		case tokens.MethodDecimals:
			return packOutput(t, method.Name, uint8(18)), nil
		case tokens.MethodSymbol:
			return packOutput(t, method.Name, "JPYC"), nil
		case tokens.MethodAllowance:
			return packOutput(t, method.Name, big.NewInt(5)), nil
		}
		return nil, errors.New("unexpected method")
	}

	client := newTestClient(t, backend, false)
	token := tokens.DefaultRegistry().Default()
	erc20 := NewERC20(client, token)
	ctx := context.Background()

	balance, err := erc20.BalanceOf(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(4200), balance.Int64())

	decimals, err := erc20.Decimals(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), decimals)

	symbol, err := erc20.Symbol(ctx)
	require.NoError(t, err)
	assert.Equal(t, "JPYC", symbol)

	allowance, err := erc20.Allowance(ctx, owner, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(5), allowance.Int64())

	require.NotEmpty(t, backend.calls)
	assert.Equal(t, token.ContractAddress, *backend.calls[0].To)
}

func TestCallEmptyResultIsNotFound(t *testing.T) {
	backend := &fakeBackend{callFn: func(ethereum.CallMsg) ([]byte, error) { return nil, nil }}
	client := newTestClient(t, backend, false)

	_, err := NewERC20(client, tokens.DefaultRegistry().Default()).Decimals(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestCallProviderErrorIsClassified(t *testing.T) {
	backend := &fakeBackend{callFn: func(ethereum.CallMsg) ([]byte, error) {
		return nil, codeError{-32005, "rate limited"}
	}}
	client := newTestClient(t, backend, false)

	_, err := NewERC20(client, tokens.DefaultRegistry().Default()).Symbol(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindTransient, KindOf(err))
}

func TestSubmitTransferRequiresSigner(t *testing.T) {
	client := newTestClient(t, &fakeBackend{}, false)

	_, err := client.SubmitTransfer(context.Background(), common.Address{1}, common.Address{2}, big.NewInt(1))
	require.Error(t, err)
	assert.Equal(t, KindRejected, KindOf(err))
	assert.False(t, client.HasSigner())
}

func TestSubmitTransfer(t *testing.T) {
	backend := &fakeBackend{}
	client := newTestClient(t, backend, true)

	token := common.HexToAddress(tokens.SepoliaOfficialAddress)
	to := common.HexToAddress("0x5888578ad9a33Ce8a9FA3A0ca40816665bfaD8Fd")
	amount, _ := new(big.Int).SetString("100000000000000000000", 10)

	pending, err := client.SubmitTransfer(context.Background(), token, to, amount)
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, tx.Hash().Hex(), pending.Hash)
	assert.Equal(t, token, *tx.To())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, 0, amount.Cmp(pending.Amount))

	sender, err := types.Sender(types.NewEIP155Signer(big.NewInt(paytypes.NetworkSepolia.ChainID())), tx)
	require.NoError(t, err)
	assert.Equal(t, client.Account(), sender)

	erc20 := tokens.ERC20ABI()
	method, err := erc20.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, tokens.MethodTransfer, method.Name)

	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, to, args[0])
	assert.Equal(t, 0, amount.Cmp(args[1].(*big.Int)))
}

func TestSubmitTransferRevertOnEstimate(t *testing.T) {
	backend := &fakeBackend{estimateFn: func(ethereum.CallMsg) (uint64, error) {
		return 0, codeError{3, "execution reverted: ERC20: transfer amount exceeds balance"}
	}}
	client := newTestClient(t, backend, true)

	_, err := client.SubmitTransfer(context.Background(), common.Address{1}, common.Address{2}, big.NewInt(1))
	require.Error(t, err)
	assert.Equal(t, KindReverted, KindOf(err))
	assert.Contains(t, err.Error(), "exceeds balance")
	assert.Empty(t, backend.sent)
}

func TestAwaitConfirmation(t *testing.T) {
	backend := &fakeBackend{receipts: []receiptStep{
		{err: ethereum.NotFound},
		{err: codeError{-32005, "limit"}},
		{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(99), GasUsed: 51000}},
	}}
	client := newTestClient(t, backend, false)

	receipt, err := client.AwaitConfirmation(context.Background(), &paytypes.PendingTransfer{Hash: "0x01"})
	require.NoError(t, err)
	assert.True(t, receipt.Confirmed)
	assert.Equal(t, uint64(99), receipt.BlockNumber)
	assert.NoError(t, receipt.Err)
}

func TestAwaitConfirmationReverted(t *testing.T) {
	backend := &fakeBackend{receipts: []receiptStep{
		{receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(5)}},
	}}
	client := newTestClient(t, backend, false)

	receipt, err := client.AwaitConfirmation(context.Background(), &paytypes.PendingTransfer{Hash: "0x01"})
	require.NoError(t, err)
	assert.False(t, receipt.Confirmed)
	assert.Equal(t, KindReverted, KindOf(receipt.Err))
}

func TestAwaitConfirmationFatalError(t *testing.T) {
	backend := &fakeBackend{receipts: []receiptStep{{err: errors.New("bad response")}}}
	client := newTestClient(t, backend, false)

	_, err := client.AwaitConfirmation(context.Background(), &paytypes.PendingTransfer{Hash: "0x01"})
	require.Error(t, err)
	assert.Equal(t, KindUnknown, KindOf(err))
}

func TestAwaitConfirmationContextCancelled(t *testing.T) {
	client := newTestClient(t, &fakeBackend{}, false)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.AwaitConfirmation(ctx, &paytypes.PendingTransfer{Hash: "0x01"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
