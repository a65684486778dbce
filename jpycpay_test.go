package jpycpay

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/jpycpay/clients"
	"github.com/vitwit/jpycpay/events"
	"github.com/vitwit/jpycpay/history"
	"github.com/vitwit/jpycpay/logger"
	"github.com/vitwit/jpycpay/payment"
	"github.com/vitwit/jpycpay/qr"
	"github.com/vitwit/jpycpay/storage"
	"github.com/vitwit/jpycpay/tokens"
	"github.com/vitwit/jpycpay/types"
)

const (
	payer     = "0x1111111111111111111111111111111111111111"
	recipient = "0x5888578ad9a33Ce8a9FA3A0ca40816665bfaD8Fd"
	txHash    = "0x9fc76417374aa880d4449a1f7f31ec597f00b1f6f3dd2d66f4c9c6c445836d8b"
)

type fakeClient struct {
	mu        sync.Mutex
	network   types.Network
	balance   *big.Int
	reverted  bool
	transfers []*big.Int
	closed    bool
}

var _ clients.Client = (*fakeClient)(nil)

func newFakeClient(whole int64) *fakeClient {
	return &fakeClient{
		network: types.NetworkSepolia,
		balance: new(big.Int).Mul(big.NewInt(whole), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)),
	}
}

func (f *fakeClient) Call(_ context.Context, _ common.Address, _ abi.ABI, method string, _ ...any) ([]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch method {
	case tokens.MethodBalanceOf:
		return []any{new(big.Int).Set(f.balance)}, nil
	case tokens.MethodDecimals:
		return []any{uint8(18)}, nil
	case tokens.MethodSymbol:
		return []any{"JPYC"}, nil
	}
	return nil, &clients.ProviderError{Kind: clients.KindNotFound, Op: method}
}

func (f *fakeClient) SubmitTransfer(_ context.Context, token, to common.Address, amount *big.Int) (*types.PendingTransfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, amount)
	return &types.PendingTransfer{Hash: txHash, From: payer, To: to.Hex(), Token: token.Hex(), Amount: amount}, nil
}

func (f *fakeClient) AwaitConfirmation(_ context.Context, pending *types.PendingTransfer) (*types.TransferReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reverted {
		return &types.TransferReceipt{Hash: pending.Hash, BlockNumber: 42}, nil
	}
	f.balance.Sub(f.balance, pending.Amount)
	return &types.TransferReceipt{Hash: pending.Hash, Confirmed: true, BlockNumber: 42, GasUsed: 51000}, nil
}

func (f *fakeClient) Account() common.Address   { return common.HexToAddress(payer) }
func (f *fakeClient) GetNetwork() types.Network { return f.network }
func (f *fakeClient) Close()                    { f.closed = true }

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturePublisher) Publish(_ context.Context, _ string, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func newTestApp(t *testing.T, client *fakeClient, cfg *types.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{WithClient(client), WithLogger(logger.NoopLogger{}), WithStore(storage.NewMemoryKV())}, opts...)
	app, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func TestPaymentFlow(t *testing.T) {
	client := newFakeClient(1000)
	pub := &capturePublisher{}
	app := newTestApp(t, client, nil, WithPublisher(pub))

	ctrl, err := app.NewPayment()
	require.NoError(t, err)

	payload, png, err := app.PaymentRequest(qr.PaymentRequest{Amount: "100", Recipient: recipient, MerchantName: "Cafe"}, qr.DefaultImageSize)
	require.NoError(t, err)
	assert.NotEmpty(t, png)

	intent, err := ctrl.Scan(string(payload))
	require.NoError(t, err)
	assert.Equal(t, "100", intent.Amount)
	assert.Equal(t, "Cafe", intent.MerchantName)

	review, err := ctrl.Review(context.Background())
	require.NoError(t, err)
	assert.True(t, review.HasSufficientBalance)

	outcome, err := ctrl.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, payment.StateSucceeded, outcome.State)
	assert.Equal(t, "https://sepolia.etherscan.io/tx/"+txHash, outcome.ExplorerURL)
	require.NotNil(t, outcome.Record)

	records := app.History().List(history.Filter{})
	require.Len(t, records, 1)
	assert.Equal(t, txHash, records[0].TransactionHash)
	assert.Equal(t, types.StatusSuccess, records[0].Status)
	assert.Equal(t, "Sepolia testnet", records[0].Network)

	require.Len(t, client.transfers, 1)
	assert.Equal(t, "100000000000000000000", client.transfers[0].String())

	require.NotEmpty(t, pub.events)
	assert.Equal(t, events.EventPaymentStateChanged, pub.events[0].Type)
	assert.Equal(t, events.EventPaymentSucceeded, pub.events[len(pub.events)-1].Type)
}

func TestPaymentInsufficientBalance(t *testing.T) {
	app := newTestApp(t, newFakeClient(5), nil)

	ctrl, err := app.NewPayment()
	require.NoError(t, err)
	_, err = ctrl.Scan("jpyc:amount=100&to=" + recipient)
	require.NoError(t, err)

	review, err := ctrl.Review(context.Background())
	require.NoError(t, err)
	assert.False(t, review.HasSufficientBalance)
	assert.Equal(t, "5", review.DisplayBalance)

	_, err = ctrl.Confirm(context.Background())
	assert.True(t, types.IsKind(err, types.ErrInsufficientBalance))
	assert.Empty(t, app.History().List(history.Filter{}))
}

func TestRevertedTransferRecordedWhenEnabled(t *testing.T) {
	client := newFakeClient(1000)
	client.reverted = true
	cfg := types.DefaultConfig()
	cfg.RecordFailedTransfers = true
	app := newTestApp(t, client, cfg)

	ctrl, err := app.NewPayment()
	require.NoError(t, err)
	_, err = ctrl.Scan(recipient)
	require.NoError(t, err)
	_, err = ctrl.Review(context.Background())
	require.NoError(t, err)

	outcome, err := ctrl.Confirm(context.Background())
	assert.True(t, types.IsKind(err, types.ErrTransferRejected))
	assert.Equal(t, payment.StateFailed, outcome.State)

	records := app.History().List(history.Filter{})
	require.Len(t, records, 1)
	assert.Equal(t, types.StatusFailed, records[0].Status)
	assert.Equal(t, "10", records[0].Amount)
}

func TestBalances(t *testing.T) {
	app := newTestApp(t, newFakeClient(12345), nil)

	views := app.Balances(context.Background())
	require.Len(t, views, 2)
	for _, v := range views {
		assert.NoError(t, v.BalanceErr)
		assert.Equal(t, "JPYC", v.Symbol)
	}
	assert.Equal(t, types.TokenOfficial, views[0].Token)

	_, err := app.Watch(context.Background(), "unknown", func(*types.BalanceView) {})
	assert.True(t, types.IsKind(err, types.ErrUnknownToken))
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.HistoryKey = ""
	_, err := New(cfg, WithClient(newFakeClient(1)), WithLogger(logger.NoopLogger{}))
	assert.True(t, types.IsKind(err, types.ErrConfigError))

	cfg = types.DefaultConfig()
	cfg.MerchantFallbackRecipient = "0x123"
	_, err = New(cfg, WithClient(newFakeClient(1)), WithLogger(logger.NoopLogger{}))
	assert.True(t, types.IsKind(err, types.ErrConfigError))

	client := newFakeClient(1)
	client.network = "mainnet"
	_, err = New(nil, WithClient(client), WithLogger(logger.NoopLogger{}))
	assert.True(t, types.IsKind(err, types.ErrConfigError))
	assert.True(t, client.closed)
}

func TestClose(t *testing.T) {
	client := newFakeClient(1)
	app, err := New(nil, WithClient(client), WithLogger(logger.NoopLogger{}))
	require.NoError(t, err)
	require.NoError(t, app.Close())
	assert.True(t, client.closed)
}

func TestGetVersion(t *testing.T) {
	v := GetVersion()
	assert.Equal(t, Version, v["library_version"])
	assert.Equal(t, []string{"sepolia"}, v["supported_networks"])
}
