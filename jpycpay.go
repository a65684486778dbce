// Package jpycpay wires the JPYC QR payment workflow for one configured test
// network: QR parsing, token selection, balance verification, transfer
// submission and the local payment history.
package jpycpay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/jpycpay/balance"
	"github.com/vitwit/jpycpay/clients"
	"github.com/vitwit/jpycpay/config"
	"github.com/vitwit/jpycpay/events"
	"github.com/vitwit/jpycpay/history"
	"github.com/vitwit/jpycpay/logger"
	"github.com/vitwit/jpycpay/metrics"
	"github.com/vitwit/jpycpay/payment"
	"github.com/vitwit/jpycpay/qr"
	"github.com/vitwit/jpycpay/settlement"
	"github.com/vitwit/jpycpay/storage"
	"github.com/vitwit/jpycpay/tokens"
	"github.com/vitwit/jpycpay/types"
	"github.com/vitwit/jpycpay/utils"
	"github.com/vitwit/jpycpay/verification"
)

const redisKeyPrefix = "jpycpay"

// App is the explicit application context. Every collaborator is built once
// here and handed to the components that need it.
type App struct {
	config       *types.Config
	clientConfig *types.ClientConfig
	pollInterval time.Duration

	logger    logger.Logger
	metrics   metrics.Recorder
	client    clients.Client
	scheduler clients.Scheduler
	registry  *tokens.Registry
	kv        storage.KV
	publisher events.Publisher

	balances *balance.Reader
	verifier *verification.VerificationService
	settler  *settlement.SettlementService
	parser   *qr.Parser
	history  *history.Store

	closers []func() error
}

// New builds an App from cfg. A nil cfg means types.DefaultConfig().
func New(cfg *types.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = types.DefaultConfig()
	}
	if err := utils.ValidateStruct(cfg); err != nil {
		return nil, types.WrapError(types.ErrConfigError, err, "invalid config")
	}
	if !cfg.Network.IsSupported() {
		return nil, types.NewError(types.ErrConfigError, "unsupported network: %s", cfg.Network)
	}

	a := &App{config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = logger.NewZapLogger(cfg.LogLevel)
	}
	if a.metrics == nil {
		if cfg.EnableMetrics {
			a.metrics = metrics.NewPrometheusRecorder()
		} else {
			a.metrics = metrics.NoopRecorder{}
		}
	}
	if a.registry == nil {
		a.registry = tokens.DefaultRegistry()
	}
	if a.kv == nil {
		a.kv = storage.NewMemoryKV()
	}
	if a.client == nil {
		client, err := clients.NewEVMClient(a.resolveClientConfig(),
			clients.WithClientLogger(a.logger),
			clients.WithPollInterval(a.pollInterval),
		)
		if err != nil {
			a.Close()
			return nil, types.WrapError(types.ErrConfigError, err, "create %s client", cfg.Network)
		}
		a.client = client
	}
	if a.client.GetNetwork() != cfg.Network {
		a.Close()
		return nil, types.NewError(types.ErrConfigError, "client is bound to %s, config wants %s", a.client.GetNetwork(), cfg.Network)
	}

	readerOpts := []balance.Option{
		balance.WithRetryCount(cfg.RetryCount),
		balance.WithRefreshInterval(cfg.RefreshInterval),
		balance.WithLogger(a.logger),
		balance.WithMetrics(a.metrics),
	}
	if a.scheduler != nil {
		readerOpts = append(readerOpts, balance.WithScheduler(a.scheduler))
	}
	a.balances = balance.NewReader(a.client, readerOpts...)
	a.verifier = verification.NewVerificationService(a.balances, a.logger)
	a.settler = settlement.NewSettlementService(a.client, cfg.Network, a.logger)

	parser, err := qr.NewParser(
		qr.WithDefaultAmount(cfg.DefaultAmount),
		qr.WithMerchantRecipient(cfg.MerchantFallbackRecipient),
		qr.WithLogger(a.logger),
		qr.WithMetrics(a.metrics),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.parser = parser

	a.history = history.NewStore(a.kv,
		history.WithKey(cfg.HistoryKey),
		history.WithMaxRecords(cfg.MaxHistoryRecords),
		history.WithLogger(a.logger),
	)

	a.logger.Info("jpycpay initialized", map[string]any{
		"network": cfg.Network.String(),
		"account": a.client.Account().Hex(),
		"tokens":  len(a.registry.List()),
	})
	return a, nil
}

// NewWithDefaults builds a Sepolia App with in-memory history.
func NewWithDefaults(opts ...Option) (*App, error) {
	return New(types.DefaultConfig(), opts...)
}

// NewFromSettings builds an App from environment settings, including the
// history backend, the token registry file and the event publisher.
// Explicit opts override what the settings select.
func NewFromSettings(ctx context.Context, s *config.Settings, opts ...Option) (*App, error) {
	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}

	log := logger.NewZapLogger(s.LogLevel)
	clientConfig := s.ClientConfig(cfg.Network)
	derived := []Option{WithLogger(log), WithClientConfig(clientConfig)}
	var closers []func() error

	if s.TokenRegistryFile != "" {
		registry, err := tokens.LoadRegistryFile(s.TokenRegistryFile)
		if err != nil {
			return nil, err
		}
		derived = append(derived, WithRegistry(registry))
	}

	switch s.HistoryBackend {
	case config.BackendFile:
		kv, err := storage.NewFileKV(s.HistoryDir)
		if err != nil {
			return nil, types.WrapError(types.ErrConfigError, err, "open history dir")
		}
		derived = append(derived, WithStore(kv))
	case config.BackendRedis:
		client, err := storage.NewRedisClient(ctx, s.RedisURL, log)
		if err != nil {
			return nil, types.WrapError(types.ErrConfigError, err, "connect redis")
		}
		closers = append(closers, client.Close)
		derived = append(derived, WithStore(storage.NewRedisKV(client, redisKeyPrefix)))
		if s.PublishEvents {
			derived = append(derived, WithPublisher(events.NewRedisPublisher(client, log)))
		}
	}
	if s.PublishEvents && s.HistoryBackend != config.BackendRedis {
		client, err := storage.NewRedisClient(ctx, s.RedisURL, log)
		if err != nil {
			return nil, types.WrapError(types.ErrConfigError, err, "connect redis")
		}
		closers = append(closers, client.Close)
		derived = append(derived, WithPublisher(events.NewRedisPublisher(client, log)))
	}

	if s.PollInterval > 0 {
		derived = append(derived, WithPollInterval(s.PollInterval))
	}

	app, err := New(cfg, append(derived, opts...)...)
	if err != nil {
		runClosers(closers)
		return nil, err
	}
	app.closers = append(app.closers, closers...)
	return app, nil
}

func (a *App) resolveClientConfig() types.ClientConfig {
	if a.clientConfig != nil {
		return *a.clientConfig
	}
	url := a.config.RPCUrl
	if url == "" {
		url = a.config.Network.DefaultRPCUrl()
	}
	return types.ClientConfig{Network: a.config.Network, RPCUrl: url}
}

// NewPayment returns a controller for a new payment session. Controllers
// share the App's collaborators and history.
func (a *App) NewPayment(opts ...payment.Option) (*payment.Controller, error) {
	base := []payment.Option{
		payment.WithRecordFailedTransfers(a.config.RecordFailedTransfers),
		payment.WithLogger(a.logger),
		payment.WithMetrics(a.metrics),
	}
	if a.publisher != nil {
		base = append(base, payment.WithObserver(events.NewPaymentObserver(a.publisher, "", a.logger)))
	}

	return payment.NewController(payment.Dependencies{
		Parser:   a.parser,
		Registry: a.registry,
		Verifier: a.verifier,
		Settler:  a.settler,
		History:  a.history,
		Account:  a.client.Account(),
		Network:  a.config.Network,
	}, append(base, opts...)...)
}

// Balances reads every registered token for the App's account.
func (a *App) Balances(ctx context.Context) []*types.BalanceView {
	return a.balances.ReadAll(ctx, a.registry.List(), a.client.Account())
}

// Watch refreshes the balance of label on the configured interval.
func (a *App) Watch(ctx context.Context, label types.TokenLabel, fn func(*types.BalanceView)) (*balance.Watch, error) {
	token, err := a.registry.Get(label)
	if err != nil {
		return nil, err
	}
	return a.balances.Watch(ctx, token, a.client.Account(), true, fn), nil
}

// PaymentRequest encodes req as a JPYC_PAYMENT payload and renders it as a
// PNG QR image of size pixels.
func (a *App) PaymentRequest(req qr.PaymentRequest, size int) ([]byte, []byte, error) {
	if req.Network == "" {
		req.Network = a.config.Network.String()
	}
	if req.ContractAddress == "" {
		token := a.registry.Default()
		req.ContractName = token.Name
		req.ContractAddress = token.Address()
	}

	payload, err := qr.Encode(req)
	if err != nil {
		return nil, nil, err
	}
	png, err := qr.EncodePNG(payload, size)
	if err != nil {
		return nil, nil, err
	}
	return payload, png, nil
}

func (a *App) Config() *types.Config           { return a.config }
func (a *App) Logger() logger.Logger           { return a.logger }
func (a *App) Metrics() metrics.Recorder       { return a.metrics }
func (a *App) Client() clients.Client          { return a.client }
func (a *App) Registry() *tokens.Registry      { return a.registry }
func (a *App) Reader() *balance.Reader         { return a.balances }
func (a *App) Parser() *qr.Parser              { return a.parser }
func (a *App) History() *history.Store         { return a.history }
func (a *App) Account() common.Address         { return a.client.Account() }
func (a *App) Verifier() verification.Verifier { return a.verifier }
func (a *App) Settler() settlement.Settler     { return a.settler }

// Close releases the provider connection and any backing stores.
func (a *App) Close() error {
	if a.client != nil {
		a.client.Close()
	}
	err := runClosers(a.closers)
	a.closers = nil

	if z, ok := a.logger.(*logger.ZapLogger); ok {
		_ = z.Sync()
	}
	return err
}

func runClosers(closers []func() error) error {
	var errs []error
	for _, c := range closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Version information
const (
	Version        = "1.0.0"
	PayloadVersion = qr.PayloadVersion
)

// GetVersion returns version information
func GetVersion() map[string]any {
	return map[string]any{
		"library_version":    Version,
		"payload_version":    PayloadVersion,
		"supported_networks": []string{types.NetworkSepolia.String()},
		"supported_tokens":   []string{types.TokenOfficial.String(), types.TokenCommunity.String()},
		"supported_payloads": []string{
			qr.TypeTag, "ethereum:", "jpyc:", "payment:", "address",
		},
	}
}

func (a *App) String() string {
	return fmt.Sprintf("jpycpay(%s, %s)", a.config.Network, a.client.Account().Hex())
}
