// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/vitwit/jpycpay/types"
	"github.com/vitwit/jpycpay/utils"
)

// Prefix is prepended to every variable name, as in JPYC_RPC_URL.
const Prefix = "JPYC"

// History backends
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

type Settings struct {
	Network         string        `envconfig:"NETWORK" default:"sepolia"`
	RPCUrl          string        `envconfig:"RPC_URL" validate:"omitempty,url"`
	ChainID         int64         `envconfig:"CHAIN_ID" default:"0"`
	SignerKey       string        `envconfig:"SIGNER_KEY"`
	RetryCount      int           `envconfig:"RETRY_COUNT" default:"3"`
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"30s"`
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"4s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	EnableMetrics   bool          `envconfig:"ENABLE_METRICS" default:"false"`

	DefaultAmount     string `envconfig:"DEFAULT_AMOUNT" default:"10"`
	MerchantRecipient string `envconfig:"MERCHANT_RECIPIENT" default:"0x5888578ad9a33Ce8a9FA3A0ca40816665bfaD8Fd"`

	HistoryBackend        string `envconfig:"HISTORY_BACKEND" default:"memory" validate:"oneof=memory file redis"`
	HistoryDir            string `envconfig:"HISTORY_DIR" default:".jpycpay" validate:"required_if=HistoryBackend file"`
	HistoryKey            string `envconfig:"HISTORY_KEY" default:"jpyc-payment-history"`
	MaxHistoryRecords     int    `envconfig:"MAX_HISTORY_RECORDS" default:"1000"`
	RecordFailedTransfers bool   `envconfig:"RECORD_FAILED_TRANSFERS" default:"false"`
	RedisURL              string `envconfig:"REDIS_URL" validate:"required_if=HistoryBackend redis"`
	PublishEvents         bool   `envconfig:"PUBLISH_EVENTS" default:"false"`

	TokenRegistryFile string `envconfig:"TOKEN_REGISTRY_FILE"`
}

// Load reads an optional .env file (or the given files) and then the
// JPYC_ environment. Variables already set win over file values.
func Load(files ...string) (*Settings, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, types.WrapError(types.ErrConfigError, err, "load env file")
	}

	s := &Settings{}
	if err := envconfig.Process(Prefix, s); err != nil {
		return nil, types.WrapError(types.ErrConfigError, err, "process environment")
	}
	if err := utils.ValidateStruct(s); err != nil {
		return nil, types.WrapError(types.ErrConfigError, err, "invalid settings")
	}
	if !utils.IsAddress(s.MerchantRecipient) {
		return nil, types.NewError(types.ErrConfigError, "%s_MERCHANT_RECIPIENT is not an account address: %q", Prefix, s.MerchantRecipient)
	}
	if s.PublishEvents && s.RedisURL == "" {
		return nil, types.NewError(types.ErrConfigError, "%s_PUBLISH_EVENTS requires %s_REDIS_URL", Prefix, Prefix)
	}
	return s, nil
}

// Config maps the settings onto the library configuration.
func (s *Settings) Config() (*types.Config, error) {
	network, err := types.ParseNetwork(s.Network)
	if err != nil {
		return nil, err
	}

	cfg := &types.Config{
		Network:                   network,
		RPCUrl:                    s.RPCUrl,
		RetryCount:                s.RetryCount,
		RefreshInterval:           s.RefreshInterval,
		LogLevel:                  s.LogLevel,
		EnableMetrics:             s.EnableMetrics,
		DefaultAmount:             s.DefaultAmount,
		MerchantFallbackRecipient: s.MerchantRecipient,
		HistoryKey:                s.HistoryKey,
		MaxHistoryRecords:         s.MaxHistoryRecords,
		RecordFailedTransfers:     s.RecordFailedTransfers,
	}
	if err := utils.ValidateStruct(cfg); err != nil {
		return nil, types.WrapError(types.ErrConfigError, err, "invalid config")
	}
	return cfg, nil
}

// ClientConfig returns the provider settings. RPCUrl falls back to the
// network's public endpoint.
func (s *Settings) ClientConfig(network types.Network) types.ClientConfig {
	url := s.RPCUrl
	if url == "" {
		url = network.DefaultRPCUrl()
	}
	return types.ClientConfig{
		Network:   network,
		RPCUrl:    url,
		ChainID:   s.ChainID,
		SignerKey: s.SignerKey,
	}
}
