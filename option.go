package jpycpay

import (
	"time"

	"github.com/vitwit/jpycpay/clients"
	"github.com/vitwit/jpycpay/events"
	"github.com/vitwit/jpycpay/logger"
	"github.com/vitwit/jpycpay/metrics"
	"github.com/vitwit/jpycpay/storage"
	"github.com/vitwit/jpycpay/tokens"
	"github.com/vitwit/jpycpay/types"
)

type Option func(*App)

func WithLogger(l logger.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(a *App) {
		a.metrics = r
	}
}

// WithClient uses an existing provider instead of dialing one. The App
// closes it on Close.
func WithClient(c clients.Client) Option {
	return func(a *App) {
		a.client = c
	}
}

// WithClientConfig sets the endpoint and signer used when dialing.
func WithClientConfig(cc types.ClientConfig) Option {
	return func(a *App) {
		a.clientConfig = &cc
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(a *App) {
		a.pollInterval = d
	}
}

func WithScheduler(s clients.Scheduler) Option {
	return func(a *App) {
		a.scheduler = s
	}
}

func WithRegistry(r *tokens.Registry) Option {
	return func(a *App) {
		a.registry = r
	}
}

// WithStore sets the key-value surface backing the payment history.
func WithStore(kv storage.KV) Option {
	return func(a *App) {
		a.kv = kv
	}
}

// WithPublisher publishes every payment transition of controllers created
// by NewPayment.
func WithPublisher(p events.Publisher) Option {
	return func(a *App) {
		a.publisher = p
	}
}
