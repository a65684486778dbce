// Package balance reads token balances, decimals and symbols for an account
// and keeps them refreshed through the chain provider's scheduler.
package balance

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/jpycpay/clients"
	"github.com/vitwit/jpycpay/logger"
	"github.com/vitwit/jpycpay/metrics"
	"github.com/vitwit/jpycpay/tokens"
	"github.com/vitwit/jpycpay/types"
)

// Reader issues independently retried ERC-20 reads.
type Reader struct {
	chain      clients.ChainReader
	scheduler  clients.Scheduler
	retries    int
	interval   time.Duration
	newBackOff func() backoff.BackOff
	logger     logger.Logger
	metrics    metrics.Recorder
}

type Option func(*Reader)

func WithRetryCount(n int) Option {
	return func(r *Reader) {
		if n >= 0 {
			r.retries = n
		}
	}
}

func WithRefreshInterval(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithScheduler(s clients.Scheduler) Option {
	return func(r *Reader) {
		if s != nil {
			r.scheduler = s
		}
	}
}

// WithBackOff sets the retry delay policy for transient failures.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(r *Reader) {
		if fn != nil {
			r.newBackOff = fn
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(r *Reader) {
		if m != nil {
			r.metrics = m
		}
	}
}

func NewReader(chain clients.ChainReader, opts ...Option) *Reader {
	r := &Reader{
		chain:     chain,
		scheduler: clients.TickerScheduler{},
		retries:   types.DefaultRetryCount,
		interval:  types.DefaultRefreshInterval,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RefreshInterval is the cadence declared to the scheduler by Watch.
func (r *Reader) RefreshInterval() time.Duration {
	return r.interval
}

func (r *Reader) ReadBalance(ctx context.Context, token tokens.Descriptor, account common.Address) (*big.Int, error) {
	return retry(ctx, r, tokens.MethodBalanceOf, token, func() (*big.Int, error) {
		return clients.NewERC20(r.chain, token).BalanceOf(ctx, account)
	})
}

func (r *Reader) ReadDecimals(ctx context.Context, token tokens.Descriptor) (uint8, error) {
	return retry(ctx, r, tokens.MethodDecimals, token, func() (uint8, error) {
		return clients.NewERC20(r.chain, token).Decimals(ctx)
	})
}

func (r *Reader) ReadSymbol(ctx context.Context, token tokens.Descriptor) (string, error) {
	return retry(ctx, r, tokens.MethodSymbol, token, func() (string, error) {
		return clients.NewERC20(r.chain, token).Symbol(ctx)
	})
}

func (r *Reader) ReadAllowance(ctx context.Context, token tokens.Descriptor, owner, spender common.Address) (*big.Int, error) {
	return retry(ctx, r, tokens.MethodAllowance, token, func() (*big.Int, error) {
		return clients.NewERC20(r.chain, token).Allowance(ctx, owner, spender)
	})
}

// Read runs the balance, decimals and symbol reads concurrently. A failing
// read leaves its field nil and records its error; the others still complete.
func (r *Reader) Read(ctx context.Context, token tokens.Descriptor, account common.Address) *types.BalanceView {
	view := &types.BalanceView{Token: token.Label, Account: account.Hex()}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		view.Balance, view.BalanceErr = r.ReadBalance(ctx, token, account)
	}()
	go func() {
		defer wg.Done()
		d, err := r.ReadDecimals(ctx, token)
		if err != nil {
			view.DecimalsErr = err
			return
		}
		view.Decimals = &d
	}()
	go func() {
		defer wg.Done()
		view.Symbol, view.SymbolErr = r.ReadSymbol(ctx, token)
	}()

	wg.Wait()
	view.ReadAt = time.Now()
	return view
}

// ReadAll reads every descriptor concurrently.
func (r *Reader) ReadAll(ctx context.Context, descriptors []tokens.Descriptor, account common.Address) []*types.BalanceView {
	views := make([]*types.BalanceView, len(descriptors))

	var wg sync.WaitGroup
	for i, d := range descriptors {
		wg.Add(1)
		go func(i int, d tokens.Descriptor) {
			defer wg.Done()
			views[i] = r.Read(ctx, d, account)
		}(i, d)
	}
	wg.Wait()

	return views
}

// retry runs fn until it succeeds, fails with a non-retryable provider error
// or exhausts the retry budget.
func retry[T any](ctx context.Context, r *Reader, op string, token tokens.Descriptor, fn func() (T, error)) (T, error) {
	var result T
	start := time.Now()
	labels := map[string]string{"token": token.Label.String(), "op": op}

	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), uint64(r.retries)), ctx)
	err := backoff.Retry(func() error {
		v, err := fn()
		if err == nil {
			result = v
			return nil
		}
		if !clients.KindOf(err).Retryable() {
			return backoff.Permanent(err)
		}
		r.logger.Debug("transient read failure", map[string]any{
			"op":    op,
			"token": token.Label.String(),
			"error": err,
		})
		return err
	}, b)

	r.metrics.ObserveLatency(metrics.BalanceRead, time.Since(start), labels)

	if err != nil {
		labels["kind"] = clients.KindOf(err).String()
		r.metrics.IncCounter(metrics.BalanceReadError, labels)
		var zero T
		return zero, &types.Error{
			Kind:         types.ErrBalanceRead,
			Message:      op + " failed for " + token.Label.String() + " token",
			ProviderKind: clients.KindOf(err).String(),
			Err:          err,
		}
	}
	return result, nil
}
