package balance

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/jpycpay/clients"
	"github.com/vitwit/jpycpay/tokens"
	"github.com/vitwit/jpycpay/types"
)

// Watch is a live, periodically refreshed BalanceView.
type Watch struct {
	sub clients.Subscription

	mu     sync.Mutex
	latest *types.BalanceView
}

// Watch declares the reader's refresh cadence to the scheduler and delivers
// each completed read to fn. enabled mirrors the wallet connection state:
// when false only Refresh triggers reads.
func (r *Reader) Watch(
	ctx context.Context,
	token tokens.Descriptor,
	account common.Address,
	enabled bool,
	fn func(*types.BalanceView),
) *Watch {
	w := &Watch{}

	task := func(ctx context.Context) {
		view := r.Read(ctx, token, account)
		if ctx.Err() != nil {
			return
		}

		// Completion order decides which read is current.
		w.mu.Lock()
		defer w.mu.Unlock()
		w.latest = view
		if fn != nil {
			fn(view)
		}
	}

	w.sub = r.scheduler.Schedule(ctx, clients.Schedule{Interval: r.interval, Enabled: enabled}, task)
	return w
}

// Refresh forces an immediate read, even while a periodic one is in flight.
func (w *Watch) Refresh() {
	w.sub.Trigger()
}

// Latest returns the most recently completed read, or nil.
func (w *Watch) Latest() *types.BalanceView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest
}

func (w *Watch) Stop() {
	w.sub.Stop()
}
