package clients

import (
	"context"
	"sync"
	"time"
)

// Schedule is the refresh cadence a subscriber asks the provider for.
type Schedule struct {
	Interval time.Duration
	Enabled  bool
}

// Subscription is a running refresh registration.
type Subscription interface {
	// Trigger requests an immediate run. It never waits for an in-flight run.
	Trigger()
	Stop()
}

// Scheduler runs subscription tasks on the provider's timers.
type Scheduler interface {
	Schedule(ctx context.Context, schedule Schedule, task func(context.Context)) Subscription
}

// TickerScheduler runs each task immediately, then on every tick while the
// schedule is enabled. Triggered runs always execute.
type TickerScheduler struct{}

var _ Scheduler = TickerScheduler{}

func (TickerScheduler) Schedule(ctx context.Context, schedule Schedule, task func(context.Context)) Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &tickerSubscription{
		trigger: make(chan struct{}, 1),
		cancel:  cancel,
	}

	sub.wg.Add(1)
	go sub.loop(ctx, schedule, task)

	return sub
}

type tickerSubscription struct {
	trigger chan struct{}
	cancel  context.CancelFunc
	once    sync.Once
	wg      sync.WaitGroup
}

func (s *tickerSubscription) loop(ctx context.Context, schedule Schedule, task func(context.Context)) {
	defer s.wg.Done()

	var tick <-chan time.Time
	if schedule.Enabled && schedule.Interval > 0 {
		ticker := time.NewTicker(schedule.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	if schedule.Enabled {
		s.run(ctx, task)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.run(ctx, task)
		case <-s.trigger:
			s.run(ctx, task)
		}
	}
}

// run executes the task on its own goroutine so a slow periodic run cannot
// hold back a triggered one.
func (s *tickerSubscription) run(ctx context.Context, task func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		task(ctx)
	}()
}

func (s *tickerSubscription) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Stop cancels the subscription and waits for in-flight runs to return.
func (s *tickerSubscription) Stop() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}
