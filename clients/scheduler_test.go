package clients

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickerSchedulerPeriodic(t *testing.T) {
	var runs atomic.Int32

	sub := TickerScheduler{}.Schedule(context.Background(), Schedule{Interval: 5 * time.Millisecond, Enabled: true}, func(context.Context) {
		runs.Add(1)
	})
	defer sub.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestTickerSchedulerDisabledStillTriggers(t *testing.T) {
	var runs atomic.Int32

	sub := TickerScheduler{}.Schedule(context.Background(), Schedule{Interval: time.Millisecond, Enabled: false}, func(context.Context) {
		runs.Add(1)
	})
	defer sub.Stop()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())

	sub.Trigger()
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
}

func TestTriggerNotBlockedByInFlightRun(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32

	sub := TickerScheduler{}.Schedule(context.Background(), Schedule{Interval: time.Hour, Enabled: true}, func(ctx context.Context) {
		if started.Add(1) == 1 {
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
	})

	assert.Eventually(t, func() bool { return started.Load() == 1 }, time.Second, time.Millisecond)

	sub.Trigger()
	assert.Eventually(t, func() bool { return started.Load() == 2 }, time.Second, time.Millisecond)

	close(release)
	sub.Stop()
}
