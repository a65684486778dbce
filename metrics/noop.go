package metrics

import "time"

// NoopRecorder discards everything. It is the default for every component.
type NoopRecorder struct{}

var _ Recorder = NoopRecorder{}

func (NoopRecorder) IncCounter(name string, labels map[string]string) {}

func (NoopRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {}
