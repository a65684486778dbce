package metrics

import "time"

// Metric names recorded by the payment core.
const (
	PaymentTransition = "payment_transition"
	PaymentSucceeded  = "payment_succeeded"
	PaymentFailed     = "payment_failed"
	BalanceRead       = "balance_read"
	BalanceReadError  = "balance_read_error"
	HistoryError      = "history_error"
	ScanParsed        = "scan_parsed"
	ScanRejected      = "scan_rejected"
)

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
