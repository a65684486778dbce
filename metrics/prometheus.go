package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "jpycpay"

// PrometheusRecorder exports payment, scan and balance read metrics. Names
// it has no dedicated collector for land in events_total.
type PrometheusRecorder struct {
	transitions *prometheus.CounterVec
	payments    *prometheus.CounterVec
	scans       *prometheus.CounterVec
	readErrors  *prometheus.CounterVec
	readLatency *prometheus.HistogramVec
	events      *prometheus.CounterVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder registers the collectors on the default registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	return NewPrometheusRecorderWith(prometheus.DefaultRegisterer)
}

// NewPrometheusRecorderWith registers the collectors on reg.
func NewPrometheusRecorderWith(reg prometheus.Registerer) *PrometheusRecorder {
	p := &PrometheusRecorder{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "transitions_total",
			Help:      "Payment controller state transitions by target state",
		}, []string{"state", "token"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "outcomes_total",
			Help:      "Finished payments by result",
		}, []string{"result", "token"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "payloads_total",
			Help:      "Scanned payloads by result and payload kind",
		}, []string{"result", "kind"}),
		readErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "balance",
			Name:      "read_errors_total",
			Help:      "Token reads that failed after retries",
		}, []string{"op", "token", "kind"}),
		readLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "balance",
			Name:      "read_seconds",
			Help:      "Token read latency including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "token"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Other library events",
		}, []string{"type", "token"}),
	}

	reg.MustRegister(p.transitions, p.payments, p.scans, p.readErrors, p.readLatency, p.events)
	return p
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	switch name {
	case PaymentTransition:
		p.transitions.WithLabelValues(labels["state"], labels["token"]).Inc()
	case PaymentSucceeded:
		p.payments.WithLabelValues("success", labels["token"]).Inc()
	case PaymentFailed:
		p.payments.WithLabelValues("failed", labels["token"]).Inc()
	case ScanParsed:
		p.scans.WithLabelValues("parsed", labels["kind"]).Inc()
	case ScanRejected:
		p.scans.WithLabelValues("rejected", labels["kind"]).Inc()
	case BalanceReadError:
		p.readErrors.WithLabelValues(labels["op"], labels["token"], labels["kind"]).Inc()
	default:
		p.events.WithLabelValues(name, labels["token"]).Inc()
	}
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	if name == BalanceRead {
		p.readLatency.WithLabelValues(labels["op"], labels["token"]).Observe(d.Seconds())
	}
}
