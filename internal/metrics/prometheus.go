package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Collector with client_golang vectors.
type Prometheus struct {
	decisions       *prometheus.CounterVec
	decisionLatency *prometheus.HistogramVec
	otpVerified     *prometheus.CounterVec
	otpIssued       *prometheus.CounterVec
	batchItems      *prometheus.CounterVec
	bankSubmissions *prometheus.CounterVec
	bankLatency     prometheus.Histogram
	transitions     *prometheus.CounterVec
	circuitState    *prometheus.GaugeVec
	circuitOpens    *prometheus.CounterVec
	expired         prometheus.Counter
}

func NewPrometheus(namespace string) *Prometheus {
	return &Prometheus{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Approver decisions by decision and outcome",
			},
			[]string{"decision", "outcome"},
		),
		decisionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "decision_duration_seconds",
				Help:      "Latency of single and batch decisions",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"decision"},
		),
		otpVerified: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "otp_verifications_total",
				Help:      "OTP verifications by result",
			},
			[]string{"result"},
		),
		otpIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "otp_issued_total",
				Help:      "OTP challenges issued or resent by intent",
			},
			[]string{"intent"},
		),
		batchItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_items_total",
				Help:      "Per-order outcomes inside batch decisions",
			},
			[]string{"outcome"},
		),
		bankSubmissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bank_submissions_total",
				Help:      "pacs.008 submissions by result",
			},
			[]string{"result"},
		),
		bankLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bank_submission_duration_seconds",
				Help:      "Bank gateway round trip",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_transitions_total",
				Help:      "Order status transitions by target status",
			},
			[]string{"to"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Times a circuit breaker opened",
			},
			[]string{"name"},
		),
		expired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_expired_total",
				Help:      "Orders expired by the approval SLA sweeper",
			},
		),
	}
}

// Register adds every vector to registry.
func (p *Prometheus) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		p.decisions,
		p.decisionLatency,
		p.otpVerified,
		p.otpIssued,
		p.batchItems,
		p.bankSubmissions,
		p.bankLatency,
		p.transitions,
		p.circuitState,
		p.circuitOpens,
		p.expired,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Prometheus) RecordDecision(decision, outcome string, duration time.Duration) {
	p.decisions.WithLabelValues(decision, outcome).Inc()
	p.decisionLatency.WithLabelValues(decision).Observe(duration.Seconds())
}

func (p *Prometheus) RecordOTPVerification(result string) {
	p.otpVerified.WithLabelValues(result).Inc()
}

func (p *Prometheus) RecordOTPIssued(intent string) {
	p.otpIssued.WithLabelValues(intent).Inc()
}

func (p *Prometheus) RecordBatchItem(outcome string) {
	p.batchItems.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) RecordBankSubmission(result string, duration time.Duration) {
	p.bankSubmissions.WithLabelValues(result).Inc()
	p.bankLatency.Observe(duration.Seconds())
}

func (p *Prometheus) RecordTransition(to string) {
	p.transitions.WithLabelValues(to).Inc()
}

func (p *Prometheus) RecordCircuitState(name string, state CircuitState) {
	p.circuitState.WithLabelValues(name).Set(float64(state))
	if state == CircuitOpen {
		p.circuitOpens.WithLabelValues(name).Inc()
	}
}

func (p *Prometheus) RecordExpired(count int) {
	p.expired.Add(float64(count))
}

// Expired exposes the sweeper counter for tests and dashboards.
func (p *Prometheus) Expired() prometheus.Counter {
	return p.expired
}
