package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	decisions       *prometheus.CounterVec
	gateLatency     *prometheus.HistogramVec
	pipelineLatency prometheus.Histogram
	healthState     prometheus.Gauge
	riskDrawdown    *prometheus.GaugeVec
	riskCVaR        *prometheus.GaugeVec
	riskConcurrent  *prometheus.GaugeVec
	idempotencyHits prometheus.Counter
	errorsTotal     *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aurora_decisions_total",
				Help: "Total decisions by symbol, outcome, and primary reason",
			},
			[]string{"symbol", "outcome", "reason"},
		),
		gateLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aurora_gate_duration_seconds",
				Help:    "Per-gate evaluation duration in seconds",
				Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
			},
			[]string{"gate"},
		),
		pipelineLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "aurora_decision_duration_seconds",
				Help:    "End-to-end decision duration in seconds",
				Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		healthState: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "aurora_health_state",
				Help: "Health guard state: 0=NORMAL 1=WARN 2=COOL_OFF 3=HALT",
			},
		),
		riskDrawdown: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aurora_risk_drawdown_pct",
				Help: "Daily drawdown percent per account",
			},
			[]string{"account"},
		),
		riskCVaR: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aurora_risk_cvar",
				Help: "Tail-loss estimate per account",
			},
			[]string{"account"},
		),
		riskConcurrent: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aurora_risk_concurrent_positions",
				Help: "Open concurrent positions per account",
			},
			[]string{"account"},
		),
		idempotencyHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "aurora_idempotency_hits_total",
				Help: "Decisions replayed from the idempotency cache",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aurora_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordDecision counts one terminal decision.
func (r *Recorder) RecordDecision(symbol string, allow bool, reason string) {
	outcome := "deny"
	if allow {
		outcome = "allow"
	}
	r.decisions.WithLabelValues(symbol, outcome, reason).Inc()
}

// RecordGateLatency observes one gate evaluation duration.
func (r *Recorder) RecordGateLatency(gate string, d time.Duration) {
	r.gateLatency.WithLabelValues(gate).Observe(d.Seconds())
}

// RecordPipelineLatency observes one end-to-end decision duration.
func (r *Recorder) RecordPipelineLatency(d time.Duration) {
	r.pipelineLatency.Observe(d.Seconds())
}

// RecordHealthState sets the current health guard state.
func (r *Recorder) RecordHealthState(state int) {
	r.healthState.Set(float64(state))
}

// RecordRisk publishes one account's risk gauges.
func (r *Recorder) RecordRisk(account string, drawdownPct, cvar float64, concurrent int) {
	r.riskDrawdown.WithLabelValues(account).Set(drawdownPct)
	r.riskCVaR.WithLabelValues(account).Set(cvar)
	r.riskConcurrent.WithLabelValues(account).Set(float64(concurrent))
}

// RecordIdempotencyHit counts one replayed decision.
func (r *Recorder) RecordIdempotencyHit() {
	r.idempotencyHits.Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
