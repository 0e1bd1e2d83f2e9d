package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksIngested *prometheus.CounterVec
	ticksRejected *prometheus.CounterVec
	retrains      *prometheus.CounterVec
	prediction    *prometheus.GaugeVec
	lastPrice     *prometheus.GaugeVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New registers the recorder's collectors with the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		ticksIngested: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_ticks_ingested_total",
				Help: "Ticks normalized and persisted",
			},
			[]string{"key"},
		),
		ticksRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_ticks_rejected_total",
				Help: "Ticks dropped before persistence",
			},
			[]string{"reason"},
		),
		retrains: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_retrain_total",
				Help: "Retrain attempts by outcome",
			},
			[]string{"result"},
		),
		prediction: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_last_prediction",
				Help: "Last predicted price for a series",
			},
			[]string{"key"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_last_price",
				Help: "Last observed feed price for a symbol",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordTickIngested(key string) {
	r.ticksIngested.WithLabelValues(key).Inc()
}

func (r *Recorder) RecordTickRejected(reason string) {
	r.ticksRejected.WithLabelValues(reason).Inc()
}

// RecordRetrain counts one retrain attempt; result is e.g. trained,
// skipped, empty, failed or dropped.
func (r *Recorder) RecordRetrain(result string) {
	r.retrains.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordPrediction(key string, value float64) {
	r.prediction.WithLabelValues(key).Set(value)
}

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
