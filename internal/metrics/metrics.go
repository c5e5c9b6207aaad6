package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for receipt checks. A nil *Metrics is a
// valid no-op.
type Metrics struct {
	// Checks by result ("valid", "invalid", "error") and source ("file", "text")
	ChecksTotal *prometheus.CounterVec

	// Text recognition latency by engine
	RecognizeLatency *prometheus.HistogramVec

	// OCR and aggregate confidence of finished checks
	Confidence *prometheus.HistogramVec

	// Rule reloads by result ("ok", "error")
	RuleReloads *prometheus.CounterVec
}

// New creates a Metrics instance registered with the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics with reg
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_checks_total",
			Help: "Total receipt checks by result and source",
		}, []string{"result", "source"}),

		RecognizeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "receipt_recognize_duration_seconds",
			Help:    "Duration of text recognition by engine",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"engine"}),

		Confidence: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "receipt_confidence_percent",
			Help:    "OCR and aggregate confidence of checked receipts",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}, []string{"kind"}), // kind: "ocr", "aggregate"

		RuleReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_rule_reloads_total",
			Help: "Total rule set reloads by result",
		}, []string{"result"}),
	}
}

// IncrementCheck records a finished check
func (m *Metrics) IncrementCheck(result, source string) {
	if m != nil {
		m.ChecksTotal.WithLabelValues(result, source).Inc()
	}
}

// ObserveRecognize records how long an engine took to read a file
func (m *Metrics) ObserveRecognize(engine string, d time.Duration) {
	if m != nil {
		m.RecognizeLatency.WithLabelValues(engine).Observe(d.Seconds())
	}
}

// ObserveConfidence records the confidences of a verdict
func (m *Metrics) ObserveConfidence(ocr, aggregate float64) {
	if m != nil {
		m.Confidence.WithLabelValues("ocr").Observe(ocr)
		m.Confidence.WithLabelValues("aggregate").Observe(aggregate)
	}
}

// IncrementReload records a rule set reload
func (m *Metrics) IncrementReload(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.RuleReloads.WithLabelValues(result).Inc()
}
