// Package metrics exports pipeline counters and stage latencies to
// Prometheus. The explicit Counters struct in the pipeline package stays
// the source of truth for the run summary; these collectors mirror it
// for scraping.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drblury/recordgate/internal/engine/record"
)

const (
	namespace = "recordgate"
	subsystem = "pipeline"
)

// Stage labels for the per-stage latency histogram.
const (
	StageDecode = "decode"
	StageSchema = "schema"
	StageRules  = "rules"
	StageRoute  = "route"
)

// PipelineMetrics tracks per-record outcomes and stage latencies.
type PipelineMetrics struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	registered bool

	receivedTotal prometheus.Counter
	validTotal    prometheus.Counter
	invalidTotal  *prometheus.CounterVec
	stageSeconds  *prometheus.HistogramVec
}

// NewPipelineMetrics creates the collectors. A nil registerer falls back
// to the Prometheus default.
func NewPipelineMetrics(registerer prometheus.Registerer) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PipelineMetrics{
		registerer: registerer,
		receivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_received_total",
			Help:      "Total number of records pulled from the source",
		}),
		validTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_valid_total",
			Help:      "Total number of records routed to the valid sink",
		}),
		invalidTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_invalid_total",
			Help:      "Total number of records routed to a dead-letter sink",
		}, []string{"reason"}),
		stageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stage_duration_seconds",
			Help:      "Time spent per record in each pipeline stage",
			Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
		}, []string{"stage"}),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *PipelineMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.receivedTotal,
		m.validTotal,
		m.invalidTotal,
		m.stageSeconds,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// ObserveVerdict records one terminal verdict.
func (m *PipelineMetrics) ObserveVerdict(v record.Verdict) {
	m.receivedTotal.Inc()
	if v.IsValid() {
		m.validTotal.Inc()
		return
	}
	m.invalidTotal.WithLabelValues(string(v.Reason)).Inc()
}

// ObserveStage records time spent in one stage for one record.
func (m *PipelineMetrics) ObserveStage(stage string, d time.Duration) {
	m.stageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// Handler exposes the default Prometheus registry over HTTP.
func Handler() http.Handler {
	return promhttp.Handler()
}
