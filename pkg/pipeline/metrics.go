package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records pipeline stage outcomes and latencies.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	ingestTotal   *prometheus.CounterVec
	segmentsSaved prometheus.Counter
}

// NewMetrics creates pipeline metrics registered on the given registerer.
// Pass nil to skip registration (tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "genminute",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 3, 10),
		}, []string{"stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genminute",
			Name:      "pipeline_stage_failures_total",
			Help:      "Stage failures by stage and error code.",
		}, []string{"stage", "code"}),
		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genminute",
			Name:      "pipeline_ingest_total",
			Help:      "Completed ingestions by outcome.",
		}, []string{"outcome"}),
		segmentsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "genminute",
			Name:      "pipeline_segments_saved_total",
			Help:      "Transcript segments persisted.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.stageDuration, m.stageFailures, m.ingestTotal, m.segmentsSaved)
	}
	return m
}

func (m *Metrics) observeStage(stage string, start time.Time) {
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) stageFailed(stage, code string) {
	m.stageFailures.WithLabelValues(stage, code).Inc()
}

func (m *Metrics) ingestDone(outcome string) {
	m.ingestTotal.WithLabelValues(outcome).Inc()
}
