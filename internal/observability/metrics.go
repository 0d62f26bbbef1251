package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/antonio-leblanc/working-hours/internal/analysis"
)

var (
	eventsSkippedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workhours",
		Subsystem: "analysis",
		Name:      "events_skipped_total",
		Help:      "Raw events that did not contribute, grouped by reason.",
	}, []string{"reason"})

	contributedSeconds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workhours",
		Subsystem: "analysis",
		Name:      "contributed_seconds_total",
		Help:      "Clipped event time folded into aggregates, split into work and personal.",
	}, []string{"kind"})

	runsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workhours",
		Subsystem: "analysis",
		Name:      "runs_total",
		Help:      "Completed analysis runs, labelled by whether the scan stopped early.",
	}, []string{"early_exit"})

	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "workhours",
		Subsystem: "analysis",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a single analysis pass.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	})

	lastRunGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "workhours",
		Subsystem: "analysis",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed analysis run.",
	})
)

func init() {
	prometheus.MustRegister(eventsSkippedCounter, contributedSeconds, runsCounter, runDuration, lastRunGauge)
}

// Recorder feeds analysis outcomes into the process-wide Prometheus registry.
type Recorder struct{}

var _ analysis.Observer = Recorder{}

func (Recorder) EventSkipped(reason string) {
	eventsSkippedCounter.WithLabelValues(reason).Inc()
}

func (Recorder) EventContributed(personal bool, d time.Duration) {
	kind := "work"
	if personal {
		kind = "personal"
	}
	contributedSeconds.WithLabelValues(kind).Add(d.Seconds())
}

func (Recorder) RunFinished(stats analysis.Stats, elapsed time.Duration) {
	early := "false"
	if stats.EarlyExit {
		early = "true"
	}
	runsCounter.WithLabelValues(early).Inc()
	runDuration.Observe(elapsed.Seconds())
	lastRunGauge.Set(float64(time.Now().Unix()))
}
