package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values for ItemsProcessed.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the Prometheus counters and gauges for the ETL stages. A run
// is a short-lived process, so the values are exported once at exit through
// WriteTextfile rather than scraped.
type Metrics struct {
	ItemsProcessed  *prometheus.CounterVec // labels: stage, outcome={success,failure}
	RecordsTotal    *prometheus.CounterVec // labels: stage
	BytesDownloaded prometheus.Counter
	StageDuration   *prometheus.GaugeVec // labels: stage
	LastRun         *prometheus.GaugeVec // labels: stage

	registry *prometheus.Registry
}

// NewMetrics creates the stage metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ItemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_etl",
			Name:      "items_total",
			Help:      "Items (years, archives, batches, files) handled per stage and outcome.",
		}, []string{"stage", "outcome"}),
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_etl",
			Name:      "records_total",
			Help:      "Rows written by transform and records inserted by load.",
		}, []string{"stage"}),
		BytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_etl",
			Name:      "bytes_downloaded_total",
			Help:      "Archive bytes written to the landing directory.",
		}),
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "storm_etl",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of the last run of each stage.",
		}, []string{"stage"}),
		LastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "storm_etl",
			Name:      "stage_last_run_timestamp_seconds",
			Help:      "Unix time the stage last finished.",
		}, []string{"stage"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.ItemsProcessed,
		m.RecordsTotal,
		m.BytesDownloaded,
		m.StageDuration,
		m.LastRun,
	)

	return m
}

// NewMetricsForTesting is NewMetrics; the registry is private, so tests can
// create as many as they like.
func NewMetricsForTesting() *Metrics {
	return NewMetrics()
}

// ObserveItem counts one item of stage.
func (m *Metrics) ObserveItem(stage string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.ItemsProcessed.WithLabelValues(stage, outcome).Inc()
}

// ObserveStage records the duration and completion time of a stage run.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration, finished time.Time) {
	m.StageDuration.WithLabelValues(stage).Set(elapsed.Seconds())
	m.LastRun.WithLabelValues(stage).Set(float64(finished.Unix()))
}

// WriteTextfile writes the registry in the text exposition format for the
// node_exporter textfile collector. The write goes through a temp file and a
// rename, so a collector never sees a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
