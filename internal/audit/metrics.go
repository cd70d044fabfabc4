package audit

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

// MetricsRecorder exposes pipeline counters through a dedicated
// prometheus registry. Since this is a batch job, not a server, there is
// no /metrics endpoint to scrape; instead the registry's text exposition
// is written to a file once at run end when --metrics-path is set, for a
// node-exporter textfile collector or CI artifact store to pick up.
type MetricsRecorder struct {
	registry       *prometheus.Registry
	rowsDropped    *prometheus.CounterVec
	stageDurations *prometheus.HistogramVec
}

// NewMetricsRecorder builds a fresh registry with the pipeline's metrics
// registered: the entropyguard_rows_dropped_total{reason=...} counter and
// the entropyguard_stage_duration_seconds{stage=...} histogram.
func NewMetricsRecorder() *MetricsRecorder {
	reg := prometheus.NewRegistry()
	rowsDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "entropyguard_rows_dropped_total",
		Help: "Rows dropped or suppressed by the pipeline, by audit reason.",
	}, []string{"reason"})
	stageDurations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "entropyguard_stage_duration_seconds",
		Help: "Wall-clock time spent in each pipeline stage per batch.",
	}, []string{"stage"})
	reg.MustRegister(rowsDropped, stageDurations)
	return &MetricsRecorder{registry: reg, rowsDropped: rowsDropped, stageDurations: stageDurations}
}

// RecordDrop increments the drop counter for reason.
func (m *MetricsRecorder) RecordDrop(reason domain.AuditReason) {
	m.rowsDropped.WithLabelValues(string(reason)).Inc()
}

// ObserveStage records how long a stage took for one batch.
func (m *MetricsRecorder) ObserveStage(stage string, seconds float64) {
	m.stageDurations.WithLabelValues(stage).Observe(seconds)
}

// WriteFile dumps the registry's current state in Prometheus text
// exposition format to path. Failure to write never fails the run; the
// caller logs it as a warning, matching the "never a crash" guard policy.
func (m *MetricsRecorder) WriteFile(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer f.Close()

	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, fam := range families {
		if err := enc.Encode(fam); err != nil {
			return fmt.Errorf("write metric family %s: %w", fam.GetName(), err)
		}
	}
	return nil
}
