// Package metrics exposes collection run telemetry in the Prometheus
// textfile format, so a node_exporter textfile collector (or anything that
// reads the exposition format) can pick it up between runs.
package metrics

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/communitypulse/pulse/internal/community"
)

// Namespace for all pulse metrics
const namespace = "pulse"

// TextfileName is the exposition file written under the data directory.
const TextfileName = "pulse_metrics.prom"

// Recorder tracks per-run telemetry on its own registry, so a run writes a
// self-contained exposition file without the default Go runtime collectors.
type Recorder struct {
	registry *prometheus.Registry

	sourceUp       *prometheus.GaugeVec
	sourceDuration *prometheus.GaugeVec
	runDuration    prometheus.Gauge
	lastRun        prometheus.Gauge
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	return &Recorder{
		registry: registry,
		sourceUp: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_up",
			Help:      "Outcome of the last collection of this source (1=ok, 0.5=partial, 0=failed)",
		}, []string{"source", "method"}),
		sourceDuration: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_collect_duration_seconds",
			Help:      "Wall-clock time spent collecting this source in the last run",
		}, []string{"source"}),
		runDuration: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock time of the last collection run",
		}),
		lastRun: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last collection run",
		}),
	}
}

// ObserveSource records one source's outcome.
func (r *Recorder) ObserveSource(name string, status community.Status, method community.Method, d time.Duration) {
	var up float64
	switch status {
	case community.StatusOK:
		up = 1
	case community.StatusPartial:
		up = 0.5
	}
	r.sourceUp.WithLabelValues(name, string(method)).Set(up)
	r.sourceDuration.WithLabelValues(name).Set(d.Seconds())
}

// ObserveRun records the run-level outcome.
func (r *Recorder) ObserveRun(started time.Time, elapsed time.Duration) {
	r.runDuration.Set(elapsed.Seconds())
	r.lastRun.Set(float64(started.Unix()))
}

// WriteTextfile renders the registry into path atomically. Textfile
// collectors read the file at arbitrary times, so a partially written file
// must never be visible.
func (r *Recorder) WriteTextfile(path string) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("encoding metric family %q: %w", mf.GetName(), err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %q: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming metrics file into place: %w", err)
	}
	return nil
}
