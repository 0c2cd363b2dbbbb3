package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"lintmux/internal/invoke"
)

const metricsNamespace = "lintmux"

// Metrics is a private Prometheus registry for one process. It is written as
// a node-exporter textfile at the end of a run.
type Metrics struct {
	reg *prometheus.Registry

	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	findings    *prometheus.CounterVec
	toolErrors  *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runDuration prometheus.Gauge
	applied     prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "invocations_total",
			Help:      "Tool invocations by tool and outcome",
		}, []string{"tool", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "invocation_duration_seconds",
			Help:      "Wall time of tool invocations",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"tool"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "findings_total",
			Help:      "Findings by tool and severity",
		}, []string{"tool", "severity"}),
		toolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tool_errors_total",
			Help:      "Tool errors by tool and kind",
		}, []string{"tool", "kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Runs by mode and verdict",
		}, []string{"mode", "verdict"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		applied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "files_formatted_total",
			Help:      "Files rewritten by formatters in apply mode",
		}),
	}
	m.reg.MustRegister(m.invocations, m.duration, m.findings, m.toolErrors, m.runs, m.runDuration, m.applied)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) ObserveOutcome(out invoke.Outcome) {
	m.invocations.WithLabelValues(out.Tool, outcomeStatus(out)).Inc()
	m.duration.WithLabelValues(out.Tool).Observe(out.Duration.Seconds())
	for _, f := range out.Findings {
		m.findings.WithLabelValues(out.Tool, string(f.Severity)).Inc()
	}
	if out.Err != nil {
		m.toolErrors.WithLabelValues(out.Tool, string(out.Err.Kind)).Inc()
	}
}

// ObserveToolError counts errors raised after invocation, such as stale
// formatter edits.
func (m *Metrics) ObserveToolError(err *invoke.ToolError) {
	m.toolErrors.WithLabelValues(err.Tool, string(err.Kind)).Inc()
}

func (m *Metrics) ObserveRun(mode, verdict string, seconds float64, applied int) {
	m.runs.WithLabelValues(mode, verdict).Inc()
	m.runDuration.Set(seconds)
	m.applied.Add(float64(applied))
}

// WriteTextfile writes every metric in the text exposition format. The write
// goes through a temp file and rename, so collectors never read a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
