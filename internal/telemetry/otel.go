// Package telemetry records spans and metrics for runs and invocations.
// Spans and otel instruments are no-ops unless the embedding process installs
// providers; the Prometheus registry is always local and only written out on
// request.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"lintmux/internal/invoke"
)

var (
	tracer = otel.Tracer("lintmux")
	meter  = otel.Meter("lintmux")
)

var (
	invokeLatency metric.Float64Histogram
	invokeTotal   metric.Int64Counter
	findingsTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		invokeLatency, err = meter.Float64Histogram(
			"lintmux_invocation_duration_seconds",
			metric.WithDescription("Duration of tool invocations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		invokeTotal, err = meter.Int64Counter(
			"lintmux_invocations_total",
			metric.WithDescription("Total number of tool invocations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		findingsTotal, err = meter.Int64Counter(
			"lintmux_findings_total",
			metric.WithDescription("Total number of findings reported by tools"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// StartRun opens the span covering one whole run.
func StartRun(ctx context.Context, runID, mode string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "lintmux.run",
		trace.WithAttributes(
			attribute.String("lintmux.run_id", runID),
			attribute.String("lintmux.mode", mode),
		),
	)
}

// EndRun records the verdict on the run span and ends it.
func EndRun(span trace.Span, verdict string, cancelled bool, err error) {
	span.SetAttributes(
		attribute.String("lintmux.verdict", verdict),
		attribute.Bool("lintmux.cancelled", cancelled),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Executor wraps another executor with a span per invocation and records
// otel and Prometheus metrics for its outcome.
type Executor struct {
	Next    invoke.Executor
	Metrics *Metrics
}

var _ invoke.Executor = (*Executor)(nil)

func (e *Executor) Run(ctx context.Context, req invoke.Request) invoke.Outcome {
	ctx, span := tracer.Start(ctx, "lintmux.invoke",
		trace.WithAttributes(
			attribute.String("lintmux.tool", req.Spec.Code),
			attribute.Int("lintmux.batch", req.Batch),
			attribute.Int("lintmux.files", len(req.Files)),
		),
	)
	defer span.End()

	out := e.Next.Run(ctx, req)

	span.SetAttributes(
		attribute.Int("lintmux.exit_code", out.ExitCode),
		attribute.Int("lintmux.findings", len(out.Findings)),
	)
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, string(out.Err.Kind))
	}
	recordInvocation(ctx, out)
	if e.Metrics != nil {
		e.Metrics.ObserveOutcome(out)
	}
	return out
}

func recordInvocation(ctx context.Context, out invoke.Outcome) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", out.Tool),
		attribute.String("status", outcomeStatus(out)),
	)
	invokeLatency.Record(ctx, out.Duration.Seconds(), attrs)
	invokeTotal.Add(ctx, 1, attrs)
	if n := len(out.Findings); n > 0 {
		findingsTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("tool", out.Tool)))
	}
}

func outcomeStatus(out invoke.Outcome) string {
	switch {
	case out.Err != nil:
		return string(out.Err.Kind)
	case len(out.Findings) > 0:
		return "findings"
	default:
		return "clean"
	}
}
