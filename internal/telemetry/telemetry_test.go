package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lintmux/internal/finding"
	"lintmux/internal/invoke"
	"lintmux/internal/registry"
)

type stubExec struct {
	out invoke.Outcome
	got invoke.Request
}

func (s *stubExec) Run(_ context.Context, req invoke.Request) invoke.Outcome {
	s.got = req
	return s.out
}

func TestExecutorRecordsOutcome(t *testing.T) {
	m := NewMetrics()
	stub := &stubExec{out: invoke.Outcome{
		Tool:     "LINT",
		Duration: 150 * time.Millisecond,
		ExitCode: 1,
		Findings: []finding.Finding{
			{Code: "LINT", Severity: finding.SeverityError, Message: "a"},
			{Code: "LINT", Severity: finding.SeverityWarning, Message: "b"},
			{Code: "LINT", Severity: finding.SeverityError, Message: "c"},
		},
	}}
	e := &Executor{Next: stub, Metrics: m}
	spec := &registry.LinterSpec{Code: "LINT"}

	out := e.Run(context.Background(), invoke.Request{Spec: spec, Batch: 2, Files: []string{"a.go"}})
	assert.Len(t, out.Findings, 3)
	assert.Equal(t, 2, stub.got.Batch)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("LINT", "findings")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.findings.WithLabelValues("LINT", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.findings.WithLabelValues("LINT", "warning")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestExecutorRecordsToolError(t *testing.T) {
	m := NewMetrics()
	stub := &stubExec{out: invoke.Outcome{
		Tool: "LINT",
		Err:  &invoke.ToolError{Tool: "LINT", Kind: invoke.KindTimeout, Err: invoke.ErrTimeout},
	}}
	e := &Executor{Next: stub, Metrics: m}
	e.Run(context.Background(), invoke.Request{Spec: &registry.LinterSpec{Code: "LINT"}})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("LINT", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolErrors.WithLabelValues("LINT", "timeout")))
}

func TestExecutorWithoutMetrics(t *testing.T) {
	stub := &stubExec{out: invoke.Outcome{Tool: "LINT"}}
	e := &Executor{Next: stub}
	out := e.Run(context.Background(), invoke.Request{Spec: &registry.LinterSpec{Code: "LINT"}})
	assert.Nil(t, out.Err)
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObserveRun("check", "fail", 1.5, 0)
	m.ObserveToolError(&invoke.ToolError{Tool: "FMT", Kind: invoke.KindStale})

	p := filepath.Join(t.TempDir(), "lintmux.prom")
	require.NoError(t, m.WriteTextfile(p))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	text := string(b)
	assert.Contains(t, text, `lintmux_runs_total{mode="check",verdict="fail"} 1`)
	assert.Contains(t, text, `lintmux_tool_errors_total{kind="stale",tool="FMT"} 1`)
	assert.Contains(t, text, "lintmux_last_run_duration_seconds 1.5")
}

func TestRunSpanDoesNotPanicWithoutProvider(t *testing.T) {
	ctx, span := StartRun(context.Background(), "id", "check")
	require.NotNil(t, ctx)
	EndRun(span, "pass", false, nil)
	_, span = StartRun(context.Background(), "id", "apply")
	EndRun(span, "fail", true, context.Canceled)
}
