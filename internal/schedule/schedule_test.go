package schedule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lintmux/internal/batch"
	"lintmux/internal/finding"
	"lintmux/internal/invoke"
	"lintmux/internal/registry"
	"lintmux/internal/textutil"
)

type fakeExec struct {
	mu        sync.Mutex
	active    map[string]int
	maxActive map[string]int
	total     int32
	maxTotal  int32
	delay     time.Duration
	calls     []string
	onRun     func(req invoke.Request) invoke.Outcome
}

func newFake(delay time.Duration) *fakeExec {
	return &fakeExec{active: map[string]int{}, maxActive: map[string]int{}, delay: delay}
}

func (f *fakeExec) Run(ctx context.Context, req invoke.Request) invoke.Outcome {
	f.mu.Lock()
	f.active[req.Spec.Code]++
	if f.active[req.Spec.Code] > f.maxActive[req.Spec.Code] {
		f.maxActive[req.Spec.Code] = f.active[req.Spec.Code]
	}
	f.calls = append(f.calls, req.Spec.Code)
	f.mu.Unlock()
	n := atomic.AddInt32(&f.total, 1)
	for {
		m := atomic.LoadInt32(&f.maxTotal)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxTotal, m, n) {
			break
		}
	}

	time.Sleep(f.delay)

	var out invoke.Outcome
	if f.onRun != nil {
		out = f.onRun(req)
	} else {
		out = invoke.Outcome{Tool: req.Spec.Code, Batch: req.Batch, Files: req.Files}
		for _, p := range req.Files {
			out.Findings = append(out.Findings, finding.Finding{Code: req.Spec.Code, Path: p, Severity: finding.SeverityError, Message: "x"})
		}
	}

	atomic.AddInt32(&f.total, -1)
	f.mu.Lock()
	f.active[req.Spec.Code]--
	f.mu.Unlock()
	return out
}

func specs(t *testing.T, ls ...registry.LinterSpec) map[string]*registry.LinterSpec {
	t.Helper()
	r, err := registry.New(ls, registry.Settings{})
	require.NoError(t, err)
	out := map[string]*registry.LinterSpec{}
	for _, s := range r.All() {
		out[s.Code] = s
	}
	return out
}

func linter(code string, role registry.Role, conc int) registry.LinterSpec {
	return registry.LinterSpec{Code: code, Role: role, Include: []string{"**"}, Command: []string{code, registry.Placeholder}, Concurrency: conc}
}

func batchesFor(spec *registry.LinterSpec, n int) []batch.Batch {
	out := make([]batch.Batch, n)
	for i := range out {
		out[i] = batch.Batch{Tool: spec, Index: i, Files: []string{spec.Code + "_" + string(rune('a'+i))}}
	}
	return out
}

func TestRunKeepsSubmissionOrder(t *testing.T) {
	s := specs(t, linter("A", registry.RoleChecker, 0), linter("B", registry.RoleChecker, 0))
	bs := append(batchesFor(s["A"], 4), batchesFor(s["B"], 3)...)

	res := New(4, t.TempDir(), newFake(5*time.Millisecond)).Run(context.Background(), bs)
	require.Len(t, res, 7)
	for i, r := range res {
		assert.Equal(t, i, r.Seq)
		assert.Equal(t, bs[i].Files, r.Outcome.Files)
		assert.Nil(t, r.Outcome.Err)
	}
}

func TestRunRespectsGlobalAndToolLimits(t *testing.T) {
	s := specs(t, linter("FMT", registry.RoleFormatter, 1), linter("C", registry.RoleChecker, 0))
	bs := append(batchesFor(s["FMT"], 5), batchesFor(s["C"], 8)...)
	fake := newFake(20 * time.Millisecond)

	New(3, t.TempDir(), fake).Run(context.Background(), bs)
	assert.LessOrEqual(t, int(fake.maxTotal), 3)
	assert.Equal(t, 1, fake.maxActive["FMT"])
	assert.Len(t, fake.calls, 13)
}

func TestRunSerialWithOneJob(t *testing.T) {
	s := specs(t, linter("A", registry.RoleChecker, 0), linter("B", registry.RoleChecker, 0))
	bs := append(batchesFor(s["A"], 3), batchesFor(s["B"], 3)...)
	fake := newFake(time.Millisecond)

	New(1, t.TempDir(), fake).Run(context.Background(), bs)
	assert.Equal(t, int32(1), fake.maxTotal)
}

func TestToolErrorDoesNotStopOthers(t *testing.T) {
	s := specs(t, linter("BAD", registry.RoleChecker, 0), linter("GOOD", registry.RoleChecker, 0))
	bs := append(batchesFor(s["BAD"], 2), batchesFor(s["GOOD"], 2)...)
	fake := newFake(0)
	fake.onRun = func(req invoke.Request) invoke.Outcome {
		out := invoke.Outcome{Tool: req.Spec.Code, Batch: req.Batch, Files: req.Files}
		if req.Spec.Code == "BAD" {
			out.Err = &invoke.ToolError{Tool: "BAD", Kind: invoke.KindExit, ExitCode: 2}
		}
		return out
	}

	res := New(2, t.TempDir(), fake).Run(context.Background(), bs)
	assert.NotNil(t, res[0].Outcome.Err)
	assert.NotNil(t, res[1].Outcome.Err)
	assert.Nil(t, res[2].Outcome.Err)
	assert.Nil(t, res[3].Outcome.Err)
}

func TestCancellationStopsDispatch(t *testing.T) {
	s := specs(t, linter("A", registry.RoleChecker, 0))
	bs := batchesFor(s["A"], 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := newFake(0)
	fake.onRun = func(req invoke.Request) invoke.Outcome {
		cancel()
		return invoke.Outcome{Tool: req.Spec.Code, Batch: req.Batch, Files: req.Files}
	}

	res := New(1, t.TempDir(), fake).Run(ctx, bs)
	require.Len(t, res, 5)
	assert.Nil(t, res[0].Outcome.Err, "completed work is preserved")
	for _, r := range res[1:] {
		require.NotNil(t, r.Outcome.Err)
		assert.True(t, r.Outcome.Err.Cancelled())
	}
	assert.Len(t, fake.calls, 1)
}

func TestFormatterBatchesAreFingerprinted(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("# a\n"), 0o644))
	s := specs(t, linter("FMT", registry.RoleFormatter, 0), linter("C", registry.RoleChecker, 0))
	bs := []batch.Batch{
		{Tool: s["FMT"], Files: []string{"a.md", "gone.md"}},
		{Tool: s["C"], Files: []string{"a.md"}},
	}
	res := New(2, root, newFake(0)).Run(context.Background(), bs)
	assert.Equal(t, textutil.HashSHA256([]byte("# a\n")), res[0].Fingerprints["a.md"])
	assert.Equal(t, textutil.AbsentFingerprint, res[0].Fingerprints["gone.md"])
	assert.Nil(t, res[1].Fingerprints)
}

func TestRunEmpty(t *testing.T) {
	assert.Empty(t, New(0, "", newFake(0)).Run(context.Background(), nil))
	assert.GreaterOrEqual(t, DefaultJobs(), 1)
}

func TestRunSerialKeepsSubmissionOrderAcrossTools(t *testing.T) {
	s := specs(t, linter("A", registry.RoleChecker, 0), linter("B", registry.RoleChecker, 0))
	bs := append(batchesFor(s["A"], 2), batchesFor(s["B"], 2)...)
	var order []string
	fake := newFake(0)
	fake.onRun = func(req invoke.Request) invoke.Outcome {
		order = append(order, fmt.Sprintf("%s%d", req.Spec.Code, req.Batch))
		return invoke.Outcome{Tool: req.Spec.Code, Batch: req.Batch, Files: req.Files}
	}

	New(1, t.TempDir(), fake).Run(context.Background(), bs)
	assert.Equal(t, []string{"A0", "A1", "B0", "B1"}, order)
}
