package invoke

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lintmux/internal/registry"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are /bin/sh scripts")
	}
}

func writeTool(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tool.sh")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0o755))
	return p
}

func toolSpec(t *testing.T, script string, timeout time.Duration) *registry.LinterSpec {
	t.Helper()
	r, err := registry.New([]registry.LinterSpec{{
		Code:    "T",
		Include: []string{"**"},
		Command: []string{"/bin/sh", script, registry.Placeholder},
		Timeout: timeout,
	}}, registry.Settings{})
	require.NoError(t, err)
	s, _ := r.Get("T")
	return s
}

const echoFindings = `while IFS= read -r p; do
  printf '{"code":"T","path":"%s","severity":"error","message":"bad"}\n' "$p"
done < "$1"
exit 1
`

func TestRunFindings(t *testing.T) {
	requireShell(t)
	spec := toolSpec(t, writeTool(t, echoFindings), 0)
	r := NewRunner(t.TempDir())

	out := r.Run(context.Background(), Request{Spec: spec, Files: []string{"a.py", "b/c.py"}})
	require.Nil(t, out.Err)
	assert.Equal(t, 1, out.ExitCode)
	require.Len(t, out.Findings, 2)
	assert.Equal(t, "a.py", out.Findings[0].Path)
	assert.Equal(t, "b/c.py", out.Findings[1].Path)

	require.NotEmpty(t, out.ArtifactPath)
	_, err := os.Stat(out.ArtifactPath)
	assert.True(t, os.IsNotExist(err), "path list must be removed")
}

func TestRunClean(t *testing.T) {
	requireShell(t)
	spec := toolSpec(t, writeTool(t, "exit 0\n"), 0)
	out := NewRunner("").Run(context.Background(), Request{Spec: spec, Files: []string{"a"}})
	require.Nil(t, out.Err)
	assert.Empty(t, out.Findings)
	assert.Equal(t, 0, out.ExitCode)
}

func TestRunUnexpectedExitIsToolError(t *testing.T) {
	requireShell(t)
	spec := toolSpec(t, writeTool(t, "echo 'boom' >&2\nexit 3\n"), 0)
	out := NewRunner(t.TempDir()).Run(context.Background(), Request{Spec: spec, Files: []string{"a"}})
	require.NotNil(t, out.Err)
	assert.Equal(t, KindExit, out.Err.Kind)
	assert.Equal(t, 3, out.Err.ExitCode)
	assert.Contains(t, out.Err.Stderr, "boom")

	_, err := os.Stat(out.ArtifactPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	requireShell(t)
	spec := toolSpec(t, writeTool(t, "sleep 30 &\nsleep 30\n"), 200*time.Millisecond)
	start := time.Now()
	out := NewRunner(t.TempDir()).Run(context.Background(), Request{Spec: spec, Files: []string{"a"}})
	require.NotNil(t, out.Err)
	assert.True(t, out.Err.Timeout())
	assert.True(t, errors.Is(out.Err, ErrTimeout))
	assert.Less(t, time.Since(start), 10*time.Second)

	_, err := os.Stat(out.ArtifactPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRunCancelled(t *testing.T) {
	requireShell(t)
	spec := toolSpec(t, writeTool(t, "sleep 30\n"), time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()
	out := NewRunner(t.TempDir()).Run(ctx, Request{Spec: spec, Files: []string{"a"}})
	require.NotNil(t, out.Err)
	assert.True(t, out.Err.Cancelled())

	_, err := os.Stat(out.ArtifactPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRunAlreadyCancelledSpawnsNothing(t *testing.T) {
	spec := toolSpec(t, "/nonexistent", 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := NewRunner(t.TempDir()).Run(ctx, Request{Spec: spec, Files: []string{"a"}})
	require.NotNil(t, out.Err)
	assert.Equal(t, KindCancelled, out.Err.Kind)
	assert.Empty(t, out.ArtifactPath)
}

func TestRunSpawnFailure(t *testing.T) {
	r, err := registry.New([]registry.LinterSpec{{
		Code:    "MISSING",
		Include: []string{"**"},
		Command: []string{"/definitely/not/a/tool", registry.Placeholder},
	}}, registry.Settings{})
	require.NoError(t, err)
	spec, _ := r.Get("MISSING")

	out := NewRunner(t.TempDir()).Run(context.Background(), Request{Spec: spec, Files: []string{"a"}})
	require.NotNil(t, out.Err)
	assert.Equal(t, KindSpawn, out.Err.Kind)

	_, serr := os.Stat(out.ArtifactPath)
	assert.True(t, os.IsNotExist(serr))
}

func TestRunMalformedOutput(t *testing.T) {
	requireShell(t)
	body := `echo '{"code":"T","severity":"error","message":"ok"}'
echo 'garbage'
exit 1
`
	spec := toolSpec(t, writeTool(t, body), 0)
	out := NewRunner(t.TempDir()).Run(context.Background(), Request{Spec: spec, Files: []string{"a"}})
	require.NotNil(t, out.Err)
	assert.Equal(t, KindMalformed, out.Err.Kind)
	assert.Len(t, out.Findings, 1, "records before the malformed one are kept")
}

func TestSubstitute(t *testing.T) {
	got := Substitute([]string{"tool", "--x", "@" + registry.Placeholder}, "/tmp/p.txt")
	assert.Equal(t, []string{"tool", "--x", "@/tmp/p.txt"}, got)
}

func TestLimitedBuffer(t *testing.T) {
	b := &limitedBuffer{max: 4}
	n, err := b.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "abcd\n[stderr truncated]", b.String())
}

func TestToolErrorMessages(t *testing.T) {
	e := &ToolError{Tool: "T", Kind: KindExit, Batch: 2, ExitCode: 7}
	assert.Equal(t, "T batch 2: exited with code 7", e.Error())

	s := &ToolError{Tool: "F", Kind: KindStale, Path: "a.go", Err: ErrStale}
	assert.Equal(t, "F a.go: stale: file changed since dispatch", s.Error())
	assert.True(t, errors.Is(s, ErrStale))
}
