package invoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"lintmux/internal/finding"
	"lintmux/internal/logging"
	"lintmux/internal/registry"
)

const maxStderr = 64 * 1024

// Request is one tool execution against one batch.
type Request struct {
	Spec    *registry.LinterSpec
	Batch   int
	Files   []string
	Dir     string
	Timeout time.Duration
}

// Outcome is everything the aggregator needs from one invocation.
type Outcome struct {
	Tool         string
	Batch        int
	Files        []string
	Findings     []finding.Finding
	ExitCode     int
	Stderr       string
	Duration     time.Duration
	Err          *ToolError
	ArtifactPath string
}

// Runner spawns tools. TempDir is where path-list artifacts are created
// (os.TempDir when empty).
type Runner struct {
	TempDir string
	Env     []string
	log     *slog.Logger
}

func NewRunner(tempDir string) *Runner {
	return &Runner{TempDir: tempDir, log: logging.New("invoke")}
}

func (r *Runner) logger() *slog.Logger {
	if r.log == nil {
		r.log = logging.New("invoke")
	}
	return r.log
}

// Run executes one invocation. The path-list artifact is removed on every
// exit path.
func (r *Runner) Run(ctx context.Context, req Request) Outcome {
	start := time.Now()
	out := Outcome{Tool: req.Spec.Code, Batch: req.Batch, Files: req.Files, ExitCode: -1}
	fail := func(kind ErrorKind, err error) Outcome {
		out.Duration = time.Since(start)
		out.Err = &ToolError{Tool: req.Spec.Code, Kind: kind, Batch: req.Batch, ExitCode: out.ExitCode, Stderr: out.Stderr, Err: err}
		return out
	}

	if err := ctx.Err(); err != nil {
		return fail(KindCancelled, ErrCancelled)
	}

	artifact, err := r.writeArtifact(req.Files)
	if artifact != "" {
		out.ArtifactPath = artifact
		defer func() {
			if rerr := os.Remove(artifact); rerr != nil && !os.IsNotExist(rerr) {
				r.logger().Warn("remove path list failed", slog.String("path", artifact), slog.Any("error", rerr))
			}
		}()
	}
	if err != nil {
		return fail(KindArtifact, err)
	}

	args := Substitute(req.Spec.Command, artifact)
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = req.Spec.Timeout
	}
	cmdCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		cmdCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	//nolint:gosec // G204: executing configured tools is the point
	cmd := exec.CommandContext(cmdCtx, args[0], args[1:]...)
	cmd.Dir = req.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = 2 * time.Second

	var stdout bytes.Buffer
	stderr := &limitedBuffer{max: maxStderr}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	r.logger().Debug("invoking tool",
		slog.String("tool", req.Spec.Code),
		slog.Int("batch", req.Batch),
		slog.Int("files", len(req.Files)),
		slog.String("command", strings.Join(args, " ")),
	)

	runErr := cmd.Run()
	out.Stderr = stderr.String()
	out.Duration = time.Since(start)
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case ctx.Err() != nil:
		return fail(KindCancelled, ErrCancelled)
	case errors.Is(cmdCtx.Err(), context.DeadlineExceeded):
		return fail(KindTimeout, fmt.Errorf("%w after %s", ErrTimeout, timeout))
	}

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		if errors.Is(runErr, exec.ErrWaitDelay) && out.ExitCode >= 0 {
			// the tool exited but a child kept its pipes open; the exit code stands
			runErr = nil
		} else {
			return fail(KindSpawn, runErr)
		}
	}

	findings, derr := finding.Decode(&stdout)
	out.Findings = findings

	switch {
	case out.ExitCode == 0:
	case out.ExitCode > 0 && req.Spec.IsFindingsExit(out.ExitCode):
	default:
		return fail(KindExit, runErr)
	}
	if derr != nil {
		return fail(KindMalformed, derr)
	}

	r.logger().Debug("tool finished",
		slog.String("tool", req.Spec.Code),
		slog.Int("batch", req.Batch),
		slog.Int("exit_code", out.ExitCode),
		slog.Int("findings", len(findings)),
		slog.Duration("duration", out.Duration),
	)
	return out
}

func (r *Runner) writeArtifact(files []string) (string, error) {
	f, err := os.CreateTemp(r.TempDir, "lintmux-paths-*.txt")
	if err != nil {
		return "", fmt.Errorf("create path list: %w", err)
	}
	name := f.Name()
	var b strings.Builder
	for _, p := range files {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return name, fmt.Errorf("write path list: %w", err)
	}
	if err := f.Close(); err != nil {
		return name, fmt.Errorf("close path list: %w", err)
	}
	return name, nil
}

// Substitute replaces the placeholder with the artifact path.
func Substitute(command []string, artifact string) []string {
	out := make([]string, len(command))
	for i, a := range command {
		out[i] = strings.ReplaceAll(a, registry.Placeholder, artifact)
	}
	return out
}

type limitedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.max - b.buf.Len()
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n[stderr truncated]"
	}
	return b.buf.String()
}

// Executor is anything that can run one invocation. *Runner is the process
// implementation; telemetry and tests wrap or replace it.
type Executor interface {
	Run(ctx context.Context, req Request) Outcome
}

var _ Executor = (*Runner)(nil)
