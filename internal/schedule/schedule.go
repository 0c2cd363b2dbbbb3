package schedule

import (
	"context"
	"log/slog"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"lintmux/internal/batch"
	"lintmux/internal/invoke"
	"lintmux/internal/logging"
	"lintmux/internal/registry"
	"lintmux/internal/textutil"
)

// Result is one completed (or never started) invocation, in submission order.
type Result struct {
	Seq     int
	Outcome invoke.Outcome
	// Fingerprints maps each batch file to its content hash at dispatch time.
	// Only taken for formatter batches.
	Fingerprints map[string]string
}

type Scheduler struct {
	Jobs int
	Root string
	Exec invoke.Executor
	log  *slog.Logger
}

func New(jobs int, root string, exec invoke.Executor) *Scheduler {
	if jobs <= 0 {
		jobs = DefaultJobs()
	}
	return &Scheduler{Jobs: jobs, Root: root, Exec: exec, log: logging.New("schedule")}
}

func DefaultJobs() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

type job struct {
	seq   int
	batch batch.Batch
}

// Run executes all batches under the global jobs bound and each tool's own
// concurrency cap. Tool failures never stop other invocations; only ctx does.
// Once ctx is done no new process is started and the remaining batches are
// reported as cancelled.
func (s *Scheduler) Run(ctx context.Context, batches []batch.Batch) []Result {
	results := make([]Result, len(batches))
	if len(batches) == 0 {
		return results
	}
	jobs := s.Jobs
	if jobs <= 0 {
		jobs = DefaultJobs()
	}
	if s.log == nil {
		s.log = logging.New("schedule")
	}

	if jobs == 1 {
		return s.runSerial(ctx, batches)
	}

	// group by tool, keeping first-seen tool order and submission order
	var order []*registry.LinterSpec
	byTool := map[*registry.LinterSpec][]job{}
	for i, b := range batches {
		if _, ok := byTool[b.Tool]; !ok {
			order = append(order, b.Tool)
		}
		byTool[b.Tool] = append(byTool[b.Tool], job{seq: i, batch: b})
	}

	global := semaphore.NewWeighted(int64(jobs))
	collected := make(chan Result)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range collected {
			results[r.Seq] = r
		}
	}()

	var g errgroup.Group
	for _, tool := range order {
		toolJobs := byTool[tool]
		g.Go(func() error {
			var tg errgroup.Group
			if tool.Concurrency > 0 {
				tg.SetLimit(tool.Concurrency)
			}
			for _, j := range toolJobs {
				if ctx.Err() != nil {
					collected <- s.cancelled(j)
					continue
				}
				tg.Go(func() error {
					if err := global.Acquire(ctx, 1); err != nil {
						collected <- s.cancelled(j)
						return nil
					}
					defer global.Release(1)
					collected <- s.runOne(ctx, j)
					return nil
				})
			}
			return tg.Wait()
		})
	}
	_ = g.Wait()
	close(collected)
	<-done
	return results
}

// runSerial runs every batch in submission order on the calling goroutine.
func (s *Scheduler) runSerial(ctx context.Context, batches []batch.Batch) []Result {
	results := make([]Result, len(batches))
	for i, b := range batches {
		j := job{seq: i, batch: b}
		if ctx.Err() != nil {
			results[i] = s.cancelled(j)
			continue
		}
		results[i] = s.runOne(ctx, j)
	}
	return results
}

func (s *Scheduler) runOne(ctx context.Context, j job) Result {
	res := Result{Seq: j.seq}
	if ctx.Err() != nil {
		return s.cancelled(j)
	}
	if j.batch.Tool.Role == registry.RoleFormatter {
		res.Fingerprints = s.fingerprint(j.batch.Files)
	}
	res.Outcome = s.Exec.Run(ctx, invoke.Request{
		Spec:  j.batch.Tool,
		Batch: j.batch.Index,
		Files: j.batch.Files,
		Dir:   s.Root,
	})
	if res.Outcome.Err != nil {
		s.log.Debug("invocation failed",
			slog.String("tool", j.batch.Tool.Code),
			slog.Int("batch", j.batch.Index),
			slog.String("kind", string(res.Outcome.Err.Kind)),
		)
	}
	return res
}

func (s *Scheduler) fingerprint(files []string) map[string]string {
	fps := make(map[string]string, len(files))
	for _, f := range files {
		fp, err := textutil.FingerprintFile(filepath.Join(s.Root, filepath.FromSlash(f)))
		if err != nil {
			s.log.Warn("fingerprint failed", slog.String("path", f), slog.Any("error", err))
			fp = ""
		}
		fps[f] = fp
	}
	return fps
}

func (s *Scheduler) cancelled(j job) Result {
	return Result{
		Seq: j.seq,
		Outcome: invoke.Outcome{
			Tool:     j.batch.Tool.Code,
			Batch:    j.batch.Index,
			Files:    j.batch.Files,
			ExitCode: -1,
			Err: &invoke.ToolError{
				Tool:     j.batch.Tool.Code,
				Kind:     invoke.KindCancelled,
				Batch:    j.batch.Index,
				ExitCode: -1,
				Err:      invoke.ErrCancelled,
			},
		},
	}
}
