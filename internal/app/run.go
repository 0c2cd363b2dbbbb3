package app

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"lintmux/internal/aggregate"
	"lintmux/internal/batch"
	"lintmux/internal/invoke"
	"lintmux/internal/logging"
	"lintmux/internal/patch"
	"lintmux/internal/registry"
	"lintmux/internal/route"
	"lintmux/internal/schedule"
	"lintmux/internal/telemetry"
	"lintmux/internal/versiongate"
)

// Run executes one lint run: version gate, file set, meta tools, then every
// other tool, then formatter patches. A config, argument or input problem is
// returned as an error with no events. A version mismatch returns the gate's
// own events together with *versiongate.VersionMismatchError. Cancellation
// before dispatch returns ctx.Err(); after dispatch the partial result is
// returned with Run.Cancelled set.
func Run(ctx context.Context, opts Options) (Result, error) {
	log := logging.New("app")
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	loaded, err := LoadRegistry(opts)
	if err != nil {
		return Result{}, err
	}
	reg := loaded.Registry
	root := loaded.Root
	settings := reg.Settings()
	jobs := firstPositive(opts.Jobs, settings.Jobs, schedule.DefaultJobs())
	maxLen := firstPositive(opts.MaxArgLength, settings.MaxArgLength, registry.DefaultMaxArgLength)
	mode := opts.mode()

	res := Result{RunID: uuid.NewString(), Root: root, Events: make([]map[string]any, 0)}
	rr := aggregate.NewRunResult(mode)
	res.Run = rr

	ctx, span := telemetry.StartRun(ctx, res.RunID, string(mode))
	var runErr error
	defer func() { telemetry.EndRun(span, string(rr.Verdict), rr.Cancelled, runErr) }()

	meta := buildMeta(opts, res.RunID, loaded.Path, root, jobs, maxLen)

	if gate := reg.VersionGate(); gate != nil {
		src := gateSource(gate, root, loaded.Overrides.ExpectedVersion)
		gres, err := versiongate.New(opts.Version, src).Check(ctx)
		var mismatch *versiongate.VersionMismatchError
		switch {
		case errors.As(err, &mismatch):
			rr.AddGate(gate.Code, &invoke.ToolError{Tool: gate.Code, Kind: invoke.KindVersion, Err: mismatch})
			rr.Finalize()
			res.ExitCode = 6
			res.Events = append(res.Events, meta)
			res.Events = append(res.Events, buildToolEvents(rr)...)
			res.Events = append(res.Events, buildErrorEvent("version", "version_mismatch", src.String(), mismatch.Error()))
			res.Events = append(res.Events, buildSummary(rr, 0, res.ExitCode))
			runErr = mismatch
			return res, mismatch
		case err != nil:
			runErr = err
			return Result{}, err
		}
		rr.AddGate(gate.Code, nil)
		rr.Tools[gate.Code].Warning = gres.Warning
	}
	if err := ctx.Err(); err != nil {
		runErr = err
		return Result{}, err
	}

	files, err := collectFiles(ctx, opts, root, log)
	if err != nil {
		runErr = err
		return Result{}, err
	}
	res.Files = files.Len()
	meta["files"] = files.Len()

	var metaSpecs, mainSpecs []*registry.LinterSpec
	for _, s := range reg.Tools() {
		if s.Role == registry.RoleMeta {
			metaSpecs = append(metaSpecs, s)
		} else {
			mainSpecs = append(mainSpecs, s)
		}
	}
	metaScopes := route.Route(files.Files, metaSpecs)
	mainScopes := route.Route(files.Files, mainSpecs)
	if ov := route.FormatterOverlaps(mainScopes); len(ov) > 0 {
		oerr := route.OverlapError(ov)
		runErr = oerr
		return Result{}, &ConfigErr{Code: "formatter_overlap", Msg: oerr.Error(), Err: oerr}
	}
	for _, scopes := range [][]route.MatchedScope{metaScopes, mainScopes} {
		if err := route.Verify(scopes); err != nil {
			runErr = err
			return Result{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		runErr = err
		return Result{}, err
	}

	exec := opts.Executor
	if exec == nil {
		exec = invoke.NewRunner("")
	}
	metrics := telemetry.NewMetrics()
	sched := schedule.New(jobs, root, &telemetry.Executor{Next: exec, Metrics: metrics})

	for _, scopes := range [][]route.MatchedScope{metaScopes, mainScopes} {
		batches := makeBatches(scopes, maxLen, log)
		results := sched.Run(ctx, batches)
		rr.Add(scopes, results)
	}

	// a cancelled run never writes to the work tree; edits are reported as diffs
	apply := mode == aggregate.ModeApply && ctx.Err() == nil
	rr.Patch(patch.NewEngine(root, apply))
	rr.Finalize()

	counts := rr.Counts()
	for _, code := range rr.Order {
		for _, te := range rr.Tools[code].Errors {
			if te.Kind == invoke.KindStale || te.Kind == invoke.KindApply {
				metrics.ObserveToolError(te)
			}
		}
	}
	metrics.ObserveRun(string(mode), string(rr.Verdict), time.Since(start).Seconds(), counts.Applied)
	if opts.MetricsFile != "" {
		if err := metrics.WriteTextfile(opts.MetricsFile); err != nil {
			log.Warn("metrics file not written", slog.String("path", opts.MetricsFile), slog.Any("error", err))
		}
	}

	res.ExitCode = decideExitCode(rr)
	res.Events = append(res.Events, meta)
	res.Events = append(res.Events, buildToolEvents(rr)...)
	res.Events = append(res.Events, buildSummary(rr, files.Len(), res.ExitCode))

	log.Info("run finished",
		slog.String("run_id", res.RunID),
		slog.String("verdict", string(rr.Verdict)),
		slog.Int("tools", counts.Tools),
		slog.Int("invocations", counts.Invocations),
		slog.Int("findings", counts.Findings),
		slog.Int("tool_errors", counts.ToolErrors),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func gateSource(gate *registry.LinterSpec, root, expected string) versiongate.Source {
	if expected != "" {
		return versiongate.StaticSource(expected)
	}
	sv := gate.SelfVersion
	if sv.URL != "" {
		return versiongate.HTTPSource{URL: sv.URL, Timeout: sv.Timeout}
	}
	p := sv.File
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, filepath.FromSlash(p))
	}
	return versiongate.FileSource{Path: p}
}

func makeBatches(scopes []route.MatchedScope, maxLen int, log *slog.Logger) []batch.Batch {
	var out []batch.Batch
	for _, sc := range scopes {
		if sc.Empty() {
			continue
		}
		for _, b := range batch.Partition(sc.Spec, sc.Files, maxLen) {
			if b.Oversized(maxLen) {
				log.Warn("batch exceeds max argument length",
					slog.String("tool", sc.Spec.Code),
					slog.Int("batch", b.Index),
					slog.String("path", b.Files[0]),
				)
			}
			out = append(out, b)
		}
	}
	return out
}

func decideExitCode(rr *aggregate.RunResult) int {
	if rr.Cancelled {
		return 130
	}
	if rr.Verdict == aggregate.VerdictFail {
		return 1
	}
	return 0
}

func firstPositive(vs ...int) int {
	for _, v := range vs {
		if v > 0 {
			return v
		}
	}
	return 0
}
