package patch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"lintmux/internal/finding"
	"lintmux/internal/invoke"
	"lintmux/internal/logging"
	"lintmux/internal/pattern"
	"lintmux/internal/textutil"
)

// Engine turns formatter edits into file writes (apply) or diffs (check).
type Engine struct {
	Root  string
	Apply bool
	log   *slog.Logger
}

func NewEngine(root string, apply bool) *Engine {
	return &Engine{Root: root, Apply: apply, log: logging.New("patch")}
}

// Outcome of processing one formatter's merged findings.
type Outcome struct {
	Findings []finding.Finding
	Applied  []string
	Stale    []string
	Errors   []*invoke.ToolError
}

// Process handles one formatter tool. fingerprints are the dispatch-time
// content hashes of every file in the tool's batches; failed holds the files
// of batches whose invocation ended in a tool error. Plain diagnostics pass
// through untouched; edits become diffs in check-mode and atomic writes in
// apply-mode. Edits for failed files are never written, they are reported as
// diffs. No-op edits are dropped.
func (e *Engine) Process(tool string, findings []finding.Finding, fingerprints map[string]string, failed map[string]bool) Outcome {
	if e.log == nil {
		e.log = logging.New("patch")
	}
	out := Outcome{Findings: make([]finding.Finding, 0, len(findings))}
	seen := map[string]struct{}{}
	for _, f := range findings {
		f.Path = pattern.NormalizePath(f.Path)
		if !f.IsEdit() {
			out.Findings = append(out.Findings, f)
			continue
		}
		if _, dup := seen[f.Path]; dup {
			out.Errors = append(out.Errors, &invoke.ToolError{
				Tool: tool, Kind: invoke.KindApply, Path: f.Path,
				Err: fmt.Errorf("more than one edit for the same file"),
			})
			continue
		}
		seen[f.Path] = struct{}{}
		if *f.Original == *f.Replacement {
			continue
		}
		if e.Apply && !failed[f.Path] {
			e.apply(tool, f, fingerprints, &out)
			continue
		}
		if e.Apply {
			e.log.Warn("edit from a failed invocation not applied", slog.String("tool", tool), slog.String("path", f.Path))
		}
		if err := e.diff(&f, e.Apply); err != nil {
			out.Errors = append(out.Errors, &invoke.ToolError{Tool: tool, Kind: invoke.KindApply, Path: f.Path, Err: err})
			continue
		}
		out.Findings = append(out.Findings, f)
	}
	return out
}

// diff attaches the unified diff to an edit. held marks an apply-mode edit
// that was withheld because its invocation failed.
func (e *Engine) diff(f *finding.Finding, held bool) error {
	text, st, err := UnifiedDiff(f.Path, *f.Original, *f.Replacement)
	if err != nil {
		return err
	}
	f.Diff = text
	switch {
	case held:
		f.Message = fmt.Sprintf("edit not applied, the tool run failed (+%d -%d)", st.Added, st.Deleted)
	case f.Message == "":
		f.Message = fmt.Sprintf("file would be reformatted (+%d -%d)", st.Added, st.Deleted)
		if from, to := textutil.DetectLineEnding(*f.Original), textutil.DetectLineEnding(*f.Replacement); from != to {
			f.Message += fmt.Sprintf(", line endings %s -> %s", from, to)
		}
	}
	return nil
}

func (e *Engine) apply(tool string, f finding.Finding, fingerprints map[string]string, out *Outcome) {
	stale := func(reason string) {
		out.Stale = append(out.Stale, f.Path)
		out.Errors = append(out.Errors, &invoke.ToolError{
			Tool: tool, Kind: invoke.KindStale, Path: f.Path,
			Err: fmt.Errorf("%w: %s", invoke.ErrStale, reason),
		})
		e.log.Warn("rejected stale edit", slog.String("tool", tool), slog.String("path", f.Path), slog.String("reason", reason))
	}

	dispatched, ok := fingerprints[f.Path]
	if !ok {
		out.Errors = append(out.Errors, &invoke.ToolError{
			Tool: tool, Kind: invoke.KindApply, Path: f.Path,
			Err: fmt.Errorf("edit for a file that was not in the tool's batches"),
		})
		return
	}
	if dispatched == "" {
		stale("file could not be fingerprinted at dispatch")
		return
	}
	abs := filepath.Join(e.Root, filepath.FromSlash(f.Path))
	current, err := textutil.FingerprintFile(abs)
	if err != nil {
		out.Errors = append(out.Errors, &invoke.ToolError{Tool: tool, Kind: invoke.KindApply, Path: f.Path, Err: err})
		return
	}
	if current != dispatched {
		stale("content on disk changed since dispatch")
		return
	}
	if textutil.HashSHA256([]byte(*f.Original)) != dispatched {
		stale("original reported by the tool does not match the dispatched content")
		return
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(abs); err == nil {
		perm = info.Mode().Perm()
	}
	if err := WriteFileAtomic(abs, []byte(*f.Replacement), perm); err != nil {
		out.Errors = append(out.Errors, &invoke.ToolError{Tool: tool, Kind: invoke.KindApply, Path: f.Path, Err: err})
		return
	}
	out.Applied = append(out.Applied, f.Path)
	e.log.Debug("applied edit", slog.String("tool", tool), slog.String("path", f.Path))
}
