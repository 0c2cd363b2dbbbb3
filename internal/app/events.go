package app

import (
	"lintmux/internal/aggregate"
	"lintmux/internal/finding"
	"lintmux/internal/invoke"
)

var exitCodePolicy = map[string]int{
	"pass":             0,
	"fail":             1,
	"arg_error":        2,
	"input_error":      3,
	"config_error":     4,
	"internal_error":   5,
	"version_mismatch": 6,
	"cancelled":        130,
}

func buildMeta(opts Options, runID, configPath, root string, jobs, maxLen int) map[string]any {
	return map[string]any{
		"type":             "meta",
		"tool":             "lintmux",
		"version":          opts.Version,
		"run_id":           runID,
		"mode":             string(opts.mode()),
		"config_path":      configPath,
		"root":             root,
		"args":             opts.Args,
		"output_format":    opts.Format,
		"jobs":             jobs,
		"max_arg_length":   maxLen,
		"revision":         opts.Revision,
		"exit_code_policy": exitCodePolicy,
	}
}

// buildToolEvents emits, per tool in registry order, its findings followed by
// the tool's status record.
func buildToolEvents(rr *aggregate.RunResult) []map[string]any {
	var out []map[string]any
	for _, code := range rr.Order {
		tr := rr.Tools[code]
		for _, f := range tr.Findings {
			out = append(out, buildFindingEvent(code, f))
		}
		out = append(out, buildToolEvent(tr))
	}
	return out
}

func buildFindingEvent(tool string, f finding.Finding) map[string]any {
	ev := map[string]any{
		"type":     "finding",
		"tool":     tool,
		"code":     f.Code,
		"path":     f.Path,
		"line":     intOrNil(f.Line),
		"column":   intOrNil(f.Column),
		"severity": string(f.Severity),
		"name":     f.Name,
		"message":  f.Message,
	}
	if f.Diff != "" {
		ev["diff"] = f.Diff
	}
	return ev
}

func buildToolEvent(tr *aggregate.ToolResult) map[string]any {
	errs := make([]map[string]any, 0, len(tr.Errors))
	for _, te := range tr.Errors {
		errs = append(errs, toolErrorRecord(te))
	}
	ev := map[string]any{
		"type":        "tool",
		"code":        tr.Code,
		"role":        string(tr.Role),
		"status":      string(tr.Status),
		"invocations": tr.Invocations,
		"files":       tr.Files,
		"findings":    len(tr.Findings),
		"duration_ms": tr.Duration.Milliseconds(),
		"applied":     nonNil(tr.Applied),
		"stale":       nonNil(tr.Stale),
		"errors":      errs,
	}
	if tr.Warning != "" {
		ev["warning"] = tr.Warning
	}
	return ev
}

func toolErrorRecord(te *invoke.ToolError) map[string]any {
	rec := map[string]any{
		"kind":      string(te.Kind),
		"batch":     te.Batch,
		"exit_code": te.ExitCode,
		"timeout":   te.Timeout(),
		"cancelled": te.Cancelled(),
		"message":   te.Error(),
	}
	if te.Path != "" {
		rec["path"] = te.Path
	}
	if te.Stderr != "" {
		rec["stderr"] = te.Stderr
	}
	return rec
}

func buildSummary(rr *aggregate.RunResult, files, exitCode int) map[string]any {
	c := rr.Counts()
	byStatus := map[string]int{}
	for st, n := range c.ByStatus {
		byStatus[string(st)] = n
	}
	return map[string]any{
		"type":          "summary",
		"mode":          string(rr.Mode),
		"verdict":       string(rr.Verdict),
		"cancelled":     rr.Cancelled,
		"files":         files,
		"tools":         c.Tools,
		"invocations":   c.Invocations,
		"finding_count": c.Findings,
		"tool_errors":   c.ToolErrors,
		"applied":       c.Applied,
		"stale":         c.Stale,
		"status_counts": byStatus,
		"exit_code":     exitCode,
	}
}

func intOrNil(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
