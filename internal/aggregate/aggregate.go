package aggregate

import (
	"time"

	"lintmux/internal/finding"
	"lintmux/internal/invoke"
	"lintmux/internal/patch"
	"lintmux/internal/registry"
	"lintmux/internal/route"
	"lintmux/internal/schedule"
)

type Status string

const (
	StatusClean     Status = "clean"
	StatusFindings  Status = "findings"
	StatusToolError Status = "tool-error"
	StatusSkipped   Status = "skipped"
)

type Mode string

const (
	ModeCheck Mode = "check"
	ModeApply Mode = "apply"
)

type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// ToolResult is the merged outcome of every invocation of one tool.
type ToolResult struct {
	Code         string
	Role         registry.Role
	Status       Status
	Findings     []finding.Finding
	Errors       []*invoke.ToolError
	Invocations  int
	Files        int
	Duration     time.Duration
	Applied      []string
	Stale        []string
	Warning      string
	// Fingerprints holds dispatch-time content hashes for formatter files.
	Fingerprints map[string]string
	// Failed marks the files of batches whose invocation ended in a tool
	// error; their edits are never written.
	Failed       map[string]bool
}

// RunResult is the whole run. Order lists tool codes in registry order.
type RunResult struct {
	Mode      Mode
	Order     []string
	Tools     map[string]*ToolResult
	Verdict   Verdict
	Cancelled bool
}

func NewRunResult(mode Mode) *RunResult {
	return &RunResult{Mode: mode, Tools: map[string]*ToolResult{}, Verdict: VerdictPass}
}

// Add merges the invocation results of the given scopes. Findings keep batch
// submission order, then emission order. It does not compute the verdict; call
// Finalize once every phase has been added.
func (r *RunResult) Add(scopes []route.MatchedScope, results []schedule.Result) {
	for _, sc := range scopes {
		code := sc.Spec.Code
		if _, ok := r.Tools[code]; !ok {
			r.Order = append(r.Order, code)
		}
		r.Tools[code] = &ToolResult{
			Code:     code,
			Role:     sc.Spec.Role,
			Files:    len(sc.Files),
			Findings: make([]finding.Finding, 0),
		}
	}
	for _, res := range results {
		tr, ok := r.Tools[res.Outcome.Tool]
		if !ok {
			continue
		}
		if res.Outcome.Err == nil || !res.Outcome.Err.Cancelled() || res.Outcome.Duration > 0 {
			tr.Invocations++
		}
		tr.Duration += res.Outcome.Duration
		tr.Findings = append(tr.Findings, res.Outcome.Findings...)
		for path, fp := range res.Fingerprints {
			if tr.Fingerprints == nil {
				tr.Fingerprints = map[string]string{}
			}
			tr.Fingerprints[path] = fp
		}
		if res.Outcome.Err != nil {
			tr.Errors = append(tr.Errors, res.Outcome.Err)
			for _, f := range res.Outcome.Files {
				if tr.Failed == nil {
					tr.Failed = map[string]bool{}
				}
				tr.Failed[f] = true
			}
			if res.Outcome.Err.Cancelled() {
				r.Cancelled = true
			}
		}
	}
}

// Patch runs every formatter's findings through the patch engine, replacing
// edits with diffs (check) or applied writes (apply).
func (r *RunResult) Patch(e *patch.Engine) {
	for _, code := range r.Order {
		tr := r.Tools[code]
		if tr.Role != registry.RoleFormatter {
			continue
		}
		out := e.Process(code, tr.Findings, tr.Fingerprints, tr.Failed)
		tr.Findings = out.Findings
		tr.Applied = append(tr.Applied, out.Applied...)
		tr.Stale = append(tr.Stale, out.Stale...)
		tr.Errors = append(tr.Errors, out.Errors...)
	}
}

// AddGate records the version gate's own entry.
func (r *RunResult) AddGate(code string, err *invoke.ToolError) {
	if _, ok := r.Tools[code]; !ok {
		r.Order = append(r.Order, code)
	}
	tr := &ToolResult{Code: code, Role: registry.RoleMeta, Findings: make([]finding.Finding, 0), Invocations: 1}
	if err != nil {
		tr.Errors = append(tr.Errors, err)
	}
	r.Tools[code] = tr
}

// Finalize computes each tool's status and the run verdict. It is a pure
// reduction over what Add recorded.
func (r *RunResult) Finalize() {
	r.Verdict = VerdictPass
	for _, code := range r.Order {
		tr := r.Tools[code]
		tr.Status = ToolStatus(tr)
		if Fails(tr, r.Mode) {
			r.Verdict = VerdictFail
		}
	}
	if r.Cancelled {
		r.Verdict = VerdictFail
	}
}

func ToolStatus(tr *ToolResult) Status {
	switch {
	case len(tr.Errors) > 0:
		return StatusToolError
	case tr.Invocations == 0:
		return StatusSkipped
	case len(tr.Findings) > 0:
		return StatusFindings
	default:
		return StatusClean
	}
}

// Fails reports whether a tool's status fails the run. Formatter findings
// only count in check-mode; tool errors always count.
func Fails(tr *ToolResult, mode Mode) bool {
	switch tr.Status {
	case StatusToolError:
		return true
	case StatusFindings:
		if tr.Role == registry.RoleFormatter {
			return mode == ModeCheck
		}
		return true
	}
	return false
}

type Counts struct {
	Tools       int
	Invocations int
	Findings    int
	ToolErrors  int
	Applied     int
	Stale       int
	ByStatus    map[Status]int
}

func (r *RunResult) Counts() Counts {
	c := Counts{ByStatus: map[Status]int{}}
	for _, code := range r.Order {
		tr := r.Tools[code]
		c.Tools++
		c.Invocations += tr.Invocations
		c.Findings += len(tr.Findings)
		c.ToolErrors += len(tr.Errors)
		c.Applied += len(tr.Applied)
		c.Stale += len(tr.Stale)
		c.ByStatus[tr.Status]++
	}
	return c
}
