package route

import (
	"fmt"
	"sort"
	"strings"

	"lintmux/internal/pattern"
	"lintmux/internal/registry"
)

// MatchedScope is the slice of the file set one linter must inspect, in file
// set order.
type MatchedScope struct {
	Spec  *registry.LinterSpec
	Files []string
}

func (m MatchedScope) Empty() bool { return len(m.Files) == 0 }

// Route applies every tool's matcher to every file. Scopes are returned in
// registry order; empty scopes are kept so callers can report them as skipped.
func Route(files []string, specs []*registry.LinterSpec) []MatchedScope {
	scopes := make([]MatchedScope, len(specs))
	for i, s := range specs {
		scopes[i] = MatchedScope{Spec: s, Files: make([]string, 0)}
	}
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		p := pattern.NormalizePath(f)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		for i, s := range specs {
			if s.Matches(p) {
				scopes[i].Files = append(scopes[i].Files, p)
			}
		}
	}
	return scopes
}

// Overlap is one file claimed by more than one formatter.
type Overlap struct {
	Path  string
	Tools []string
}

// FormatterOverlaps lists files that two or more formatter scopes share. A
// file may be rewritten by at most one formatter per run.
func FormatterOverlaps(scopes []MatchedScope) []Overlap {
	owners := map[string][]string{}
	var order []string
	for _, sc := range scopes {
		if sc.Spec.Role != registry.RoleFormatter {
			continue
		}
		for _, f := range sc.Files {
			if _, ok := owners[f]; !ok {
				order = append(order, f)
			}
			owners[f] = append(owners[f], sc.Spec.Code)
		}
	}
	var out []Overlap
	for _, f := range order {
		if len(owners[f]) > 1 {
			tools := append([]string(nil), owners[f]...)
			sort.Strings(tools)
			out = append(out, Overlap{Path: f, Tools: tools})
		}
	}
	return out
}

// RoutingError is an internal invariant violation in routing output.
type RoutingError struct {
	Tool string
	Msg  string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing invariant violated for %s: %s", e.Tool, e.Msg)
}

// Verify re-checks that every scope holds only in-scope, unique paths.
func Verify(scopes []MatchedScope) error {
	for _, sc := range scopes {
		seen := make(map[string]struct{}, len(sc.Files))
		for _, f := range sc.Files {
			if _, dup := seen[f]; dup {
				return &RoutingError{Tool: sc.Spec.Code, Msg: "duplicate path " + f}
			}
			seen[f] = struct{}{}
			if !sc.Spec.Matches(f) {
				return &RoutingError{Tool: sc.Spec.Code, Msg: "out-of-scope path " + f}
			}
		}
	}
	return nil
}

func OverlapError(ov []Overlap) error {
	parts := make([]string, 0, len(ov))
	for i, o := range ov {
		if i == 5 {
			parts = append(parts, fmt.Sprintf("... and %d more", len(ov)-5))
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", o.Path, strings.Join(o.Tools, ", ")))
	}
	return &registry.ConfigError{
		Field: "formatter scopes",
		Err:   fmt.Errorf("files matched by more than one formatter: %s", strings.Join(parts, "; ")),
	}
}
