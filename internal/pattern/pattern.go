package pattern

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/unicode/norm"
)

// Matcher evaluates one tool's scope: included by at least one include pattern
// and excluded by none of the exclude patterns.
type Matcher struct {
	include []string
	exclude []string
}

func Compile(include, exclude []string) (*Matcher, error) {
	m := &Matcher{
		include: make([]string, 0, len(include)),
		exclude: make([]string, 0, len(exclude)),
	}
	for _, p := range include {
		np, err := compileOne(p)
		if err != nil {
			return nil, err
		}
		m.include = append(m.include, np)
	}
	for _, p := range exclude {
		np, err := compileOne(p)
		if err != nil {
			return nil, err
		}
		m.exclude = append(m.exclude, np)
	}
	return m, nil
}

func compileOne(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("empty pattern")
	}
	np := NormalizePattern(p)
	if !doublestar.ValidatePattern(np) {
		return "", fmt.Errorf("invalid pattern %q", p)
	}
	return np, nil
}

// Match reports whether rel is in scope. An empty include list matches nothing.
func (m *Matcher) Match(rel string) bool {
	if m == nil || len(m.include) == 0 {
		return false
	}
	p := NormalizePath(rel)
	if p == "" {
		return false
	}
	included := false
	for _, inc := range m.include {
		if matchOne(inc, p) {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, exc := range m.exclude {
		if matchOne(exc, p) {
			return false
		}
	}
	return true
}

func matchOne(p, rel string) bool {
	// patterns are validated in Compile; MatchUnvalidated skips the re-check
	return doublestar.MatchUnvalidated(p, rel)
}

// Matches is the one-shot form used by callers that do not keep a Matcher.
func Matches(rel string, include, exclude []string) (bool, error) {
	m, err := Compile(include, exclude)
	if err != nil {
		return false, err
	}
	return m.Match(rel), nil
}

// NormalizePath turns a host path into the repository-relative, forward-slash,
// NFC form all patterns are evaluated against.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = norm.NFC.String(p)
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return p
}

func NormalizePattern(p string) string {
	p = strings.TrimSpace(p)
	p = norm.NFC.String(p)
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return strings.TrimPrefix(p, "/")
}
