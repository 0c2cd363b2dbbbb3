package versiongate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/mod/semver"

	"lintmux/internal/logging"
)

// DevVersion is the version of an unreleased build; the gate never blocks it.
const DevVersion = "dev"

// VersionMismatchError aborts the run before any other tool is routed.
type VersionMismatchError struct {
	Current  string
	Expected string
	Source   string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("lintmux version %s does not match expected %s (from %s)", e.Current, e.Expected, e.Source)
}

// Result describes a gate check that did not abort.
type Result struct {
	Expected string
	Skipped  bool
	Warning  string
}

type Gate struct {
	Current string
	Source  Source
	log     *slog.Logger
}

func New(current string, src Source) *Gate {
	return &Gate{Current: current, Source: src, log: logging.New("versiongate")}
}

// Check compares Current against the source. A mismatch returns a
// *VersionMismatchError. An unreachable source is only a warning. The only
// other error is the context's own.
func (g *Gate) Check(ctx context.Context) (Result, error) {
	if g.log == nil {
		g.log = logging.New("versiongate")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if g.Source == nil {
		return Result{Skipped: true}, nil
	}
	if strings.TrimSpace(g.Current) == "" || g.Current == DevVersion {
		msg := "development build, version gate skipped"
		g.log.Warn(msg, slog.String("source", g.Source.String()))
		return Result{Skipped: true, Warning: msg}, nil
	}
	expected, err := g.Source.Expected(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		if errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		msg := fmt.Sprintf("expected version unavailable from %s: %v", g.Source, err)
		g.log.Warn("version gate source unreachable", slog.String("source", g.Source.String()), slog.Any("error", err))
		return Result{Skipped: true, Warning: msg}, nil
	}
	if !Equal(g.Current, expected) {
		return Result{Expected: expected}, &VersionMismatchError{Current: g.Current, Expected: expected, Source: g.Source.String()}
	}
	g.log.Debug("version gate passed", slog.String("version", g.Current))
	return Result{Expected: expected}, nil
}

// Equal compares two version strings. Semantic versions are compared after
// canonicalisation ("1.2" equals "v1.2.0"); anything else compares literally.
func Equal(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	ca, cb := canonical(a), canonical(b)
	if ca != "" && cb != "" {
		return semver.Compare(ca, cb) == 0
	}
	return a == b
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}
