package app

import (
	"lintmux/internal/aggregate"
	"lintmux/internal/invoke"
)

type Options struct {
	// Apply runs formatters in apply-mode.
	Apply bool
	// FormattersOnly narrows the registry to formatter tools.
	FormattersOnly bool

	Paths    []string
	Revision string
	AllFiles bool

	CWD          string
	ConfigPath   string
	Take         []string
	Skip         []string
	Jobs         int
	MaxArgLength int

	Version     string
	Format      string
	Args        []string
	MetricsFile string

	// Executor replaces the process runner; tests use it to fake tools.
	Executor invoke.Executor
}

func (o Options) mode() aggregate.Mode {
	if o.Apply {
		return aggregate.ModeApply
	}
	return aggregate.ModeCheck
}

type Result struct {
	RunID    string
	Root     string
	Files    int
	Run      *aggregate.RunResult
	Events   []map[string]any
	ExitCode int
}

type ConfigErr struct {
	Code string
	Msg  string
	Err  error
}

func (e *ConfigErr) Error() string { return e.Msg }

func (e *ConfigErr) Unwrap() error { return e.Err }

type ArgErr struct{ Msg string }

func (e *ArgErr) Error() string { return e.Msg }

// InputErr means the file set could not be computed.
type InputErr struct {
	Code string
	Path string
	Msg  string
}

func (e *InputErr) Error() string { return e.Msg }
