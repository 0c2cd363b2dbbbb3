package invoke

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindExit      ErrorKind = "exit"
	KindTimeout   ErrorKind = "timeout"
	KindSpawn     ErrorKind = "spawn"
	KindMalformed ErrorKind = "malformed"
	KindCancelled ErrorKind = "cancelled"
	KindStale     ErrorKind = "stale"
	KindApply     ErrorKind = "apply"
	KindArtifact  ErrorKind = "artifact"
	KindVersion   ErrorKind = "version-mismatch"
)

var (
	ErrTimeout   = errors.New("tool timed out")
	ErrCancelled = errors.New("run cancelled")
	ErrStale     = errors.New("file changed since dispatch")
)

// ToolError is scoped to one invocation (or one file for stale edits). It is
// reported in the run result, never returned up the call stack.
type ToolError struct {
	Tool     string
	Kind     ErrorKind
	Batch    int
	Path     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	prefix := fmt.Sprintf("%s batch %d", e.Tool, e.Batch)
	if e.Path != "" {
		prefix = fmt.Sprintf("%s %s", e.Tool, e.Path)
	}
	switch e.Kind {
	case KindExit:
		return fmt.Sprintf("%s: exited with code %d", prefix, e.ExitCode)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", prefix, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %s", prefix, e.Kind)
	}
}

func (e *ToolError) Unwrap() error { return e.Err }

func (e *ToolError) Timeout() bool { return e.Kind == KindTimeout }

func (e *ToolError) Cancelled() bool { return e.Kind == KindCancelled }
