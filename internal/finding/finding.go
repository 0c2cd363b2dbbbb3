package finding

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type Severity string

const (
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityAdvice   Severity = "advice"
	SeverityDisabled Severity = "disabled"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeverityAdvice, SeverityDisabled:
		return true
	}
	return false
}

// Finding is one diagnostic, or one proposed whole-file edit when both
// Original and Replacement are set.
type Finding struct {
	Code        string   `json:"code"`
	Path        string   `json:"path,omitempty"`
	Line        *int     `json:"line,omitempty"`
	Column      *int     `json:"column,omitempty"`
	Severity    Severity `json:"severity"`
	Name        string   `json:"name,omitempty"`
	Message     string   `json:"message"`
	Original    *string  `json:"original,omitempty"`
	Replacement *string  `json:"replacement,omitempty"`

	// Diff is filled in by the patch engine for check-mode edits.
	Diff string `json:"-"`
}

func (f Finding) IsEdit() bool { return f.Original != nil && f.Replacement != nil }

// MalformedError reports the first record of a stream that could not be decoded.
type MalformedError struct {
	Record int
	Line   string
	Err    error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed output record %d: %v: %q", e.Record, e.Err, truncate(e.Line, 200))
}

func (e *MalformedError) Unwrap() error { return e.Err }

const maxRecord = 64 * 1024 * 1024

// Decode reads newline-delimited JSON findings. Decoding stops at the first
// malformed record; the findings read before it are returned with the error.
func Decode(r io.Reader) ([]Finding, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxRecord)
	out := make([]Finding, 0)
	n := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		n++
		f, err := decodeRecord(line)
		if err != nil {
			return out, &MalformedError{Record: n, Line: string(line), Err: err}
		}
		out = append(out, f)
	}
	if err := sc.Err(); err != nil {
		return out, &MalformedError{Record: n + 1, Err: err}
	}
	return out, nil
}

func decodeRecord(line []byte) (Finding, error) {
	var f Finding
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return f, err
	}
	if dec.More() {
		return f, fmt.Errorf("trailing data after record")
	}
	if strings.TrimSpace(f.Code) == "" {
		return f, fmt.Errorf("missing code")
	}
	if !f.Severity.Valid() {
		return f, fmt.Errorf("invalid severity %q", f.Severity)
	}
	if f.Line != nil && *f.Line < 0 {
		return f, fmt.Errorf("negative line")
	}
	if f.Column != nil && *f.Column < 0 {
		return f, fmt.Errorf("negative column")
	}
	if (f.Original == nil) != (f.Replacement == nil) {
		return f, fmt.Errorf("original and replacement must be given together")
	}
	if f.IsEdit() && f.Path == "" {
		return f, fmt.Errorf("edit without path")
	}
	return f, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
