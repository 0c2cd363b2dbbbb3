package cmd

import (
	"io"
	"strings"

	"lintmux/internal/app"
	"lintmux/internal/output"
)

type cliErrorHint struct {
	NextAction  string
	FixExample  string
	DocKey      string
	Recoverable bool
}

func writeCLIError(w io.Writer, format string, mode string, args []string, code, category, path, detail string, exitCode int) {
	ev := app.ErrorEvent(category, code, path, detail)
	if h, ok := cliHintByCode(code); ok {
		ev["next_action"] = h.NextAction
		ev["fix_example"] = h.FixExample
		ev["doc_key"] = h.DocKey
		ev["recoverable"] = h.Recoverable
	}
	events := []map[string]any{
		{
			"type":          "meta",
			"tool":          "lintmux",
			"version":       Version,
			"mode":          mode,
			"args":          args,
			"output_format": format,
		},
		ev,
		{
			"type":          "summary",
			"mode":          mode,
			"verdict":       "error",
			"files":         0,
			"tools":         0,
			"invocations":   0,
			"finding_count": 0,
			"tool_errors":   0,
			"applied":       0,
			"error_count":   1,
			"exit_code":     exitCode,
		},
	}
	_ = output.Write(w, normalizeFormat(format), events)
}

func normalizeFormat(format string) string {
	switch format {
	case "json", "text":
		return format
	}
	return "ndjson"
}

func detectFormatFromArgs(args []string) string {
	format := "ndjson"
	for i := 0; i < len(args); i++ {
		a := strings.TrimSpace(args[i])
		if a == "--format" {
			if i+1 < len(args) {
				return normalizeFormat(args[i+1])
			}
			continue
		}
		if strings.HasPrefix(a, "--format=") {
			return normalizeFormat(strings.TrimPrefix(a, "--format="))
		}
	}
	return format
}

// cliHintByCode covers errors raised by the command line itself; run errors
// carry their hints from the app package.
func cliHintByCode(code string) (cliErrorHint, bool) {
	switch code {
	case "invalid_output_format":
		return cliErrorHint{
			NextAction:  "set --format to ndjson, json or text",
			FixExample:  "lintmux run --format ndjson",
			DocKey:      "arg.invalid_output_format",
			Recoverable: true,
		}, true
	case "invalid_jobs", "invalid_max_arg_length":
		return cliErrorHint{
			NextAction:  "pass a non-negative integer, or 0 for the default",
			FixExample:  "lintmux run --jobs 4 --max-arg-length 65536",
			DocKey:      "arg.invalid_number",
			Recoverable: true,
		}, true
	case "arg_conflict":
		return cliErrorHint{
			NextAction:  "choose one file selection: explicit paths, --revision or --all-files",
			FixExample:  "lintmux run --revision origin/main",
			DocKey:      "arg.conflict",
			Recoverable: true,
		}, true
	case "cwd_failed":
		return cliErrorHint{
			NextAction:  "make sure the current directory is accessible",
			FixExample:  "cd /path/to/repo && lintmux run",
			DocKey:      "runtime.cwd_failed",
			Recoverable: true,
		}, true
	case "output_write_failed":
		return cliErrorHint{
			NextAction:  "check that the output pipe or redirect target is writable",
			FixExample:  "lintmux run > result.ndjson",
			DocKey:      "runtime.output_write_failed",
			Recoverable: true,
		}, true
	case "unknown_command":
		return cliErrorHint{
			NextAction:  "check the command and flag spelling, or see the help",
			FixExample:  "lintmux --help",
			DocKey:      "arg.unknown_command",
			Recoverable: true,
		}, true
	case "cancelled":
		return cliErrorHint{
			NextAction:  "rerun when the interruption is resolved",
			FixExample:  "lintmux run",
			DocKey:      "runtime.cancelled",
			Recoverable: true,
		}, true
	}
	return cliErrorHint{}, false
}
