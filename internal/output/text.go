package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"lintmux/internal/textutil"
)

const messageWidth = 72

// Table renders rows with the same style as run output.
func Table(w io.Writer, header []string, rows [][]any, rightAlign ...int) error {
	tw := newTable(header, rightAlign...)
	for _, r := range rows {
		tw.AppendRow(table.Row(r))
	}
	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

func newTable(header []string, rightAlign ...int) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	h := make(table.Row, len(header))
	for i, c := range header {
		h[i] = c
	}
	tw.AppendHeader(h)
	cfgs := make([]table.ColumnConfig, 0, len(rightAlign))
	for _, n := range rightAlign {
		cfgs = append(cfgs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}
	tw.SetColumnConfigs(cfgs)
	return tw
}

func writeText(w io.Writer, events []map[string]any) error {
	var b strings.Builder
	var findings, tools, errs []map[string]any
	var summary map[string]any
	for _, e := range events {
		switch e["type"] {
		case "meta":
			fmt.Fprintf(&b, "lintmux %s  run %s  mode %s\n", str(e, "version"), str(e, "run_id"), str(e, "mode"))
		case "finding":
			findings = append(findings, e)
		case "tool":
			tools = append(tools, e)
		case "error":
			errs = append(errs, e)
		case "summary":
			summary = e
		}
	}

	if len(findings) > 0 {
		tw := newTable([]string{"TOOL", "LOCATION", "SEVERITY", "MESSAGE"})
		for _, f := range findings {
			tw.AppendRow(table.Row{str(f, "tool"), location(f), str(f, "severity"), textutil.Truncate(oneLine(str(f, "message")), messageWidth)})
		}
		b.WriteString(tw.Render())
		b.WriteString("\n")
		for _, f := range findings {
			if d := str(f, "diff"); d != "" {
				fmt.Fprintf(&b, "\n%s (%s):\n%s", str(f, "path"), str(f, "tool"), d)
				if !strings.HasSuffix(d, "\n") {
					b.WriteString("\n")
				}
			}
		}
	}

	if len(tools) > 0 {
		tw := newTable([]string{"TOOL", "ROLE", "STATUS", "INVOCATIONS", "FILES", "FINDINGS", "DURATION"}, 4, 5, 6, 7)
		for _, t := range tools {
			tw.AppendRow(table.Row{str(t, "code"), str(t, "role"), str(t, "status"), num(t, "invocations"), num(t, "files"), num(t, "findings"), fmt.Sprintf("%dms", num(t, "duration_ms"))})
		}
		b.WriteString("\n")
		b.WriteString(tw.Render())
		b.WriteString("\n")
		for _, t := range tools {
			if warn := str(t, "warning"); warn != "" {
				fmt.Fprintf(&b, "warning %s: %s\n", str(t, "code"), warn)
			}
			list, _ := t["errors"].([]map[string]any)
			for _, te := range list {
				fmt.Fprintf(&b, "error %s: %s\n", str(t, "code"), str(te, "message"))
				if se := strings.TrimSpace(str(te, "stderr")); se != "" {
					for _, line := range strings.Split(se, "\n") {
						fmt.Fprintf(&b, "    %s\n", line)
					}
				}
			}
		}
	}

	for _, e := range errs {
		fmt.Fprintf(&b, "error[%s]: %s\n", str(e, "code"), str(e, "detail"))
		if na := str(e, "next_action"); na != "" {
			fmt.Fprintf(&b, "  next: %s\n", na)
		}
		if fx := str(e, "fix_example"); fx != "" {
			fmt.Fprintf(&b, "  e.g.: %s\n", fx)
		}
	}

	if summary != nil {
		verdict := strings.ToUpper(str(summary, "verdict"))
		if verdict == "" {
			verdict = "ERROR"
		}
		fmt.Fprintf(&b, "\n%s: %d findings, %d tool errors, %d applied, %d files (exit %d)\n",
			verdict, num(summary, "finding_count"), num(summary, "tool_errors"), num(summary, "applied"), num(summary, "files"), num(summary, "exit_code"))
		if c, _ := summary["cancelled"].(bool); c {
			b.WriteString("run was cancelled; results are partial\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func location(f map[string]any) string {
	loc := str(f, "path")
	if loc == "" {
		loc = "-"
	}
	if _, ok := f["line"]; ok && f["line"] != nil {
		loc = fmt.Sprintf("%s:%d", loc, num(f, "line"))
		if f["column"] != nil {
			loc = fmt.Sprintf("%s:%d", loc, num(f, "column"))
		}
	}
	return loc
}

func oneLine(s string) string {
	s, _, _ = strings.Cut(s, "\n")
	return s
}

func str(e map[string]any, k string) string {
	switch v := e[k].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func num(e map[string]any, k string) int64 {
	switch v := e[k].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}
