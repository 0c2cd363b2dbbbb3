package patch

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"

	"lintmux/internal/textutil"
)

// DiffStat counts changed lines of one unified diff.
type DiffStat struct {
	Added   int
	Deleted int
}

// UnifiedDiff renders original -> replacement for path with three lines of
// context. Binary content yields a one-line notice.
func UnifiedDiff(path, original, replacement string) (string, DiffStat, error) {
	if original == replacement {
		return "", DiffStat{}, nil
	}
	if textutil.DetectBinary([]byte(original)) || textutil.DetectBinary([]byte(replacement)) {
		return fmt.Sprintf("Binary files a/%s and b/%s differ\n", path, path), DiffStat{}, nil
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        diffLines(original),
		B:        diffLines(replacement),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	})
	if err != nil {
		return "", DiffStat{}, fmt.Errorf("diff %s: %w", path, err)
	}
	fd, err := diff.ParseFileDiff([]byte(text))
	if err != nil {
		return "", DiffStat{}, fmt.Errorf("parse generated diff for %s: %w", path, err)
	}
	st := fd.Stat()
	return text, DiffStat{Added: int(st.Added + st.Changed), Deleted: int(st.Deleted + st.Changed)}, nil
}

func diffLines(s string) []string {
	lines := textutil.SplitLinesKeepEnds(s)
	if n := len(lines); n > 0 && !strings.HasSuffix(lines[n-1], "\n") {
		lines[n-1] += "\n"
	}
	return lines
}
