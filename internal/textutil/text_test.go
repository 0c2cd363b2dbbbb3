package textutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestHashSHA256(t *testing.T) {
	got := HashSHA256([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("hash mismatch: %s", got)
	}
}

func TestFingerprintFile(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, "a.txt")
	if err := os.WriteFile(p, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	fp, err := FingerprintFile(p)
	if err != nil || fp != HashSHA256([]byte("abc")) {
		t.Fatalf("unexpected fingerprint %q %v", fp, err)
	}
	fp, err = FingerprintFile(filepath.Join(tmp, "missing"))
	if err != nil || fp != AbsentFingerprint {
		t.Fatalf("missing file fingerprint %q %v", fp, err)
	}
}

func TestDetectBinary(t *testing.T) {
	if !DetectBinary([]byte{0, 1, 2}) {
		t.Fatalf("NUL should be binary")
	}
	if DetectBinary([]byte("hello\tworld\r\n")) {
		t.Fatalf("text should not be binary")
	}
	if DetectBinary(nil) {
		t.Fatalf("empty should not be binary")
	}
}

func TestSplitLinesKeepEnds(t *testing.T) {
	in := "a\nb\r\nc"
	got := SplitLinesKeepEnds(in)
	if len(got) != 3 || strings.Join(got, "") != in {
		t.Fatalf("unexpected split: %#v", got)
	}
	if got := SplitLinesKeepEnds("x\n"); len(got) != 1 || got[0] != "x\n" {
		t.Fatalf("trailing newline split: %#v", got)
	}
	if SplitLinesKeepEnds("") != nil {
		t.Fatalf("empty input should give nil")
	}
}

func TestDetectLineEnding(t *testing.T) {
	cases := map[string]string{"a": "none", "a\nb\n": "lf", "a\r\nb\r\n": "crlf", "a\r\nb\n": "mixed"}
	for in, want := range cases {
		if got := DetectLineEnding(in); got != want {
			t.Fatalf("DetectLineEnding(%q)=%s want %s", in, got, want)
		}
	}
}

func TestDisplayWidthAndTruncate(t *testing.T) {
	if runewidth.StringWidth("中文") != 4 {
		t.Fatalf("wide runes should count double")
	}
	got := Truncate("line one\nline two is long", 10)
	if runewidth.StringWidth(got) > 10 || !strings.HasSuffix(got, "…") {
		t.Fatalf("unexpected truncate: %q", got)
	}
	if Truncate("short", 10) != "short" {
		t.Fatalf("short strings are kept")
	}
}
