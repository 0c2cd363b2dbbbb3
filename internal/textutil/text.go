package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
)

// AbsentFingerprint stands for a file that did not exist when fingerprinted.
const AbsentFingerprint = "absent"

func HashSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintFile hashes the current on-disk content of path.
func FingerprintFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return AbsentFingerprint, nil
		}
		return "", err
	}
	return HashSHA256(b), nil
}

func DetectBinary(sample []byte) bool {
	if len(sample) > 8192 {
		sample = sample[:8192]
	}
	if len(sample) == 0 {
		return false
	}
	ctl := 0
	for _, b := range sample {
		if b == 0 {
			return true
		}
		if b == 9 || b == 10 || b == 13 {
			continue
		}
		if b < 32 || b == 127 {
			ctl++
		}
	}
	ratio := float64(ctl) / float64(len(sample))
	return ratio > 0.30
}

// SplitLinesKeepEnds splits s after every "\n", keeping the terminators so the
// pieces concatenate back to s.
func SplitLinesKeepEnds(s string) []string {
	if s == "" {
		return nil
	}
	out := strings.SplitAfter(s, "\n")
	if out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func DetectLineEnding(s string) string {
	crlf := strings.Count(s, "\r\n")
	lf := strings.Count(s, "\n") - crlf
	switch {
	case crlf == 0 && lf == 0:
		return "none"
	case crlf > 0 && lf > 0:
		return "mixed"
	case crlf > 0:
		return "crlf"
	default:
		return "lf"
	}
}

// Truncate shortens s to at most width terminal cells, marking the cut with "…".
func Truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
