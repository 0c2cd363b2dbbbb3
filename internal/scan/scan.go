package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"lintmux/internal/pattern"
)

var defaultIgnoreDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	"node_modules": {},
	"vendor":       {},
}

// FileSet is an ordered, deduplicated list of repository-relative,
// forward-slash paths.
type FileSet struct {
	Root  string
	Files []string
}

// NewFileSet normalises paths and drops duplicates, keeping first-seen order.
func NewFileSet(root string, paths []string) FileSet {
	seen := make(map[string]struct{}, len(paths))
	files := make([]string, 0, len(paths))
	for _, p := range paths {
		n := pattern.NormalizePath(p)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		files = append(files, n)
	}
	return FileSet{Root: root, Files: files}
}

func (s FileSet) Len() int { return len(s.Files) }

type Options struct {
	// Root is the repository root every returned path is relative to.
	Root           string
	Paths          []string
	FollowSymlinks bool
	IgnorePatterns []string
}

type GitIgnoreMatcher struct {
	Base     string
	Patterns []string
}

type ScanResult struct {
	Files  FileSet
	Errors []ScanError
}

type ScanError struct {
	Code   string
	Path   string
	Detail string
}

func (e ScanError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Detail)
}

// Fatal reports whether the error means the requested file set is incomplete.
func (e ScanError) Fatal() bool {
	return e.Code != "symlink_skipped"
}

// Collect expands explicit files and directories into a FileSet relative to
// opts.Root. Directories are walked with the default ignore dirs, .gitignore
// rules and IgnorePatterns applied; explicitly named files are only filtered
// by IgnorePatterns and .gitignore.
func Collect(opts Options) ScanResult {
	root := opts.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return ScanResult{Errors: []ScanError{{Code: "input_abs_failed", Path: root, Detail: err.Error()}}}
	}
	opts.Root = absRoot

	m := make(map[string]struct{})
	var errs []ScanError
	matchers := loadGitIgnoreMatchers(opts)

	for _, in := range opts.Paths {
		abs := in
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(absRoot, in)
		}
		abs = filepath.Clean(abs)
		if _, ok := relTo(absRoot, abs); !ok {
			errs = append(errs, ScanError{Code: "outside_root", Path: in, Detail: "path is outside the repository root " + absRoot})
			continue
		}
		info, err := os.Lstat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				errs = append(errs, ScanError{Code: "input_path_not_found", Path: in, Detail: "path does not exist"})
				continue
			}
			errs = append(errs, ScanError{Code: "input_stat_failed", Path: in, Detail: err.Error()})
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 && !opts.FollowSymlinks {
			errs = append(errs, ScanError{Code: "symlink_skipped", Path: in, Detail: "symlinks are not followed"})
			continue
		}
		if info.IsDir() {
			walkDir(abs, opts, matchers, m, &errs)
			continue
		}
		if isIgnored(abs, false, opts, matchers) {
			continue
		}
		m[abs] = struct{}{}
	}

	files := make([]string, 0, len(m))
	for p := range m {
		rel, _ := relTo(absRoot, p)
		files = append(files, rel)
	}
	sort.Strings(files)
	return ScanResult{Files: NewFileSet(absRoot, files), Errors: errs}
}

func relTo(root, abs string) (string, bool) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func walkDir(root string, opts Options, matchers []GitIgnoreMatcher, out map[string]struct{}, errs *[]ScanError) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			*errs = append(*errs, ScanError{Code: "walk_error", Path: path, Detail: err.Error()})
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if _, ok := defaultIgnoreDirs[name]; ok {
				return fs.SkipDir
			}
			if isIgnored(path, true, opts, matchers) {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if isIgnored(path, false, opts, matchers) {
			return nil
		}
		out[filepath.Clean(path)] = struct{}{}
		return nil
	})
}

// loadGitIgnoreMatchers reads .gitignore at the root and at every explicit
// input directory. Negations are not supported.
func loadGitIgnoreMatchers(opts Options) []GitIgnoreMatcher {
	uniq := map[string]struct{}{}
	var bases []string
	addBase := func(b string) {
		if b == "" {
			return
		}
		if _, ok := uniq[b]; ok {
			return
		}
		uniq[b] = struct{}{}
		bases = append(bases, b)
	}
	addBase(opts.Root)
	for _, p := range opts.Paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(opts.Root, p)
		}
		info, err := os.Stat(abs)
		if err != nil {
			continue
		}
		if info.IsDir() {
			addBase(filepath.Clean(abs))
		}
	}
	var ms []GitIgnoreMatcher
	for _, base := range bases {
		b, err := os.ReadFile(filepath.Join(base, ".gitignore"))
		if err != nil {
			continue
		}
		patterns := make([]string, 0)
		for _, raw := range strings.Split(string(b), "\n") {
			p := strings.TrimSpace(raw)
			if p == "" || strings.HasPrefix(p, "#") || strings.HasPrefix(p, "!") {
				continue
			}
			p = strings.TrimPrefix(filepath.ToSlash(p), "/")
			if strings.HasSuffix(p, "/") {
				p = p + "**"
			}
			patterns = append(patterns, p)
			if !strings.Contains(strings.TrimSuffix(p, "/**"), "/") {
				patterns = append(patterns, "**/"+p)
			}
		}
		ms = append(ms, GitIgnoreMatcher{Base: base, Patterns: patterns})
	}
	return ms
}

func isIgnored(absPath string, isDir bool, opts Options, matchers []GitIgnoreMatcher) bool {
	rel, inRoot := relTo(opts.Root, absPath)
	for _, p := range opts.IgnorePatterns {
		if inRoot {
			if ok, err := doublestar.Match(p, rel); err == nil && ok {
				return true
			}
		}
		if ok, err := doublestar.Match(p, filepath.ToSlash(absPath)); err == nil && ok {
			return true
		}
	}
	for _, m := range matchers {
		rel, ok := relTo(m.Base, absPath)
		if !ok || rel == "." {
			continue
		}
		for _, p := range m.Patterns {
			if ok, err := doublestar.Match(p, rel); err == nil && ok {
				return true
			}
			if isDir {
				if ok, err := doublestar.Match(p, rel+"/"); err == nil && ok {
					return true
				}
			}
		}
	}
	return false
}
