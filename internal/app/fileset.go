package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"lintmux/internal/scan"
	"lintmux/internal/vcs"
)

// collectFiles computes the FileSet: explicit paths are scanned, a revision
// asks git for changed files, and otherwise every tracked file is used. Outside
// a git work tree the root is walked instead, unless AllFiles demands git.
func collectFiles(ctx context.Context, opts Options, root string, log *slog.Logger) (scan.FileSet, error) {
	if len(opts.Paths) > 0 {
		cwd := opts.CWD
		if cwd == "" {
			cwd = root
		}
		abs := make([]string, 0, len(opts.Paths))
		for _, p := range opts.Paths {
			if strings.TrimSpace(p) == "" {
				continue
			}
			if !filepath.IsAbs(p) {
				p = filepath.Join(cwd, p)
			}
			abs = append(abs, p)
		}
		res := scan.Collect(scan.Options{Root: root, Paths: abs})
		for _, se := range res.Errors {
			if se.Fatal() {
				return scan.FileSet{}, &InputErr{Code: se.Code, Path: se.Path, Msg: se.Error()}
			}
			log.Warn("path skipped", slog.String("path", se.Path), slog.String("reason", se.Detail))
		}
		return res.Files, nil
	}

	repo, err := vcs.Open(ctx, root)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return scan.FileSet{}, ctxErr
		}
		if errors.Is(err, vcs.ErrNotRepository) && opts.Revision == "" && !opts.AllFiles {
			log.Info("not a git work tree, walking the repository root", slog.String("root", root))
			res := scan.Collect(scan.Options{Root: root, Paths: []string{root}})
			for _, se := range res.Errors {
				log.Warn("path skipped", slog.String("path", se.Path), slog.String("reason", se.Detail))
			}
			return res.Files, nil
		}
		if errors.Is(err, vcs.ErrNotRepository) {
			return scan.FileSet{}, &InputErr{Code: "not_a_repository", Path: root, Msg: fmt.Sprintf("%s is not inside a git work tree", root)}
		}
		return scan.FileSet{}, &InputErr{Code: "git_failed", Path: root, Msg: err.Error()}
	}

	var fs scan.FileSet
	if opts.Revision != "" {
		fs, err = repo.ChangedFiles(ctx, opts.Revision)
	} else {
		fs, err = repo.TrackedFiles(ctx)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return scan.FileSet{}, ctxErr
		}
		return scan.FileSet{}, &InputErr{Code: "git_failed", Path: root, Msg: err.Error()}
	}
	return rebase(fs, repo.Root, root), nil
}

// rebase makes paths relative to root when the registry file does not sit at
// the top of the git work tree. Files outside root are dropped.
func rebase(fs scan.FileSet, from, root string) scan.FileSet {
	from, root = realPath(from), realPath(root)
	if from == root {
		return scan.NewFileSet(root, fs.Files)
	}
	out := make([]string, 0, len(fs.Files))
	for _, f := range fs.Files {
		rel, err := filepath.Rel(root, filepath.Join(from, filepath.FromSlash(f)))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return scan.NewFileSet(root, out)
}

func realPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	return filepath.Clean(p)
}
