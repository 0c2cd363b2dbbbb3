// Package vcs computes file sets from a git work tree.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"lintmux/internal/logging"
	"lintmux/internal/scan"
)

var ErrNotRepository = errors.New("not inside a git work tree")

// GitError is a failed git command.
type GitError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *GitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), msg)
}

func (e *GitError) Unwrap() error { return e.Err }

type Repo struct {
	Root string
	Git  string
	log  *slog.Logger
}

// Open finds the work tree containing dir.
func Open(ctx context.Context, dir string) (*Repo, error) {
	r := &Repo{Root: dir, Git: "git", log: logging.New("vcs")}
	out, err := r.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		var ge *GitError
		if errors.As(err, &ge) && strings.Contains(ge.Stderr, "not a git repository") {
			return nil, ErrNotRepository
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrNotRepository
		}
		return nil, err
	}
	r.Root = filepath.FromSlash(strings.TrimSpace(string(out)))
	return r, nil
}

// TrackedFiles lists every tracked file that still exists in the work tree.
func (r *Repo) TrackedFiles(ctx context.Context) (scan.FileSet, error) {
	out, err := r.run(ctx, "ls-files", "-z", "--cached")
	if err != nil {
		return scan.FileSet{}, err
	}
	return r.existing(splitZ(out)), nil
}

// ChangedFiles lists files changed between the merge base of rev and HEAD
// and the work tree, plus untracked files not ignored by git. Deleted files
// are left out.
func (r *Repo) ChangedFiles(ctx context.Context, rev string) (scan.FileSet, error) {
	if strings.HasPrefix(rev, "-") {
		return scan.FileSet{}, fmt.Errorf("invalid revision %q", rev)
	}
	base, err := r.run(ctx, "merge-base", rev, "HEAD")
	if err != nil {
		return scan.FileSet{}, err
	}
	changed, err := r.run(ctx, "diff", "--name-only", "-z", "--diff-filter=ACMRT", strings.TrimSpace(string(base)))
	if err != nil {
		return scan.FileSet{}, err
	}
	untracked, err := r.run(ctx, "ls-files", "-z", "--others", "--exclude-standard")
	if err != nil {
		return scan.FileSet{}, err
	}
	paths := append(splitZ(changed), splitZ(untracked)...)
	fs := r.existing(paths)
	r.logger().Debug("changed files", slog.String("revision", rev), slog.Int("files", fs.Len()))
	return fs, nil
}

func (r *Repo) existing(paths []string) scan.FileSet {
	kept := paths[:0]
	for _, p := range paths {
		info, err := os.Lstat(filepath.Join(r.Root, filepath.FromSlash(p)))
		if err != nil || info.IsDir() {
			continue
		}
		kept = append(kept, p)
	}
	return scan.NewFileSet(r.Root, kept)
}

func (r *Repo) logger() *slog.Logger {
	if r.log == nil {
		r.log = logging.New("vcs")
	}
	return r.log
}

func (r *Repo) run(ctx context.Context, args ...string) ([]byte, error) {
	git := r.Git
	if git == "" {
		git = "git"
	}
	cmd := exec.CommandContext(ctx, git, args...)
	cmd.Dir = r.Root
	cmd.Env = append(os.Environ(), "GIT_OPTIONAL_LOCKS=0")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &GitError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}

func splitZ(b []byte) []string {
	var out []string
	for _, p := range bytes.Split(b, []byte{0}) {
		if len(p) > 0 {
			out = append(out, string(p))
		}
	}
	return out
}
