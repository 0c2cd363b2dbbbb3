package cmd

import "strings"

func rootLongHelp() string {
	return strings.TrimSpace(`
Runs a declared set of external linters and formatters over a repository and
reduces their output to a single pass/fail verdict.

Registry (.lintmux.yaml, looked up from the current directory upwards):
- each linter has a code, include/exclude globs, a role
  (checker | formatter | meta) and a command containing {{PATHSFILE}}
- {{PATHSFILE}} is replaced by a temporary file listing the batch's paths,
  one per line, relative to the directory holding .lintmux.yaml
- tools print one JSON finding per line:
  {"code","path","line","column","severity","name","message","original","replacement"}
- exit 0 = clean, a findings_exit_codes member (default 1) = findings,
  anything else = tool error

File selection:
- explicit paths (files or directories)
- --revision REV: files changed since the merge base of REV and HEAD,
  plus untracked files
- --all-files, or no paths: every file tracked by git; outside git the
  repository root is walked

Output (ndjson by default, text on a terminal):
- meta, finding, tool, error, summary events
- error events carry next_action, fix_example, doc_key and recoverable

Exit codes:
- 0 pass
- 1 fail (findings or tool errors)
- 2 argument error
- 3 input error
- 4 config error
- 5 internal error
- 6 version mismatch
- 130 cancelled
`)
}

func rootExampleHelp() string {
	return strings.TrimSpace(`
  # every tracked file
  lintmux run

  # only what changed on this branch
  lintmux run --revision origin/main

  # explicit paths, a subset of tools
  lintmux run src/ docs/README.md --take FLAKE8,MYPY

  # apply formatter edits
  lintmux format

  # what is registered
  lintmux list --format text
`)
}

func runLongHelp() string {
	return strings.TrimSpace(`
Runs every registered tool (or the --take/--skip subset) and reports one verdict.

Order of a run:
1. the self_version meta entry, if declared, compares this build's version
   with the expected one; a mismatch aborts with exit code 6
2. other meta tools run
3. checkers and formatters run in parallel batches bounded by --jobs and by
   each tool's concurrency
4. formatter edits become diffs, or are written with --apply

Formatter findings only fail the run in check mode. Tool errors (non-findings
exit codes, timeouts, malformed output, stale edits) always fail it.
`)
}

func runExampleHelp() string {
	return strings.TrimSpace(`
  lintmux run
  lintmux run --all-files --jobs 8
  lintmux run --revision HEAD~3 --format json
  lintmux run --apply --take CLANGFORMAT
  LINTMUX_EXPECTED_VERSION=1.4.0 lintmux run
`)
}
