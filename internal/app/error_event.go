package app

type errorHint struct {
	NextAction  string
	FixExample  string
	DocKey      string
	Recoverable bool
}

func buildErrorEvent(category, code, path, detail string) map[string]any {
	h := hintByCode(code)
	return map[string]any{
		"type":        "error",
		"code":        code,
		"category":    category,
		"path":        path,
		"detail":      detail,
		"next_action": h.NextAction,
		"fix_example": h.FixExample,
		"doc_key":     h.DocKey,
		"recoverable": h.Recoverable,
	}
}

// ErrorEvent builds the error event for a failure code, for callers outside
// the run (the CLI reports config and input errors through it).
func ErrorEvent(category, code, path, detail string) map[string]any {
	return buildErrorEvent(category, code, path, detail)
}

func hintByCode(code string) errorHint {
	switch code {
	case "config_not_found":
		return errorHint{
			NextAction:  "create .lintmux.yaml at the repository root or pass --config",
			FixExample:  "lintmux run --config path/to/.lintmux.yaml",
			DocKey:      "config.not_found",
			Recoverable: true,
		}
	case "config_invalid", "env_invalid":
		return errorHint{
			NextAction:  "fix the field named in detail and rerun",
			FixExample:  "lintmux list --config .lintmux.yaml",
			DocKey:      "config.invalid",
			Recoverable: true,
		}
	case "unknown_linter":
		return errorHint{
			NextAction:  "use a code printed by lintmux list in --take/--skip",
			FixExample:  "lintmux list && lintmux run --take FLAKE8",
			DocKey:      "config.unknown_linter",
			Recoverable: true,
		}
	case "formatter_overlap":
		return errorHint{
			NextAction:  "narrow the include/exclude patterns so each file has at most one formatter",
			FixExample:  "exclude: [\"generated/**\"]",
			DocKey:      "config.formatter_overlap",
			Recoverable: true,
		}
	case "input_path_not_found":
		return errorHint{
			NextAction:  "check that the path exists and is spelled correctly",
			FixExample:  "lintmux run src/ docs/README.md",
			DocKey:      "input.path_not_found",
			Recoverable: true,
		}
	case "outside_root":
		return errorHint{
			NextAction:  "only pass paths under the directory holding .lintmux.yaml",
			FixExample:  "cd /path/to/repo && lintmux run src/",
			DocKey:      "input.outside_root",
			Recoverable: true,
		}
	case "input_abs_failed", "input_stat_failed", "walk_error":
		return errorHint{
			NextAction:  "check path permissions and readability",
			FixExample:  "chmod -R +r src/ && lintmux run src/",
			DocKey:      "input.path_access",
			Recoverable: true,
		}
	case "not_a_repository":
		return errorHint{
			NextAction:  "run inside a git work tree, or pass explicit paths instead of --all-files/--revision",
			FixExample:  "lintmux run .",
			DocKey:      "input.not_a_repository",
			Recoverable: true,
		}
	case "git_failed":
		return errorHint{
			NextAction:  "check that the revision exists and git works in this repository",
			FixExample:  "git rev-parse origin/main && lintmux run --revision origin/main",
			DocKey:      "input.git_failed",
			Recoverable: true,
		}
	case "version_mismatch":
		return errorHint{
			NextAction:  "install the lintmux version the repository expects",
			FixExample:  "go install lintmux@<expected version>",
			DocKey:      "version.mismatch",
			Recoverable: false,
		}
	default:
		return errorHint{
			NextAction:  "fix the input or configuration named in detail and rerun",
			FixExample:  "lintmux --help",
			DocKey:      "general.error",
			Recoverable: true,
		}
	}
}
