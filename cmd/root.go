package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"lintmux/internal/app"
	"lintmux/internal/config"
	"lintmux/internal/logging"
	"lintmux/internal/output"
	"lintmux/internal/versiongate"
)

type commonFlags struct {
	Config       string
	Format       string
	Jobs         int
	MaxArgLength int
	Take         []string
	Skip         []string
	MetricsFile  string
	LogLevel     string
	LogFormat    string
	ShowVersion  bool
}

type runFlags struct {
	Revision string
	AllFiles bool
	Apply    bool
}

func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd(os.Stdout, os.Stderr)
	args := normalizeArgs(os.Args[1:])
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		var ee *ExitError
		if errors.As(err, &ee) {
			if ee.Msg != "" {
				fmt.Fprintln(os.Stderr, ee.Msg)
			}
			return ee.Code
		}
		// cobra's own errors: unknown command or flag
		writeCLIError(os.Stdout, detectFormatFromArgs(args), "run", args, "unknown_command", "arg", "", err.Error(), ExitArg)
		return ExitArg
	}
	return ExitOK
}

func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &commonFlags{}
	rflags := &runFlags{}
	root := &cobra.Command{
		Use:           "lintmux",
		Short:         "Run many linters and formatters over a repository as one check",
		Long:          rootLongHelp(),
		Example:       rootExampleHelp(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(stderr, flags)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.ShowVersion {
				printVersion(stdout)
				return nil
			}
			return cmd.Help()
		},
	}
	root.CompletionOptions.HiddenDefaultCmd = true
	root.SetOut(stdout)
	root.SetErr(stderr)
	bindCommon(root, flags)

	runCmd := &cobra.Command{
		Use:           "run [paths...]",
		Short:         "Run every registered tool and report one verdict",
		Long:          runLongHelp(),
		Example:       runExampleHelp(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, stdout, flags, *rflags, false, args)
		},
	}
	runCmd.Flags().StringVar(&rflags.Revision, "revision", "", "only files changed since the merge base of REV and HEAD, plus untracked files")
	runCmd.Flags().BoolVar(&rflags.AllFiles, "all-files", false, "every file tracked by git")
	runCmd.Flags().BoolVar(&rflags.Apply, "apply", false, "write formatter edits instead of reporting them")
	root.AddCommand(runCmd)

	formatCmd := &cobra.Command{
		Use:           "format [paths...]",
		Short:         "Run formatter tools only and apply their edits",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := *rflags
			f.Apply = true
			return runMode(cmd, stdout, flags, f, true, args)
		},
	}
	formatCmd.Flags().StringVar(&rflags.Revision, "revision", "", "only files changed since the merge base of REV and HEAD, plus untracked files")
	formatCmd.Flags().BoolVar(&rflags.AllFiles, "all-files", false, "every file tracked by git")
	root.AddCommand(formatCmd)

	listCmd := &cobra.Command{
		Use:           "list",
		Short:         "List registered tools",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listTools(stdout, flags)
		},
	}
	root.AddCommand(listCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(stdout)
		},
	}
	root.AddCommand(versionCmd)
	return root
}

func bindCommon(cmd *cobra.Command, flags *commonFlags) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.Config, "config", "", "registry file (default: nearest .lintmux.yaml in this or a parent directory)")
	pf.StringVar(&flags.Format, "format", "", "output format: ndjson/json/text (default: text on a terminal, ndjson otherwise)")
	pf.IntVar(&flags.Jobs, "jobs", 0, "maximum concurrent tool processes (default: settings.jobs, then CPU count)")
	pf.IntVar(&flags.MaxArgLength, "max-arg-length", 0, "byte budget per batch (default: settings.max_arg_length)")
	pf.StringSliceVar(&flags.Take, "take", nil, "only run these tool codes (comma separated)")
	pf.StringSliceVar(&flags.Skip, "skip", nil, "do not run these tool codes (comma separated)")
	pf.StringVar(&flags.MetricsFile, "metrics-file", "", "write Prometheus metrics in textfile format to this path")
	pf.StringVar(&flags.LogLevel, "log-level", "warn", "log level: debug/info/warn/error")
	pf.StringVar(&flags.LogFormat, "log-format", "text", "log format: text/json")
	pf.BoolVarP(&flags.ShowVersion, "version", "v", false, "print version information")
}

func setupLogging(stderr io.Writer, flags *commonFlags) error {
	level, err := logging.ParseLevel(flags.LogLevel)
	if err != nil {
		return &ExitError{Code: ExitArg, Msg: err.Error()}
	}
	if flags.LogFormat != "text" && flags.LogFormat != "json" {
		return &ExitError{Code: ExitArg, Msg: fmt.Sprintf("unsupported log format: %s (text/json)", flags.LogFormat)}
	}
	logging.Init(level, flags.LogFormat, stderr)
	return nil
}

// resolveFormat picks text for terminals when --format was not given.
func resolveFormat(stdout io.Writer, format string) string {
	if format != "" {
		return format
	}
	if f, ok := stdout.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return "text"
	}
	return "ndjson"
}

func runMode(cmd *cobra.Command, stdout io.Writer, flags *commonFlags, rf runFlags, formattersOnly bool, args []string) error {
	format := resolveFormat(stdout, flags.Format)
	mode := "check"
	if rf.Apply {
		mode = "apply"
	}
	argErr := func(code, detail string) error {
		writeCLIError(stdout, format, mode, args, code, "arg", "", detail, ExitArg)
		return &ExitError{Code: ExitArg}
	}
	if err := output.ValidateFormat(format); err != nil {
		return argErr("invalid_output_format", err.Error())
	}
	if flags.Jobs < 0 {
		return argErr("invalid_jobs", "--jobs must not be negative")
	}
	if flags.MaxArgLength < 0 {
		return argErr("invalid_max_arg_length", "--max-arg-length must not be negative")
	}
	if rf.Revision != "" && rf.AllFiles {
		return argErr("arg_conflict", "--revision and --all-files cannot be combined")
	}
	if len(args) > 0 && (rf.Revision != "" || rf.AllFiles) {
		return argErr("arg_conflict", "explicit paths cannot be combined with --revision or --all-files")
	}
	cwd, err := os.Getwd()
	if err != nil {
		writeCLIError(stdout, format, mode, args, "cwd_failed", "runtime", "", err.Error(), ExitInternal)
		return &ExitError{Code: ExitInternal}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := app.Run(ctx, app.Options{
		Apply:          rf.Apply,
		FormattersOnly: formattersOnly,
		Paths:          args,
		Revision:       rf.Revision,
		AllFiles:       rf.AllFiles,
		CWD:            cwd,
		ConfigPath:     flags.Config,
		Take:           config.SplitCodes(flags.Take),
		Skip:           config.SplitCodes(flags.Skip),
		Jobs:           flags.Jobs,
		MaxArgLength:   flags.MaxArgLength,
		Version:        Version,
		Format:         format,
		Args:           os.Args[1:],
		MetricsFile:    flags.MetricsFile,
	})
	if err != nil {
		var (
			mismatch *versiongate.VersionMismatchError
			argE     *app.ArgErr
			cfgE     *app.ConfigErr
			inE      *app.InputErr
		)
		switch {
		case errors.As(err, &mismatch):
			if werr := output.Write(stdout, format, res.Events); werr != nil {
				return &ExitError{Code: ExitInternal, Msg: fmt.Sprintf("write output: %v", werr)}
			}
			return &ExitError{Code: ExitVersion}
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			writeCLIError(stdout, format, mode, args, "cancelled", "runtime", "", "run cancelled before any tool was started", ExitCancelled)
			return &ExitError{Code: ExitCancelled}
		case errors.As(err, &argE):
			return argErr("invalid_arguments", argE.Msg)
		case errors.As(err, &cfgE):
			writeCLIError(stdout, format, mode, args, cfgE.Code, "config", flags.Config, cfgE.Msg, ExitConfig)
			return &ExitError{Code: ExitConfig}
		case errors.As(err, &inE):
			writeCLIError(stdout, format, mode, args, inE.Code, "input", inE.Path, inE.Msg, ExitInput)
			return &ExitError{Code: ExitInput}
		default:
			writeCLIError(stdout, format, mode, args, "internal_error", "runtime", "", err.Error(), ExitInternal)
			return &ExitError{Code: ExitInternal}
		}
	}
	if werr := output.Write(stdout, format, res.Events); werr != nil {
		return &ExitError{Code: ExitInternal, Msg: fmt.Sprintf("write output: %v", werr)}
	}
	if res.ExitCode != ExitOK {
		return &ExitError{Code: res.ExitCode}
	}
	return nil
}

func listTools(stdout io.Writer, flags *commonFlags) error {
	format := resolveFormat(stdout, flags.Format)
	if err := output.ValidateFormat(format); err != nil {
		writeCLIError(stdout, "ndjson", "list", nil, "invalid_output_format", "arg", "", err.Error(), ExitArg)
		return &ExitError{Code: ExitArg}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return &ExitError{Code: ExitInternal, Msg: err.Error()}
	}
	loaded, err := app.LoadRegistry(app.Options{
		CWD:        cwd,
		ConfigPath: flags.Config,
		Take:       config.SplitCodes(flags.Take),
		Skip:       config.SplitCodes(flags.Skip),
	})
	if err != nil {
		var cfgE *app.ConfigErr
		if errors.As(err, &cfgE) {
			writeCLIError(stdout, format, "list", nil, cfgE.Code, "config", flags.Config, cfgE.Msg, ExitConfig)
			return &ExitError{Code: ExitConfig}
		}
		return &ExitError{Code: ExitInternal, Msg: err.Error()}
	}

	specs := loaded.Registry.All()
	if format == "text" {
		rows := make([][]any, 0, len(specs))
		for _, s := range specs {
			rows = append(rows, []any{s.Code, s.Role, strings.Join(s.Include, " "), strings.Join(s.Exclude, " "), strings.Join(s.Command, " "), s.Concurrency, s.Timeout})
		}
		if err := output.Table(stdout, []string{"CODE", "ROLE", "INCLUDE", "EXCLUDE", "COMMAND", "CONCURRENCY", "TIMEOUT"}, rows, 6); err != nil {
			return &ExitError{Code: ExitInternal, Msg: err.Error()}
		}
		return nil
	}
	events := make([]map[string]any, 0, len(specs))
	for _, s := range specs {
		ev := map[string]any{
			"type":                "linter",
			"code":                s.Code,
			"role":                string(s.Role),
			"include":             s.Include,
			"exclude":             s.Exclude,
			"command":             s.Command,
			"concurrency":         s.Concurrency,
			"timeout":             s.Timeout.String(),
			"findings_exit_codes": s.FindingsExitCodes,
		}
		if sv := s.SelfVersion; sv != nil {
			ev["self_version"] = map[string]any{"file": sv.File, "url": sv.URL}
		}
		events = append(events, ev)
	}
	if err := output.Write(stdout, format, events); err != nil {
		return &ExitError{Code: ExitInternal, Msg: err.Error()}
	}
	return nil
}

// normalizeArgs lets "lintmux <paths>" mean "lintmux run <paths>".
func normalizeArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	first := args[0]
	switch first {
	case "run", "format", "list", "version", "help", "completion":
		return args
	}
	if strings.HasPrefix(first, "-") {
		return args
	}
	return append([]string{"run"}, args...)
}
