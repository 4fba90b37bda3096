package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"organvm/internal/config"
	"organvm/internal/flags"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var cfg = config.New()

// logger is replaced in PersistentPreRun once --verbose is known.
var logger = slog.New(slog.DiscardHandler)

// exit is swapped out by tests.
var exit = os.Exit

var rootCmd = &cobra.Command{
	Use:   "organvm",
	Short: "Reason about the ORGANVM governance graph",
	Long: `organvm reads the ORGANVM registry and per-repository seed.yaml declarations
and reports on the governance graph: dependency violations, promotion
transitions, downstream impact and audit findings.

organvm never touches a repository. It writes the registry only through
"registry update" and system-metrics.json only through "metrics calculate".

Examples:
	# Validate the dependency graph of the registry
	organvm governance check-deps

	# Is LOCAL -> CANDIDATE allowed for a repository?
	organvm governance promote recursive-engine CANDIDATE

	# What breaks downstream if a repository changes?
	organvm governance impact recursive-engine

	# Build the produces/consumes graph from seed.yaml files
	organvm seed graph

	# Apply an allowed promotion
	organvm registry update recursive-engine promotion_status CANDIDATE

	# Who receives this event payload?
	organvm dispatch validate payload.json --route

	# Print build info
	organvm version

Paths:
	The workspace defaults to ORGANVM_WORKSPACE_DIR or ~/Workspace, the corpus
	to ORGANVM_CORPUS_DIR or <workspace>/meta-organvm/organvm-corpvs-testamentvm,
	and the registry to <corpus>/registry-v2.json. An organvm.toml in the
	workspace (or --config) can override paths and the organ table. A .env file
	in the working directory is loaded first.

Output:
	--console-format selects text (default), json or ndjson on stdout. --emit
	adds a structured stream and --out writes findings to a .json or .ndjson
	file. NDJSON mode emits one object per line: run.started, then one
	finding per result, then run.finished with the exit code.

Exit codes:
	0 = clean run, no violations
	1 = violations detected (or transition disallowed)
	2 = partial failure (some seed.yaml documents could not be read)
	3 = fatal error (inputs could not be loaded, bad flags)`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(cmd.ErrOrStderr(), cfg.Runtime.Verbose)
	},
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func init() {
	pf := rootCmd.PersistentFlags()

	// MAINTAINER NOTE: keep config.Config and the messages in config.Validate in
	// sync with the flags registered here.

	// Paths
	pf.StringVar(&cfg.Paths.Registry, flags.FlagRegistry, "", "Path to registry-v2.json (default: <corpus>/registry-v2.json)")
	pf.StringVar(&cfg.Paths.Workspace, flags.FlagWorkspace, "", "Workspace root holding one directory per organ (default: $ORGANVM_WORKSPACE_DIR or ~/Workspace)")
	pf.StringVar(&cfg.Paths.Corpus, flags.FlagCorpus, "", "Corpus repository holding the registry and governance rules")
	pf.StringVar(&cfg.Paths.ConfigFile, flags.FlagConfig, "", "Path to organvm.toml (default: <workspace>/organvm.toml when present)")

	// Output
	pf.StringVar(&cfg.Output.ConsoleFormat, flags.FlagConsoleFormat, "text", "Console output format: text|json|ndjson (default: text)")
	pf.StringSliceVar(&cfg.Output.ConsoleFilterStatus, flags.FlagConsoleFilterStatus, nil, "Filter console output by status (PASS, FAIL, WARN, INFO, ERROR). Comma-separated.")
	pf.StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write structured output to this path")
	pf.StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	pf.StringSliceVar(&cfg.Output.Emit, flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable; comma-separated accepted)")
	pf.BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --emit/--out)")

	// Runtime
	pf.BoolVar(&cfg.Runtime.Verbose, flags.FlagVerbose, false, "Enable verbose logging (prints every GitHub API call and full error details)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(3)
	}
}
