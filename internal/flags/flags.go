package flags

// Package flags defines canonical CLI flag names shared across commands.
// Keeping these as constants helps avoid drift between Cobra flag wiring,
// error messages in config validation and tests that drive the CLI.
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVar(&cfg.Paths.Registry, flags.FlagRegistry, "", "...")
//	arg := "--" + flags.FlagRegistry
const (
	// Paths
	FlagRegistry  = "registry"
	FlagWorkspace = "workspace"
	FlagCorpus    = "corpus"
	FlagConfig    = "config"
	FlagRules     = "rules"

	// Output
	FlagConsoleFormat       = "console-format"
	FlagConsoleFilterStatus = "console-filter-status"
	FlagOut                 = "out"
	FlagOutFormat           = "out-format"
	FlagEmit                = "emit"
	FlagNoConsole           = "no-console"

	// Remote seed discovery
	FlagRemoteOrg   = "remote-org"
	FlagRef         = "ref"
	FlagConcurrency = "concurrency"
	FlagTimeout     = "timeout"
	FlagRate        = "rate"

	// Seed routing
	FlagSource = "source"

	// Metrics and dispatch
	FlagMetricsOutput = "output"
	FlagRoute         = "route"

	// Registry filters
	FlagOrgan     = "organ"
	FlagStatus    = "status"
	FlagTier      = "tier"
	FlagPublic    = "public"
	FlagPromotion = "promotion"

	// Runtime
	FlagVerbose = "verbose"
)
