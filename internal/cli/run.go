package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"organvm/internal/config"
	"organvm/internal/flags"
	gh "organvm/internal/github"
	"organvm/internal/organ"
	"organvm/internal/output"
	"organvm/internal/registry"
	"organvm/internal/seed"
)

const dotEnvFile = ".env"

func exitCodeForRun(fatal, partial, wrongs bool) int {
	// Exit code contract:
	// 0 = clean run, no wrongs
	// 1 = wrongs detected
	// 2 = partial failure (some seed documents could not be read)
	// 3 = fatal error (command did not run)
	if fatal {
		return 3
	}
	if partial {
		return 2
	}
	if wrongs {
		return 1
	}
	return 0
}

// run tracks one command invocation from configuration through the
// run.finished event.
type run struct {
	cmd   *cobra.Command
	id    string
	out   *output.Manager
	table *organ.Table
}

func fatalf(cmd *cobra.Command, format string, args ...any) int {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: "+format+"\n", args...)
	return exitCodeForRun(true, false, false)
}

// startRun validates and resolves cfg, builds the organ table and opens the
// output sinks. When it fails the error has been printed and code is the
// exit code to return.
func startRun(cmd *cobra.Command) (r *run, code int) {
	if err := config.LoadDotEnv(dotEnvFile); err != nil {
		return nil, fatalf(cmd, "%v", err)
	}
	if err := cfg.Resolve(); err != nil {
		return nil, fatalf(cmd, "%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fatalf(cmd, "%v", err)
	}
	table, err := cfg.OrganTable()
	if err != nil {
		return nil, fatalf(cmd, "%v", err)
	}

	outMgr, err := setupOutputManager(cmd)
	if err != nil {
		return nil, fatalf(cmd, "creating output sinks: %v", err)
	}

	r = &run{
		cmd:   cmd,
		id:    uuid.NewString(),
		out:   outMgr,
		table: table,
	}
	logger.Debug("run started", "run_id", r.id, "command", cmd.CommandPath(), "registry", cfg.Paths.Registry, "workspace", cfg.Paths.Workspace)
	_ = outMgr.Write(output.Event{Type: output.EventRunStarted, RunID: r.id, Command: cmd.CommandPath()})
	return r, 0
}

func setupOutputManager(cmd *cobra.Command) (*output.Manager, error) {
	outMgr := output.NewManager()

	// Console Sink
	if !cfg.Output.NoConsole {
		if err := outMgr.AddSink(output.NewConsoleSink(cmd.OutOrStdout(), cfg.Output.ConsoleFormat, cfg.Output.ConsoleFilterStatus)); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Emit Sinks (additional structured streams)
	for _, emit := range cfg.Output.Emit {
		es, err := output.NewEmitSink(cmd.OutOrStdout(), emit)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(es); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// File Sink
	if cfg.Output.Out != "" {
		fs, err := output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(fs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}

func (r *run) progress(format string, args ...any) {
	if cfg.Output.NoConsole {
		return
	}
	fmt.Fprintf(r.cmd.ErrOrStderr(), format+"\n", args...)
}

func (r *run) emit(f output.Finding) {
	if err := r.out.Write(f); err != nil {
		logger.Warn("writing finding", "check", f.Check, "error", err)
	}
}

func (r *run) summary(title string, lines ...string) {
	if err := r.out.Write(output.Summary{Title: title, Lines: lines}); err != nil {
		logger.Warn("writing summary", "error", err)
	}
}

func (r *run) finish() int {
	t := r.out.Tally()
	return r.close(exitCodeForRun(false, t.Partial, t.Wrongs > 0))
}

// abort ends a started run with a fatal error.
func (r *run) abort(format string, args ...any) int {
	fmt.Fprintf(r.cmd.ErrOrStderr(), "Error: "+format+"\n", args...)
	return r.close(exitCodeForRun(true, false, false))
}

func (r *run) close(code int) int {
	if err := r.out.Finish(r.id, r.cmd.CommandPath(), code); err != nil {
		fmt.Fprintf(r.cmd.ErrOrStderr(), "Error: %v\n", err)
		if code == 0 {
			code = exitCodeForRun(false, true, false)
		}
	}
	return code
}

func (r *run) timeoutContext() (context.Context, context.CancelFunc) {
	parent := r.cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, cfg.Runtime.Timeout)
}

func (r *run) loadRegistry() (*registry.Registry, error) {
	reg, err := registry.Load(cfg.Paths.Registry)
	if err != nil {
		return nil, err
	}
	logger.Debug("registry loaded", "path", cfg.Paths.Registry, "organs", len(reg.Organs))
	return reg, nil
}

// loadSeeds reads seed.yaml documents from the workspace, or from GitHub when
// remote orgs are configured.
func (r *run) loadSeeds(ctx context.Context) ([]seed.Document, error) {
	if !cfg.UseRemote() {
		r.progress("Discovering seed.yaml files under %s...", cfg.Paths.Workspace)
		return seed.LoadWorkspace(cfg.Paths.Workspace, r.table.Dirs())
	}

	token, source, err := gh.ResolveAuthToken(ctx, cfg.Remote.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve GitHub auth token: %w", err)
	}
	budget := gh.NewRateBudget(gh.AuthenticatedBudget)
	if strings.TrimSpace(token) == "" {
		logger.Warn("no GitHub token found; unauthenticated requests are limited to 60 per hour")
		budget = gh.NewRateBudget(gh.AnonymousBudget)
	} else {
		logger.Debug("github token resolved", "source", string(source))
	}

	opts := []gh.Option{gh.WithLogger(logger)}
	if cfg.Remote.APIURL != "" {
		opts = append(opts, gh.WithBaseURL(cfg.Remote.APIURL))
	}
	client, err := gh.NewClient(ctx, token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}
	src, err := seed.NewRemoteSource(client,
		seed.WithRef(cfg.Remote.Ref),
		seed.WithConcurrency(cfg.Runtime.Concurrency),
		seed.WithRate(cfg.Runtime.Rate),
		seed.WithBudget(budget),
		seed.WithRemoteLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	r.progress("Fetching seed.yaml from %s...", strings.Join(cfg.Remote.Orgs, ", "))
	return src.Fetch(ctx, cfg.Remote.Orgs)
}

// addRemoteFlags registers the flags that switch seed discovery to GitHub.
func addRemoteFlags(fs *pflag.FlagSet) {
	fs.StringSliceVar(&cfg.Remote.Orgs, flags.FlagRemoteOrg, nil, "Read seed.yaml from every repository of this GitHub organization instead of the workspace (name or URL; repeatable; comma-separated accepted)")
	fs.StringVar(&cfg.Remote.Ref, flags.FlagRef, "", "Git ref to read seed.yaml at (default: each repository's default branch)")
	fs.IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, cfg.Runtime.Concurrency, "Concurrent GitHub requests")
	fs.DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout")
	fs.Float64Var(&cfg.Runtime.Rate, flags.FlagRate, cfg.Runtime.Rate, "Maximum GitHub requests per second (0 = unlimited)")
}

// seedLocation renders a seed.yaml path as org/repo.
func seedLocation(path string) string {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' })
	if len(parts) < 3 {
		return path
	}
	return parts[len(parts)-3] + "/" + parts[len(parts)-2]
}
