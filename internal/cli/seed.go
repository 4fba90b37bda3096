package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"organvm/internal/flags"
	"organvm/internal/output"
	"organvm/internal/seed"
)

var routeSource string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Work with per-repository seed.yaml declarations",
	Long: `Work with the seed.yaml file each repository carries to declare what it
produces, consumes and subscribes to.

Seeds are read from <workspace>/<organ-dir>/<repo>/seed.yaml. With --remote-org
they are read from GitHub instead: every non-archived repository of the
organization is checked for a seed.yaml on its default branch (or --ref).
GitHub authentication uses GITHUB_TOKEN, GH_TOKEN or gh auth token, in that
order; GITHUB_API_URL selects a GitHub Enterprise endpoint.`,
}

var seedDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List every seed.yaml found",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exit(runSeedDiscover(cmd))
	},
}

var seedValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every seed.yaml for required keys and a supported schema_version",
	Long: `Check every seed.yaml for the required keys (schema_version, organ, repo,
org) and a schema_version in the supported range.

Exit codes:
	0 = every seed is valid
	1 = at least one seed is invalid
	3 = fatal error`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exit(runSeedValidate(cmd))
	},
}

var seedGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Build the produces/consumes graph",
	Long: `Build the data-flow graph implied by seed.yaml produces and consumes
declarations. A producer links to a consumer when their artifact types match;
untyped declarations match as "unknown". A consumer's source narrows the
producers it accepts to one org/repo or one org.

Exit codes:
	0 = every seed was read
	2 = some seeds could not be read or parsed (the rest are still graphed)
	3 = fatal error`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exit(runSeedGraph(cmd))
	},
}

var seedRouteCmd = &cobra.Command{
	Use:   "route <event>",
	Short: "List the subscriptions an event would trigger",
	Long: `List every seed.yaml subscription that listens for event from the organ
given by --source. The organ may be a short key (I), a registry key (ORGAN-I),
a workspace directory or a GitHub organization.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exit(runSeedRoute(cmd, args[0]))
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.AddCommand(seedDiscoverCmd, seedValidateCmd, seedGraphCmd, seedRouteCmd)

	addRemoteFlags(seedCmd.PersistentFlags())
	seedRouteCmd.Flags().StringVar(&routeSource, flags.FlagSource, "", "Organ emitting the event (required)")
	_ = seedRouteCmd.MarkFlagRequired(flags.FlagSource)
}

// readSeeds starts a run and loads every seed document. On failure r is nil
// and code is the exit code.
func readSeeds(cmd *cobra.Command) (r *run, docs []seed.Document, code int) {
	r, code = startRun(cmd)
	if r == nil {
		return nil, nil, code
	}
	ctx, cancel := r.timeoutContext()
	defer cancel()

	docs, err := r.loadSeeds(ctx)
	if err != nil {
		return nil, nil, r.abort("loading seeds: %v", err)
	}
	logger.Debug("seed documents loaded", "count", len(docs))
	return r, docs, 0
}

func runSeedDiscover(cmd *cobra.Command) int {
	r, docs, code := readSeeds(cmd)
	if r == nil {
		return code
	}

	r.summary(fmt.Sprintf("Found %d seed.yaml files:", len(docs)))
	for _, d := range docs {
		r.emit(output.Finding{
			Check:    "seed.discover",
			Subject:  seedLocation(d.Path),
			Status:   output.StatusInfo,
			Message:  d.Path,
			Metadata: map[string]any{"path": d.Path},
		})
	}
	return r.finish()
}

func runSeedValidate(cmd *cobra.Command) int {
	r, docs, code := readSeeds(cmd)
	if r == nil {
		return code
	}

	failed := 0
	for _, d := range docs {
		c := seed.Validate(d)
		if c.Passed() {
			r.emit(output.Finding{
				Check:    "seed.validate",
				Subject:  c.Identity,
				Status:   output.StatusPass,
				Metadata: map[string]any{"path": c.Path},
			})
			continue
		}
		failed++
		r.emit(output.Finding{
			Check:    "seed.validate",
			Subject:  seedLocation(c.Path),
			Status:   output.StatusFail,
			Message:  strings.Join(c.Problems, "; "),
			Metadata: map[string]any{"path": c.Path, "problems": c.Problems},
		})
	}

	r.summary("", "", fmt.Sprintf("%d passed, %d failed", len(docs)-failed, failed))
	return r.finish()
}

func runSeedGraph(cmd *cobra.Command) int {
	r, docs, code := readSeeds(cmd)
	if r == nil {
		return code
	}

	g := seed.BuildGraph(docs)
	r.summary(fmt.Sprintf("Seed Graph: %d repos, %d edges", len(g.Nodes), len(g.Edges)))
	for _, e := range g.Edges {
		r.emit(output.Finding{
			Check:   "seed.edge",
			Subject: e.Producer.String(),
			Status:  output.StatusInfo,
			Message: fmt.Sprintf("%s --[%s]--> %s", e.Producer, e.ArtifactType, e.Consumer),
			Metadata: map[string]any{
				"consumer":      e.Consumer.String(),
				"artifact_type": e.ArtifactType,
			},
		})
	}
	for _, pe := range g.Errors {
		r.emit(output.Finding{
			Check:    "seed.parse",
			Subject:  seedLocation(pe.Path),
			Status:   output.StatusError,
			Message:  pe.Error(),
			Metadata: map[string]any{"path": pe.Path},
		})
	}
	if len(g.Errors) > 0 {
		r.summary("", "", fmt.Sprintf("Errors: %d", len(g.Errors)))
	}
	return r.finish()
}

func runSeedRoute(cmd *cobra.Command, event string) int {
	r, docs, code := readSeeds(cmd)
	if r == nil {
		return code
	}

	source := routeSource
	if def, ok := r.table.Lookup(source); ok && def.RegistryKey != "" {
		source = def.RegistryKey
	}

	g := seed.BuildGraph(docs)
	for _, pe := range g.Errors {
		r.emit(output.Finding{
			Check:   "seed.parse",
			Subject: seedLocation(pe.Path),
			Status:  output.StatusWarn,
			Message: pe.Error(),
		})
	}

	routes := seed.RouteEvent(g, event, source)
	title := fmt.Sprintf("Event %s from %s", event, source)
	if len(routes) == 0 {
		r.summary(title, "  No subscribers.")
		return r.finish()
	}
	r.summary(title, fmt.Sprintf("  %d subscriber(s):", len(routes)))
	for _, rt := range routes {
		r.emit(output.Finding{
			Check:    "seed.route",
			Subject:  rt.Repo.String(),
			Status:   output.StatusInfo,
			Message:  rt.Action,
			Metadata: map[string]any{"event": rt.Event, "source": source, "action": rt.Action},
		})
	}
	return r.finish()
}
