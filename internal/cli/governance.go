package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"organvm/internal/flags"
	"organvm/internal/governance"
	"organvm/internal/output"
	"organvm/internal/registry"
	"organvm/internal/seed"
)

// now is swapped out by tests.
var now = time.Now

const separator = "────────────────────────────────────────"

var governanceCmd = &cobra.Command{
	Use:   "governance",
	Short: "Check the dependency graph, promotions and downstream impact",
}

var checkDepsCmd = &cobra.Command{
	Use:   "check-deps",
	Short: "Validate registry dependencies",
	Long: `Validate every dependency declared in the registry.

Reports dependencies on repositories that are not in the registry, self
dependencies, back-edges that flow upward through the restricted organs
(I -> II -> III by default) and dependency cycles anywhere in the graph.

Exit codes:
	0 = no violations
	1 = violations detected
	3 = fatal error`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exit(runCheckDeps(cmd))
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote <repo> <target-state>",
	Short: "Check whether a promotion transition is allowed",
	Long: `Check whether a repository may move from its current promotion_status to
target-state. Nothing is written; apply an allowed transition with
"organvm registry update <repo> promotion_status <target-state>".

States: LOCAL, CANDIDATE, PUBLIC_PROCESS, GRADUATED, ARCHIVED. Repositories
without a promotion_status are LOCAL.

Exit codes:
	0 = transition allowed
	1 = transition disallowed or repository not found
	3 = fatal error`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		exit(runPromote(cmd, args[0], args[1]))
	},
}

var impactCmd = &cobra.Command{
	Use:   "impact <repo>",
	Short: "List repositories affected by a change",
	Long: `List every repository reachable downstream of repo, following registry
dependencies in reverse and seed.yaml produces -> consumes edges forward.

Repositories are matched by bare name, so identically named repositories in
different organizations are merged.

Seed documents that cannot be read are reported as warnings and do not change
the exit code.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exit(runImpact(cmd, args[0]))
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the governance audit",
	Long: `Audit the registry against governance-rules.json.

Critical findings (cycles, back-edges, and when enabled empty organs and
missing READMEs) fail the audit. Warnings cover organ minimums, missing CI,
platinum status and stale last_validated dates.

The rules file defaults to <corpus>/governance-rules.json; when it is absent
the audit runs with built-in defaults.

Exit codes:
	0 = no critical findings
	1 = critical findings
	3 = fatal error`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exit(runAudit(cmd))
	},
}

var cascadeCmd = &cobra.Command{
	Use:   "cascade <org/repo>",
	Short: "Plan the order in which dependents must follow a change",
	Long: `List every repository that transitively depends on org/repo, in
breadth-first order. Dependencies are matched by full identity. A bare repo
name is qualified through the registry first.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exit(runCascade(cmd, args[0]))
	},
}

func init() {
	rootCmd.AddCommand(governanceCmd)
	governanceCmd.AddCommand(checkDepsCmd, promoteCmd, impactCmd, auditCmd, cascadeCmd)

	auditCmd.Flags().StringVar(&cfg.Paths.Rules, flags.FlagRules, "", "Path to governance-rules.json (default: <corpus>/governance-rules.json)")
	addRemoteFlags(impactCmd.Flags())
}

func runCheckDeps(cmd *cobra.Command) int {
	r, code := startRun(cmd)
	if r == nil {
		return code
	}
	reg, err := r.loadRegistry()
	if err != nil {
		return r.abort("%v", err)
	}

	res := governance.ValidateDependencies(reg.Snapshot(), r.table)

	lines := []string{
		separator,
		fmt.Sprintf("  Total edges: %d", res.TotalEdges),
		fmt.Sprintf("  Missing targets: %d", len(res.MissingTargets)),
		fmt.Sprintf("  Self-dependencies: %d", len(res.SelfDeps)),
		fmt.Sprintf("  Back-edges: %d", len(res.BackEdges)),
		fmt.Sprintf("  Cycles: %d", len(res.Cycles)),
	}
	if len(res.CrossOrgan) > 0 {
		lines = append(lines, "", "  Cross-organ directions:")
		dirs := make([]string, 0, len(res.CrossOrgan))
		for d := range res.CrossOrgan {
			dirs = append(dirs, d)
		}
		sort.Strings(dirs)
		for _, d := range dirs {
			lines = append(lines, fmt.Sprintf("    %s: %d", d, res.CrossOrgan[d]))
		}
	}
	r.summary("Dependency Graph Validation", lines...)

	for _, m := range res.MissingTargets {
		r.emit(output.Finding{
			Check:    "dependency.missing_target",
			Subject:  m.From.String(),
			Status:   output.StatusFail,
			Message:  fmt.Sprintf("Missing target: %s -> %s", m.From, m.To),
			Metadata: map[string]any{"target": m.To.String()},
		})
	}
	for _, s := range res.SelfDeps {
		r.emit(output.Finding{
			Check:   "dependency.self_dep",
			Subject: s.String(),
			Status:  output.StatusFail,
			Message: fmt.Sprintf("Self-dep: %s", s),
		})
	}
	for _, b := range res.BackEdges {
		r.emit(output.Finding{
			Check:   "dependency.back_edge",
			Subject: b.From.String(),
			Status:  output.StatusFail,
			Message: fmt.Sprintf("Back-edge: %s -> %s (%s -> %s)", b.From, b.To, b.FromOrg, b.ToOrg),
			Metadata: map[string]any{
				"target":   b.To.String(),
				"from_org": b.FromOrg,
				"to_org":   b.ToOrg,
			},
		})
	}
	for _, c := range res.Cycles {
		path := make([]string, len(c))
		for i, id := range c {
			path[i] = id.String()
		}
		r.emit(output.Finding{
			Check:    "dependency.cycle",
			Subject:  path[0],
			Status:   output.StatusFail,
			Message:  fmt.Sprintf("Cycle: %s", c),
			Metadata: map[string]any{"cycle": path},
		})
	}

	r.summary("", "", "  Result: "+passFail(res.Passed()))
	return r.finish()
}

func runPromote(cmd *cobra.Command, repo, target string) int {
	r, code := startRun(cmd)
	if r == nil {
		return code
	}
	reg, err := r.loadRegistry()
	if err != nil {
		return r.abort("%v", err)
	}

	const check = "promotion.transition"
	entry, err := reg.FindRepo(repo)
	if err != nil {
		r.emit(output.Finding{
			Check:   check,
			Subject: repo,
			Status:  output.StatusFail,
			Message: fmt.Sprintf("Repo '%s' not found", repo),
		})
		return r.finish()
	}

	current := entry.Repo.PromotionStatus
	if current == "" {
		current = string(governance.DefaultState)
	}
	ok, msg := governance.CheckTransition(current, target)
	f := output.Finding{
		Check:   check,
		Subject: entry.Repo.ID().String(),
		Status:  output.StatusFail,
		Message: msg,
		Metadata: map[string]any{
			"current": current,
			"target":  target,
		},
	}
	if ok {
		f.Status = output.StatusPass
		f.Message = msg + ". Transition is valid; apply it with 'organvm registry update " + entry.Repo.Name + " promotion_status " + target + "'."
	}
	r.emit(f)
	return r.finish()
}

func runImpact(cmd *cobra.Command, repo string) int {
	r, code := startRun(cmd)
	if r == nil {
		return code
	}
	reg, err := r.loadRegistry()
	if err != nil {
		return r.abort("%v", err)
	}

	ctx, cancel := r.timeoutContext()
	defer cancel()

	docs, err := r.loadSeeds(ctx)
	if err != nil {
		return r.abort("loading seeds: %v", err)
	}
	graph := seed.BuildGraph(docs)
	for _, pe := range graph.Errors {
		r.emit(output.Finding{
			Check:   "seed.parse",
			Subject: seedLocation(pe.Path),
			Status:  output.StatusWarn,
			Message: pe.Error(),
		})
	}
	logger.Debug("seed graph built", "nodes", len(graph.Nodes), "edges", len(graph.Edges))

	report := governance.CalculateImpact(repo, reg.Snapshot(), graph)

	title := "Impact Analysis for: " + report.Source
	if len(report.Affected) == 0 {
		r.summary(title, "  No downstream dependencies found.")
		return r.finish()
	}
	r.summary(title, fmt.Sprintf("  %d repositories affected:", len(report.Affected)))

	steps := report.Propagation()
	depth := make(map[string]int, len(steps))
	for _, s := range steps {
		depth[s.Repo] = s.Depth
	}
	for _, a := range report.Affected {
		r.emit(output.Finding{
			Check:   "impact.affected",
			Subject: a,
			Status:  output.StatusInfo,
			Message: fmt.Sprintf("downstream of %s", report.Source),
			Metadata: map[string]any{
				"depth":      depth[a],
				"downstream": report.ImpactGraph[a],
			},
		})
	}

	lines := []string{"", "  Propagation Path:"}
	for _, s := range steps {
		lines = append(lines, fmt.Sprintf("    %s↳ %s", strings.Repeat("  ", s.Depth), s.Repo))
	}
	r.summary("", lines...)
	return r.finish()
}

func runAudit(cmd *cobra.Command) int {
	r, code := startRun(cmd)
	if r == nil {
		return code
	}
	reg, err := r.loadRegistry()
	if err != nil {
		return r.abort("%v", err)
	}
	rules, err := loadRules()
	if err != nil {
		return r.abort("%v", err)
	}

	res := governance.RunAudit(reg, rules, r.table, now())

	r.summary("Governance Audit Report", strings.Repeat("=", 40))
	for _, c := range res.Critical {
		r.emit(output.Finding{Check: "audit.critical", Status: output.StatusFail, Message: c})
	}
	for _, w := range res.Warnings {
		r.emit(output.Finding{Check: "audit.warning", Status: output.StatusWarn, Message: w})
	}
	for _, i := range res.Info {
		r.emit(output.Finding{Check: "audit.info", Status: output.StatusInfo, Message: i})
	}

	var lines []string
	if res.Passed() && len(res.Warnings) == 0 {
		lines = append(lines, "", "All governance checks passed.")
	}
	lines = append(lines, "", "Result: "+passFail(res.Passed()))
	r.summary("", lines...)
	return r.finish()
}

// loadRules reads the configured rules file. The corpus default may be
// absent, in which case the built-in defaults apply.
func loadRules() (*governance.Rules, error) {
	rules, err := governance.LoadRules(cfg.Paths.Rules)
	if err == nil {
		logger.Debug("governance rules loaded", "path", cfg.Paths.Rules)
		return rules, nil
	}
	if !cfg.RulesExplicit() && errors.Is(err, fs.ErrNotExist) {
		logger.Debug("governance rules not found; using defaults", "path", cfg.Paths.Rules)
		return governance.DefaultRules(), nil
	}
	return nil, err
}

func runCascade(cmd *cobra.Command, repo string) int {
	r, code := startRun(cmd)
	if r == nil {
		return code
	}
	reg, err := r.loadRegistry()
	if err != nil {
		return r.abort("%v", err)
	}

	start := registry.ParseRepoID(repo)
	if !start.Qualified() {
		entry, err := reg.FindRepo(repo)
		if err != nil {
			r.emit(output.Finding{
				Check:   "cascade.plan",
				Subject: repo,
				Status:  output.StatusFail,
				Message: fmt.Sprintf("Repo '%s' not found", repo),
			})
			return r.finish()
		}
		start = entry.Repo.ID()
	}

	order := governance.PlanCascade(reg.Snapshot(), start)
	title := "Cascade from: " + start.String()
	if len(order) == 0 {
		r.summary(title, "  No dependents found.")
		return r.finish()
	}
	r.summary(title, fmt.Sprintf("  %d dependent(s), in order:", len(order)))
	for i, id := range order {
		r.emit(output.Finding{
			Check:    "cascade.step",
			Subject:  id.String(),
			Status:   output.StatusInfo,
			Message:  fmt.Sprintf("step %d", i+1),
			Metadata: map[string]any{"step": i + 1, "source": start.String()},
		})
	}
	return r.finish()
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
