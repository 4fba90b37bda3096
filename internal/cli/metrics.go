package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"organvm/internal/flags"
	"organvm/internal/metrics"
	"organvm/internal/output"
)

var metricsOutput string

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Derive system metrics from the registry",
}

var metricsCalculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Compute current metrics and write system-metrics.json",
	Long: `Compute repository, organ, CI and dependency counts from the registry and
write them to system-metrics.json beside the registry (or --output). The
file's hand-maintained "manual" section is kept.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exit(runMetricsCalculate(cmd))
	},
}

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.AddCommand(metricsCalculateCmd)
	metricsCalculateCmd.Flags().StringVar(&metricsOutput, flags.FlagMetricsOutput, "", "Metrics file to write (default: system-metrics.json beside the registry)")
}

func runMetricsCalculate(cmd *cobra.Command) int {
	r, code := startRun(cmd)
	if r == nil {
		return code
	}
	reg, err := r.loadRegistry()
	if err != nil {
		return r.abort("%v", err)
	}

	path := metricsOutput
	if path == "" {
		path = filepath.Join(filepath.Dir(cfg.Paths.Registry), metrics.FileName)
	}
	c := metrics.Compute(reg)
	if err := metrics.Write(path, c, now()); err != nil {
		return r.abort("%v", err)
	}
	logger.Debug("metrics written", "path", path, "repos", c.TotalRepos)

	r.summary(fmt.Sprintf("Metrics written to %s", path),
		fmt.Sprintf("  Repos: %d (%d ACTIVE)", c.TotalRepos, c.ActiveRepos),
		fmt.Sprintf("  Organs: %d/%d operational", c.OperationalOrgans, c.TotalOrgans),
		fmt.Sprintf("  CI: %d", c.CIWorkflows),
		fmt.Sprintf("  Dependencies: %d edges", c.DependencyEdges),
	)
	r.emit(output.Finding{
		Check:   "metrics.calculate",
		Subject: path,
		Status:  output.StatusInfo,
		Message: fmt.Sprintf("%d repos across %d organs", c.TotalRepos, c.TotalOrgans),
		Metadata: map[string]any{
			"total_repos":           c.TotalRepos,
			"active_repos":          c.ActiveRepos,
			"archived_repos":        c.ArchivedRepos,
			"total_organs":          c.TotalOrgans,
			"operational_organs":    c.OperationalOrgans,
			"ci_workflows":          c.CIWorkflows,
			"dependency_edges":      c.DependencyEdges,
			"implementation_status": c.ImplementationStatus,
		},
	})
	return r.finish()
}
