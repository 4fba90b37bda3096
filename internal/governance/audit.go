package governance

import (
	"fmt"
	"strings"
	"time"

	"organvm/internal/registry"
)

// AuditResult groups audit findings by severity. Only critical findings fail
// the audit.
type AuditResult struct {
	Critical     []string          `json:"critical"`
	Warnings     []string          `json:"warnings"`
	Info         []string          `json:"info"`
	Dependencies *DependencyResult `json:"dependencies"`
}

func (a *AuditResult) Passed() bool {
	return len(a.Critical) == 0
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// parseTimestamp accepts the ISO 8601 forms found in the registry. Values
// without a zone are UTC.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// RunAudit checks reg against rules as of now. A nil rules value audits with
// DefaultRules.
func RunAudit(reg *registry.Registry, rules *Rules, levels LevelResolver, now time.Time) *AuditResult {
	if rules == nil {
		rules = DefaultRules()
	}
	res := &AuditResult{}

	deps := ValidateDependencies(reg.Snapshot(), levels)
	res.Dependencies = deps
	if len(deps.Cycles) > 0 {
		res.Critical = append(res.Critical, fmt.Sprintf("Circular dependencies detected: %d cycle(s)", len(deps.Cycles)))
	}
	if len(deps.BackEdges) > 0 {
		res.Critical = append(res.Critical, fmt.Sprintf("Back-edge violations: %d back-edge(s)", len(deps.BackEdges)))
	}
	res.Info = append(res.Info, fmt.Sprintf("Dependency graph: %d edges, %d cross-organ directions", deps.TotalEdges, len(deps.CrossOrgan)))

	critical := rules.AuditThresholds.Critical
	warning := rules.AuditThresholds.Warning
	staleDays := rules.StaleDays()

	for _, o := range reg.Organs {
		var active []registry.Repo
		for _, r := range o.Repositories {
			if r.ImplementationStatus != "ARCHIVED" {
				active = append(active, r)
			}
		}

		if len(o.Repositories) == 0 && critical.OrganHasZeroRepos {
			res.Critical = append(res.Critical, fmt.Sprintf("%s: has zero repositories", o.Key))
		}

		if want := rules.Requirement(o.Key).MinRepos; len(active) < want {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: has %d active repos, requires %d", o.Key, len(active), want))
		}

		for _, r := range active {
			subject := o.Key + "/" + r.Name

			if (r.DocumentationStatus == "" || r.DocumentationStatus == "EMPTY") && critical.MissingReadme {
				res.Critical = append(res.Critical, subject+": missing README")
			}
			if r.CIWorkflow == "" && warning.MissingCIWorkflow {
				res.Warnings = append(res.Warnings, subject+": no CI workflow")
			}
			if !r.PlatinumStatus && warning.MissingChangelog {
				res.Warnings = append(res.Warnings, subject+": not platinum (missing CHANGELOG/ADRs)")
			}

			if r.LastValidated == "" {
				continue
			}
			lv, err := parseTimestamp(r.LastValidated)
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: malformed last_validated date '%s'", subject, r.LastValidated))
				continue
			}
			if days := int(now.Sub(lv).Hours() / 24); days > staleDays {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: stale (%d days since validation)", subject, days))
			}
		}
	}
	return res
}
