package governance

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
)

// RulesFileName is the governance rules document in the corpus repository.
const RulesFileName = "governance-rules.json"

const defaultStaleRepoDays = 90

// Rules is the subset of governance-rules.json the audit reads. Unrecognized
// sections are kept raw so they can be shown but are never interpreted.
type Rules struct {
	Version           string                      `json:"version,omitempty"`
	DependencyRules   json.RawMessage             `json:"dependency_rules,omitempty"`
	PromotionRules    json.RawMessage             `json:"promotion_rules,omitempty"`
	AuditThresholds   AuditThresholds             `json:"audit_thresholds"`
	OrganRequirements map[string]OrganRequirement `json:"organ_requirements,omitempty" validate:"dive"`
}

type AuditThresholds struct {
	Critical CriticalThresholds `json:"critical"`
	Warning  WarningThresholds  `json:"warning"`
}

type CriticalThresholds struct {
	OrganHasZeroRepos bool `json:"organ_has_zero_repos"`
	MissingReadme     bool `json:"missing_readme"`
}

type WarningThresholds struct {
	StaleRepoDays     *int `json:"stale_repo_days,omitempty" validate:"omitempty,gt=0"`
	MissingCIWorkflow bool `json:"missing_ci_workflow"`
	MissingChangelog  bool `json:"missing_changelog"`
}

type OrganRequirement struct {
	MinRepos int `json:"min_repos" validate:"gte=0"`
}

// DefaultRules is used when no rules file is available: no optional checks,
// and the default staleness window.
func DefaultRules() *Rules {
	return &Rules{}
}

func LoadRules(path string) (*Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()

	r, err := ParseRules(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func ParseRules(r io.Reader) (*Rules, error) {
	var rules Rules
	if err := json.NewDecoder(r).Decode(&rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&rules); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	return &rules, nil
}

// StaleDays is the number of days after which last_validated is stale.
func (r *Rules) StaleDays() int {
	if r == nil || r.AuditThresholds.Warning.StaleRepoDays == nil {
		return defaultStaleRepoDays
	}
	return *r.AuditThresholds.Warning.StaleRepoDays
}

// Requirement returns the requirements for an organ key, or the zero value.
func (r *Rules) Requirement(organKey string) OrganRequirement {
	if r == nil {
		return OrganRequirement{}
	}
	return r.OrganRequirements[organKey]
}
