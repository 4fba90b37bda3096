package registry

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ImplementationStatuses = []string{"ACTIVE", "PROTOTYPE", "SKELETON", "DESIGN_ONLY", "ARCHIVED"}
	PromotionStates        = []string{"LOCAL", "CANDIDATE", "PUBLIC_PROCESS", "GRADUATED", "ARCHIVED"}
	Tiers                  = []string{"flagship", "standard", "stub", "archive", "infrastructure"}
	RevenueModels          = []string{"subscription", "freemium", "one-time", "advertising", "marketplace", "internal", "none"}
	RevenueStatuses        = []string{"pre-launch", "beta", "live", "deprecated", "n/a"}
)

// Organ keys whose repositories must carry revenue fields.
const commerceOrganKey = "ORGAN-III"

// Ordinal levels for the registry-key view of the flow chain.
var flowOrganLevels = map[string]int{
	"ORGAN-I":   1,
	"ORGAN-II":  2,
	"ORGAN-III": 3,
}

// ValidationResult holds registry findings. Errors fail validation; warnings do not.
type ValidationResult struct {
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
	TotalRepos int      `json:"total_repos"`
}

func (r *ValidationResult) Passed() bool {
	return len(r.Errors) == 0
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	enums := map[string][]string{
		"implementation_status": ImplementationStatuses,
		"promotion_status":      PromotionStates,
		"tier":                  Tiers,
	}
	for tag, values := range enums {
		allowed := make(map[string]struct{}, len(values))
		for _, v := range values {
			allowed[v] = struct{}{}
		}
		// Registration only fails for empty tags or nil funcs.
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			_, ok := allowed[fl.Field().String()]
			return ok
		})
	}
	return v
}

// Validate checks every repository record and cross-record consistency.
func Validate(reg *Registry) *ValidationResult {
	res := &ValidationResult{}
	v := newValidator()

	for _, e := range reg.All() {
		res.TotalRepos++
		repo := e.Repo
		name := repo.Name
		if name == "" {
			name = fmt.Sprintf("<unnamed in %s>", e.OrganKey)
		}

		if err := v.Struct(repo); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", name, err))
			} else {
				for _, fe := range verrs {
					res.Errors = append(res.Errors, describeFieldError(name, fe))
				}
			}
		}

		// Revenue fields only apply to the commerce organ.
		if e.OrganKey == commerceOrganKey {
			for _, key := range []string{"type", "revenue_model", "revenue_status"} {
				if !repo.Has(key) {
					res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s repo missing '%s'", name, commerceOrganKey, key))
				}
			}
			if rm := repo.RevenueModel; rm != "" && !slices.Contains(RevenueModels, rm) {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: invalid revenue_model '%s'", name, rm))
			}
			if rs := repo.RevenueStatus; rs != "" && !slices.Contains(RevenueStatuses, rs) {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: invalid revenue_status '%s'", name, rs))
			}
		}

		fromLevel, fromFlow := flowOrganLevels[e.OrganKey]
		for _, dep := range repo.Dependencies {
			// Targets resolve by the last path segment alone.
			target, err := reg.FindRepo(dep[strings.LastIndex(dep, "/")+1:])
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: dependency '%s' not found in registry", name, dep))
				continue
			}
			toLevel, toFlow := flowOrganLevels[target.OrganKey]
			if fromFlow && toFlow && fromLevel < toLevel {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: back-edge dependency on %s (%s -> %s)", name, dep, e.OrganKey, target.OrganKey))
			}
		}
	}

	for _, o := range reg.Organs {
		if o.RepositoryCount != nil && *o.RepositoryCount != len(o.Repositories) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: repository_count=%d but found %d", o.Key, *o.RepositoryCount, len(o.Repositories)))
		}
	}

	return res
}

func describeFieldError(name string, fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: missing required field '%s'", name, field)
	case "implementation_status":
		return fmt.Sprintf("%s: invalid implementation_status '%v' (valid: %s)", name, fe.Value(), joinSorted(ImplementationStatuses))
	default:
		return fmt.Sprintf("%s: invalid %s '%v'", name, field, fe.Value())
	}
}

func joinSorted(values []string) string {
	s := append([]string(nil), values...)
	sort.Strings(s)
	return strings.Join(s, ", ")
}
