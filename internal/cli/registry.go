package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"organvm/internal/flags"
	"organvm/internal/governance"
	"organvm/internal/output"
	"organvm/internal/registry"
)

var listFilter registry.Filter

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Query and validate registry-v2.json",
}

var registryShowCmd = &cobra.Command{
	Use:   "show <repo>",
	Short: "Show one repository record",
	Long: `Show one repository record. repo is a bare name (the first match wins) or
org/name.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exit(runRegistryShow(cmd, args[0]))
	},
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List repositories, optionally filtered",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exit(runRegistryList(cmd))
	},
}

var registryValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate every repository record",
	Long: `Validate every repository record: required fields, enumerated values,
revenue fields for ORGAN-III, dependency targets, back-edges within
ORGAN-I -> ORGAN-II -> ORGAN-III and declared repository counts.

Exit codes:
	0 = no errors (warnings allowed)
	1 = errors detected
	3 = fatal error`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exit(runRegistryValidate(cmd))
	},
}

var registryUpdateCmd = &cobra.Command{
	Use:   "update <repo> <field> <value>",
	Short: "Set one field of a repository record",
	Long: `Set one field of a repository record and save the registry.

Enumerated fields (implementation_status, promotion_status, tier,
revenue_model, revenue_status) only accept their listed values, and a
promotion_status change must be an allowed transition from the current state.
"true" and "false" become booleans for public, platinum_status and archived.
Fields the registry does not model are stored as given and every other field
in the file is kept.

Exit codes:
	0 = field updated and registry saved
	1 = repository not found or value rejected
	3 = fatal error`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		exit(runRegistryUpdate(cmd, args[0], args[1], args[2]))
	},
}

// Fields whose "true"/"false" values are stored as booleans.
var boolFields = map[string]bool{"public": true, "platinum_status": true, "archived": true}

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryShowCmd, registryListCmd, registryValidateCmd, registryUpdateCmd)

	registryListCmd.Flags().StringVar(&listFilter.Organ, flags.FlagOrgan, "", "Only this organ (short key like III, or registry key like ORGAN-III)")
	registryListCmd.Flags().StringVar(&listFilter.Status, flags.FlagStatus, "", "Only this implementation_status")
	registryListCmd.Flags().StringVar(&listFilter.Tier, flags.FlagTier, "", "Only this tier")
	registryListCmd.Flags().BoolVar(&listFilter.PublicOnly, flags.FlagPublic, false, "Only public repositories")
	registryListCmd.Flags().StringVar(&listFilter.PromotionStatus, flags.FlagPromotion, "", "Only this promotion_status")
}

func runRegistryShow(cmd *cobra.Command, name string) int {
	r, code := startRun(cmd)
	if r == nil {
		return code
	}
	reg, err := r.loadRegistry()
	if err != nil {
		return r.abort("%v", err)
	}

	entry, err := reg.FindRepo(name)
	if err != nil {
		r.emit(output.Finding{
			Check:   "registry.show",
			Subject: name,
			Status:  output.StatusFail,
			Message: fmt.Sprintf("Repo '%s' not found in registry", name),
		})
		return r.finish()
	}

	fields, err := repoFields(entry.Repo)
	if err != nil {
		return r.abort("encoding %s: %v", name, err)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != "name" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	width := max(len(entry.Repo.Name), 40)
	lines := []string{
		"  " + strings.Repeat("─", width),
		fmt.Sprintf("  %-20s%s", "organ:", entry.OrganKey),
	}
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("  %-20s%s", k+":", formatField(fields[k])))
	}
	r.summary("  "+entry.Repo.Name, lines...)

	fields["organ"] = entry.OrganKey
	r.emit(output.Finding{
		Check:    "registry.show",
		Subject:  entry.Repo.ID().String(),
		Status:   output.StatusInfo,
		Message:  entry.OrganKey,
		Metadata: fields,
	})
	return r.finish()
}

// repoFields flattens a record to its JSON field names.
func repoFields(repo *registry.Repo) (map[string]any, error) {
	b, err := json.Marshal(repo)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func formatField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, len(t))
		for i, p := range t {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func runRegistryList(cmd *cobra.Command) int {
	r, code := startRun(cmd)
	if r == nil {
		return code
	}
	reg, err := r.loadRegistry()
	if err != nil {
		return r.abort("%v", err)
	}

	f := listFilter
	if f.Organ != "" {
		if def, ok := r.table.Lookup(f.Organ); ok && def.RegistryKey != "" {
			f.Organ = def.RegistryKey
		}
	}

	results := reg.List(f)
	if len(results) == 0 {
		r.summary("No repos match the given filters.")
		return r.finish()
	}

	for _, e := range results {
		r.emit(output.Finding{
			Check:   "registry.list",
			Subject: e.Repo.ID().String(),
			Status:  output.StatusInfo,
			Message: fmt.Sprintf("%s %s %s", e.OrganKey, orUnknown(e.Repo.ImplementationStatus), orUnknown(e.Repo.Tier)),
			Metadata: map[string]any{
				"organ":                 e.OrganKey,
				"implementation_status": e.Repo.ImplementationStatus,
				"tier":                  e.Repo.Tier,
				"promotion_status":      e.Repo.PromotionStatus,
			},
		})
	}
	r.summary("", "", fmt.Sprintf("  %d repo(s)", len(results)))
	return r.finish()
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

func runRegistryValidate(cmd *cobra.Command) int {
	r, code := startRun(cmd)
	if r == nil {
		return code
	}
	reg, err := r.loadRegistry()
	if err != nil {
		return r.abort("%v", err)
	}

	res := registry.Validate(reg)
	r.summary(fmt.Sprintf("Registry Validation: %d repos checked", res.TotalRepos))
	for _, e := range res.Errors {
		r.emit(output.Finding{Check: "registry.validate", Status: output.StatusFail, Message: e})
	}
	for _, w := range res.Warnings {
		r.emit(output.Finding{Check: "registry.validate", Status: output.StatusWarn, Message: w})
	}
	if res.Passed() && len(res.Warnings) == 0 {
		r.summary("", "All checks passed.")
	}
	return r.finish()
}

func runRegistryUpdate(cmd *cobra.Command, name, field, raw string) int {
	r, code := startRun(cmd)
	if r == nil {
		return code
	}
	reg, err := r.loadRegistry()
	if err != nil {
		return r.abort("%v", err)
	}

	const check = "registry.update"
	fail := func(msg string) int {
		r.emit(output.Finding{Check: check, Subject: name, Status: output.StatusFail, Message: msg})
		return r.finish()
	}

	entry, err := reg.FindRepo(name)
	if err != nil {
		return fail(fmt.Sprintf("Repo '%s' not found in registry", name))
	}

	var value any = raw
	if boolFields[field] {
		switch strings.ToLower(raw) {
		case "true":
			value = true
		case "false":
			value = false
		}
	}

	if field == "promotion_status" {
		current := entry.Repo.PromotionStatus
		if current == "" {
			current = string(governance.DefaultState)
		}
		// A state outside the lifecycle can only be repaired, not transitioned.
		if _, err := governance.ParsePromotionState(current); err == nil {
			if ok, msg := governance.CheckTransition(current, raw); !ok {
				return fail(msg)
			}
		}
	}

	msg, err := reg.UpdateField(name, field, value)
	if err != nil {
		return fail(err.Error())
	}
	if err := reg.Save(cfg.Paths.Registry); err != nil {
		return r.abort("%v", err)
	}
	logger.Debug("registry saved", "path", cfg.Paths.Registry, "repo", name, "field", field)

	r.emit(output.Finding{
		Check:   check,
		Subject: entry.Repo.ID().String(),
		Status:  output.StatusPass,
		Message: msg,
		Metadata: map[string]any{
			"field": field,
			"value": value,
		},
	})
	r.summary("", "  Registry saved.")
	return r.finish()
}
