// Package metrics derives system-wide counts from the registry and writes them
// to system-metrics.json next to a hand-maintained section.
package metrics

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"organvm/internal/registry"
)

// FileName is the default metrics file, written beside the registry.
const FileName = "system-metrics.json"

const schemaVersion = "1.0"

// UnknownStatus buckets repositories without an implementation_status.
const UnknownStatus = "UNKNOWN"

type OrganCount struct {
	Name  string `json:"name"`
	Repos int    `json:"repos"`
}

// Computed holds every metric derivable from the registry alone.
type Computed struct {
	TotalRepos        int                   `json:"total_repos"`
	ActiveRepos       int                   `json:"active_repos"`
	ArchivedRepos     int                   `json:"archived_repos"`
	TotalOrgans       int                   `json:"total_organs"`
	OperationalOrgans int                   `json:"operational_organs"`
	CIWorkflows       int                   `json:"ci_workflows"`
	DependencyEdges   int                   `json:"dependency_edges"`
	PerOrgan          map[string]OrganCount `json:"per_organ"`
	// ImplementationStatus counts repositories per status.
	ImplementationStatus map[string]int `json:"implementation_status"`
}

// Compute derives the metrics of reg.
func Compute(reg *registry.Registry) Computed {
	c := Computed{
		PerOrgan:             make(map[string]OrganCount),
		ImplementationStatus: make(map[string]int),
	}
	for _, o := range reg.Organs {
		c.TotalOrgans++
		if o.LaunchStatus == "OPERATIONAL" {
			c.OperationalOrgans++
		}
		name := o.Name
		if name == "" {
			name = o.Key
		}
		c.PerOrgan[o.Key] = OrganCount{Name: name, Repos: len(o.Repositories)}

		for i := range o.Repositories {
			repo := &o.Repositories[i]
			c.TotalRepos++
			status := repo.ImplementationStatus
			if status == "" && !repo.Has("implementation_status") {
				status = UnknownStatus
			}
			c.ImplementationStatus[status]++
			if repo.CIWorkflow != "" {
				c.CIWorkflows++
			}
			c.DependencyEdges += len(repo.Dependencies)
		}
	}
	c.ActiveRepos = c.ImplementationStatus["ACTIVE"]
	c.ArchivedRepos = c.ImplementationStatus["ARCHIVED"]
	return c
}

type document struct {
	SchemaVersion string          `json:"schema_version"`
	Generated     string          `json:"generated"`
	Computed      Computed        `json:"computed"`
	Manual        json.RawMessage `json:"manual"`
}

var defaultManual = json.RawMessage(`{"_note": "Edit these by hand. organvm metrics calculate preserves this section."}`)

// Write stores c at path with generated set to now. The manual section of an
// existing file at path is carried over unchanged.
func Write(path string, c Computed, now time.Time) error {
	manual, err := readManual(path)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(document{
		SchemaVersion: schemaVersion,
		Generated:     now.UTC().Format(time.RFC3339),
		Computed:      c,
		Manual:        manual,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func readManual(path string) (json.RawMessage, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaultManual, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metrics: %w", err)
	}
	var existing struct {
		Manual json.RawMessage `json:"manual"`
	}
	if err := json.Unmarshal(b, &existing); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(existing.Manual) == 0 || string(existing.Manual) == "null" {
		return json.RawMessage(`{}`), nil
	}
	return existing.Manual, nil
}
