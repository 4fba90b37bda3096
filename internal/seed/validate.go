package seed

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// RequiredKeys must appear at the top level of every seed.yaml.
var RequiredKeys = []string{"schema_version", "organ", "repo", "org"}

// SupportedSchema is the range of schema_version values this tool reads.
const SupportedSchema = ">= 1.0.0, < 2.0.0"

var supportedSchema = mustConstraint(SupportedSchema)

func mustConstraint(c string) *semver.Constraints {
	sc, err := semver.NewConstraint(c)
	if err != nil {
		panic(fmt.Sprintf("seed: invalid schema constraint %q: %v", c, err))
	}
	return sc
}

// Check is the outcome of validating one document.
type Check struct {
	Path     string
	Identity string
	Problems []string
}

func (c Check) Passed() bool {
	return len(c.Problems) == 0
}

// Validate parses and checks one document for required keys and a supported
// schema version.
func Validate(doc Document) Check {
	c := Check{Path: doc.Path}
	if doc.Err != nil {
		c.Problems = append(c.Problems, doc.Err.Error())
		return c
	}
	s, err := Parse(doc.Content)
	if err != nil {
		c.Problems = append(c.Problems, err.Error())
		return c
	}
	c.Identity = s.Identity().String()

	var missing []string
	for _, k := range RequiredKeys {
		if !s.Has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		c.Problems = append(c.Problems, "missing "+strings.Join(missing, ", "))
	}

	if s.Has("schema_version") {
		v, err := semver.NewVersion(strings.TrimSpace(s.SchemaVersion))
		switch {
		case err != nil:
			c.Problems = append(c.Problems, fmt.Sprintf("invalid schema_version %q: %v", s.SchemaVersion, err))
		case !supportedSchema.Check(v):
			c.Problems = append(c.Problems, fmt.Sprintf("unsupported schema_version %s (want %s)", s.SchemaVersion, SupportedSchema))
		}
	}
	return c
}
