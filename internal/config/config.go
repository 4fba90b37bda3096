package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"organvm/internal/output"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields, keep these in sync:
	// - CLI flags in internal/cli/root.go and the command files
	// - the [paths]/[remote] tables read in file.go
	Paths   Paths
	Remote  Remote
	Output  Output
	Runtime Runtime

	// Organs overrides the built-in organ table when non-empty (organvm.toml only).
	Organs []OrganOverride
	// RestrictedLevels overrides the levels subject to flow-direction checks.
	RestrictedLevels []int
}

type Paths struct {
	// ConfigFile is an explicit organvm.toml path (see --config). When empty,
	// <workspace>/organvm.toml is read if present.
	ConfigFile string

	// Workspace is the root containing one directory per organ (see --workspace).
	// Falls back to ORGANVM_WORKSPACE_DIR, the config file, then ~/Workspace.
	Workspace string

	// Corpus is the repository holding registry-v2.json and governance-rules.json.
	// Falls back to ORGANVM_CORPUS_DIR, the config file, then
	// <workspace>/meta-organvm/organvm-corpvs-testamentvm.
	Corpus string

	// Registry is the registry-v2.json path (see --registry).
	Registry string

	// Rules is the governance-rules.json path (see --rules).
	Rules string

	// rulesExplicit is set when the rules path came from a flag, env or file
	// rather than the corpus default.
	rulesExplicit bool
}

// Remote selects GitHub as the seed source instead of the local workspace.
type Remote struct {
	// Orgs lists GitHub organizations to read seed.yaml from (see --remote-org).
	Orgs []string

	// Ref is the git ref to read at; empty means each repository's default branch (see --ref).
	Ref string

	// Token overrides GitHub token discovery (GITHUB_TOKEN, GH_TOKEN, gh auth token).
	Token string

	// APIURL points at a GitHub Enterprise REST endpoint. Falls back to GITHUB_API_URL.
	APIURL string
}

type Output struct {
	// ConsoleFormat controls the human-facing console sink format (see --console-format).
	// Allowed values: text, json, ndjson.
	ConsoleFormat string

	// ConsoleFilterStatus filters console output by finding status (see --console-filter-status).
	// Allowed values: PASS, FAIL, WARN, INFO, ERROR.
	ConsoleFilterStatus []string

	// Out writes structured output to this path (see --out).
	Out string

	// OutFormat selects the format for --out (see --out-format).
	// Allowed values: json, ndjson. If empty, it is inferred from the --out file extension.
	OutFormat string

	// Emit writes an additional structured event stream to stdout (see --emit).
	// Allowed values: json, ndjson.
	Emit []string

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool
}

type Runtime struct {
	// Concurrency bounds parallel GitHub requests during remote seed discovery (see --concurrency).
	Concurrency int

	// Timeout bounds the whole command (see --timeout).
	Timeout time.Duration

	// Rate caps GitHub API requests per second; 0 disables limiting (see --rate).
	Rate float64

	// Verbose enables debug logging, including every GitHub API call.
	Verbose bool
}

func New() *Config {
	return &Config{
		Output: Output{
			ConsoleFormat: "text",
		},
		Runtime: Runtime{
			Concurrency: 4,
			Timeout:     5 * time.Minute,
			Rate:        1.2,
		},
	}
}

var allowedStatuses = map[string]bool{
	string(output.StatusPass):  true,
	string(output.StatusFail):  true,
	string(output.StatusWarn):  true,
	string(output.StatusInfo):  true,
	string(output.StatusError): true,
}

func (c *Config) Validate() error {
	c.Remote.Orgs = splitCommaList(c.Remote.Orgs)
	c.Output.Emit = splitCommaList(c.Output.Emit)
	c.Output.ConsoleFilterStatus = splitCommaList(c.Output.ConsoleFilterStatus)

	for i, raw := range c.Remote.Orgs {
		org, err := normalizeAccountSelector(raw)
		if err != nil {
			return fmt.Errorf("invalid --remote-org value: %w", err)
		}
		c.Remote.Orgs[i] = org
	}

	// Output validation
	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if c.Output.ConsoleFormat == "" {
		return errors.New("--console-format must be one of: text, json, ndjson")
	}
	if c.Output.ConsoleFormat != "text" && c.Output.ConsoleFormat != "json" && c.Output.ConsoleFormat != "ndjson" {
		return fmt.Errorf("unsupported --console-format: %s (must be one of: text, json, ndjson)", c.Output.ConsoleFormat)
	}

	for i, st := range c.Output.ConsoleFilterStatus {
		v := strings.ToUpper(strings.TrimSpace(st))
		if !allowedStatuses[v] {
			return fmt.Errorf("unsupported --console-filter-status value: %s (must be one of: PASS, FAIL, WARN, INFO, ERROR)", st)
		}
		c.Output.ConsoleFilterStatus[i] = v
	}

	for i, emit := range c.Output.Emit {
		v := normalizeEnumValue(emit)
		if v != "json" && v != "ndjson" {
			return fmt.Errorf("unsupported --emit value: %s (must be one of: json, ndjson)", emit)
		}
		c.Output.Emit[i] = v
	}

	// Runtime validation
	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}
	if c.Runtime.Rate < 0 {
		return errors.New("--rate must be >= 0")
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			f, err := output.InferFormat(c.Output.Out)
			if err != nil {
				return fmt.Errorf("%w; use --out-format", err)
			}
			c.Output.OutFormat = f
		} else if c.Output.OutFormat != "json" && c.Output.OutFormat != "ndjson" {
			return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
		}
	}

	for _, l := range c.RestrictedLevels {
		if l <= 0 {
			return fmt.Errorf("restricted_levels: level %d must be > 0", l)
		}
	}

	return nil
}

// UseRemote reports whether seeds are read from GitHub.
func (c *Config) UseRemote() bool {
	return len(c.Remote.Orgs) > 0
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func normalizeAccountSelector(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%q", raw)
	}

	// Accept a raw account name, or a GitHub URL like:
	//   https://github.com/<name>
	//   https://github.com/orgs/<name>
	//   github.com/<name>
	if strings.HasPrefix(raw, "github.com/") || strings.HasPrefix(raw, "www.github.com/") {
		raw = "https://" + raw
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%q", raw)
		}
		host := strings.ToLower(u.Hostname())
		if host == "www.github.com" {
			host = "github.com"
		}
		if host != "github.com" {
			return "", fmt.Errorf("%q", raw)
		}
		parts := strings.FieldsFunc(strings.Trim(u.Path, "/"), func(r rune) bool { return r == '/' })
		if len(parts) == 0 {
			return "", fmt.Errorf("%q", raw)
		}
		if parts[0] == "orgs" || parts[0] == "users" {
			if len(parts) < 2 {
				return "", fmt.Errorf("%q", raw)
			}
			return parts[1], nil
		}
		return parts[0], nil
	}

	// Basic sanity: reject obvious repo-like inputs.
	if strings.Contains(raw, "/") {
		return "", fmt.Errorf("%q", raw)
	}
	return raw, nil
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
