package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"organvm/internal/organ"
)

// Environment variables consulted by Resolve.
const (
	EnvWorkspace = "ORGANVM_WORKSPACE_DIR"
	EnvCorpus    = "ORGANVM_CORPUS_DIR"
	EnvRegistry  = "ORGANVM_REGISTRY"
	EnvConfig    = "ORGANVM_CONFIG"
	EnvGitHubAPI = "GITHUB_API_URL"
)

const (
	defaultCorpusRel = "meta-organvm/organvm-corpvs-testamentvm"
	registryFileName = "registry-v2.json"
	rulesFileName    = "governance-rules.json"
)

// LoadDotEnv loads variables from .env files without overriding variables
// that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if fileExists(p) {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Resolve fills every unset path. Precedence is flag, environment, config
// file, then the built-in default.
func (c *Config) Resolve() error {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	ws := firstNonEmpty(c.Paths.Workspace, os.Getenv(EnvWorkspace))

	cfgPath := firstNonEmpty(c.Paths.ConfigFile, os.Getenv(EnvConfig))
	required := cfgPath != ""
	if cfgPath == "" {
		cfgPath = filepath.Join(expandHome(firstNonEmpty(ws, "~/Workspace"), home), FileName)
	}
	f, err := ReadFile(expandHome(cfgPath, home), required)
	if err != nil {
		return err
	}
	if f == nil {
		f = &File{}
	}

	c.Paths.Workspace = expandHome(firstNonEmpty(ws, f.Workspace, "~/Workspace"), home)
	c.Paths.Corpus = expandHome(firstNonEmpty(
		c.Paths.Corpus,
		os.Getenv(EnvCorpus),
		f.Paths.Corpus,
		filepath.Join(c.Paths.Workspace, defaultCorpusRel),
	), home)
	c.Paths.Registry = expandHome(firstNonEmpty(
		c.Paths.Registry,
		os.Getenv(EnvRegistry),
		f.Paths.Registry,
		filepath.Join(c.Paths.Corpus, registryFileName),
	), home)

	c.Paths.rulesExplicit = c.Paths.Rules != "" || f.Paths.Rules != ""
	c.Paths.Rules = expandHome(firstNonEmpty(
		c.Paths.Rules,
		f.Paths.Rules,
		filepath.Join(c.Paths.Corpus, rulesFileName),
	), home)

	if len(c.Remote.Orgs) == 0 {
		c.Remote.Orgs = append([]string(nil), f.Remote.Orgs...)
	}
	c.Remote.APIURL = firstNonEmpty(c.Remote.APIURL, os.Getenv(EnvGitHubAPI))
	if c.Remote.Ref == "" {
		c.Remote.Ref = f.Remote.Ref
	}
	if len(c.Organs) == 0 {
		c.Organs = f.Organs
	}
	if len(c.RestrictedLevels) == 0 {
		c.RestrictedLevels = f.RestrictedLevels
	}
	return nil
}

// RulesExplicit reports whether the rules path was configured rather than defaulted.
func (c *Config) RulesExplicit() bool {
	return c.Paths.rulesExplicit
}

// OrganTable builds the organ table, applying any overrides from the config file.
func (c *Config) OrganTable() (*organ.Table, error) {
	if len(c.Organs) == 0 && len(c.RestrictedLevels) == 0 {
		return organ.Default(), nil
	}
	defs := organ.Default().Defs()
	if len(c.Organs) > 0 {
		defs = make([]organ.Def, 0, len(c.Organs))
		for _, o := range c.Organs {
			defs = append(defs, organ.Def(o))
		}
	}
	restricted := organ.DefaultRestricted
	if len(c.RestrictedLevels) > 0 {
		restricted = c.RestrictedLevels
	}
	t, err := organ.New(defs, restricted)
	if err != nil {
		return nil, fmt.Errorf("organ table: %w", err)
	}
	return t, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
