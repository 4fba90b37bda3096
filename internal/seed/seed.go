package seed

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"organvm/internal/registry"
)

// UnknownType is the artifact type given to untyped declarations and to typed
// declarations without a type key. Two such declarations match each other.
const UnknownType = "unknown"

// Artifact is one produces/consumes entry. An entry is either a mapping with a
// type and optional scoping (typed) or a bare string (untyped, Raw set).
type Artifact struct {
	Type        string `yaml:"type,omitempty" json:"type,omitempty"`
	Source      string `yaml:"source,omitempty" json:"source,omitempty"`
	Target      string `yaml:"target,omitempty" json:"target,omitempty"`
	Event       string `yaml:"event,omitempty" json:"event,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Raw         string `yaml:"-" json:"raw,omitempty"`
	untyped     bool
}

func Typed(artifactType string) Artifact {
	return Artifact{Type: artifactType}
}

func Untyped(raw string) Artifact {
	return Artifact{Raw: raw, untyped: true}
}

func (a Artifact) IsTyped() bool {
	return !a.untyped
}

// ArtifactType is the key used for producer/consumer matching.
func (a Artifact) ArtifactType() string {
	if a.untyped || a.Type == "" {
		return UnknownType
	}
	return a.Type
}

func (a Artifact) String() string {
	if a.untyped {
		return a.Raw
	}
	return a.ArtifactType()
}

func (a *Artifact) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*a = Untyped(node.Value)
		return nil
	case yaml.MappingNode:
		type plain Artifact
		var p plain
		if err := node.Decode(&p); err != nil {
			return err
		}
		*a = Artifact(p)
		a.untyped = false
		return nil
	default:
		return fmt.Errorf("line %d: artifact must be a string or a mapping", node.Line)
	}
}

func (a Artifact) MarshalYAML() (interface{}, error) {
	if a.untyped {
		return a.Raw, nil
	}
	type plain Artifact
	return plain(a), nil
}

// Subscription routes an event from a source organ to an action in this repo.
type Subscription struct {
	Event  string `yaml:"event" json:"event"`
	Source string `yaml:"source" json:"source"`
	Action string `yaml:"action" json:"action"`
}

// Seed is a decoded seed.yaml document.
type Seed struct {
	SchemaVersion string         `yaml:"schema_version"`
	Organ         string         `yaml:"organ"`
	Repo          string         `yaml:"repo"`
	Org           string         `yaml:"org"`
	Produces      []Artifact     `yaml:"produces"`
	Consumes      []Artifact     `yaml:"consumes"`
	Subscriptions []Subscription `yaml:"subscriptions"`

	// present records which top-level keys appeared in the document.
	present map[string]bool
}

// Identity returns org/repo, with "unknown" standing in for absent parts.
func (s *Seed) Identity() registry.RepoID {
	org, repo := s.Org, s.Repo
	if org == "" {
		org = UnknownType
	}
	if repo == "" {
		repo = UnknownType
	}
	return registry.NewRepoID(org, repo)
}

// Has reports whether a top-level key was present in the source document.
func (s *Seed) Has(key string) bool {
	return s.present[key]
}

var errNotMapping = errors.New("seed.yaml is not a YAML mapping")

// Parse decodes one seed.yaml document.
func Parse(content []byte) (*Seed, error) {
	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(content))
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, errNotMapping
	}
	doc := root.Content[0]

	var s Seed
	if err := doc.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	s.present = make(map[string]bool, len(doc.Content)/2)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		s.present[doc.Content[i].Value] = true
	}
	return &s, nil
}

// Read parses the seed.yaml at path.
func Read(path string) (*Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
