package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrRepoNotFound = errors.New("repo not found in registry")

// Registry is the decoded registry-v2.json document.
//
// Organs keeps the order in which organ keys appear in the file. Dependency
// validation reports findings in that order, so the order must survive decoding.
type Registry struct {
	Version string  `json:"version,omitempty"`
	Organs  []Organ `json:"-"`

	doc object
}

type Organ struct {
	// Key is the registry organ key (e.g. ORGAN-I, META-ORGANVM).
	Key             string `json:"-"`
	Name            string `json:"name,omitempty"`
	LaunchStatus    string `json:"launch_status,omitempty"`
	RepositoryCount *int   `json:"repository_count,omitempty"`
	Repositories    []Repo `json:"repositories"`

	doc object
}

type Repo struct {
	Name                 string   `json:"name" validate:"required"`
	Org                  string   `json:"org" validate:"required"`
	Description          *string  `json:"description" validate:"required"`
	Public               *bool    `json:"public" validate:"required"`
	ImplementationStatus string   `json:"implementation_status" validate:"required,implementation_status"`
	PromotionStatus      string   `json:"promotion_status,omitempty" validate:"omitempty,promotion_status"`
	Tier                 string   `json:"tier,omitempty" validate:"omitempty,tier"`
	Dependencies         []string `json:"dependencies,omitempty"`

	Type          string `json:"type,omitempty"`
	RevenueModel  string `json:"revenue_model,omitempty"`
	RevenueStatus string `json:"revenue_status,omitempty"`

	DocumentationStatus string `json:"documentation_status,omitempty"`
	CIWorkflow          string `json:"ci_workflow,omitempty"`
	PlatinumStatus      bool   `json:"platinum_status,omitempty"`
	LastValidated       string `json:"last_validated,omitempty"`

	// doc is the source record. Encoding lays the fields above over it, so
	// keys this type does not model survive a load and save.
	doc object
}

type (
	plainOrgan Organ
	plainRepo  Repo
)

func (r Repo) ID() RepoID {
	return NewRepoID(r.Org, r.Name)
}

// Has reports whether key appeared in the source record.
func (r *Repo) Has(key string) bool {
	return r.doc.has(key)
}

func (r *Repo) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		return nil
	}
	doc, err := decodeObject(b)
	if err != nil {
		return err
	}
	var p plainRepo
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = Repo(p)
	r.doc = doc
	return nil
}

func (r Repo) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(plainRepo(r))
	if err != nil {
		return nil, err
	}
	return overlay(r.doc, b, repoKeys)
}

func (o *Organ) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		return nil
	}
	doc, err := decodeObject(b)
	if err != nil {
		return err
	}
	var p plainOrgan
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*o = Organ(p)
	o.doc = doc
	return nil
}

func (o Organ) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(plainOrgan(o))
	if err != nil {
		return nil, err
	}
	return overlay(o.doc, b, organKeys)
}

// Load reads and decodes a registry file.
func Load(path string) (*Registry, error) {
	if path == "" {
		return nil, fmt.Errorf("registry path required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()

	reg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

func Parse(r io.Reader) (*Registry, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var reg Registry
	if err := json.Unmarshal(b, &reg); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	return &reg, nil
}

func (r *Registry) UnmarshalJSON(b []byte) error {
	var top struct {
		Version string          `json:"version"`
		Organs  json.RawMessage `json:"organs"`
	}
	if err := json.Unmarshal(b, &top); err != nil {
		return err
	}
	doc, err := decodeObject(b)
	if err != nil {
		return err
	}
	r.doc = doc
	r.Version = top.Version
	r.Organs = nil
	if len(top.Organs) == 0 || string(top.Organs) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(top.Organs))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("organs: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("organs: expected object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("organs: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("organs: expected key, got %v", tok)
		}
		var o Organ
		if err := dec.Decode(&o); err != nil {
			return fmt.Errorf("organs[%s]: %w", key, err)
		}
		o.Key = key
		r.Organs = append(r.Organs, o)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("organs: %w", err)
	}
	return nil
}

func (r Registry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	if r.Version != "" {
		v, err := json.Marshal(r.Version)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`"version":`)
		buf.Write(v)
		buf.WriteString(",")
	}
	buf.WriteString(`"organs":{`)
	for i, o := range r.Organs {
		if i > 0 {
			buf.WriteString(",")
		}
		k, err := json.Marshal(o.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(o)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteString(":")
		buf.Write(v)
	}
	buf.WriteString("}}")
	return overlay(r.doc, buf.Bytes(), registryKeys)
}

// Save writes the registry to path as two-space indented JSON.
func (r *Registry) Save(path string) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// Organ returns the organ with the given registry key.
func (r *Registry) Organ(key string) (*Organ, bool) {
	if r == nil {
		return nil, false
	}
	for i := range r.Organs {
		if r.Organs[i].Key == key {
			return &r.Organs[i], true
		}
	}
	return nil, false
}
