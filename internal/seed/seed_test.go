package seed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const exampleSeed = `schema_version: "1.0"
organ: I
repo: recursive-engine
org: organvm-i-theoria
produces:
  - type: theory
    description: formal models
    target: organvm-ii-poiesis
  - registry-v2.json
consumes: []
subscriptions:
  - event: theory.published
    source: ORGAN-I
    action: rebuild
`

func TestParse_Example(t *testing.T) {
	s, err := Parse([]byte(exampleSeed))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.SchemaVersion != "1.0" || s.Organ != "I" || s.Repo != "recursive-engine" {
		t.Fatalf("unexpected header: %+v", s)
	}
	if got := s.Identity().String(); got != "organvm-i-theoria/recursive-engine" {
		t.Fatalf("Identity() = %q", got)
	}
	if len(s.Produces) != 2 {
		t.Fatalf("expected 2 produces, got %d", len(s.Produces))
	}

	typed := s.Produces[0]
	if !typed.IsTyped() || typed.ArtifactType() != "theory" || typed.Target != "organvm-ii-poiesis" {
		t.Errorf("unexpected typed artifact %+v", typed)
	}
	untyped := s.Produces[1]
	if untyped.IsTyped() || untyped.Raw != "registry-v2.json" || untyped.ArtifactType() != UnknownType {
		t.Errorf("unexpected untyped artifact %+v", untyped)
	}
	if len(s.Consumes) != 0 {
		t.Errorf("expected no consumes, got %v", s.Consumes)
	}
	if len(s.Subscriptions) != 1 || s.Subscriptions[0].Action != "rebuild" {
		t.Errorf("unexpected subscriptions %+v", s.Subscriptions)
	}
	for _, k := range RequiredKeys {
		if !s.Has(k) {
			t.Errorf("expected key %q present", k)
		}
	}
	if s.Has("metadata") {
		t.Errorf("unexpected key metadata")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty", content: ""},
		{name: "list document", content: "- a\n- b\n"},
		{name: "scalar document", content: "just text\n"},
		{name: "malformed", content: "produces: [\n"},
		{name: "nested list artifact", content: "produces:\n  - [a, b]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.content)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestIdentity_DefaultsUnknown(t *testing.T) {
	s, err := Parse([]byte("produces: []\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := s.Identity().String(); got != "unknown/unknown" {
		t.Fatalf("Identity() = %q", got)
	}
}

func TestArtifact_TypedWithoutTypeIsUnknown(t *testing.T) {
	var a Artifact
	if err := yaml.Unmarshal([]byte("source: org-x\n"), &a); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !a.IsTyped() || a.ArtifactType() != UnknownType || a.Source != "org-x" {
		t.Fatalf("unexpected artifact %+v", a)
	}
}

func TestArtifact_MarshalKeepsVariant(t *testing.T) {
	in := []Artifact{Untyped("notes.md"), {Type: "schema", Source: "org-x/repo-y"}}
	b, err := yaml.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, "- notes.md") || !strings.Contains(out, "type: schema") {
		t.Fatalf("unexpected YAML:\n%s", out)
	}
	var back []Artifact
	if err := yaml.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back[0].IsTyped() || !back[1].IsTyped() {
		t.Fatalf("variant lost: %+v", back)
	}
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(exampleSeed), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, err := Read(filepath.Join(dir, "missing.yaml")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
