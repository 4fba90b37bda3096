package registry

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const annotatedRegistry = `{
  "version": "2.0",
  "schema_version": "0.5",
  "summary": {"total_repos": 1},
  "organs": {
    "ORGAN-III": {
      "name": "Ergon",
      "launch_status": "OPERATIONAL",
      "repositories": [
        {
          "name": "product",
          "org": "organvm-iii-ergon",
          "description": "product",
          "public": true,
          "implementation_status": "ACTIVE",
          "dependencies": [],
          "platinum_status": false,
          "note": "hand-written",
          "links": {"docs": "https://example.com"}
        }
      ]
    }
  }
}`

func decodeAny(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func TestSave_KeepsUnmodeledKeys(t *testing.T) {
	reg, err := Parse(strings.NewReader(annotatedRegistry))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	path := filepath.Join(t.TempDir(), "registry-v2.json")
	if err := reg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decodeAny(t, b), decodeAny(t, []byte(annotatedRegistry))) {
		t.Fatalf("saved registry differs from source:\n%s", b)
	}
	if !strings.HasSuffix(string(b), "}\n") || !strings.Contains(string(b), "\n  \"organs\": {") {
		t.Fatalf("expected two-space indent and trailing newline:\n%s", b)
	}
	if strings.Index(string(b), `"schema_version"`) > strings.Index(string(b), `"organs"`) {
		t.Fatalf("top-level key order lost:\n%s", b)
	}
}

func TestUpdateField(t *testing.T) {
	tests := []struct {
		name    string
		repo    string
		field   string
		value   any
		wantMsg string
		wantErr error
	}{
		{name: "enum", repo: "product", field: "tier", value: "flagship", wantMsg: "product.tier: <unset> -> flagship"},
		{name: "replace", repo: "product", field: "implementation_status", value: "PROTOTYPE", wantMsg: "product.implementation_status: ACTIVE -> PROTOTYPE"},
		{name: "bool", repo: "product", field: "public", value: false, wantMsg: "product.public: true -> false"},
		{name: "unmodeled", repo: "product", field: "note", value: "rewritten", wantMsg: "product.note: hand-written -> rewritten"},
		{name: "bad enum", repo: "product", field: "revenue_status", value: "sold", wantErr: ErrInvalidValue},
		{name: "wrong type", repo: "product", field: "dependencies", value: "a/b", wantErr: ErrInvalidValue},
		{name: "missing repo", repo: "ghost", field: "tier", value: "stub", wantErr: ErrRepoNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := Parse(strings.NewReader(annotatedRegistry))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			msg, err := reg.UpdateField(tt.repo, tt.field, tt.value)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateField: %v", err)
			}
			if msg != tt.wantMsg {
				t.Fatalf("msg = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestUpdateField_InvalidEnumListsChoices(t *testing.T) {
	reg, err := Parse(strings.NewReader(annotatedRegistry))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = reg.UpdateField("product", "tier", "gold")
	want := "tier 'gold' (valid: archive, flagship, infrastructure, standard, stub)"
	if err == nil || !strings.Contains(err.Error(), want) {
		t.Fatalf("err = %v, want it to contain %q", err, want)
	}
}

func TestUpdateField_SaveRoundTrip(t *testing.T) {
	reg, err := Parse(strings.NewReader(annotatedRegistry))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := reg.UpdateField("product", "promotion_status", "CANDIDATE"); err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	path := filepath.Join(t.TempDir(), "registry-v2.json")
	if err := reg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	e, err := again.FindRepo("product")
	if err != nil {
		t.Fatalf("FindRepo: %v", err)
	}
	if e.Repo.PromotionStatus != "CANDIDATE" {
		t.Fatalf("promotion_status = %q", e.Repo.PromotionStatus)
	}
	if !e.Repo.Has("note") || !e.Repo.Has("links") || !e.Repo.Has("dependencies") {
		t.Fatalf("unmodeled or empty keys dropped on save")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := decodeAny(t, []byte(annotatedRegistry))
	repo := want["organs"].(map[string]any)["ORGAN-III"].(map[string]any)["repositories"].([]any)[0].(map[string]any)
	repo["promotion_status"] = "CANDIDATE"
	if got := decodeAny(t, b); !reflect.DeepEqual(got, want) {
		t.Fatalf("saved registry =\n%s", b)
	}
}
