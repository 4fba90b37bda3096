package dispatch

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNew(t *testing.T) {
	p := New("product.released", "ORGAN-III", "ORGAN-V", map[string]any{"version": "1.2.0"},
		WithPriority("high"),
		WithSource("labores-profani-crux", "product"),
		WithTarget("organvm-v-logos", ""),
	)
	if _, err := uuid.Parse(p.Metadata.DispatchID); err != nil {
		t.Fatalf("dispatch_id %q is not a UUID: %v", p.Metadata.DispatchID, err)
	}
	if p.Metadata.Priority != "high" || p.Metadata.TTLSeconds != 86400 || p.Metadata.Timestamp == "" {
		t.Fatalf("unexpected metadata %+v", p.Metadata)
	}
	if p.Source != (Endpoint{Organ: "ORGAN-III", Org: "labores-profani-crux", Repo: "product"}) {
		t.Fatalf("source = %+v", p.Source)
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(p); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(buf.String(), `"repo":""`) {
		t.Fatalf("empty target repo should be omitted: %s", buf.String())
	}
	doc, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if errs := Validate(doc); len(errs) != 0 {
		t.Fatalf("new payload fails validation: %v", errs)
	}
	if doc.Event() != "product.released" || doc.Organ("target") != "ORGAN-V" {
		t.Fatalf("accessors: event=%q target=%q", doc.Event(), doc.Organ("target"))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "valid",
			doc:  `{"event": "theory.published", "source": {"organ": "ORGAN-I"}, "target": {"organ": "ORGAN-II"}, "payload": {}}`,
		},
		{
			name: "empty document",
			doc:  `{}`,
			want: []string{
				"Missing required field: event",
				"Missing required field: source",
				"Missing required field: target",
				"Missing required field: payload",
				"source: missing 'organ' field",
				"target: missing 'organ' field",
			},
		},
		{
			name: "event without dot",
			doc:  `{"event": "published", "source": {"organ": "ORGAN-I"}, "target": {"organ": "ORGAN-II"}, "payload": {}}`,
			want: []string{"Event 'published' must contain a dot separator (e.g., 'theory.published')"},
		},
		{
			name: "endpoint without organ",
			doc:  `{"event": "a.b", "source": {"org": "x"}, "target": "ORGAN-II", "payload": {}}`,
			want: []string{"source: missing 'organ' field"},
		},
		{
			name: "bad priority",
			doc:  `{"event": "a.b", "source": {"organ": "I"}, "target": {"organ": "II"}, "payload": {}, "metadata": {"priority": "urgent"}}`,
			want: []string{"Invalid priority: urgent"},
		},
		{
			name: "non-string priority",
			doc:  `{"event": "a.b", "source": {"organ": "I"}, "target": {"organ": "II"}, "payload": {}, "metadata": {"priority": 5}}`,
			want: []string{"Invalid priority: 5"},
		},
		{
			name: "empty priority is ignored",
			doc:  `{"event": "a.b", "source": {"organ": "I"}, "target": {"organ": "II"}, "payload": {}, "metadata": {"priority": ""}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(strings.NewReader(tt.doc))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := Validate(doc); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Validate =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestParse_RejectsNonObject(t *testing.T) {
	for _, in := range []string{`[]`, `null`, `"x"`, `{`} {
		if _, err := Parse(strings.NewReader(in)); err == nil {
			t.Errorf("Parse(%s): expected error", in)
		}
	}
}
