// Package dispatch builds and checks the payloads one organ sends another when
// an event fires.
package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priorities lists the accepted metadata priorities.
var Priorities = []string{"low", "normal", "high", "critical"}

const (
	DefaultPriority = "normal"
	DefaultTTL      = 24 * time.Hour
)

// Endpoint names the sending or receiving side of a dispatch.
type Endpoint struct {
	Organ string `json:"organ"`
	Org   string `json:"org,omitempty"`
	Repo  string `json:"repo,omitempty"`
}

type Metadata struct {
	DispatchID string `json:"dispatch_id"`
	Timestamp  string `json:"timestamp"`
	Priority   string `json:"priority"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type Payload struct {
	Event    string         `json:"event"`
	Source   Endpoint       `json:"source"`
	Target   Endpoint       `json:"target"`
	Payload  map[string]any `json:"payload"`
	Metadata Metadata       `json:"metadata"`
}

type Option func(*Payload)

func WithPriority(p string) Option {
	return func(pl *Payload) { pl.Metadata.Priority = p }
}

// WithSource narrows the sender to one org and, when repo is set, one repository.
func WithSource(org, repo string) Option {
	return func(pl *Payload) { pl.Source.Org, pl.Source.Repo = org, repo }
}

func WithTarget(org, repo string) Option {
	return func(pl *Payload) { pl.Target.Org, pl.Target.Repo = org, repo }
}

// New builds a payload stamped with a fresh dispatch id and the current time.
func New(event, sourceOrgan, targetOrgan string, data map[string]any, opts ...Option) Payload {
	if data == nil {
		data = map[string]any{}
	}
	p := Payload{
		Event:   event,
		Source:  Endpoint{Organ: sourceOrgan},
		Target:  Endpoint{Organ: targetOrgan},
		Payload: data,
		Metadata: Metadata{
			DispatchID: uuid.NewString(),
			Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
			Priority:   DefaultPriority,
			TTLSeconds: int(DefaultTTL / time.Second),
		},
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Document is a payload as found on disk. It stays untyped so absent fields
// can be told apart from empty ones.
type Document map[string]any

// Parse decodes one JSON payload document.
func Parse(r io.Reader) (Document, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("decode payload: expected object")
	}
	return doc, nil
}

// Validate returns every structural problem of doc; none means it is valid.
func Validate(doc Document) []string {
	var errs []string
	for _, field := range []string{"event", "source", "target", "payload"} {
		if _, ok := doc[field]; !ok {
			errs = append(errs, fmt.Sprintf("Missing required field: %s", field))
		}
	}

	if event := doc.Event(); event != "" && !strings.Contains(event, ".") {
		errs = append(errs, fmt.Sprintf("Event '%s' must contain a dot separator (e.g., 'theory.published')", event))
	}

	// An absent endpoint lacks an organ too; a non-object one is left alone.
	for _, side := range []string{"source", "target"} {
		endpoint := map[string]any{}
		if v, present := doc[side]; present {
			var ok bool
			if endpoint, ok = v.(map[string]any); !ok {
				continue
			}
		}
		if _, ok := endpoint["organ"]; !ok {
			errs = append(errs, fmt.Sprintf("%s: missing 'organ' field", side))
		}
	}

	if meta, ok := doc["metadata"].(map[string]any); ok {
		p := meta["priority"]
		if s, isString := p.(string); set(p) && !(isString && slices.Contains(Priorities, s)) {
			errs = append(errs, fmt.Sprintf("Invalid priority: %v", p))
		}
	}
	return errs
}

// set reports whether a decoded JSON value is neither null nor empty nor false.
func set(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	}
	return true
}

// Event returns the event name, or "" when it is absent or not a string.
func (d Document) Event() string {
	s, _ := d["event"].(string)
	return s
}

// Organ returns the organ of the source or target endpoint.
func (d Document) Organ(side string) string {
	endpoint, _ := d[side].(map[string]any)
	s, _ := endpoint["organ"].(string)
	return s
}

// Data returns the event-specific payload section.
func (d Document) Data() map[string]any {
	data, _ := d["payload"].(map[string]any)
	return data
}
