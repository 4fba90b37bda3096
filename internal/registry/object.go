package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// object is a decoded JSON object that remembers its key order and the raw
// value of every member, including keys no Go field models.
type object struct {
	keys []string
	raw  map[string]json.RawMessage
}

var (
	registryKeys = map[string]bool{"version": true, "organs": true}
	organKeys    = jsonKeys(reflect.TypeFor[Organ]())
	repoKeys     = jsonKeys(reflect.TypeFor[Repo]())
)

func jsonKeys(t reflect.Type) map[string]bool {
	keys := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[name] = true
		}
	}
	return keys
}

func decodeObject(b []byte) (object, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return object{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return object{}, fmt.Errorf("expected object")
	}
	obj := object{raw: make(map[string]json.RawMessage)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return object{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return object{}, fmt.Errorf("expected key, got %v", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return object{}, fmt.Errorf("%s: %w", key, err)
		}
		obj.set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return object{}, err
	}
	return obj, nil
}

func (o object) has(key string) bool {
	_, ok := o.raw[key]
	return ok
}

func (o *object) set(key string, v json.RawMessage) {
	if o.raw == nil {
		o.raw = make(map[string]json.RawMessage)
	}
	if !o.has(key) {
		o.keys = append(o.keys, key)
	}
	o.raw[key] = v
}

func (o object) encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(o.raw[k])
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// overlay lays typed, the encoding of the Go value decoded from src, over
// src. Source members keep their position and new members go last. A member
// the Go type models but left out as empty keeps its source value only while
// that value is still empty; keys the Go type does not model pass through.
func overlay(src object, typed []byte, modeled map[string]bool) ([]byte, error) {
	enc, err := decodeObject(typed)
	if err != nil {
		return nil, err
	}
	var out object
	for _, k := range src.keys {
		switch {
		case enc.has(k):
			out.set(k, enc.raw[k])
		case !modeled[k] || emptyJSON(src.raw[k]):
			out.set(k, src.raw[k])
		}
	}
	for _, k := range enc.keys {
		if !src.has(k) {
			out.set(k, enc.raw[k])
		}
	}
	return out.encode(), nil
}

func emptyJSON(v json.RawMessage) bool {
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return false
	}
	switch buf.String() {
	case "null", "false", "0", `""`, "[]", "{}":
		return true
	}
	return false
}
