// Package organ holds the canonical organ definitions: the short CLI key, the
// workspace directory, the registry key and the owning GitHub organization of
// every organ, plus the ordinal levels used to enforce flow direction.
package organ

import (
	"fmt"
	"sort"
	"strings"
)

// Def describes one organ.
type Def struct {
	Key         string `toml:"key"`
	Dir         string `toml:"dir"`
	RegistryKey string `toml:"registry_key"`
	Org         string `toml:"org"`
	// Level is the ordinal position of the organ in the flow; 0 means unleveled.
	Level int `toml:"level"`
	// Personal organs are excluded from seed discovery.
	Personal bool `toml:"personal"`
}

// Table is an ordered organ table with a restricted subset of levels.
type Table struct {
	defs       []Def
	restricted map[int]bool
	levels     map[string]int
}

var defaultDefs = []Def{
	{Key: "I", Dir: "organvm-i-theoria", RegistryKey: "ORGAN-I", Org: "ivviiviivvi", Level: 1},
	{Key: "II", Dir: "organvm-ii-poiesis", RegistryKey: "ORGAN-II", Org: "omni-dromenon-machina", Level: 2},
	{Key: "III", Dir: "organvm-iii-ergon", RegistryKey: "ORGAN-III", Org: "labores-profani-crux", Level: 3},
	{Key: "IV", Dir: "organvm-iv-taxis", RegistryKey: "ORGAN-IV", Org: "organvm-iv-taxis", Level: 4},
	{Key: "V", Dir: "organvm-v-logos", RegistryKey: "ORGAN-V", Org: "organvm-v-logos", Level: 5},
	{Key: "VI", Dir: "organvm-vi-koinonia", RegistryKey: "ORGAN-VI", Org: "organvm-vi-koinonia", Level: 6},
	{Key: "VII", Dir: "organvm-vii-kerygma", RegistryKey: "ORGAN-VII", Org: "organvm-vii-kerygma", Level: 7},
	{Key: "META", Dir: "meta-organvm", RegistryKey: "META-ORGANVM", Org: "meta-organvm", Level: 8},
	{Key: "LIMINAL", Dir: "4444J99", RegistryKey: "PERSONAL", Org: "4444j99", Personal: true},
}

// DefaultRestricted is the I -> II -> III chain.
var DefaultRestricted = []int{1, 2, 3}

// Default returns the canonical table.
func Default() *Table {
	t, err := New(defaultDefs, DefaultRestricted)
	if err != nil {
		panic(fmt.Sprintf("organ: invalid default table: %v", err))
	}
	return t
}

// New builds a table. Both the workspace dir and the GitHub org of a leveled
// organ resolve to its level.
func New(defs []Def, restricted []int) (*Table, error) {
	t := &Table{
		defs:       append([]Def(nil), defs...),
		restricted: make(map[int]bool, len(restricted)),
		levels:     make(map[string]int),
	}
	keys := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if strings.TrimSpace(d.Key) == "" {
			return nil, fmt.Errorf("organ definition with empty key")
		}
		if _, dup := keys[d.Key]; dup {
			return nil, fmt.Errorf("duplicate organ key %q", d.Key)
		}
		keys[d.Key] = struct{}{}
		if d.Level < 0 {
			return nil, fmt.Errorf("organ %s: level must be >= 0", d.Key)
		}
		if d.Level == 0 {
			continue
		}
		for _, name := range []string{d.Dir, d.Org} {
			if name == "" {
				continue
			}
			if prev, ok := t.levels[name]; ok && prev != d.Level {
				return nil, fmt.Errorf("organ %s: %q already mapped to level %d", d.Key, name, prev)
			}
			t.levels[name] = d.Level
		}
	}
	for _, l := range restricted {
		t.restricted[l] = true
	}
	return t, nil
}

// Level returns the ordinal level for an owning org or workspace dir.
func (t *Table) Level(org string) (int, bool) {
	if t == nil {
		return 0, false
	}
	l, ok := t.levels[org]
	return l, ok
}

func (t *Table) Restricted(level int) bool {
	if t == nil {
		return false
	}
	return t.restricted[level]
}

func (t *Table) RestrictedLevels() []int {
	out := make([]int, 0, len(t.restricted))
	for l := range t.restricted {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

func (t *Table) Defs() []Def {
	return append([]Def(nil), t.defs...)
}

// Lookup resolves a short key, registry key, dir or org to its definition.
func (t *Table) Lookup(name string) (Def, bool) {
	for _, d := range t.defs {
		if strings.EqualFold(d.Key, name) || d.RegistryKey == name || d.Dir == name || d.Org == name {
			return d, true
		}
	}
	return Def{}, false
}

// Dirs lists the workspace directories scanned for seed.yaml files.
func (t *Table) Dirs() []string {
	var out []string
	for _, d := range t.defs {
		if d.Personal || d.Dir == "" {
			continue
		}
		out = append(out, d.Dir)
	}
	return out
}

// Aliases maps short keys to registry keys.
func (t *Table) Aliases() map[string]string {
	out := make(map[string]string, len(t.defs))
	for _, d := range t.defs {
		out[d.Key] = d.RegistryKey
	}
	return out
}
