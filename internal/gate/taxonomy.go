// Package gate holds the stage-gate taxonomy and the context prioritizer.
package gate

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/liurenhao/stagegate/internal/domain"
)

//go:embed gates.yaml
var gatesYAML []byte

// Entry describes one gate: its eligible roles and its ordered category
// priorities.
type Entry struct {
	Gate       domain.Gate               `yaml:"gate"`
	Name       string                    `yaml:"name"`
	Roles      []domain.Role             `yaml:"roles"`
	Priorities []domain.DocumentCategory `yaml:"priorities"`
}

// Taxonomy is the fixed gate table. Pure configuration; no mutable state.
type Taxonomy struct {
	entries map[domain.Gate]Entry
}

type taxonomyFile struct {
	Gates []Entry `yaml:"gates"`
}

// LoadTaxonomy parses the embedded gate table.
func LoadTaxonomy() (*Taxonomy, error) {
	return ParseTaxonomy(gatesYAML)
}

// ParseTaxonomy parses a YAML gate table and checks it covers all nine gates.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var file taxonomyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse gate taxonomy: %w", err)
	}

	t := &Taxonomy{entries: make(map[domain.Gate]Entry)}
	for _, e := range file.Gates {
		if !e.Gate.Valid() {
			return nil, fmt.Errorf("unknown gate %s in taxonomy", e.Gate)
		}
		if _, exists := t.entries[e.Gate]; exists {
			return nil, fmt.Errorf("duplicate gate %s in taxonomy", e.Gate)
		}
		if len(e.Roles) == 0 {
			return nil, fmt.Errorf("gate %s has no eligible roles", e.Gate)
		}
		t.entries[e.Gate] = e
	}
	for _, g := range domain.Gates {
		if _, ok := t.entries[g]; !ok {
			return nil, fmt.Errorf("gate taxonomy missing %s", g)
		}
	}
	return t, nil
}

// Entry returns the taxonomy entry for a gate.
func (t *Taxonomy) Entry(g domain.Gate) (Entry, bool) {
	e, ok := t.entries[g]
	return e, ok
}

// Eligible reports whether a role may run at a gate.
func (t *Taxonomy) Eligible(g domain.Gate, role domain.Role) bool {
	e, ok := t.entries[g]
	if !ok {
		return false
	}
	for _, r := range e.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Priorities returns the ordered category priority list for a gate.
func (t *Taxonomy) Priorities(g domain.Gate) []domain.DocumentCategory {
	if e, ok := t.entries[g]; ok {
		return e.Priorities
	}
	return nil
}
