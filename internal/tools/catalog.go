// Package tools provides the tool catalog, dispatcher, and built-in handlers.
package tools

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/liurenhao/stagegate/internal/adapter/llm"
	"github.com/liurenhao/stagegate/internal/domain"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Spec describes one tool in the catalog.
type Spec struct {
	Name         string                 `yaml:"name"`
	Description  string                 `yaml:"description"`
	TimeoutMs    int                    `yaml:"timeout_ms"`
	AllowedRoles []domain.Role          `yaml:"allowed_roles"`
	Parameters   map[string]interface{} `yaml:"parameters"`
}

// Catalog is the static tool catalog. Pure data; no mutable state.
type Catalog struct {
	specs map[string]Spec
	order []string
}

type catalogFile struct {
	Tools []Spec `yaml:"tools"`
}

// LoadCatalog parses the embedded catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog parses a YAML tool catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tool catalog: %w", err)
	}

	c := &Catalog{specs: make(map[string]Spec)}
	for _, spec := range file.Tools {
		if spec.Name == "" {
			return nil, fmt.Errorf("tool catalog entry missing name")
		}
		if _, exists := c.specs[spec.Name]; exists {
			return nil, fmt.Errorf("duplicate tool %s in catalog", spec.Name)
		}
		c.specs[spec.Name] = spec
		c.order = append(c.order, spec.Name)
	}
	return c, nil
}

// Get returns the spec for a tool name.
func (c *Catalog) Get(name string) (Spec, bool) {
	spec, ok := c.specs[name]
	return spec, ok
}

// Timeout returns the tool's configured timeout, or the default if unlisted.
func (c *Catalog) Timeout(name string, defaultTimeout time.Duration) time.Duration {
	spec, ok := c.specs[name]
	if !ok || spec.TimeoutMs <= 0 {
		return defaultTimeout
	}
	return time.Duration(spec.TimeoutMs) * time.Millisecond
}

// SchemasFor returns the tool schemas a role may invoke, in catalog order.
func (c *Catalog) SchemasFor(role domain.Role) []llm.ToolSchema {
	var schemas []llm.ToolSchema
	for _, name := range c.order {
		spec := c.specs[name]
		if !spec.allows(role) {
			continue
		}
		schema := llm.ToolSchema{
			Name:        spec.Name,
			Description: spec.Description,
		}
		if spec.Parameters != nil {
			if raw, err := json.Marshal(spec.Parameters); err == nil {
				schema.InputSchema = raw
			}
		}
		schemas = append(schemas, schema)
	}
	return schemas
}

func (s Spec) allows(role domain.Role) bool {
	if len(s.AllowedRoles) == 0 {
		return true
	}
	for _, r := range s.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}
