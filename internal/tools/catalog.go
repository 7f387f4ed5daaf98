package tools

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Names of the tools bound into the hospital agent.
const (
	NameExperiences  = "Experiences"
	NameGraph        = "Graph"
	NameWaits        = "Waits"
	NameAvailability = "Availability"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// CatalogEntry is the routing text and argument name for one tool.
type CatalogEntry struct {
	Name                 string `yaml:"name"`
	Description          string `yaml:"description"`
	Parameter            string `yaml:"parameter"`
	ParameterDescription string `yaml:"parameter_description"`
}

// Definition renders the entry as a function tool with a single string argument.
func (e CatalogEntry) Definition() Tool {
	return NewFunctionTool(
		e.Name,
		strings.TrimSpace(e.Description),
		SingleInputSchema(e.Parameter, e.ParameterDescription),
	)
}

// Catalog is the versioned set of tool descriptions.
type Catalog struct {
	Version string         `yaml:"version"`
	Tools   []CatalogEntry `yaml:"tools"`
}

// LoadCatalog parses and validates a catalog document.
func LoadCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse tool catalog: %w", err)
	}
	if c.Version == "" {
		return nil, errors.New("tool catalog has no version")
	}
	seen := make(map[string]bool, len(c.Tools))
	for i, entry := range c.Tools {
		if entry.Name == "" {
			return nil, fmt.Errorf("tool catalog entry %d has no name", i)
		}
		if seen[entry.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTool, entry.Name)
		}
		seen[entry.Name] = true
		if strings.TrimSpace(entry.Description) == "" {
			return nil, fmt.Errorf("tool %q has no description", entry.Name)
		}
		if entry.Parameter == "" {
			c.Tools[i].Parameter = "input"
		}
	}
	return &c, nil
}

// DefaultCatalog returns the catalog embedded in the binary.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(defaultCatalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Entry looks up a tool's catalog entry by name.
func (c *Catalog) Entry(name string) (CatalogEntry, error) {
	for _, entry := range c.Tools {
		if entry.Name == name {
			return entry, nil
		}
	}
	return CatalogEntry{}, fmt.Errorf("%w in catalog: %q", ErrToolNotFound, name)
}
