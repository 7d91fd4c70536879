// Package field holds the configuration of list fields: how deep a list may
// nest, what happens to children on delete, and the attribute forms per variant.
package field

import (
	"fmt"
	"sort"

	"github.com/baiirun/treelist/internal/schema"
)

// DefaultMaxDepth applies when a field leaves max_depth unset.
const DefaultMaxDepth = 3

// DeletePolicy decides what destroy does with the children of a deleted item.
type DeletePolicy string

const (
	// DeleteReject refuses to delete an item that still has children.
	DeleteReject DeletePolicy = "reject"
	// DeleteCascade deletes the whole subtree.
	DeleteCascade DeletePolicy = "cascade"
	// DeleteReparent moves the children up to the deleted item's parent.
	DeleteReparent DeletePolicy = "reparent"
)

func (p DeletePolicy) IsValid() bool {
	switch p {
	case DeleteReject, DeleteCascade, DeleteReparent:
		return true
	}
	return false
}

// Config is one configured list field.
type Config struct {
	ID       string                 `yaml:"id" json:"id"`
	MaxDepth int                    `yaml:"max_depth" json:"max_depth"`
	OnDelete DeletePolicy           `yaml:"on_delete" json:"on_delete"`
	Forms    map[string]schema.Form `yaml:"forms" json:"forms"`
}

// Form returns the attribute form registered for variant.
func (c *Config) Form(variant string) (schema.Form, bool) {
	f, ok := c.Forms[variant]
	return f, ok
}

// Variants returns the registered form variant names, sorted.
func (c *Config) Variants() []string {
	names := make([]string, 0, len(c.Forms))
	for name := range c.Forms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalize fills defaults and checks the config for consistency.
func (c *Config) normalize() error {
	if c.ID == "" {
		return fmt.Errorf("field id cannot be empty")
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("field %s: max_depth must be at least 1, got %d", c.ID, c.MaxDepth)
	}
	if c.OnDelete == "" {
		c.OnDelete = DeleteReject
	}
	if !c.OnDelete.IsValid() {
		return fmt.Errorf("field %s: invalid on_delete policy %q", c.ID, c.OnDelete)
	}
	if len(c.Forms) == 0 {
		return fmt.Errorf("field %s: at least one form must be configured", c.ID)
	}
	for name, form := range c.Forms {
		if err := form.Check(); err != nil {
			return fmt.Errorf("field %s, form %s: %w", c.ID, name, err)
		}
	}
	return nil
}

// Registry holds all known list fields by id.
type Registry struct {
	fields map[string]*Config
}

// NewRegistry builds a registry from configs, applying defaults.
func NewRegistry(configs ...Config) (*Registry, error) {
	r := &Registry{fields: make(map[string]*Config, len(configs))}
	for _, c := range configs {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a field. Registering the same id twice is an error.
func (r *Registry) Register(c Config) error {
	if err := c.normalize(); err != nil {
		return err
	}
	if _, exists := r.fields[c.ID]; exists {
		return fmt.Errorf("duplicate field id: %s", c.ID)
	}
	r.fields[c.ID] = &c
	return nil
}

// Get returns the field with the given id.
func (r *Registry) Get(id string) (*Config, bool) {
	c, ok := r.fields[id]
	return c, ok
}

// IDs returns all field ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.fields))
	for id := range r.fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
