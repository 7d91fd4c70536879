// Package schema describes the attribute forms of list items and validates
// payloads against them.
//
// A form is a named set of sub-fields. Each sub-field carries rule strings in
// the familiar "name:args" notation:
//
//	required, string, integer, numeric, boolean, array, min:N, max:N, in:a,b,c
//
// Rules listed under Rules apply in every mode; CreationRules and UpdateRules
// add to them in the matching mode only.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Mode selects which rule set applies.
type Mode int

const (
	Creation Mode = iota
	Update
)

func (m Mode) String() string {
	if m == Update {
		return "update"
	}
	return "creation"
}

// SubField is one attribute of a list item form.
type SubField struct {
	Name          string   `yaml:"name" json:"name"`
	Rules         []string `yaml:"rules" json:"rules"`
	CreationRules []string `yaml:"creation_rules" json:"creation_rules"`
	UpdateRules   []string `yaml:"update_rules" json:"update_rules"`
}

// RulesFor returns the combined rules for mode.
func (f SubField) RulesFor(mode Mode) []string {
	rules := append([]string{}, f.Rules...)
	if mode == Update {
		return append(rules, f.UpdateRules...)
	}
	return append(rules, f.CreationRules...)
}

// Form is the attribute schema of one form variant.
type Form struct {
	Fields []SubField `yaml:"fields" json:"fields"`
}

// Names returns the registered sub-field names.
func (f Form) Names() map[string]bool {
	names := make(map[string]bool, len(f.Fields))
	for _, sf := range f.Fields {
		names[sf.Name] = true
	}
	return names
}

// Filter returns a copy of payload holding only registered sub-field keys.
// Unknown keys are dropped without error.
func (f Form) Filter(payload map[string]any) map[string]any {
	names := f.Names()
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if names[k] {
			out[k] = v
		}
	}
	return out
}

// Check parses every rule of the form and reports the first malformed one.
func (f Form) Check() error {
	seen := make(map[string]bool, len(f.Fields))
	for _, sf := range f.Fields {
		if sf.Name == "" {
			return fmt.Errorf("sub-field name cannot be empty")
		}
		if seen[sf.Name] {
			return fmt.Errorf("duplicate sub-field: %s", sf.Name)
		}
		seen[sf.Name] = true
		for _, mode := range []Mode{Creation, Update} {
			for _, r := range sf.RulesFor(mode) {
				if _, err := parseRule(r); err != nil {
					return fmt.Errorf("sub-field %s: %w", sf.Name, err)
				}
			}
		}
	}
	return nil
}

// ValidationError carries every failed message per payload key.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for key.
func (e *ValidationError) Add(key, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[key] = append(e.Fields[key], msg)
}

// NewValidationError builds an error with a single message.
func NewValidationError(key, msg string) *ValidationError {
	e := &ValidationError{}
	e.Add(key, msg)
	return e
}
