package field

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/baiirun/treelist/internal/schema"
)

const registryYAML = `
fields:
  - id: sections
    max_depth: 2
    on_delete: cascade
    forms:
      show:
        fields:
          - name: title
            rules: [required, string]
          - name: body
  - id: links
    forms:
      show:
        fields:
          - name: url
`

const registryJSONC = `{
  // list fields for the page editor
  "fields": [
    {
      "id": "sections",
      "max_depth": 4,
      "forms": {
        "show": {"fields": [{"name": "title", "rules": ["required"]}]},
        "teaser": {"fields": [{"name": "image"}]},
      },
    },
  ],
}`

func TestParse_YAML(t *testing.T) {
	reg, err := Parse([]byte(registryYAML), ".yaml")
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	sections, ok := reg.Get("sections")
	if !ok {
		t.Fatal("expected sections field")
	}
	if sections.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2", sections.MaxDepth)
	}
	if sections.OnDelete != DeleteCascade {
		t.Errorf("OnDelete = %q, want %q", sections.OnDelete, DeleteCascade)
	}
	form, ok := sections.Form("show")
	if !ok {
		t.Fatal("expected show form")
	}
	if len(form.Fields) != 2 || form.Fields[0].Name != "title" {
		t.Errorf("unexpected form: %+v", form)
	}

	links, _ := reg.Get("links")
	if links.MaxDepth != DefaultMaxDepth {
		t.Errorf("default MaxDepth = %d, want %d", links.MaxDepth, DefaultMaxDepth)
	}
	if links.OnDelete != DeleteReject {
		t.Errorf("default OnDelete = %q, want %q", links.OnDelete, DeleteReject)
	}

	if got := reg.IDs(); len(got) != 2 || got[0] != "links" || got[1] != "sections" {
		t.Errorf("IDs() = %v", got)
	}
}

func TestParse_JSONC(t *testing.T) {
	reg, err := Parse([]byte(registryJSONC), ".jsonc")
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	sections, _ := reg.Get("sections")
	if sections.MaxDepth != 4 {
		t.Errorf("MaxDepth = %d, want 4", sections.MaxDepth)
	}
	if got := sections.Variants(); len(got) != 2 || got[0] != "show" || got[1] != "teaser" {
		t.Errorf("Variants() = %v", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		ext  string
	}{
		{"unknown extension", registryYAML, ".toml"},
		{"broken yaml", "fields: [", ".yaml"},
		{"missing id", "fields:\n  - max_depth: 2\n    forms: {show: {fields: []}}", ".yaml"},
		{"negative depth", "fields:\n  - id: a\n    max_depth: -1\n    forms: {show: {fields: []}}", ".yaml"},
		{"bad policy", "fields:\n  - id: a\n    on_delete: shred\n    forms: {show: {fields: []}}", ".yaml"},
		{"no forms", "fields:\n  - id: a", ".yaml"},
		{"bad rule", "fields:\n  - id: a\n    forms: {show: {fields: [{name: x, rules: [nope]}]}}", ".yaml"},
		{"duplicate", "fields:\n  - id: a\n    forms: {show: {fields: []}}\n  - id: a\n    forms: {show: {fields: []}}", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data), tt.ext); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.yml")
	if err := os.WriteFile(path, []byte(registryYAML), 0o644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	reg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if _, ok := reg.Get("sections"); !ok {
		t.Error("expected sections field")
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(Config{
		ID:    "sections",
		Forms: map[string]schema.Form{"show": {}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("expected unknown field to be absent")
	}
}
