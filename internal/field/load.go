package field

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

type file struct {
	Fields []Config `yaml:"fields" json:"fields"`
}

// LoadFile reads a field registry from path. YAML (.yaml, .yml) and JSON with
// comments (.json, .jsonc) are supported.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to read field registry: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes registry data in the format named by ext.
func Parse(data []byte, ext string) (*Registry, error) {
	var f file

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("invalid field registry: %w", err)
		}
	case ".json", ".jsonc":
		std, err := hujson.Standardize(data)
		if err != nil {
			return nil, fmt.Errorf("invalid field registry: %w", err)
		}
		dec := json.NewDecoder(strings.NewReader(string(std)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("invalid field registry: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported field registry format %q", ext)
	}

	return NewRegistry(f.Fields...)
}
