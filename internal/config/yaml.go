package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// toJSON returns the file content as JSON so both formats go through the
// same strict decoder. Files without a .yaml/.yml extension are taken as JSON.
func toJSON(path string, data []byte) ([]byte, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return data, "json", nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "yaml", fmt.Errorf("yaml: %w", err)
	}
	out, err := json.Marshal(stringKeys(doc))
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml to json: %w", err)
	}
	return out, "yaml", nil
}

// stringKeys rewrites non-string map keys (e.g. `1: x`) so encoding/json
// accepts the tree.
func stringKeys(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = stringKeys(e)
		}
		return x
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			switch kk := k.(type) {
			case string:
				m[kk] = stringKeys(e)
			case int:
				m[strconv.Itoa(kk)] = stringKeys(e)
			default:
				m[fmt.Sprint(kk)] = stringKeys(e)
			}
		}
		return m
	case []any:
		for i, e := range x {
			x[i] = stringKeys(e)
		}
		return x
	}
	return v
}
