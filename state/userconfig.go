package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgecli/forge/manifest"
)

// userConfigFileName is the file LoadUserConfig/SaveUserConfig read and
// write within a single plugin's state subdirectory.
const userConfigFileName = "config.json"

// pluginDir returns dir/plugins/<name>, the per-plugin state
// subdirectory.
func pluginDir(dir, name string) string {
	return filepath.Join(dir, "plugins", name)
}

// LoadRawOverrides reads the persisted user overrides for name exactly
// as stored, with no schema-default merge applied. A missing
// config.json yields an empty map. Used by the Loader, which performs
// its own default-merge against the manifest it just validated.
func LoadRawOverrides(dir, name string) (map[string]any, error) {
	path := filepath.Join(pluginDir(dir, name), userConfigFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config for plugin %q: %w", name, err)
	}

	var overrides map[string]any
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing config for plugin %q: %w", name, err)
	}
	if overrides == nil {
		overrides = map[string]any{}
	}
	return overrides, nil
}

// LoadUserConfig reads the persisted user overrides for name, if any,
// and merges them over schema's declared defaults — overrides win. A
// missing config.json yields the schema defaults alone.
func LoadUserConfig(dir, name string, schema map[string]manifest.ConfigField) (map[string]any, error) {
	merged := make(map[string]any, len(schema))
	for key, field := range schema {
		if field.Default != nil {
			merged[key] = field.Default
		}
	}

	path := filepath.Join(pluginDir(dir, name), userConfigFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return merged, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config for plugin %q: %w", name, err)
	}

	var overrides map[string]any
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing config for plugin %q: %w", name, err)
	}
	for key, val := range overrides {
		merged[key] = val
	}
	return merged, nil
}

// SaveUserConfig validates config against schema's type declarations
// and required fields, then writes it atomically to
// dir/plugins/<name>/config.json.
func SaveUserConfig(dir, name string, schema map[string]manifest.ConfigField, config map[string]any) error {
	if err := validateAgainstSchema(schema, config); err != nil {
		return err
	}

	target := pluginDir(dir, name)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("creating config directory for plugin %q: %w", name, err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config for plugin %q: %w", name, err)
	}

	tmp, err := os.CreateTemp(target, ".config.json.*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp config file for plugin %q: %w", name, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp config file for plugin %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp config file for plugin %q: %w", name, err)
	}

	return os.Rename(tmpPath, filepath.Join(target, userConfigFileName))
}

// RemovePluginDir best-effort removes a plugin's entire state
// subdirectory (config and any other per-plugin files). Absence is not
// an error.
func RemovePluginDir(dir, name string) error {
	err := os.RemoveAll(pluginDir(dir, name))
	if err != nil {
		return fmt.Errorf("removing state directory for plugin %q: %w", name, err)
	}
	return nil
}

func validateAgainstSchema(schema map[string]manifest.ConfigField, config map[string]any) error {
	for key, field := range schema {
		val, present := config[key]
		if !present {
			if field.Required {
				return fmt.Errorf("config field %q is required", key)
			}
			continue
		}
		if !typeMatches(field.Type, val) {
			return fmt.Errorf("config field %q: expected type %q, got %T", key, field.Type, val)
		}
	}
	return nil
}

func typeMatches(t manifest.FieldType, val any) bool {
	switch t {
	case manifest.TypeString:
		_, ok := val.(string)
		return ok
	case manifest.TypeNumber:
		switch val.(type) {
		case float64, int, int64:
			return true
		default:
			return false
		}
	case manifest.TypeBoolean:
		_, ok := val.(bool)
		return ok
	case manifest.TypeArray:
		_, ok := val.([]any)
		return ok
	case manifest.TypeObject:
		_, ok := val.(map[string]any)
		return ok
	default:
		return true
	}
}
