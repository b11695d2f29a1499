package loader

import (
	"strings"

	"github.com/forgecli/forge/manifest"
)

func validateManifest(dir string) manifest.ValidationResult {
	return manifest.ValidatePath(dir)
}

func manifestErrorMessage(vr manifest.ValidationResult) string {
	var parts []string
	for _, e := range vr.Errors {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

func checkCompatibility(m *manifest.Manifest, hostVersion string) manifest.CompatibilityResult {
	return manifest.CheckCompatibility(m, hostVersion)
}

// mergeConfigDefaults merges a plugin's manifest-declared schema
// defaults with persisted user overrides, overrides winning.
func mergeConfigDefaults(m *manifest.Manifest, userOverrides map[string]any) map[string]any {
	merged := make(map[string]any, len(m.ConfigSchema))
	for key, field := range m.ConfigSchema {
		if field.Default != nil {
			merged[key] = field.Default
		}
	}
	for key, val := range userOverrides {
		merged[key] = val
	}
	return merged
}
