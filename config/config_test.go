package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "forge.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultEnvironment, cfg.Environment)
	assert.NotNil(t, cfg.Labels)
}

func TestLoad_ParsesYAMLAndInjectsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forge.yaml")
	body := "environment: staging\nlabels:\n  team: platform\nregistryUrl: https://plugins.example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "platform", cfg.Labels["team"])
	assert.Equal(t, "https://plugins.example.com", cfg.RegistryURL)
}

func TestAsProjectConfig_RendersPlainMap(t *testing.T) {
	cfg := &Config{Environment: "production", Labels: map[string]string{"team": "core"}}
	out, err := cfg.AsProjectConfig()
	require.NoError(t, err)
	assert.Equal(t, "production", out["environment"])
	labels, ok := out["labels"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "core", labels["team"])
}
