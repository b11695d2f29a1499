package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, stateDir, pluginsDir string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--state-dir", stateDir, "--plugins-dir", pluginsDir}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand_HasPluginSubcommand(t *testing.T) {
	root := NewRootCommand()
	found := false
	for _, c := range root.Commands() {
		if c.Name() == "plugin" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPluginScaffold_WritesExpectedFiles(t *testing.T) {
	stateDir := t.TempDir()
	pluginsDir := t.TempDir()
	target := t.TempDir()

	out, err := runCommand(t, stateDir, pluginsDir, "plugin", "scaffold", "demo", target)
	require.NoError(t, err)
	assert.Contains(t, out, "host-plugin.json")

	_, statErr := os.Stat(filepath.Join(target, "host-plugin.json"))
	assert.NoError(t, statErr)
}

func TestPluginList_EmptyStateYieldsEmptyList(t *testing.T) {
	stateDir := t.TempDir()
	pluginsDir := t.TempDir()

	out, err := runCommand(t, stateDir, pluginsDir, "plugin", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "[]")
}

func TestPluginUninstall_NotInstalledReturnsError(t *testing.T) {
	stateDir := t.TempDir()
	pluginsDir := t.TempDir()

	_, err := runCommand(t, stateDir, pluginsDir, "plugin", "uninstall", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not installed")
}
