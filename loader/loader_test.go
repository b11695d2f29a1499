package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/forgecli/forge/pluginctx"
	"github.com/forgecli/forge/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeManifest = `{
  "name": %q,
  "version": "1.0.0",
  "entryPoint": "./entry",
  "hostVersionRange": %q,
  "extensionPoints": ["commands"]
}`

func writeCandidate(t *testing.T, root, name, hostRange string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	manifestBody := fmt.Sprintf(fakeManifest, name, hostRange)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "host-plugin.json"), []byte(manifestBody), 0o644))
	return dir
}

type fakeImporter struct {
	importErr   error
	activateErr error
	activations int32
	noActivate  bool
}

func (f *fakeImporter) Import(entryPointPath string, devMode bool, generation int) (Module, error) {
	if f.importErr != nil {
		return Module{}, f.importErr
	}
	if f.noActivate {
		return Module{}, nil
	}
	return Module{
		Activate: func(ctx *pluginctx.Context) error {
			atomic.AddInt32(&f.activations, 1)
			if f.activateErr != nil {
				return f.activateErr
			}
			return ctx.RegisterCommand(registry.Command{Name: ctx.PluginName() + "-cmd"})
		},
	}, nil
}

type noopWatcherFactory struct{}

func (noopWatcherFactory) Watch(dir string) (Watcher, error) { return &noopWatcher{events: make(chan struct{})}, nil }

type noopWatcher struct{ events chan struct{} }

func (w *noopWatcher) Events() <-chan struct{} { return w.events }
func (w *noopWatcher) Close() error            { close(w.events); return nil }

func TestLoadPlugins_CompatibleAndIncompatible(t *testing.T) {
	root := t.TempDir()
	writeCandidate(t, root, "demo", ">=1.0.0")
	writeCandidate(t, root, "stale", ">=2.0.0")

	reg := registry.New(nil, nil, nil)
	l := New(reg, &fakeImporter{}, noopWatcherFactory{}, nil)

	result := l.LoadPlugins(Config{
		Dirs:        []string{root},
		HostVersion: "1.5.0",
		EnabledSet:  map[string]bool{"demo": true, "stale": true},
	})

	require.Len(t, result.Loaded, 1)
	assert.Equal(t, "demo", result.Loaded[0].Name)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "stale", result.Skipped[0].Name)
	assert.Contains(t, result.Skipped[0].Reason, "2.0.0")

	assert.NotNil(t, reg.GetCommand("demo-cmd"))
}

func TestLoadPlugins_NotEnabledIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeCandidate(t, root, "demo", ">=1.0.0")

	reg := registry.New(nil, nil, nil)
	l := New(reg, &fakeImporter{}, noopWatcherFactory{}, nil)

	result := l.LoadPlugins(Config{
		Dirs:        []string{root},
		HostVersion: "1.5.0",
		EnabledSet:  map[string]bool{},
	})

	assert.Empty(t, result.Loaded)
	require.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0].Reason, "not enabled")
}

func TestLoadPlugins_FreshInstallLoadsEverything(t *testing.T) {
	root := t.TempDir()
	writeCandidate(t, root, "demo", ">=1.0.0")

	reg := registry.New(nil, nil, nil)
	l := New(reg, &fakeImporter{}, noopWatcherFactory{}, nil)

	result := l.LoadPlugins(Config{
		Dirs:         []string{root},
		HostVersion:  "1.5.0",
		EnabledSet:   map[string]bool{},
		FreshInstall: true,
	})

	require.Len(t, result.Loaded, 1)
	assert.Empty(t, result.Skipped)
}

func TestLoadPlugins_ActivationFailureCleansUpRegistry(t *testing.T) {
	root := t.TempDir()
	writeCandidate(t, root, "demo", ">=1.0.0")

	reg := registry.New(nil, nil, nil)
	l := New(reg, &fakeImporter{activateErr: fmt.Errorf("boom")}, noopWatcherFactory{}, nil)

	result := l.LoadPlugins(Config{
		Dirs:        []string{root},
		HostVersion: "1.5.0",
		EnabledSet:  map[string]bool{"demo": true},
	})

	assert.Empty(t, result.Loaded)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, PhaseActivation, result.Errors[0].Phase)
	assert.Nil(t, reg.GetPlugin("demo"))
	assert.Nil(t, reg.GetCommand("demo-cmd"))
}

func TestLoadPlugins_ImportFailureIsImportError(t *testing.T) {
	root := t.TempDir()
	writeCandidate(t, root, "demo", ">=1.0.0")

	reg := registry.New(nil, nil, nil)
	l := New(reg, &fakeImporter{importErr: fmt.Errorf("no such file")}, noopWatcherFactory{}, nil)

	result := l.LoadPlugins(Config{
		Dirs:        []string{root},
		HostVersion: "1.5.0",
		EnabledSet:  map[string]bool{"demo": true},
	})

	assert.Empty(t, result.Loaded)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, PhaseImport, result.Errors[0].Phase)
}

func TestLoadPlugins_MissingActivateExportIsValidationError(t *testing.T) {
	root := t.TempDir()
	writeCandidate(t, root, "demo", ">=1.0.0")

	reg := registry.New(nil, nil, nil)
	l := New(reg, &fakeImporter{noActivate: true}, noopWatcherFactory{}, nil)

	result := l.LoadPlugins(Config{
		Dirs:        []string{root},
		HostVersion: "1.5.0",
		EnabledSet:  map[string]bool{"demo": true},
	})

	assert.Empty(t, result.Loaded)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, PhaseValidation, result.Errors[0].Phase)
}

func TestLoadPlugins_InvalidManifestIsValidationError(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "broken")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "host-plugin.json"), []byte(`{"name": 1}`), 0o644))

	reg := registry.New(nil, nil, nil)
	l := New(reg, &fakeImporter{}, noopWatcherFactory{}, nil)

	result := l.LoadPlugins(Config{Dirs: []string{root}, HostVersion: "1.0.0", FreshInstall: true})
	require.Len(t, result.Errors, 1)
	assert.Equal(t, PhaseValidation, result.Errors[0].Phase)
}

func TestReload_TracksCountAndRewrapsRegistrations(t *testing.T) {
	root := t.TempDir()
	writeCandidate(t, root, "demo", ">=1.0.0")

	reg := registry.New(nil, nil, nil)
	l := New(reg, &fakeImporter{}, noopWatcherFactory{}, nil)

	result := l.LoadPlugins(Config{Dirs: []string{root}, HostVersion: "1.0.0", FreshInstall: true})
	require.Len(t, result.Loaded, 1)

	for i := 0; i < 11; i++ {
		require.NoError(t, l.Reload("demo"))
	}
	assert.Equal(t, 11, l.ReloadCount("demo"))
	assert.NotNil(t, reg.GetCommand("demo-cmd"))
}

func TestUnloadPlugin_RemovesFromRegistry(t *testing.T) {
	root := t.TempDir()
	writeCandidate(t, root, "demo", ">=1.0.0")

	reg := registry.New(nil, nil, nil)
	l := New(reg, &fakeImporter{}, noopWatcherFactory{}, nil)

	result := l.LoadPlugins(Config{Dirs: []string{root}, HostVersion: "1.0.0", FreshInstall: true})
	require.Len(t, result.Loaded, 1)

	l.UnloadPlugin("demo")
	assert.Nil(t, reg.GetPlugin("demo"))
}
