// Package loader discovers plugin directories, validates their
// manifests, checks host compatibility, imports their entry-point
// modules, activates them, and installs dev-mode watchers.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/forgecli/forge/manifest"
	"github.com/forgecli/forge/pluginctx"
	"github.com/sirupsen/logrus"
)

// Phase is where in the per-candidate procedure a failure occurred.
type Phase string

const (
	PhaseDiscovery  Phase = "discovery"
	PhaseValidation Phase = "validation"
	PhaseImport     Phase = "import"
	PhaseActivation Phase = "activation"
)

// LoadedInfo describes one successfully activated plugin.
type LoadedInfo struct {
	Name string
	Path string
}

// SkippedInfo describes one candidate that was intentionally not
// loaded (disabled, incompatible).
type SkippedInfo struct {
	Name   string
	Reason string
}

// ErrorInfo describes one candidate that failed to load.
type ErrorInfo struct {
	Name    string
	Path    string
	Phase   Phase
	Message string
}

// LoadResult is the outcome of a loadPlugins pass.
type LoadResult struct {
	Loaded  []LoadedInfo
	Skipped []SkippedInfo
	Errors  []ErrorInfo
}

// Config configures a loadPlugins pass.
type Config struct {
	// Dirs are installation directories to scan for plugin candidates.
	Dirs []string
	// HostVersion is the running host CLI version.
	HostVersion string
	// EnabledSet names the plugins the state file marks enabled.
	EnabledSet map[string]bool
	// FreshInstall is true when the state file listed no plugins at
	// all (as opposed to listing plugins, all disabled): on a fresh
	// install, every discovered candidate loads regardless of
	// EnabledSet.
	FreshInstall bool
	// DevMode installs a per-plugin filesystem watcher and enables
	// cache-busting reloads.
	DevMode bool
	// ProjectConfig is handed to every plugin's Context unchanged.
	ProjectConfig map[string]any
	// UserConfig supplies each plugin's persisted user configuration,
	// merged over its manifest's configSchema defaults. May be nil, in
	// which case every plugin gets schema defaults only.
	UserConfig UserConfigProvider
}

// UserConfigProvider supplies a plugin's persisted user configuration
// overrides, keyed by plugin name.
type UserConfigProvider interface {
	Load(pluginName string) (map[string]any, error)
}

const reloadWarnThreshold = 10

type pluginRuntime struct {
	dir         string
	manifest    *manifest.Manifest
	watcher     Watcher
	reloadCount int
	generation  int
	cfg         Config
}

// Registrar is the subset of *registry.Registry the Loader needs.
type Registrar interface {
	RegisterPlugin(m *manifest.Manifest, module any)
	UnregisterPlugin(name string) []error
}

// Loader discovers, validates, imports, and activates plugins, and
// manages dev-mode hot-reload.
type Loader struct {
	registrar Registrar
	importer  Importer
	watchers  WatcherFactory
	logger    *logrus.Entry

	mu      sync.Mutex
	runtime map[string]*pluginRuntime
}

// New constructs a Loader. importer and watchers are injected so tests
// can substitute fakes for the real plugin.Open/fsnotify collaborators.
func New(reg Registrar, importer Importer, watchers WatcherFactory, logger *logrus.Entry) *Loader {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Loader{
		registrar: reg,
		importer:  importer,
		watchers:  watchers,
		logger:    logger,
		runtime:   map[string]*pluginRuntime{},
	}
}

func discoverCandidates(dirs []string) []string {
	var candidates []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			candidate := filepath.Join(dir, e.Name())
			if _, err := os.Stat(filepath.Join(candidate, "host-plugin.json")); err == nil {
				candidates = append(candidates, candidate)
			}
		}
	}
	return candidates
}

// LoadPlugins walks cfg.Dirs, validating, compatibility-checking,
// importing, and activating every candidate found. A failure for one
// plugin never prevents loading of another.
func (l *Loader) LoadPlugins(cfg Config) LoadResult {
	var result LoadResult

	for _, dir := range discoverCandidates(cfg.Dirs) {
		outcome := l.loadOne(dir, cfg)
		switch {
		case outcome.err != nil:
			result.Errors = append(result.Errors, *outcome.err)
		case outcome.skip != nil:
			result.Skipped = append(result.Skipped, *outcome.skip)
		default:
			result.Loaded = append(result.Loaded, LoadedInfo{Name: outcome.name, Path: dir})
		}
	}
	return result
}

type loadOutcome struct {
	name string
	skip *SkippedInfo
	err  *ErrorInfo
}

func (l *Loader) loadOne(dir string, cfg Config) loadOutcome {
	// Step 1: read and validate manifest.
	vr := validateManifest(dir)
	if !vr.Valid {
		return loadOutcome{err: &ErrorInfo{Path: dir, Phase: PhaseValidation, Message: manifestErrorMessage(vr)}}
	}
	m := vr.Manifest

	// Step 2: enabled-set membership, with the fresh-install carve-out.
	if !cfg.FreshInstall && !cfg.EnabledSet[m.Name] {
		return loadOutcome{skip: &SkippedInfo{Name: m.Name, Reason: fmt.Sprintf("plugin %q is not enabled", m.Name)}}
	}

	// Step 3: host-version compatibility.
	compat := checkCompatibility(m, cfg.HostVersion)
	if !compat.Compatible {
		return loadOutcome{skip: &SkippedInfo{Name: m.Name, Reason: compat.Message}}
	}

	// Step 4-7: import, verify exports, construct Context, activate.
	if err := l.activate(dir, m, cfg, 0); err != nil {
		// must ensure the Registry is consistent before surfacing the
		// error: any partial registration from this activation attempt
		// is cleaned up first.
		l.registrar.UnregisterPlugin(m.Name)
		return loadOutcome{err: &ErrorInfo{Name: m.Name, Path: dir, Phase: phaseOf(err), Message: err.Error()}}
	}

	l.mu.Lock()
	l.runtime[m.Name] = &pluginRuntime{dir: dir, manifest: m, cfg: cfg}
	l.mu.Unlock()

	// Step 8: dev-mode watcher.
	if cfg.DevMode {
		l.installWatcher(m.Name, dir)
	}

	return loadOutcome{name: m.Name}
}

// phaseError tags an activate() failure with which of the three
// distinct failure phases produced it, so callers can report
// errors[phase=import|validation|activation] instead of collapsing
// every activate() failure into one phase.
type phaseError struct {
	phase Phase
	err   error
}

func (e *phaseError) Error() string { return e.err.Error() }
func (e *phaseError) Unwrap() error { return e.err }

// phaseOf reports the Phase an activate() error was tagged with,
// defaulting to PhaseActivation for an untagged error.
func phaseOf(err error) Phase {
	var pe *phaseError
	if errors.As(err, &pe) {
		return pe.phase
	}
	return PhaseActivation
}

func (l *Loader) activate(dir string, m *manifest.Manifest, cfg Config, generation int) error {
	entryPoint := filepath.Join(dir, m.EntryPoint)

	module, err := l.importer.Import(entryPoint, cfg.DevMode, generation)
	if err != nil {
		return &phaseError{phase: PhaseImport, err: fmt.Errorf("import entry point: %w", err)}
	}
	if module.Activate == nil {
		return &phaseError{phase: PhaseValidation, err: fmt.Errorf("entry point %q does not export an activation function", m.EntryPoint)}
	}

	var userOverrides map[string]any
	if cfg.UserConfig != nil {
		var err error
		userOverrides, err = cfg.UserConfig.Load(m.Name)
		if err != nil {
			return &phaseError{phase: PhaseValidation, err: fmt.Errorf("load user config: %w", err)}
		}
	}
	mergedConfig := mergeConfigDefaults(m, userOverrides)
	ctx := pluginctx.New(m.Name, m.Version, mergedConfig, cfg.ProjectConfig, cfg.HostVersion, l.registrarAsContextRegistrar(), l.logger)

	l.registrar.RegisterPlugin(m, module)

	if err := module.Activate(ctx); err != nil {
		return &phaseError{phase: PhaseActivation, err: fmt.Errorf("activate: %w", err)}
	}
	return nil
}

// registrarAsContextRegistrar narrows Registrar down to the
// pluginctx.Registrar surface; *registry.Registry satisfies both.
func (l *Loader) registrarAsContextRegistrar() pluginctx.Registrar {
	r, ok := l.registrar.(pluginctx.Registrar)
	if !ok {
		panic("loader: configured registrar does not implement pluginctx.Registrar")
	}
	return r
}

func (l *Loader) installWatcher(name, dir string) {
	w, err := l.watchers.Watch(dir)
	if err != nil {
		l.logger.WithField("plugin", name).Warnf("could not install dev-mode watcher: %v", err)
		return
	}
	l.mu.Lock()
	if rt, ok := l.runtime[name]; ok {
		rt.watcher = w
	}
	l.mu.Unlock()

	go func() {
		for range w.Events() {
			l.Reload(name)
		}
	}()
}

// UnloadPlugin closes the dev-mode watcher, if any, and deregisters the
// plugin from the Registry.
func (l *Loader) UnloadPlugin(name string) {
	l.mu.Lock()
	rt, ok := l.runtime[name]
	if ok {
		delete(l.runtime, name)
	}
	l.mu.Unlock()

	if ok && rt.watcher != nil {
		rt.watcher.Close()
	}
	l.registrar.UnregisterPlugin(name)
}

// Reload unloads and re-activates the named plugin. Tracks a per-plugin
// reload count; past reloadWarnThreshold it logs a warning about
// accumulating cached-module memory, since the language module cache
// is append-only.
func (l *Loader) Reload(name string) error {
	l.mu.Lock()
	rt, ok := l.runtime[name]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("plugin %q is not loaded", name)
	}

	dir := rt.dir
	cfg := rt.cfg
	reloadCount := rt.reloadCount + 1
	generation := rt.generation + 1

	l.UnloadPlugin(name)

	vr := validateManifest(dir)
	if !vr.Valid {
		return fmt.Errorf("reload %q: %s", name, manifestErrorMessage(vr))
	}
	m := vr.Manifest

	if err := l.activate(dir, m, cfg, generation); err != nil {
		l.registrar.UnregisterPlugin(m.Name)
		return fmt.Errorf("reload %q: %w", name, err)
	}

	l.mu.Lock()
	l.runtime[name] = &pluginRuntime{dir: dir, manifest: m, cfg: cfg, reloadCount: reloadCount, generation: generation}
	l.mu.Unlock()

	if cfg.DevMode {
		l.installWatcher(name, dir)
	}

	if reloadCount > reloadWarnThreshold {
		l.logger.WithField("plugin", name).Warnf("plugin has been reloaded %d times; the module cache grows without bound across dev-mode reloads", reloadCount)
	}
	return nil
}

// ReloadCount reports how many times name has been reloaded, for
// testing the warning threshold.
func (l *Loader) ReloadCount(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rt, ok := l.runtime[name]; ok {
		return rt.reloadCount
	}
	return 0
}
