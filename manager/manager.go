// Package manager implements the plugin lifecycle operations — install,
// uninstall, update, enable, disable, list, search, info, config
// read/write, scaffold, and validate — on top of the registry, state,
// and pkgmanager packages.
package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forgecli/forge/loader"
	"github.com/forgecli/forge/manifest"
	"github.com/forgecli/forge/pkgmanager"
	"github.com/forgecli/forge/state"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ProgressPhase is one step of Install's closed progress sequence.
type ProgressPhase string

const (
	PhaseDownloading ProgressPhase = "downloading"
	PhaseValidating  ProgressPhase = "validating"
	PhaseActivating  ProgressPhase = "activating"
	PhaseComplete    ProgressPhase = "complete"
)

// ProgressFunc receives one call per phase of Install, in order. May
// be nil.
type ProgressFunc func(phase ProgressPhase)

// Registrar is the subset of *registry.Registry the Manager needs to
// tear down a plugin's live extensions during uninstall/disable.
type Registrar interface {
	UnregisterPlugin(name string) []error
}

// ServiceGrapher is the optional subset of *registry.Registry that
// supplies the live service dependency graph for List's diagnostic
// ServiceDependencies field. A Registrar that doesn't implement it
// (e.g. in tests) simply yields no graph.
type ServiceGrapher interface {
	DependencyGraph() map[string][]string
	ServicesOf(pluginName string) []string
}

// Manager drives plugin lifecycle operations. It does not itself
// activate plugin code — that is the Loader's job at next startup —
// except that it always deregisters a plugin's live extensions
// immediately on uninstall/disable.
type Manager struct {
	StateDir    string
	PluginsDir  string
	HostVersion string

	PkgManager     pkgmanager.PackageManager
	Registrar      Registrar
	RegistryClient RegistryClient
	Importer       loader.Importer

	Logger *logrus.Entry
}

// New constructs a Manager. logger may be nil.
func New(stateDir, pluginsDir, hostVersion string, pm pkgmanager.PackageManager, reg Registrar, rc RegistryClient, importer loader.Importer, logger *logrus.Entry) *Manager {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		StateDir:       stateDir,
		PluginsDir:     pluginsDir,
		HostVersion:    hostVersion,
		PkgManager:     pm,
		Registrar:      reg,
		RegistryClient: rc,
		Importer:       importer,
		Logger:         logger,
	}
}

// InstallOptions selects where a plugin's code comes from.
type InstallOptions struct {
	Source state.SourceKind
	// LocalPath is required when Source is state.SourceLocal: the
	// directory install root to read the manifest from directly,
	// bypassing the package manager's fetch step.
	LocalPath string
}

// LifecycleResult is the uniform structured result of a lifecycle
// operation.
type LifecycleResult struct {
	Success bool
	Name    string
	Version string
	Error   string
}

func failure(name, msg string) LifecycleResult {
	return LifecycleResult{Name: name, Error: msg}
}

// Install fetches target via the package manager (unless opts.Source
// is local), then validates and compatibility-checks the resulting
// manifest, rolling back via an uninstall on either failure. On
// success it writes the plugin's state entry. progress is invoked once
// per phase of {downloading, validating, activating, complete}, in
// order; a local install has no fetch step and skips downloading.
func (m *Manager) Install(ctx context.Context, target string, opts InstallOptions, progress ProgressFunc) LifecycleResult {
	installID := uuid.NewString()
	log := m.Logger.WithFields(logrus.Fields{"plugin": target, "installId": installID})

	report := func(p ProgressPhase) {
		log.WithField("phase", p).Info("install progress")
		if progress != nil {
			progress(p)
		}
	}

	if _, err := m.PkgManager.Version(ctx); err != nil {
		return failure(target, fmt.Sprintf("package manager unavailable: %v", err))
	}

	installRoot := target
	if opts.Source != state.SourceLocal {
		report(PhaseDownloading)
		res, err := m.PkgManager.Install(ctx, target)
		if err != nil {
			return failure(target, fmt.Sprintf("install failed: %v", err))
		}
		if res.ExitCode != 0 {
			return failure(target, fmt.Sprintf("install exited %d: %s", res.ExitCode, res.Stderr))
		}
		installRoot = filepath.Join(m.PluginsDir, target)
	} else {
		installRoot = opts.LocalPath
	}

	report(PhaseValidating)
	vr := manifest.ValidatePath(installRoot)
	if !vr.Valid {
		m.rollback(ctx, target)
		return failure(target, fmt.Sprintf("invalid manifest: %s", joinFieldErrors(vr)))
	}
	mf := vr.Manifest

	compat := manifest.CheckCompatibility(mf, m.HostVersion)
	if !compat.Compatible {
		m.rollback(ctx, mf.Name)
		return failure(mf.Name, compat.Message)
	}

	report(PhaseActivating)
	now := time.Now()
	sf, err := state.Load(m.StateDir)
	if err != nil {
		return failure(mf.Name, fmt.Sprintf("reading state: %v", err))
	}
	sf.Plugins[mf.Name] = state.PluginState{
		Version:     mf.Version,
		Enabled:     true,
		InstalledAt: now,
		UpdatedAt:   now,
		Source:      opts.Source,
		LocalPath:   opts.LocalPath,
	}
	if err := state.Save(m.StateDir, sf); err != nil {
		return failure(mf.Name, fmt.Sprintf("writing state: %v", err))
	}

	report(PhaseComplete)
	return LifecycleResult{Success: true, Name: mf.Name, Version: mf.Version}
}

func (m *Manager) rollback(ctx context.Context, name string) {
	if _, err := m.PkgManager.Uninstall(ctx, name); err != nil {
		m.Logger.WithField("plugin", name).Warnf("rollback uninstall failed: %v", err)
	}
}

func joinFieldErrors(vr manifest.ValidationResult) string {
	msg := ""
	for i, e := range vr.Errors {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return msg
}

// Uninstall deregisters the plugin's live extensions before shelling
// out to the package manager, then deletes its state entry and
// best-effort removes its config directory.
func (m *Manager) Uninstall(ctx context.Context, name string) LifecycleResult {
	sf, err := state.Load(m.StateDir)
	if err != nil {
		return failure(name, fmt.Sprintf("reading state: %v", err))
	}
	if _, ok := sf.Plugins[name]; !ok {
		return failure(name, fmt.Sprintf("plugin %q is not installed", name))
	}

	if m.Registrar != nil {
		m.Registrar.UnregisterPlugin(name)
	}

	res, err := m.PkgManager.Uninstall(ctx, name)
	if err != nil {
		return failure(name, fmt.Sprintf("uninstall failed: %v", err))
	}
	if res.ExitCode != 0 {
		return failure(name, fmt.Sprintf("uninstall exited %d: %s", res.ExitCode, res.Stderr))
	}

	delete(sf.Plugins, name)
	if err := state.Save(m.StateDir, sf); err != nil {
		return failure(name, fmt.Sprintf("writing state: %v", err))
	}

	if err := state.RemovePluginDir(m.StateDir, name); err != nil {
		m.Logger.WithField("plugin", name).Warnf("could not remove config directory: %v", err)
	}

	return LifecycleResult{Success: true, Name: name}
}

// Update preserves the plugin's persisted user config, runs the
// package manager's update, and re-validates/re-checks compatibility.
// An invalid or newly-incompatible result after update is surfaced as
// a failure without rolling the update back — the inconsistency is
// explicitly surfaced rather than silently hidden.
func (m *Manager) Update(ctx context.Context, name string) LifecycleResult {
	sf, err := state.Load(m.StateDir)
	if err != nil {
		return failure(name, fmt.Sprintf("reading state: %v", err))
	}
	entry, ok := sf.Plugins[name]
	if !ok {
		return failure(name, fmt.Sprintf("plugin %q is not installed", name))
	}

	res, err := m.PkgManager.Update(ctx, name)
	if err != nil {
		return failure(name, fmt.Sprintf("update failed: %v", err))
	}
	if res.ExitCode != 0 {
		return failure(name, fmt.Sprintf("update exited %d: %s", res.ExitCode, res.Stderr))
	}

	installRoot := m.installRoot(entry, name)
	vr := manifest.ValidatePath(installRoot)
	if !vr.Valid {
		return failure(name, fmt.Sprintf("updated manifest is invalid: %s", joinFieldErrors(vr)))
	}
	mf := vr.Manifest

	compat := manifest.CheckCompatibility(mf, m.HostVersion)
	if !compat.Compatible {
		return failure(name, fmt.Sprintf("updated plugin is incompatible: %s", compat.Message))
	}

	entry.Version = mf.Version
	entry.UpdatedAt = time.Now()
	sf.Plugins[name] = entry
	if err := state.Save(m.StateDir, sf); err != nil {
		return failure(name, fmt.Sprintf("writing state: %v", err))
	}

	return LifecycleResult{Success: true, Name: name, Version: mf.Version}
}

func (m *Manager) installRoot(entry state.PluginState, name string) string {
	if entry.Source == state.SourceLocal {
		return entry.LocalPath
	}
	return filepath.Join(m.PluginsDir, name)
}

// Enable flips the enabled flag on, without loading the plugin — that
// happens on next startup.
func (m *Manager) Enable(name string) LifecycleResult {
	return m.setEnabled(name, true)
}

// Disable flips the enabled flag off and immediately deregisters the
// plugin's live extensions so they stop responding. It warns (via the
// logger, non-fatally) if another installed plugin declares name in
// its dependencies.
func (m *Manager) Disable(name string) LifecycleResult {
	result := m.setEnabled(name, false)
	if !result.Success {
		return result
	}

	if m.Registrar != nil {
		m.Registrar.UnregisterPlugin(name)
	}

	if dependents := m.dependentsOf(name); len(dependents) > 0 {
		m.Logger.WithField("plugin", name).Warnf("disabling a plugin still depended on by: %v", dependents)
	}
	return result
}

func (m *Manager) setEnabled(name string, enabled bool) LifecycleResult {
	sf, err := state.Load(m.StateDir)
	if err != nil {
		return failure(name, fmt.Sprintf("reading state: %v", err))
	}
	entry, ok := sf.Plugins[name]
	if !ok {
		return failure(name, fmt.Sprintf("plugin %q is not installed", name))
	}
	entry.Enabled = enabled
	entry.UpdatedAt = time.Now()
	sf.Plugins[name] = entry

	if err := state.Save(m.StateDir, sf); err != nil {
		return failure(name, fmt.Sprintf("writing state: %v", err))
	}
	return LifecycleResult{Success: true, Name: name, Version: entry.Version}
}

// dependentsOf scans every other installed plugin's on-disk manifest
// for a dependency on name.
func (m *Manager) dependentsOf(name string) []string {
	sf, err := state.Load(m.StateDir)
	if err != nil {
		return nil
	}
	var dependents []string
	for other, entry := range sf.Plugins {
		if other == name {
			continue
		}
		vr := manifest.ValidatePath(m.installRoot(entry, other))
		if !vr.Valid || vr.Manifest == nil {
			continue
		}
		for _, dep := range vr.Manifest.Dependencies {
			if dep.Name == name {
				dependents = append(dependents, other)
			}
		}
	}
	return dependents
}

// PluginListEntry is one row of List's result.
type PluginListEntry struct {
	Name            string
	Version         string
	Enabled         bool
	Description     string
	ExtensionPoints []manifest.ExtensionPoint
	// RequiredBy names every other installed plugin that declares this
	// one as a dependency. Not part of the base lifecycle contract —
	// threaded through so a host can warn before a disable/uninstall.
	RequiredBy []string
	// ServiceDependencies maps each service this plugin has live-
	// registered to its own declared dependency services, sliced from
	// the Registry's full DependencyGraph. Empty unless the plugin is
	// currently loaded and Manager.Registrar implements ServiceGrapher.
	ServiceDependencies map[string][]string
}

// List joins every state entry with its on-disk manifest.
func (m *Manager) List() ([]PluginListEntry, error) {
	sf, err := state.Load(m.StateDir)
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}

	entries := make([]PluginListEntry, 0, len(sf.Plugins))
	for name, st := range sf.Plugins {
		entry := PluginListEntry{Name: name, Version: st.Version, Enabled: st.Enabled}
		vr := manifest.ValidatePath(m.installRoot(st, name))
		if vr.Valid && vr.Manifest != nil {
			entry.Description = vr.Manifest.Description
			entry.ExtensionPoints = vr.Manifest.ExtensionPoints
		}
		entry.RequiredBy = m.dependentsOf(name)
		if grapher, ok := m.Registrar.(ServiceGrapher); ok {
			graph := grapher.DependencyGraph()
			deps := make(map[string][]string)
			for _, svc := range grapher.ServicesOf(name) {
				deps[svc] = graph[svc]
			}
			if len(deps) > 0 {
				entry.ServiceDependencies = deps
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Search consults the network registry. Failures degrade to an empty
// result, never an error.
func (m *Manager) Search(ctx context.Context, query string) []PackageInfo {
	if m.RegistryClient == nil {
		return nil
	}
	return m.RegistryClient.Search(ctx, query)
}

// Info consults the network registry. Failures degrade to nil, never
// an error.
func (m *Manager) Info(ctx context.Context, name string) *PackageInfo {
	if m.RegistryClient == nil {
		return nil
	}
	return m.RegistryClient.Info(ctx, name)
}

// GetConfig merges schema defaults with persisted user overrides and,
// if key is non-empty, filters to that single field.
func (m *Manager) GetConfig(name, key string) (map[string]any, error) {
	mf, err := m.loadManifest(name)
	if err != nil {
		return nil, err
	}
	cfg, err := state.LoadUserConfig(m.StateDir, name, mf.ConfigSchema)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return cfg, nil
	}
	if val, ok := cfg[key]; ok {
		return map[string]any{key: val}, nil
	}
	return map[string]any{}, nil
}

// SetConfig validates value against the field's declared type, then
// writes it into the plugin's raw override file. It starts from the
// raw, unmerged overrides rather than the schema-merged view GetConfig
// returns: persisting the merged view would bake every untouched
// schema default into the override file, permanently shadowing any
// later change to those defaults in the manifest.
func (m *Manager) SetConfig(name, key string, value any) error {
	mf, err := m.loadManifest(name)
	if err != nil {
		return err
	}
	overrides, err := state.LoadRawOverrides(m.StateDir, name)
	if err != nil {
		return err
	}
	overrides[key] = value
	return state.SaveUserConfig(m.StateDir, name, mf.ConfigSchema, overrides)
}

func (m *Manager) loadManifest(name string) (*manifest.Manifest, error) {
	sf, err := state.Load(m.StateDir)
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}
	entry, ok := sf.Plugins[name]
	if !ok {
		return nil, fmt.Errorf("plugin %q is not installed", name)
	}
	vr := manifest.ValidatePath(m.installRoot(entry, name))
	if !vr.Valid {
		return nil, fmt.Errorf("manifest for %q is invalid: %s", name, joinFieldErrors(vr))
	}
	return vr.Manifest, nil
}

// ScaffoldResult lists the paths Scaffold created, in write order.
type ScaffoldResult struct {
	CreatedPaths []string
}

// Scaffold writes a starter host-plugin.json, a Go entry-point source
// file exporting Activate/Deactivate suitable for `go build
// -buildmode=plugin`, and a short README under targetDir.
func (m *Manager) Scaffold(name, targetDir string) (ScaffoldResult, error) {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return ScaffoldResult{}, fmt.Errorf("creating target directory: %w", err)
	}

	var created []string

	manifestPath := filepath.Join(targetDir, "host-plugin.json")
	manifestBody := fmt.Sprintf(`{
  "name": %q,
  "version": "0.1.0",
  "description": "",
  "author": "",
  "entryPoint": %q,
  "hostVersionRange": ">=1.0.0",
  "extensionPoints": ["commands"]
}
`, name, "./"+name+".so")
	if err := os.WriteFile(manifestPath, []byte(manifestBody), 0o644); err != nil {
		return ScaffoldResult{CreatedPaths: created}, fmt.Errorf("writing manifest: %w", err)
	}
	created = append(created, manifestPath)

	entryPath := filepath.Join(targetDir, "entry.go")
	entryBody := fmt.Sprintf(`package main

import "github.com/forgecli/forge/pluginctx"

// Activate is invoked once when %q is loaded.
func Activate(ctx *pluginctx.Context) error {
	ctx.Log("info", "%s activated")
	return nil
}

// Deactivate is invoked when %q is unloaded, if present.
func Deactivate() error {
	return nil
}
`, name, name, name)
	if err := os.WriteFile(entryPath, []byte(entryBody), 0o644); err != nil {
		return ScaffoldResult{CreatedPaths: created}, fmt.Errorf("writing entry point: %w", err)
	}
	created = append(created, entryPath)

	readmePath := filepath.Join(targetDir, "README.md")
	readmeBody := fmt.Sprintf("# %s\n\nBuild with:\n\n    go build -buildmode=plugin -o %s.so ./entry.go\n", name, name)
	if err := os.WriteFile(readmePath, []byte(readmeBody), 0o644); err != nil {
		return ScaffoldResult{CreatedPaths: created}, fmt.Errorf("writing README: %w", err)
	}
	created = append(created, readmePath)

	return ScaffoldResult{CreatedPaths: created}, nil
}

// ValidateResult is the outcome of validating a plugin directory
// without installing it.
type ValidateResult struct {
	Valid   bool
	Message string
}

// Validate checks the manifest, verifies the declared entry point
// exists, imports it with cache-busting disabled, and confirms it
// exports an activation function (and, if present, a well-formed
// deactivation one).
func (m *Manager) Validate(pluginPath string) ValidateResult {
	vr := manifest.ValidatePath(pluginPath)
	if !vr.Valid {
		return ValidateResult{Message: fmt.Sprintf("invalid manifest: %s", joinFieldErrors(vr))}
	}
	mf := vr.Manifest

	entryPoint := filepath.Join(pluginPath, mf.EntryPoint)
	if _, err := os.Stat(entryPoint); err != nil {
		return ValidateResult{Message: fmt.Sprintf("entry point %q does not exist", mf.EntryPoint)}
	}

	if m.Importer == nil {
		return ValidateResult{Valid: true}
	}

	module, err := m.Importer.Import(entryPoint, false, 0)
	if err != nil {
		return ValidateResult{Message: fmt.Sprintf("importing entry point: %v", err)}
	}
	if module.Activate == nil {
		return ValidateResult{Message: "entry point does not export an activation function"}
	}
	return ValidateResult{Valid: true}
}
