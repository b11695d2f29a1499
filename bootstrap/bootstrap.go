// Package bootstrap wires together the Registry, the five extension
// adapters, and the Loader into the single assembled object the host
// CLI depends on at startup.
package bootstrap

import (
	"github.com/forgecli/forge/adapters"
	"github.com/forgecli/forge/loader"
	"github.com/forgecli/forge/registry"
	"github.com/forgecli/forge/state"
	"github.com/sirupsen/logrus"
)

// CoreNames lists the command/agent/service names the host itself
// owns, protected from plugin name collisions regardless of load
// order.
type CoreNames struct {
	Commands []string
	Agents   []string
	Services []string
}

// Options configures a single bootstrap pass.
type Options struct {
	// PluginDirs are installation roots to scan for plugin candidates.
	PluginDirs []string
	// StateDir is the project's private directory holding state.json
	// and plugins/<name>/config.json.
	StateDir string
	// HostVersion is the running host CLI version.
	HostVersion string
	// DevMode installs per-plugin filesystem watchers and enables
	// cache-busting hot reload.
	DevMode bool
	// ScratchDir is where dev-mode reload copies of .so entry points are
	// staged. Empty uses the OS temp directory.
	ScratchDir string
	// ProjectConfig is handed to every plugin's Context unchanged.
	ProjectConfig map[string]any
	// Core is the protected core name sets.
	Core CoreNames
	// Logger is the base logger every component scopes fields onto. nil
	// uses logrus's standard logger.
	Logger *logrus.Entry
}

// Subsystem is the assembled, ready-to-use plugin subsystem the host
// CLI interacts with after a successful bootstrap pass.
type Subsystem struct {
	Registry  *registry.Registry
	Commands  *adapters.CommandAdapter
	Agents    *adapters.AgentAdapter
	Hooks     *adapters.HookAdapter
	Services  *adapters.ServiceAdapter
	Templates *adapters.TemplateAdapter

	Loader *loader.Loader

	Loaded  []loader.LoadedInfo
	Skipped []loader.SkippedInfo
	Errors  []loader.ErrorInfo
}

// pluginUserConfigProvider adapts state.LoadRawOverrides to the
// loader.UserConfigProvider interface. It returns each plugin's
// persisted overrides unmerged; the Loader applies the manifest's
// schema defaults itself once it has validated that manifest.
type pluginUserConfigProvider struct {
	stateDir string
}

func (p *pluginUserConfigProvider) Load(pluginName string) (map[string]any, error) {
	return state.LoadRawOverrides(p.stateDir, pluginName)
}

// Bootstrap reads the persisted state file, constructs the Registry and
// adapters, runs the Loader over opts.PluginDirs, and returns the
// assembled Subsystem. A failure to load any individual plugin is
// reported in Subsystem.Errors/Skipped rather than aborting the whole
// pass.
func Bootstrap(opts Options) (*Subsystem, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	sf, err := state.Load(opts.StateDir)
	if err != nil {
		return nil, err
	}

	reg := registry.New(opts.Core.Commands, opts.Core.Agents, opts.Core.Services)

	importer := &loader.PluginOpenImporter{ScratchDir: opts.ScratchDir}
	var watchers loader.WatcherFactory = loader.FSNotifyWatcherFactory{}

	l := loader.New(reg, importer, watchers, logger)

	enabledSet := make(map[string]bool, len(sf.Plugins))
	for name, ps := range sf.Plugins {
		if ps.Enabled {
			enabledSet[name] = true
		}
	}

	result := l.LoadPlugins(loader.Config{
		Dirs:          opts.PluginDirs,
		HostVersion:   opts.HostVersion,
		EnabledSet:    enabledSet,
		FreshInstall:  len(sf.Plugins) == 0,
		DevMode:       opts.DevMode,
		ProjectConfig: opts.ProjectConfig,
		UserConfig:    &pluginUserConfigProvider{stateDir: opts.StateDir},
	})

	return &Subsystem{
		Registry:  reg,
		Commands:  adapters.NewCommandAdapter(reg),
		Agents:    adapters.NewAgentAdapter(reg),
		Hooks:     adapters.NewHookAdapter(reg),
		Services:  adapters.NewServiceAdapter(reg),
		Templates: adapters.NewTemplateAdapter(reg),
		Loader:    l,
		Loaded:    result.Loaded,
		Skipped:   result.Skipped,
		Errors:    result.Errors,
	}, nil
}
