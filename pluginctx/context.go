// Package pluginctx implements the per-plugin capability object: the
// only surface through which plugin code communicates with the host.
package pluginctx

import (
	"fmt"

	"github.com/forgecli/forge/registry"
	"github.com/sirupsen/logrus"
)

// Registrar is the subset of *registry.Registry the Context is
// permitted to forward to, with the plugin's own name baked into every
// call site. It is satisfied by *registry.Registry.
type Registrar interface {
	RegisterCommand(pluginName string, cmd registry.Command) error
	RegisterAgent(pluginName string, agent registry.Agent) error
	RegisterHook(pluginName string, hook registry.Hook)
	RegisterService(pluginName, name string, factory registry.ServiceFactory, dependencies []string, dispose registry.DisposeFunc) error
	RegisterTemplate(pluginName string, tmpl registry.Template)
	HasService(name string) bool
	ResolveService(name string) (any, error)
}

// Context is the per-plugin capability object handed to a plugin's
// activate function. It exposes read-only identity, frozen
// configuration, the five register* methods, service resolution, a
// scoped logger, and read-only host accessors. It deliberately does
// not expose the Registry itself, the filesystem, subprocess control,
// or any other mutable host state — those omissions are contractual.
type Context struct {
	pluginName    string
	pluginVersion string
	config        *Frozen
	projectConfig *Frozen
	hostVersion   string
	registrar     Registrar
	log           *logrus.Entry
}

// New constructs a Context scoped to a single plugin's identity. config
// is the plugin's merged (user-over-schema-defaults) configuration;
// it is deep-frozen before being stored. projectConfig may be nil, in
// which case GetProjectConfig returns nil.
func New(pluginName, pluginVersion string, config map[string]any, projectConfig map[string]any, hostVersion string, registrar Registrar, logger *logrus.Entry) *Context {
	c := &Context{
		pluginName:    pluginName,
		pluginVersion: pluginVersion,
		config:        Freeze(config),
		hostVersion:   hostVersion,
		registrar:     registrar,
	}
	if projectConfig != nil {
		c.projectConfig = Freeze(projectConfig)
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	c.log = logger.WithField("plugin", pluginName)
	return c
}

// PluginName returns the plugin's identity.
func (c *Context) PluginName() string { return c.pluginName }

// PluginVersion returns the plugin's declared version.
func (c *Context) PluginVersion() string { return c.pluginVersion }

// Config returns the plugin's deep-frozen merged configuration.
func (c *Context) Config() *Frozen { return c.config }

// GetHostVersion returns the running host CLI version string.
func (c *Context) GetHostVersion() string { return c.hostVersion }

// GetProjectConfig returns a deep-frozen snapshot of the host project's
// configuration, or nil if none was supplied.
func (c *Context) GetProjectConfig() *Frozen { return c.projectConfig }

// RegisterCommand forwards to the Registry with this plugin's identity.
func (c *Context) RegisterCommand(cmd registry.Command) error {
	return c.registrar.RegisterCommand(c.pluginName, cmd)
}

// RegisterAgent forwards to the Registry with this plugin's identity.
func (c *Context) RegisterAgent(agent registry.Agent) error {
	return c.registrar.RegisterAgent(c.pluginName, agent)
}

// RegisterHook forwards to the Registry with this plugin's identity.
func (c *Context) RegisterHook(hook registry.Hook) {
	c.registrar.RegisterHook(c.pluginName, hook)
}

// RegisterService forwards to the Registry with this plugin's identity.
func (c *Context) RegisterService(name string, factory registry.ServiceFactory, dependencies []string, dispose registry.DisposeFunc) error {
	return c.registrar.RegisterService(c.pluginName, name, factory, dependencies, dispose)
}

// RegisterTemplate forwards to the Registry with this plugin's
// identity.
func (c *Context) RegisterTemplate(tmpl registry.Template) {
	c.registrar.RegisterTemplate(c.pluginName, tmpl)
}

// GetService resolves a service by name.
func (c *Context) GetService(name string) (any, error) {
	return c.registrar.ResolveService(name)
}

// HasService reports whether name is a registered service.
func (c *Context) HasService(name string) bool {
	return c.registrar.HasService(name)
}

// Log level tags accepted by Context.Log.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Log writes message through the host logger with a plugin=<name>
// field attached; the message text itself is not prefixed.
func (c *Context) Log(level, message string) {
	entry := c.log
	switch level {
	case LevelDebug:
		entry.Debug(message)
	case LevelWarn:
		entry.Warn(message)
	case LevelError:
		entry.Error(message)
	default:
		entry.Info(message)
	}
}

// Logf is a convenience wrapper around Log with fmt.Sprintf formatting.
func (c *Context) Logf(level, format string, args ...any) {
	c.Log(level, fmt.Sprintf(format, args...))
}
