// Package registry implements the in-memory store of activated plugins
// and their registered extensions across the five categories: commands,
// agents, hooks, services, and templates.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/forgecli/forge/manifest"
)

// Priority is a hook's priority class. Lower values run earlier.
type Priority int

const (
	Earliest Priority = 0
	Early    Priority = 1
	Normal   Priority = 2
	Late     Priority = 3
	Latest   Priority = 4
)

// Timing is when relative to the named phase a hook runs.
type Timing string

const (
	Pre  Timing = "pre"
	Post Timing = "post"
)

// Phase is a named workflow phase, or the wildcard that matches all of
// them.
type Phase string

const (
	PhaseRequirements Phase = "requirements"
	PhaseDesign       Phase = "design"
	PhaseTasks        Phase = "tasks"
	PhaseImplementation Phase = "implementation"
	PhaseWildcard     Phase = "wildcard"
)

// LoadedPlugin is the in-memory record of a single activated plugin.
type LoadedPlugin struct {
	Manifest         *manifest.Manifest
	Module           any
	ActivatedAt      time.Time
}

// Command is a plugin-registered CLI command.
type Command struct {
	PluginName  string
	Name        string
	Description string
	Positional  []PositionalArg
	Options     []OptionArg
	Handler     CommandHandler
}

// CommandHandler is the function a plugin registers to handle a command.
type CommandHandler func(args CommandArgs) (CommandResult, error)

// CommandArgs is the already-parsed argument structure handed to a
// command handler. Positional/option parsing lives above this registry,
// in the host CLI.
type CommandArgs struct {
	Positional []string
	Options    map[string]any
	Context    any
}

// CommandResult is the uniform shape a command handler returns.
type CommandResult struct {
	Output string
}

// PositionalArg declares one positional argument a command accepts.
type PositionalArg struct {
	Name        string
	Description string
	Required    bool
}

// OptionArg declares one named option a command accepts.
type OptionArg struct {
	Name        string
	Description string
	Type        string
}

// Agent is a plugin-registered coding-agent adapter.
type Agent struct {
	PluginName  string
	Name        string
	Description string
	Adapter     AgentAdapter
}

// AgentAdapter is the interface a registered agent must implement.
type AgentAdapter interface {
	Invoke(req AgentInvocation) (AgentResult, error)
	GetCapabilities() []string
	Configure(config map[string]any) error
}

// AgentInvocation is the request shape passed to an agent's Invoke.
type AgentInvocation struct {
	Prompt           string
	WorkingDirectory string
	Model            string
	Timeout          time.Duration
	OnOutput         func(chunk string)
	OnError          func(chunk string)
}

// AgentResult is the uniform result of invoking an agent.
type AgentResult struct {
	Success bool
	Output  string
	Error   string
}

// HookAction is what a hook handler asks the pipeline to do next.
type HookAction string

const (
	ActionContinue HookAction = "continue"
	ActionVeto     HookAction = "veto"
)

// HookResponse is what a single hook handler returns.
type HookResponse struct {
	Action HookAction
	Reason string
}

// HookHandler runs once per pipeline pass, given a hook context.
type HookHandler func(ctx any) (HookResponse, error)

// Hook is a single registered hook handler.
type Hook struct {
	PluginName string
	Phase      Phase
	Timing     Timing
	Priority   Priority
	Handler    HookHandler
	order      uint64
}

// ServiceFactory constructs a service instance given its resolved
// dependencies, keyed by dependency name.
type ServiceFactory func(deps map[string]any) (any, error)

// DisposeFunc releases resources held by a constructed service instance.
type DisposeFunc func(instance any) error

type serviceEntry struct {
	pluginName   string
	factory      ServiceFactory
	dependencies []string
	instance     any
	instantiated bool
	dispose      DisposeFunc
}

// Template is a plugin-registered file-template bundle.
type Template struct {
	PluginName    string
	Category      TemplateCategory
	Name          string
	Description   string
	SourcePath    string
	Subtype       string
	NamespacedName string
}

// TemplateCategory is the closed set of template categories.
type TemplateCategory string

const (
	TemplateStack    TemplateCategory = "stack"
	TemplateSpec     TemplateCategory = "spec"
	TemplateSteering TemplateCategory = "steering"
)

// NameConflictError is returned when a command/agent/service name
// collides with an existing registration.
type NameConflictError struct {
	Kind       string
	Name       string
	ExistingOwner string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("%s name %q is already registered (owned by %q)", e.Kind, e.Name, e.ExistingOwner)
}

// CycleError is returned when resolving a service's dependency graph
// detects a circular dependency.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular service dependency: %s", strings.Join(e.Path, " -> "))
}

// UnknownServiceError is returned when resolving or depending on a
// service name that was never registered.
type UnknownServiceError struct {
	Name string
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("unknown service %q", e.Name)
}

// Registry is the single in-memory store of activated plugins and their
// registered extensions. It is single-writer: the Loader during
// activation, the Manager during deregistration.
type Registry struct {
	mu sync.Mutex

	coreCommands map[string]bool
	coreAgents   map[string]bool
	coreServices map[string]bool

	plugins  map[string]*LoadedPlugin
	commands map[string]*Command
	agents   map[string]*Agent
	hooks    []*Hook
	services map[string]*serviceEntry
	templates []*Template

	hookCounter uint64
}

// New constructs an empty Registry. The core name sets are fixed for the
// registry's lifetime and are protected regardless of plugin load order.
func New(coreCommands, coreAgents, coreServices []string) *Registry {
	r := &Registry{
		coreCommands: toSet(coreCommands),
		coreAgents:   toSet(coreAgents),
		coreServices: toSet(coreServices),
		plugins:      map[string]*LoadedPlugin{},
		commands:     map[string]*Command{},
		agents:       map[string]*Agent{},
		services:     map[string]*serviceEntry{},
	}
	return r
}

func toSet(names []string) map[string]bool {
	s := make(map[string]bool, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

// RegisterPlugin stores the activation record for a plugin. Called
// exactly once per plugin per process by the Loader.
func (r *Registry) RegisterPlugin(m *manifest.Manifest, module any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[m.Name] = &LoadedPlugin{
		Manifest:    m,
		Module:      module,
		ActivatedAt: time.Now(),
	}
}

// RegisterCommand registers a plugin's command, failing with a
// NameConflictError if the name collides with a core name or another
// plugin's registration.
func (r *Registry) RegisterCommand(pluginName string, cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.coreCommands[cmd.Name] {
		return &NameConflictError{Kind: "command", Name: cmd.Name, ExistingOwner: "<core>"}
	}
	if existing, ok := r.commands[cmd.Name]; ok {
		return &NameConflictError{Kind: "command", Name: cmd.Name, ExistingOwner: existing.PluginName}
	}
	cmd.PluginName = pluginName
	r.commands[cmd.Name] = &cmd
	return nil
}

// RegisterAgent registers a plugin's agent, failing with a
// NameConflictError on name collision.
func (r *Registry) RegisterAgent(pluginName string, agent Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.coreAgents[agent.Name] {
		return &NameConflictError{Kind: "agent", Name: agent.Name, ExistingOwner: "<core>"}
	}
	if existing, ok := r.agents[agent.Name]; ok {
		return &NameConflictError{Kind: "agent", Name: agent.Name, ExistingOwner: existing.PluginName}
	}
	agent.PluginName = pluginName
	r.agents[agent.Name] = &agent
	return nil
}

// RegisterService registers a plugin's lazily-constructed service,
// failing with a NameConflictError on name collision.
func (r *Registry) RegisterService(pluginName, name string, factory ServiceFactory, dependencies []string, dispose DisposeFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.coreServices[name] {
		return &NameConflictError{Kind: "service", Name: name, ExistingOwner: "<core>"}
	}
	if existing, ok := r.services[name]; ok {
		return &NameConflictError{Kind: "service", Name: name, ExistingOwner: existing.pluginName}
	}
	r.services[name] = &serviceEntry{
		pluginName:   pluginName,
		factory:      factory,
		dependencies: dependencies,
		dispose:      dispose,
	}
	return nil
}

// RegisterHook appends a hook to the ordered list. Never fails on name:
// hook handlers are not unique. Stamps a monotonically increasing
// registration counter, strictly monotonic across the whole Registry
// instance (not per phase), for stable tie-breaking.
func (r *Registry) RegisterHook(pluginName string, h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.PluginName = pluginName
	r.hookCounter++
	h.order = r.hookCounter
	r.hooks = append(r.hooks, &h)
}

// RegisterTemplate appends a template, deriving its namespaced name
// (pluginName/name) internally. Never fails on name.
func (r *Registry) RegisterTemplate(pluginName string, t Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.PluginName = pluginName
	t.NamespacedName = pluginName + "/" + t.Name
	r.templates = append(r.templates, &t)
}

// GetCommand returns the registered command, or nil if absent.
func (r *Registry) GetCommand(name string) *Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commands[name]
}

// GetAgent returns the registered agent, or nil if absent.
func (r *Registry) GetAgent(name string) *Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agents[name]
}

// GetHooks returns hooks matching phase (or the wildcard registration)
// and timing, sorted by priority ascending with ties broken by
// registration order (FIFO). Passing PhaseWildcard as the argument
// returns every hook with the given timing.
func (r *Registry) GetHooks(phase Phase, timing Timing) []*Hook {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*Hook
	for _, h := range r.hooks {
		if h.Timing != timing {
			continue
		}
		if phase == PhaseWildcard || h.Phase == phase || h.Phase == PhaseWildcard {
			matched = append(matched, h)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority < matched[j].Priority
		}
		return matched[i].order < matched[j].order
	})
	return matched
}

// GetTemplates returns all templates registered under category, across
// plugins.
func (r *Registry) GetTemplates(category TemplateCategory) []*Template {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Template
	for _, t := range r.templates {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// HasService reports whether name is a registered service, without
// instantiating it.
func (r *Registry) HasService(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.services[name]
	return ok
}

// ResolveService returns the cached instance for name if present;
// otherwise it topologically constructs the service's dependencies
// first, caches the result, and returns it. A service instance is
// singleton for the life of the plugin in the Registry.
func (r *Registry) ResolveService(name string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve(name, nil)
}

func (r *Registry) resolve(name string, path []string) (any, error) {
	for _, p := range path {
		if p == name {
			return nil, &CycleError{Path: append(append([]string{}, path...), name)}
		}
	}

	entry, ok := r.services[name]
	if !ok {
		return nil, &UnknownServiceError{Name: name}
	}
	if entry.instantiated {
		return entry.instance, nil
	}

	path = append(path, name)
	deps := make(map[string]any, len(entry.dependencies))
	for _, dep := range entry.dependencies {
		val, err := r.resolve(dep, path)
		if err != nil {
			return nil, err
		}
		deps[dep] = val
	}

	instance, err := entry.factory(deps)
	if err != nil {
		return nil, fmt.Errorf("service %q factory failed: %w", name, err)
	}
	entry.instance = instance
	entry.instantiated = true
	return instance, nil
}

// DependencyGraph returns an adjacency list of every registered
// service's declared dependencies, for diagnostic display.
func (r *Registry) DependencyGraph() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	graph := make(map[string][]string, len(r.services))
	for name, entry := range r.services {
		graph[name] = append([]string{}, entry.dependencies...)
	}
	return graph
}

// ServicesOf names the services a plugin has registered, for slicing
// DependencyGraph's output down to one plugin's diagnostic view.
func (r *Registry) ServicesOf(pluginName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for name, entry := range r.services {
		if entry.pluginName == pluginName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// UnregisterPlugin is the single teardown entry point: it removes all of
// the plugin's commands, agents, hooks, templates, and services from
// the indexes and removes the LoadedPlugin record, then invokes Dispose
// for each of its services that was actually instantiated. A failing
// Dispose does not stop the others; every dispose error is collected
// and returned. It is a no-op for a plugin
// that is not registered, and calling it twice in succession is
// equivalent to calling it once.
//
// The order is: capture the service-disposal list, delete from all
// indexes, then run dispose callbacks, so a dispose handler that calls
// back into the Registry observes a consistent post-deregister view.
func (r *Registry) UnregisterPlugin(name string) []error {
	r.mu.Lock()

	if _, ok := r.plugins[name]; !ok {
		r.mu.Unlock()
		return nil
	}

	type disposal struct {
		name     string
		instance any
		dispose  DisposeFunc
	}
	var toDispose []disposal

	for svcName, entry := range r.services {
		if entry.pluginName != name {
			continue
		}
		if entry.instantiated && entry.dispose != nil {
			toDispose = append(toDispose, disposal{name: svcName, instance: entry.instance, dispose: entry.dispose})
		}
		delete(r.services, svcName)
	}

	for cmdName, cmd := range r.commands {
		if cmd.PluginName == name {
			delete(r.commands, cmdName)
		}
	}
	for agentName, agent := range r.agents {
		if agent.PluginName == name {
			delete(r.agents, agentName)
		}
	}

	filteredHooks := r.hooks[:0]
	for _, h := range r.hooks {
		if h.PluginName != name {
			filteredHooks = append(filteredHooks, h)
		}
	}
	r.hooks = filteredHooks

	filteredTemplates := r.templates[:0]
	for _, t := range r.templates {
		if t.PluginName != name {
			filteredTemplates = append(filteredTemplates, t)
		}
	}
	r.templates = filteredTemplates

	delete(r.plugins, name)
	r.mu.Unlock()

	var errs []error
	for _, d := range toDispose {
		if err := d.dispose(d.instance); err != nil {
			errs = append(errs, fmt.Errorf("service %q dispose failed: %w", d.name, err))
		}
	}
	return errs
}

// GetPlugin returns the LoadedPlugin record for name, or nil if absent.
func (r *Registry) GetPlugin(name string) *LoadedPlugin {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.plugins[name]
}

// ListPlugins returns the names of every currently-loaded plugin.
func (r *Registry) ListPlugins() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
