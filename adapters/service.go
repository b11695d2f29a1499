package adapters

import "github.com/forgecli/forge/registry"

// ServiceRegistry is the subset of *registry.Registry the Service
// adapter needs.
type ServiceRegistry interface {
	HasService(name string) bool
	ResolveService(name string) (any, error)
}

// ServiceAdapter is a thin pass-through over the Registry's singleton
// service resolution, kept separate so callers depend on a narrow
// interface rather than the full Registry.
type ServiceAdapter struct {
	registry ServiceRegistry
}

// NewServiceAdapter constructs a ServiceAdapter over reg.
func NewServiceAdapter(reg ServiceRegistry) *ServiceAdapter {
	return &ServiceAdapter{registry: reg}
}

// Has reports whether name is a registered service, without
// instantiating it.
func (a *ServiceAdapter) Has(name string) bool {
	return a.registry.HasService(name)
}

// Resolve returns the singleton instance for name, constructing it and
// its dependency graph on first use.
func (a *ServiceAdapter) Resolve(name string) (any, error) {
	return a.registry.ResolveService(name)
}
