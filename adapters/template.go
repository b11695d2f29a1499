package adapters

import "github.com/forgecli/forge/registry"

// TemplateRegistry is the subset of *registry.Registry the Template
// adapter needs.
type TemplateRegistry interface {
	GetTemplates(category registry.TemplateCategory) []*registry.Template
}

// TemplateAdapter aggregates plugin-registered file-template bundles
// by category.
type TemplateAdapter struct {
	registry TemplateRegistry
}

// NewTemplateAdapter constructs a TemplateAdapter over reg.
func NewTemplateAdapter(reg TemplateRegistry) *TemplateAdapter {
	return &TemplateAdapter{registry: reg}
}

// ForCategory returns every template registered under category, across
// all plugins, in registration order.
func (a *TemplateAdapter) ForCategory(category registry.TemplateCategory) []*registry.Template {
	return a.registry.GetTemplates(category)
}
