package loader

import (
	"github.com/forgecli/forge/pluginctx"
)

// Module is what an Importer returns: the plugin's activation and
// (optional) deactivation exports.
type Module struct {
	Activate   func(ctx *pluginctx.Context) error
	Deactivate func() error
}

// Importer stands in for the dynamic module import a JS-hosted version
// of this loader would use. The production implementation
// (PluginOpenImporter) wraps the standard library's plugin.Open, Go's
// own native mechanism for loading externally-built code into a
// long-running process.
type Importer interface {
	Import(entryPointPath string, devMode bool, generation int) (Module, error)
}
