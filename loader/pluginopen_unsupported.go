//go:build !((linux || darwin) && cgo)

package loader

import "fmt"

// PluginOpenImporter is unavailable on platforms (or build configurations)
// where Go's native plugin package cannot load shared objects.
type PluginOpenImporter struct {
	ScratchDir string
}

func (i *PluginOpenImporter) Import(entryPointPath string, devMode bool, generation int) (Module, error) {
	return Module{}, fmt.Errorf("dynamic plugin loading is not supported on this platform (entry point %q)", entryPointPath)
}
