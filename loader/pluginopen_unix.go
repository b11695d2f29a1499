//go:build (linux || darwin) && cgo

package loader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"plugin"

	"github.com/forgecli/forge/pluginctx"
)

// PluginOpenImporter is the production Importer, backed by the standard
// library's plugin.Open, looking up well-known exported symbols from
// each loaded .so.
//
// plugin.Open caches forever for a given path — the Go runtime never
// un-registers a loaded .so for the life of the process. In dev mode,
// that means a naive re-Open of the same path on every file-change
// event would silently return the stale, already-cached module. To
// give dev-mode reloads fresh package-level state, Import copies the
// .so to a generation-numbered path under a scratch directory before
// opening it, so each reload maps a distinct file into the process —
// at the cost of leaking one mapped .so per reload, the exact
// append-only module-cache tradeoff this subsystem's design accepts.
type PluginOpenImporter struct {
	ScratchDir string
}

func (i *PluginOpenImporter) Import(entryPointPath string, devMode bool, generation int) (Module, error) {
	openPath := entryPointPath
	if devMode && generation > 0 {
		scratch := i.ScratchDir
		if scratch == "" {
			scratch = os.TempDir()
		}
		genPath := filepath.Join(scratch, fmt.Sprintf("%s.gen%d%s", filepath.Base(entryPointPath), generation, filepath.Ext(entryPointPath)))
		if err := copyFile(entryPointPath, genPath); err != nil {
			return Module{}, fmt.Errorf("prepare dev-mode reload copy: %w", err)
		}
		openPath = genPath
	}

	p, err := plugin.Open(openPath)
	if err != nil {
		return Module{}, fmt.Errorf("open plugin entry point %q: %w", openPath, err)
	}

	activateSym, err := p.Lookup("Activate")
	if err != nil {
		return Module{}, fmt.Errorf("entry point %q does not export Activate: %w", entryPointPath, err)
	}
	activate, ok := activateSym.(func(*pluginctx.Context) error)
	if !ok {
		return Module{}, fmt.Errorf("entry point %q exports Activate with the wrong signature", entryPointPath)
	}

	module := Module{Activate: activate}

	if deactivateSym, err := p.Lookup("Deactivate"); err == nil {
		deactivate, ok := deactivateSym.(func() error)
		if !ok {
			return Module{}, fmt.Errorf("entry point %q exports Deactivate with the wrong signature", entryPointPath)
		}
		module.Deactivate = deactivate
	}

	return module, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
