// Package state persists the host's record of installed plugins —
// which versions, whether enabled, where they came from — and each
// plugin's user-supplied configuration, both as JSON on disk.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SourceKind is where a plugin's code came from.
type SourceKind string

const (
	SourceRegistry SourceKind = "registry"
	SourceLocal    SourceKind = "local"
)

// currentSchemaVersion is written by Save and assumed by Load when a
// state file predates schema versioning.
const currentSchemaVersion = 1

// PluginState is the persisted record for a single installed plugin.
type PluginState struct {
	Version     string     `json:"version"`
	Enabled     bool       `json:"enabled"`
	InstalledAt time.Time  `json:"installedAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Source      SourceKind `json:"source"`
	LocalPath   string     `json:"localPath,omitempty"`
}

// StateFile is the full persisted state document.
type StateFile struct {
	SchemaVersion int                    `json:"schemaVersion"`
	Plugins       map[string]PluginState `json:"plugins"`
	RegistryURL   string                 `json:"registryUrl,omitempty"`
}

// stateFileName is the file Load/Save read and write within a state
// directory.
const stateFileName = "state.json"

// Load reads the state file at dir/state.json. A missing file is not
// an error — it yields an empty StateFile at the current schema
// version, the shape a fresh install starts from.
func Load(dir string) (*StateFile, error) {
	path := filepath.Join(dir, stateFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &StateFile{SchemaVersion: currentSchemaVersion, Plugins: map[string]PluginState{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var sf StateFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}
	if sf.Plugins == nil {
		sf.Plugins = map[string]PluginState{}
	}
	if sf.SchemaVersion == 0 {
		sf.SchemaVersion = currentSchemaVersion
	}
	return &sf, nil
}

// Save writes sf to dir/state.json atomically: it is written to a
// temp file in the same directory and then renamed into place, so a
// crash mid-write never leaves a truncated state file behind.
func Save(dir string, sf *StateFile) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	if sf.SchemaVersion == 0 {
		sf.SchemaVersion = currentSchemaVersion
	}

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state file: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state.json.*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}

	return os.Rename(tmpPath, filepath.Join(dir, stateFileName))
}
