// Package config parses the host project's own configuration file —
// the document handed unchanged to every plugin's Context as its
// project config, via pluginctx.Context.GetProjectConfig.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/viper"
)

// Config is the host project's configuration file, conventionally
// named forge.yaml (or forge.json) at the project root.
type Config struct {
	// Environment tags the running environment (development,
	// staging, production, ...), defaulting to "development".
	Environment string `mapstructure:"environment" json:"environment"`
	// Labels are free-form project metadata, forwarded to plugins
	// unchanged.
	Labels map[string]string `mapstructure:"labels" json:"labels"`
	// Extensions holds per-plugin project-level configuration blocks,
	// keyed by plugin name. A plugin's manifest configSchema validates
	// its own plugins/<name>/config.json, not this block — Extensions
	// is project-wide context a plugin may read but never the
	// authoritative source of its own settings.
	Extensions map[string]json.RawMessage `mapstructure:"extensions" json:"extensions,omitempty"`
	// RegistryURL is the default network plugin registry base URL,
	// read here so project config can set it without a flag.
	RegistryURL string `mapstructure:"registryUrl" json:"registryUrl,omitempty"`
}

const defaultEnvironment = "development"

// Load reads and parses the project config file at path (any format
// viper supports: YAML, JSON, TOML) and injects defaults for
// unset fields. A missing file yields a Config at defaults, not an
// error — a project need not have a config file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			cfg.injectDefaults()
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading project config %q: %w", path, err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing project config %q: %w", path, err)
	}
	cfg.injectDefaults()
	return &cfg, nil
}

func (c *Config) injectDefaults() {
	if c.Environment == "" {
		c.Environment = defaultEnvironment
	}
	if c.Labels == nil {
		c.Labels = map[string]string{}
	}
}

// AsProjectConfig renders the config as the plain map[string]any shape
// pluginctx.Context deep-freezes and exposes to plugins.
func (c *Config) AsProjectConfig() (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling project config: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("converting project config to map: %w", err)
	}
	return out, nil
}
