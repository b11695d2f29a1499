// Package cmd implements the forge command-line interface: the root
// command and the plugin lifecycle subcommand group.
package cmd

import (
	"github.com/forgecli/forge/cmd/internal/env"
	"github.com/forgecli/forge/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// HostVersion is the running host CLI's own semantic version, checked
// against every plugin's declared hostVersionRange.
const HostVersion = "1.0.0"

// NewRootCommand constructs the forge root command with the plugin
// subcommand group attached.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "forge",
		Short: "forge is a spec-driven CLI orchestrator",
		Long:  "forge drives a host project through spec-driven development phases, extensible via plugins.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := env.CmdFlags.CheckEnvironmentVariables(cmd); err != nil {
				return err
			}
			return configureLogging(cmd)
		},
	}

	root.PersistentFlags().String("state-dir", ".forge", "project-relative directory holding plugin state and config")
	root.PersistentFlags().String("plugins-dir", ".forge/plugins", "directory plugins are installed into")
	root.PersistentFlags().String("registry-url", "", "base URL of the network plugin registry used by search/info")
	root.PersistentFlags().String("package-manager", "npm", "command-line package manager used to install/update plugins")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "json", "log format: json, json-pretty, text")

	root.AddCommand(newPluginCommand())
	root.AddCommand(newRunCommand())
	return root
}

// configureLogging sets the standard logrus logger's level and
// formatter from the --log-level/--log-format persistent flags, so
// every component that scopes fields onto logrus.StandardLogger
// inherits the user's choice.
func configureLogging(cmd *cobra.Command) error {
	levelFlag, _ := cmd.Flags().GetString("log-level")
	formatFlag, _ := cmd.Flags().GetString("log-format")

	level, err := logging.GetLevel(levelFlag)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(logging.GetFormatter(formatFlag, ""))
	return nil
}
