package cmd

import (
	"fmt"

	"github.com/forgecli/forge/bootstrap"
	"github.com/forgecli/forge/config"
	"github.com/forgecli/forge/registry"
	"github.com/spf13/cobra"
)

// newRunCommand bootstraps the plugin subsystem against the project's
// config file and dispatches a single plugin-registered command
// through the Command adapter. This is the host-facing entry point
// that actually assembles Registry + adapters + Loader for a live
// invocation, as opposed to the plugin subcommand group, which only
// manages installed-plugin state.
func newRunCommand() *cobra.Command {
	var projectConfigPath string
	var devMode bool

	cmd := &cobra.Command{
		Use:                "run <command> [args...]",
		Short:              "Bootstrap the plugin subsystem and run a plugin-registered command",
		Args:               cobra.MinimumNArgs(1),
		DisableFlagParsing: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			stateDir, _ := cmd.Flags().GetString("state-dir")
			pluginsDir, _ := cmd.Flags().GetString("plugins-dir")

			cfg, err := config.Load(projectConfigPath)
			if err != nil {
				return err
			}
			projectConfig, err := cfg.AsProjectConfig()
			if err != nil {
				return err
			}

			sub, err := bootstrap.Bootstrap(bootstrap.Options{
				PluginDirs:    []string{pluginsDir},
				StateDir:      stateDir,
				HostVersion:   HostVersion,
				DevMode:       devMode,
				ProjectConfig: projectConfig,
				Core: bootstrap.CoreNames{
					Commands: []string{"run"},
				},
			})
			if err != nil {
				return err
			}
			for _, e := range sub.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "plugin %q failed to load: %s\n", e.Name, e.Message)
			}

			result := sub.Commands.ExecuteCommand(args[0], registry.CommandArgs{
				Positional: args[1:],
			})
			if !result.Success {
				return fmt.Errorf("%s", result.Error)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Output)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectConfigPath, "project-config", "forge.yaml", "path to the project's own config file")
	cmd.Flags().BoolVar(&devMode, "dev", false, "enable filesystem watchers and hot reload for plugin directories")
	return cmd
}
