package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/forgecli/forge/loader"
	"github.com/forgecli/forge/manager"
	"github.com/forgecli/forge/pkgmanager"
	"github.com/forgecli/forge/state"
	"github.com/spf13/cobra"
)

func newManagerFromFlags(cmd *cobra.Command) *manager.Manager {
	stateDir, _ := cmd.Flags().GetString("state-dir")
	pluginsDir, _ := cmd.Flags().GetString("plugins-dir")
	registryURL, _ := cmd.Flags().GetString("registry-url")
	pkgBinary, _ := cmd.Flags().GetString("package-manager")

	var client manager.RegistryClient
	if registryURL != "" {
		client = manager.NewHTTPRegistryClient(registryURL)
	}

	return manager.New(
		stateDir,
		pluginsDir,
		HostVersion,
		pkgmanager.NewExecPackageManager(pkgBinary, pluginsDir),
		nil,
		client,
		&loader.PluginOpenImporter{},
		nil,
	)
}

func newPluginCommand() *cobra.Command {
	plugin := &cobra.Command{
		Use:   "plugin",
		Short: "Manage forge plugins",
	}

	plugin.AddCommand(
		newPluginInstallCommand(),
		newPluginUninstallCommand(),
		newPluginEnableCommand(),
		newPluginDisableCommand(),
		newPluginUpdateCommand(),
		newPluginListCommand(),
		newPluginSearchCommand(),
		newPluginInfoCommand(),
		newPluginConfigCommand(),
		newPluginScaffoldCommand(),
		newPluginValidateCommand(),
	)
	return plugin
}

func newPluginInstallCommand() *cobra.Command {
	var local string
	cmd := &cobra.Command{
		Use:   "install <target>",
		Short: "Install a plugin by package name, version spec, or local path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := newManagerFromFlags(cmd)
			opts := manager.InstallOptions{Source: state.SourceRegistry}
			if local != "" {
				opts = manager.InstallOptions{Source: state.SourceLocal, LocalPath: local}
			}
			result := m.Install(context.Background(), args[0], opts, func(phase manager.ProgressPhase) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s...\n", phase)
			})
			return printLifecycleResult(cmd, result)
		},
	}
	cmd.Flags().StringVar(&local, "local", "", "install from a local directory instead of the package manager")
	return cmd
}

func newPluginUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <name>",
		Short: "Uninstall a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := newManagerFromFlags(cmd).Uninstall(context.Background(), args[0])
			return printLifecycleResult(cmd, result)
		},
	}
}

func newPluginEnableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <name>",
		Short: "Enable an installed plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printLifecycleResult(cmd, newManagerFromFlags(cmd).Enable(args[0]))
		},
	}
}

func newPluginDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <name>",
		Short: "Disable an installed plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printLifecycleResult(cmd, newManagerFromFlags(cmd).Disable(args[0]))
		},
	}
}

func newPluginUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update <name>",
		Short: "Update an installed plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := newManagerFromFlags(cmd).Update(context.Background(), args[0])
			return printLifecycleResult(cmd, result)
		},
	}
}

func newPluginListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := newManagerFromFlags(cmd).List()
			if err != nil {
				return err
			}
			return printJSON(cmd, entries)
		},
	}
}

func newPluginSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the plugin registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := newManagerFromFlags(cmd).Search(context.Background(), args[0])
			return printJSON(cmd, results)
		},
	}
}

func newPluginInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show registry information about a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info := newManagerFromFlags(cmd).Info(context.Background(), args[0])
			if info == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no information available")
				return nil
			}
			return printJSON(cmd, info)
		},
	}
}

func newPluginConfigCommand() *cobra.Command {
	config := &cobra.Command{
		Use:   "config",
		Short: "Read or write a plugin's configuration",
	}
	config.AddCommand(
		&cobra.Command{
			Use:   "get <name> [key]",
			Short: "Read a plugin's configuration",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				key := ""
				if len(args) == 2 {
					key = args[1]
				}
				cfg, err := newManagerFromFlags(cmd).GetConfig(args[0], key)
				if err != nil {
					return err
				}
				return printJSON(cmd, cfg)
			},
		},
		&cobra.Command{
			Use:   "set <name> <key> <value>",
			Short: "Write one field of a plugin's configuration",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				var value any
				if err := json.Unmarshal([]byte(args[2]), &value); err != nil {
					value = args[2]
				}
				return newManagerFromFlags(cmd).SetConfig(args[0], args[1], value)
			},
		},
	)
	return config
}

func newPluginScaffoldCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scaffold <name> <targetDir>",
		Short: "Generate a starter plugin package",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newManagerFromFlags(cmd).Scaffold(args[0], args[1])
			if err != nil {
				return err
			}
			for _, path := range result.CreatedPaths {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
}

func newPluginValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate a plugin package without installing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := newManagerFromFlags(cmd).Validate(args[0])
			if !result.Valid {
				return fmt.Errorf("%s", result.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func printLifecycleResult(cmd *cobra.Command, result manager.LifecycleResult) error {
	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", result.Name)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
