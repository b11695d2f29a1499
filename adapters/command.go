// Package adapters implements the five narrow façades through which the
// host CLI and plugin-registered extensions interact with the
// Registry: commands, agents, hooks, services, and templates.
package adapters

import (
	"fmt"

	"github.com/forgecli/forge/registry"
)

// CommandResult is the uniform shape returned by executing a command.
type CommandResult struct {
	Success bool
	Output  string
	Error   string
}

// CommandRegistry is the subset of *registry.Registry the Command
// adapter needs.
type CommandRegistry interface {
	GetCommand(name string) *registry.Command
}

// CommandAdapter dispatches to plugin-registered commands.
type CommandAdapter struct {
	registry CommandRegistry
}

// NewCommandAdapter constructs a CommandAdapter over reg.
func NewCommandAdapter(reg CommandRegistry) *CommandAdapter {
	return &CommandAdapter{registry: reg}
}

// GetCommand is a pass-through lookup.
func (a *CommandAdapter) GetCommand(name string) *registry.Command {
	return a.registry.GetCommand(name)
}

// ExecuteCommand runs the named command's handler inside a recover
// guard, returning a uniform result rather than letting a handler
// panic cross the adapter boundary.
func (a *CommandAdapter) ExecuteCommand(name string, args registry.CommandArgs) CommandResult {
	cmd := a.registry.GetCommand(name)
	if cmd == nil {
		return CommandResult{Success: false, Error: fmt.Sprintf("unknown command %q", name)}
	}

	return a.invoke(cmd, args)
}

func (a *CommandAdapter) invoke(cmd *registry.Command, args registry.CommandArgs) (result CommandResult) {
	defer func() {
		if r := recover(); r != nil {
			result = CommandResult{Success: false, Error: fmt.Sprintf("command %q panicked: %v", cmd.Name, r)}
		}
	}()

	out, err := cmd.Handler(args)
	if err != nil {
		return CommandResult{Success: false, Error: err.Error()}
	}
	return CommandResult{Success: true, Output: out.Output}
}
