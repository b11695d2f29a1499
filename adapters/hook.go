package adapters

import (
	"fmt"

	"github.com/forgecli/forge/pluginctx"
	"github.com/forgecli/forge/registry"
)

// HookRegistry is the subset of *registry.Registry the Hook adapter
// needs.
type HookRegistry interface {
	GetHooks(phase registry.Phase, timing registry.Timing) []*registry.Hook
}

// HookError records one handler's failure, attributed to its owning
// plugin. A thrown/returned error does not halt the pipeline.
type HookError struct {
	PluginName string
	Message    string
}

// HookRunResult is the outcome of running a (phase, timing) hook pass.
type HookRunResult struct {
	Vetoed        bool
	VetoReason    string
	VetoPlugin    string
	ExecutedCount int
	Errors        []HookError
}

// HookAdapter executes the ordered multi-handler hook pipeline for a
// (phase, timing) pair.
type HookAdapter struct {
	registry HookRegistry
}

// NewHookAdapter constructs a HookAdapter over reg.
func NewHookAdapter(reg HookRegistry) *HookAdapter {
	return &HookAdapter{registry: reg}
}

// Run executes every matching hook sequentially in Registry-defined
// order. hookContext is shallow-frozen before being passed to any
// handler. On the first veto, execution halts immediately. A handler
// panic or returned error is recorded in Errors with plugin
// attribution but does not halt the pipeline — downstream handlers
// still run.
func (a *HookAdapter) Run(phase registry.Phase, timing registry.Timing, hookContext map[string]any) HookRunResult {
	frozen := pluginctx.FreezeShallow(hookContext)

	var result HookRunResult
	for _, h := range a.registry.GetHooks(phase, timing) {
		response, err := invokeHandler(h, frozen)
		result.ExecutedCount++

		if err != nil {
			result.Errors = append(result.Errors, HookError{PluginName: h.PluginName, Message: err.Error()})
			continue
		}

		if response.Action == registry.ActionVeto {
			result.Vetoed = true
			result.VetoReason = response.Reason
			result.VetoPlugin = h.PluginName
			return result
		}
	}
	return result
}

func invokeHandler(h *registry.Hook, ctx any) (response registry.HookResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook handler panicked: %v", r)
		}
	}()
	return h.Handler(ctx)
}
