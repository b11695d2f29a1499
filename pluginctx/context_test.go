package pluginctx

import (
	"testing"

	"github.com/forgecli/forge/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistrar struct {
	registeredCommand string
	resolveErr        error
}

func (f *fakeRegistrar) RegisterCommand(pluginName string, cmd registry.Command) error {
	f.registeredCommand = pluginName + "/" + cmd.Name
	return nil
}
func (f *fakeRegistrar) RegisterAgent(string, registry.Agent) error { return nil }
func (f *fakeRegistrar) RegisterHook(string, registry.Hook)        {}
func (f *fakeRegistrar) RegisterService(string, string, registry.ServiceFactory, []string, registry.DisposeFunc) error {
	return nil
}
func (f *fakeRegistrar) RegisterTemplate(string, registry.Template) {}
func (f *fakeRegistrar) HasService(string) bool                    { return true }
func (f *fakeRegistrar) ResolveService(name string) (any, error)    { return "resolved:" + name, f.resolveErr }

func TestContext_RegisterCommandStampsPluginName(t *testing.T) {
	reg := &fakeRegistrar{}
	ctx := New("demo", "1.0.0", nil, nil, "1.0.0", reg, nil)

	require.NoError(t, ctx.RegisterCommand(registry.Command{Name: "run"}))
	assert.Equal(t, "demo/run", reg.registeredCommand)
}

func TestContext_ConfigIsFrozen(t *testing.T) {
	cfg := map[string]any{
		"nested": map[string]any{"key": "value"},
	}
	ctx := New("demo", "1.0.0", cfg, nil, "1.0.0", &fakeRegistrar{}, nil)

	nested, ok := ctx.Config().Get("nested")
	require.True(t, ok)
	val, ok := nested.Get("key")
	require.True(t, ok)
	assert.Equal(t, "value", val.Raw())

	// mutating the original map must not affect the frozen snapshot.
	cfg["nested"].(map[string]any)["key"] = "mutated"
	val2, _ := nested.Get("key")
	assert.Equal(t, "value", val2.Raw())
}

func TestContext_ProjectConfigNilWhenNotSupplied(t *testing.T) {
	ctx := New("demo", "1.0.0", nil, nil, "1.0.0", &fakeRegistrar{}, nil)
	assert.Nil(t, ctx.GetProjectConfig())
}

func TestContext_GetServiceForwards(t *testing.T) {
	ctx := New("demo", "1.0.0", nil, nil, "1.0.0", &fakeRegistrar{}, nil)
	val, err := ctx.GetService("cache")
	require.NoError(t, err)
	assert.Equal(t, "resolved:cache", val)
}
