package registry

import (
	"errors"
	"testing"

	"github.com/forgecli/forge/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return New([]string{"status"}, []string{"claude"}, []string{"storage"})
}

func TestRegisterCommand_CoreNameProtected(t *testing.T) {
	r := newTestRegistry()
	err := r.RegisterCommand("plugin-a", Command{Name: "status"})
	var conflict *NameConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "<core>", conflict.ExistingOwner)
}

func TestRegisterCommand_CrossPluginConflict(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.RegisterCommand("plugin-a", Command{Name: "run"}))

	err := r.RegisterCommand("plugin-b", Command{Name: "run"})
	var conflict *NameConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "plugin-a", conflict.ExistingOwner)

	cmd := r.GetCommand("run")
	require.NotNil(t, cmd)
	assert.Equal(t, "plugin-a", cmd.PluginName)
}

func TestGetHooks_OrderingWithWildcard(t *testing.T) {
	r := newTestRegistry()
	r.RegisterHook("p1", Hook{Phase: PhaseDesign, Timing: Pre, Priority: Late})
	r.RegisterHook("p2", Hook{Phase: PhaseDesign, Timing: Pre, Priority: Early})
	r.RegisterHook("p3", Hook{Phase: PhaseDesign, Timing: Pre, Priority: Normal})
	r.RegisterHook("p4", Hook{Phase: PhaseRequirements, Timing: Pre, Priority: Earliest})
	r.RegisterHook("p5", Hook{Phase: PhaseWildcard, Timing: Pre, Priority: Earliest})

	hooks := r.GetHooks(PhaseDesign, Pre)
	require.Len(t, hooks, 4) // p1, p2, p3, and the wildcard p5
	assert.Equal(t, "p5", hooks[0].PluginName)
	assert.Equal(t, "p2", hooks[1].PluginName)
	assert.Equal(t, "p3", hooks[2].PluginName)
	assert.Equal(t, "p1", hooks[3].PluginName)
}

func TestGetHooks_StableTieBreak(t *testing.T) {
	r := newTestRegistry()
	r.RegisterHook("first", Hook{Phase: PhaseTasks, Timing: Post, Priority: Normal})
	r.RegisterHook("second", Hook{Phase: PhaseTasks, Timing: Post, Priority: Normal})
	r.RegisterHook("third", Hook{Phase: PhaseTasks, Timing: Post, Priority: Normal})

	hooks := r.GetHooks(PhaseTasks, Post)
	require.Len(t, hooks, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{hooks[0].PluginName, hooks[1].PluginName, hooks[2].PluginName})
}

func TestResolveService_DependencyOrderAndCaching(t *testing.T) {
	r := newTestRegistry()
	var calls []string

	require.NoError(t, r.RegisterService("p", "C", func(map[string]any) (any, error) {
		calls = append(calls, "C")
		return "c-instance", nil
	}, nil, nil))

	require.NoError(t, r.RegisterService("p", "B", func(deps map[string]any) (any, error) {
		calls = append(calls, "B")
		require.Equal(t, "c-instance", deps["C"])
		return "b-instance", nil
	}, []string{"C"}, nil))

	require.NoError(t, r.RegisterService("p", "A", func(deps map[string]any) (any, error) {
		calls = append(calls, "A")
		require.Equal(t, "b-instance", deps["B"])
		require.Equal(t, "c-instance", deps["C"])
		return "a-instance", nil
	}, []string{"B", "C"}, nil))

	inst, err := r.ResolveService("A")
	require.NoError(t, err)
	assert.Equal(t, "a-instance", inst)
	assert.Equal(t, []string{"C", "B", "A"}, calls)

	// second resolution must not re-invoke any factory.
	inst2, err := r.ResolveService("A")
	require.NoError(t, err)
	assert.Equal(t, inst, inst2)
	assert.Equal(t, []string{"C", "B", "A"}, calls)
}

func TestResolveService_UnknownDependency(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.RegisterService("p", "A", func(map[string]any) (any, error) {
		return nil, nil
	}, []string{"ghost"}, nil))

	_, err := r.ResolveService("A")
	var unknown *UnknownServiceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.Name)
}

func TestResolveService_CircularDependency(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.RegisterService("p", "X", noopFactory, []string{"Y"}, nil))
	require.NoError(t, r.RegisterService("p", "Y", noopFactory, []string{"Z"}, nil))
	require.NoError(t, r.RegisterService("p", "Z", noopFactory, []string{"X"}, nil))

	_, err := r.ResolveService("X")
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Contains(t, err.Error(), "X -> Y -> Z -> X")
}

func noopFactory(map[string]any) (any, error) { return struct{}{}, nil }

func TestDependencyGraphAndServicesOf(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.RegisterService("p", "A", noopFactory, []string{"B"}, nil))
	require.NoError(t, r.RegisterService("p", "B", noopFactory, nil, nil))
	require.NoError(t, r.RegisterService("other", "C", noopFactory, []string{"A"}, nil))

	graph := r.DependencyGraph()
	assert.Equal(t, []string{"B"}, graph["A"])
	assert.Equal(t, []string{"A"}, graph["C"])

	assert.Equal(t, []string{"A", "B"}, r.ServicesOf("p"))
	assert.Equal(t, []string{"C"}, r.ServicesOf("other"))
	assert.Empty(t, r.ServicesOf("ghost"))
}

func TestUnregisterPlugin_RemovesEverythingAndDisposesOnce(t *testing.T) {
	r := newTestRegistry()
	r.RegisterPlugin(&manifest.Manifest{Name: "p"}, nil)
	require.NoError(t, r.RegisterCommand("p", Command{Name: "run"}))
	require.NoError(t, r.RegisterAgent("p", Agent{Name: "helper"}))
	r.RegisterHook("p", Hook{Phase: PhaseDesign, Timing: Pre})
	r.RegisterTemplate("p", Template{Category: TemplateSpec, Name: "base"})

	disposeCalls := 0
	require.NoError(t, r.RegisterService("p", "svc", func(map[string]any) (any, error) {
		return "instance", nil
	}, nil, func(any) error {
		disposeCalls++
		return nil
	}))
	_, err := r.ResolveService("svc")
	require.NoError(t, err)

	errs := r.UnregisterPlugin("p")
	assert.Empty(t, errs)
	assert.Equal(t, 1, disposeCalls)
	assert.Nil(t, r.GetCommand("run"))
	assert.Nil(t, r.GetAgent("helper"))
	assert.Empty(t, r.GetHooks(PhaseDesign, Pre))
	assert.Empty(t, r.GetTemplates(TemplateSpec))
	assert.Nil(t, r.GetPlugin("p"))

	// idempotent: unregistering again is a no-op, not an error.
	errs = r.UnregisterPlugin("p")
	assert.Empty(t, errs)
	assert.Equal(t, 1, disposeCalls)
}

func TestUnregisterPlugin_DisposeErrorDoesNotBlockTeardown(t *testing.T) {
	r := newTestRegistry()
	r.RegisterPlugin(&manifest.Manifest{Name: "p"}, nil)
	require.NoError(t, r.RegisterService("p", "bad", func(map[string]any) (any, error) {
		return "x", nil
	}, nil, func(any) error {
		return errors.New("boom")
	}))
	require.NoError(t, r.RegisterService("p", "good", func(map[string]any) (any, error) {
		return "y", nil
	}, nil, func(any) error {
		return nil
	}))
	_, err := r.ResolveService("bad")
	require.NoError(t, err)
	_, err = r.ResolveService("good")
	require.NoError(t, err)

	errs := r.UnregisterPlugin("p")
	require.Len(t, errs, 1)
	assert.Nil(t, r.GetPlugin("p"))
	assert.False(t, r.HasService("good"))
}

func TestUnregisterPlugin_NonRegisteredIsNoOp(t *testing.T) {
	r := newTestRegistry()
	errs := r.UnregisterPlugin("never-loaded")
	assert.Empty(t, errs)
}
