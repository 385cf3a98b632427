package unit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrunner/dagrunner-go/internal/unit"
)

type fakeRegistry map[string]any

func (r fakeRegistry) Lookup(path string) (any, bool) {
	v, ok := r[path]
	return v, ok
}

func echoUnit(_ context.Context, args unit.Args) (any, error) {
	return args.Positional, nil
}

func TestResolveDirectInvocable(t *testing.T) {
	resolved, err := unit.Resolve(unit.Call(unit.Func(echoUnit)), nil)
	require.NoError(t, err)
	assert.NotNil(t, resolved.Invocable)
	assert.Nil(t, resolved.Constructor)
}

func TestResolveDottedPath(t *testing.T) {
	reg := fakeRegistry{"pkg.Echo": unit.Func(echoUnit)}
	resolved, err := unit.Resolve(unit.Call("pkg.Echo"), reg)
	require.NoError(t, err)
	assert.Equal(t, "pkg.Echo", resolved.Name)
	assert.NotNil(t, resolved.Invocable)
}

func TestResolveDottedPathMissing(t *testing.T) {
	_, err := unit.Resolve(unit.Call("missing.Thing"), fakeRegistry{})
	assert.Error(t, err)
}

func TestResolveInitParamsOnPlainInvocableIsArityError(t *testing.T) {
	_, err := unit.Resolve(unit.CallConstruct(unit.Func(echoUnit), map[string]any{"x": 1}, nil), nil)
	var arityErr *unit.InitArityError
	require.ErrorAs(t, err, &arityErr)
	assert.Equal(t, 3, arityErr.Arity)
}

type declaring struct{ names []string }

func (d declaring) ParamNames() []string { return d.names }

func TestRestrictAndMergeKeepsCallerPinned(t *testing.T) {
	decl := declaring{names: []string{"verbose", "dryRun"}}
	callParams := map[string]any{"verbose": true}
	common := map[string]any{"verbose": false, "dryRun": true, "unrelated": "x"}

	merged := unit.RestrictAndMerge(callParams, common, decl)
	assert.Equal(t, true, merged["verbose"]) // caller pinned wins
	assert.Equal(t, true, merged["dryRun"])  // commonParams fills gap
	_, present := merged["unrelated"]
	assert.False(t, present) // not in signature, dropped
}

func TestRestrictAndOverrideLetsCommonWin(t *testing.T) {
	decl := declaring{names: []string{"workdir"}}
	initParams := map[string]any{"workdir": "/a"}
	common := map[string]any{"workdir": "/b"}

	merged := unit.RestrictAndOverride(initParams, common, decl)
	assert.Equal(t, "/b", merged["workdir"])
}
