package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrunner/dagrunner-go/internal/registry"
	"github.com/dagrunner/dagrunner-go/internal/unit"
)

func TestLookupBuiltinShell(t *testing.T) {
	reg := registry.New()
	v, ok := reg.Lookup("dagrunner.builtin.Shell")
	require.True(t, ok)

	inv, ok := v.(unit.Invocable)
	require.True(t, ok)

	out, err := inv.Call(context.Background(), unit.Args{Params: map[string]any{"command": "printf hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestLookupMissingPath(t *testing.T) {
	reg := registry.New()
	_, ok := reg.Lookup("does.not.Exist")
	assert.False(t, ok)
}

func TestRegisterOverridesEntry(t *testing.T) {
	reg := registry.New()
	sentinel := unit.Func(func(_ context.Context, _ unit.Args) (any, error) { return "custom", nil })
	reg.Register("dagrunner.builtin.Shell", sentinel)

	v, ok := reg.Lookup("dagrunner.builtin.Shell")
	require.True(t, ok)
	inv := v.(unit.Invocable)
	out, err := inv.Call(context.Background(), unit.Args{})
	require.NoError(t, err)
	assert.Equal(t, "custom", out)
}

func TestDataPollingRequiresPatterns(t *testing.T) {
	reg := registry.New()
	v, ok := reg.Lookup("dagrunner.builtin.DataPolling")
	require.True(t, ok)
	inv := v.(unit.Invocable)

	_, err := inv.Call(context.Background(), unit.Args{})
	assert.Error(t, err)
}
