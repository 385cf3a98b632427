package nodeexec_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrunner/dagrunner-go/internal/nodeexec"
	"github.com/dagrunner/dagrunner-go/internal/token"
	"github.com/dagrunner/dagrunner-go/internal/unit"
)

func concatUnit(id string) unit.Invocable {
	return unit.Func(func(_ context.Context, args unit.Args) (any, error) {
		out := ""
		for _, a := range args.Positional {
			out += a.(string) + "_"
		}
		return out + id, nil
	})
}

func TestInvokeSkipPropagation(t *testing.T) {
	ex := nodeexec.New(nil, nil)
	res, err := ex.Invoke(context.Background(), []any{token.SKIP}, unit.Call(concatUnit("Z")), nil, nil, "z")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Same(t, token.SKIP, res.Value)
}

func TestInvokeIgnoreFiltering(t *testing.T) {
	ex := nodeexec.New(nil, nil)
	res, err := ex.Invoke(context.Background(), []any{"a", token.IGNORE}, unit.Call(concatUnit("C")), nil, nil, "c")
	require.NoError(t, err)
	assert.False(t, res.Ignored)
	assert.Equal(t, "a_C", res.Value)
}

func TestInvokeAllIgnoreReturnsIgnore(t *testing.T) {
	ex := nodeexec.New(nil, nil)
	res, err := ex.Invoke(context.Background(), []any{token.IGNORE, token.IGNORE}, unit.Call(concatUnit("C")), nil, nil, "c")
	require.NoError(t, err)
	assert.True(t, res.Ignored)
	assert.Same(t, token.IGNORE, res.Value)
}

func TestInvokeSingleIgnoreStillRuns(t *testing.T) {
	ex := nodeexec.New(nil, nil)
	res, err := ex.Invoke(context.Background(), []any{token.IGNORE}, unit.Call(concatUnit("C")), nil, nil, "c")
	require.NoError(t, err)
	assert.False(t, res.Ignored)
	assert.Equal(t, "C", res.Value)
}

type paramUnit struct{}

func (paramUnit) ParamNames() []string { return []string{"verbose"} }
func (paramUnit) Call(_ context.Context, args unit.Args) (any, error) {
	return args.Params["verbose"], nil
}

func TestCommonParamsFillsGapNotOverridePinned(t *testing.T) {
	ex := nodeexec.New(nil, nil)
	common := map[string]any{"verbose": true}

	res, err := ex.Invoke(context.Background(), nil, unit.CallWith(paramUnit{}, map[string]any{"verbose": false}), common, nil, "n")
	require.NoError(t, err)
	assert.Equal(t, false, res.Value) // caller-pinned wins

	res2, err := ex.Invoke(context.Background(), nil, unit.Call(paramUnit{}), common, nil, "n")
	require.NoError(t, err)
	assert.Equal(t, true, res2.Value) // commonParams fills the gap
}

type nodeAwareUnit struct{}

func (nodeAwareUnit) NodeAware() bool { return true }
func (nodeAwareUnit) Call(_ context.Context, args unit.Args) (any, error) {
	return args.Params["node_properties"], nil
}

func TestNodeAwareInjection(t *testing.T) {
	ex := nodeexec.New(nil, nil)
	props := map[string]any{"region": "uk"}
	res, err := ex.Invoke(context.Background(), nil, unit.Call(nodeAwareUnit{}), nil, props, "n")
	require.NoError(t, err)
	assert.Equal(t, props, res.Value)
}

type ctor struct{}

func (ctor) New(initParams map[string]any) (unit.Invocable, error) {
	base := initParams["base"].(string)
	return unit.Func(func(_ context.Context, args unit.Args) (any, error) {
		return base + ":" + args.Positional[0].(string), nil
	}), nil
}

func TestConstructibleUnit(t *testing.T) {
	ex := nodeexec.New(nil, nil)
	res, err := ex.Invoke(context.Background(), []any{"x"}, unit.CallConstruct(ctor{}, map[string]any{"base": "b"}, nil), nil, nil, "n")
	require.NoError(t, err)
	assert.Equal(t, "b:x", res.Value)
}

type failingCtor struct{}

func (failingCtor) New(map[string]any) (unit.Invocable, error) { return nil, errors.New("boom") }

func TestConstructorFailureWrapsUnitInitError(t *testing.T) {
	ex := nodeexec.New(nil, nil)
	_, err := ex.Invoke(context.Background(), nil, unit.CallConstruct(failingCtor{}, nil, nil), nil, nil, "n")
	var initErr *nodeexec.UnitInitError
	require.ErrorAs(t, err, &initErr)
}

func TestDryRunShortCircuits(t *testing.T) {
	ex := nodeexec.New(nil, nil)
	res, err := ex.Invoke(context.Background(), []any{"x"}, unit.Call(concatUnit("Z")), map[string]any{"dryRun": true}, nil, "n")
	require.NoError(t, err)
	assert.Nil(t, res.Value)
}

func TestInvokeFailureWrapsUnitCallError(t *testing.T) {
	ex := nodeexec.New(nil, nil)
	failing := unit.Func(func(_ context.Context, _ unit.Args) (any, error) { return nil, errors.New("boom") })
	_, err := ex.Invoke(context.Background(), nil, unit.Call(failing), nil, nil, "n")
	var callErr *nodeexec.UnitCallError
	require.ErrorAs(t, err, &callErr)
}

func TestReentrancyGuardRejected(t *testing.T) {
	ex := nodeexec.New(nil, nil)
	var innerErr error
	reentrant := unit.Func(func(ctx context.Context, _ unit.Args) (any, error) {
		_, innerErr = ex.Invoke(ctx, nil, unit.Call(concatUnit("inner")), nil, nil, "inner")
		return nil, nil
	})
	_, err := ex.Invoke(context.Background(), nil, unit.Call(reentrant), nil, nil, "outer")
	require.NoError(t, err) // the outer call itself succeeds
	require.Error(t, innerErr)
	var reentryErr *nodeexec.ErrReentrant
	require.ErrorAs(t, innerErr, &reentryErr)
}
