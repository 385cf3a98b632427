package workerpool_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrunner/dagrunner-go/internal/graph"
	"github.com/dagrunner/dagrunner-go/internal/nodeexec"
	"github.com/dagrunner/dagrunner-go/internal/scheduler"
	"github.com/dagrunner/dagrunner-go/internal/scheduler/workerpool"
	"github.com/dagrunner/dagrunner-go/internal/unit"
)

// fakeRunner adapts nodeexec.Executor so tests can also inject failures by
// NodeID.
type fakeRunner struct {
	ex       *nodeexec.Executor
	failWhen map[string]bool
}

func (r *fakeRunner) Invoke(ctx context.Context, rawInputs []any, descriptor unit.Descriptor, commonParams, properties map[string]any, nodeID string) (nodeexec.Result, error) {
	if r.failWhen[nodeID] {
		return nodeexec.Result{}, errors.New("injected failure")
	}
	return r.ex.Invoke(ctx, rawInputs, descriptor, commonParams, properties, nodeID)
}

func concatUnit(id string) unit.Descriptor {
	return unit.Call(unit.Func(func(_ context.Context, args unit.Args) (any, error) {
		out := ""
		for i, a := range args.Positional {
			if i > 0 {
				out += "_"
			}
			out += a.(string)
		}
		if out != "" {
			out += "_"
		}
		return out + id, nil
	}))
}

func buildPlan(t *testing.T, edges []graph.Edge, ids []string) *graph.TaskPlan {
	attrs := map[graph.NodeID]graph.Attrs{}
	for _, id := range ids {
		attrs[graph.NodeID(id)] = graph.Attrs{"call": concatUnit(id)}
	}
	plan, err := graph.Compile(context.Background(), graph.EdgesAttrs{Edges: edges, Attrs: attrs}, nil, nil)
	require.NoError(t, err)
	return plan
}

func taskIDFor(plan *graph.TaskPlan, nodeID string) graph.TaskID {
	for id, task := range plan.Tasks {
		if string(task.NodeID) == nodeID {
			return id
		}
	}
	return ""
}

func TestLinearChainPassthrough(t *testing.T) {
	plan := buildPlan(t, []graph.Edge{
		{From: "A", To: "B"}, {From: "B", To: "C"}, {From: "C", To: "D"}, {From: "D", To: "E"},
	}, []string{"A", "B", "C", "D", "E"})

	pool, err := workerpool.New(&fakeRunner{ex: nodeexec.New(nil, nil)}, scheduler.Config{NumWorkers: 4}, nil)
	require.NoError(t, err)

	results, err := pool.Run(context.Background(), plan)
	require.NoError(t, err)

	e := taskIDFor(plan, "E")
	assert.Equal(t, "A_B_C_D_E", results[e])
}

func constUnit(value string) unit.Descriptor {
	return unit.Call(unit.Func(func(_ context.Context, _ unit.Args) (any, error) { return value, nil }))
}

func TestFanIn(t *testing.T) {
	attrs := map[graph.NodeID]graph.Attrs{
		"A": {"call": constUnit("1")},
		"B": {"call": constUnit("2")},
		"C": {"call": concatUnit("3")},
	}
	plan, err := graph.Compile(context.Background(), graph.EdgesAttrs{
		Edges: []graph.Edge{{From: "A", To: "C"}, {From: "B", To: "C"}},
		Attrs: attrs,
	}, nil, nil)
	require.NoError(t, err)

	pool, err := workerpool.New(&fakeRunner{ex: nodeexec.New(nil, nil)}, scheduler.Config{NumWorkers: 4}, nil)
	require.NoError(t, err)

	results, err := pool.Run(context.Background(), plan)
	require.NoError(t, err)

	c := taskIDFor(plan, "C")
	assert.Equal(t, "1_2_3", results[c])
}

func TestFailFastStopsNewWork(t *testing.T) {
	plan := buildPlan(t, []graph.Edge{{From: "A", To: "B"}}, []string{"A", "B"})

	runner := &fakeRunner{ex: nodeexec.New(nil, nil), failWhen: map[string]bool{"A": true}}
	pool, err := workerpool.New(runner, scheduler.Config{NumWorkers: 4, FailFast: true}, nil)
	require.NoError(t, err)

	_, err = pool.Run(context.Background(), plan)
	require.Error(t, err)
	var execErr *scheduler.TaskExecutionError
	require.ErrorAs(t, err, &execErr)
}

func TestInvalidWorkerCountRejected(t *testing.T) {
	_, err := workerpool.New(&fakeRunner{ex: nodeexec.New(nil, nil)}, scheduler.Config{NumWorkers: 0}, nil)
	var cfgErr *scheduler.SchedulerConfigError
	require.ErrorAs(t, err, &cfgErr)
}
