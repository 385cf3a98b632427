package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrunner/dagrunner-go/internal/engine"
	"github.com/dagrunner/dagrunner-go/internal/graph"
	"github.com/dagrunner/dagrunner-go/internal/scheduler"
	"github.com/dagrunner/dagrunner-go/internal/unit"
)

func concatUnit(id string) unit.Descriptor {
	return unit.Call(unit.Func(func(_ context.Context, args unit.Args) (any, error) {
		out := ""
		for _, a := range args.Positional {
			if s, ok := a.(string); ok {
				out += s + "_"
			}
		}
		return out + id, nil
	}))
}

func linearGraph() graph.Input {
	return graph.EdgesAttrs{
		Edges: []graph.Edge{{From: "A", To: "B"}, {From: "B", To: "C"}},
		Attrs: map[graph.NodeID]graph.Attrs{
			"A": {"call": concatUnit("A")},
			"B": {"call": concatUnit("B")},
			"C": {"call": concatUnit("C")},
		},
	}
}

func TestRunLinearChainWorkerPool(t *testing.T) {
	res, err := engine.Run(context.Background(), engine.RunConfig{
		Graph:        linearGraph(),
		Scheduler:    engine.WorkerPool,
		NumWorkers:   2,
		CacheEnabled: false,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 0, res.Skipped)

	found := false
	for _, v := range res.Results {
		if v == "A_B_C" {
			found = true
		}
	}
	assert.True(t, found)
	assert.NotEmpty(t, res.Trace.GraphHash)
	assert.Len(t, res.Trace.Events, 3)
}

func TestRunSingleThreadedVariant(t *testing.T) {
	res, err := engine.Run(context.Background(), engine.RunConfig{
		Graph:        linearGraph(),
		Scheduler:    engine.SingleThreaded,
		CacheEnabled: false,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
}

func TestRunRayIsRejected(t *testing.T) {
	_, err := engine.Run(context.Background(), engine.RunConfig{
		Graph:     linearGraph(),
		Scheduler: engine.Ray,
	})
	require.Error(t, err)
	var cfgErr *scheduler.SchedulerConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestRunDryRunShortCircuits(t *testing.T) {
	res, err := engine.Run(context.Background(), engine.RunConfig{
		Graph:        linearGraph(),
		Scheduler:    engine.WorkerPool,
		NumWorkers:   2,
		DryRun:       true,
		CacheEnabled: false,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
}
