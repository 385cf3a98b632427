package dataflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrunner/dagrunner-go/internal/graph"
	"github.com/dagrunner/dagrunner-go/internal/nodeexec"
	"github.com/dagrunner/dagrunner-go/internal/scheduler"
	"github.com/dagrunner/dagrunner-go/internal/scheduler/dataflow"
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

func TestSingleThreadedDeterministicOrder(t *testing.T) {
	attrs := map[graph.NodeID]graph.Attrs{
		"A": {"call": concatUnit("A")},
		"B": {"call": concatUnit("B")},
		"C": {"call": concatUnit("C")},
	}
	plan, err := graph.Compile(context.Background(), graph.EdgesAttrs{
		Edges: []graph.Edge{{From: "A", To: "B"}, {From: "B", To: "C"}},
		Attrs: attrs,
	}, nil, nil)
	require.NoError(t, err)

	ex := nodeexec.New(nil, nil)
	sched, err := dataflow.New(ex, scheduler.Config{}, dataflow.SingleThreaded, nil)
	require.NoError(t, err)

	results, err := sched.Run(context.Background(), plan)
	require.NoError(t, err)

	var c graph.TaskID
	for id, task := range plan.Tasks {
		if task.NodeID == "C" {
			c = id
		}
	}
	assert.Equal(t, "A_B_C", results[c])
}

func TestUnknownVariantRejected(t *testing.T) {
	ex := nodeexec.New(nil, nil)
	_, err := dataflow.New(ex, scheduler.Config{NumWorkers: 1}, dataflow.Variant("bogus"), nil)
	var cfgErr *scheduler.SchedulerConfigError
	require.ErrorAs(t, err, &cfgErr)
}
