package graph

import (
	"context"
	"sort"

	"github.com/dagrunner/dagrunner-go/internal/unit"
)

// sinkUnit is a no-op Unit: it discards its inputs and returns nil.
// Used only for the synthetic sink nodes InjectSinks adds.
var sinkUnit = unit.Func(func(_ context.Context, _ unit.Args) (any, error) { return nil, nil })

const sinkPrefix = "__dagrunner_sink__"

// InjectSinks returns a copy of plan with one no-op sink task added per
// branch that has no successor, plus (if there is more than one such
// branch) a single global sink depending on all per-branch sinks.
// This gives the dataflow scheduler a single terminal task whose
// evaluation transitively forces the whole plan.
func InjectSinks(plan *TaskPlan) (*TaskPlan, error) {
	var terminals []TaskID
	for _, id := range plan.order {
		if len(plan.successors[id]) == 0 {
			terminals = append(terminals, id)
		}
	}
	sort.Slice(terminals, func(i, j int) bool { return terminals[i] < terminals[j] })

	if len(terminals) == 0 {
		return plan, nil
	}

	out := &TaskPlan{
		Tasks:      make(map[TaskID]*Task, len(plan.Tasks)+len(terminals)+1),
		successors: make(map[TaskID][]TaskID, len(plan.Tasks)+len(terminals)+1),
		order:      append([]TaskID(nil), plan.order...),
	}
	for id, t := range plan.Tasks {
		out.Tasks[id] = t
	}
	for id, succs := range plan.successors {
		out.successors[id] = append([]TaskID(nil), succs...)
	}

	branchSinks := make([]TaskID, 0, len(terminals))
	for _, terminal := range terminals {
		sinkID := fingerprint(NodeID(sinkPrefix + string(terminal)))
		out.Tasks[sinkID] = &Task{
			TaskID:         sinkID,
			NodeID:         NodeID(sinkPrefix + string(terminal)),
			PredecessorIDs: []TaskID{terminal},
			Call:           unit.Call(sinkUnit),
			Properties:     map[string]any{"node_id": string(sinkPrefix + string(terminal))},
		}
		out.successors[terminal] = append(out.successors[terminal], sinkID)
		out.order = append(out.order, sinkID)
		branchSinks = append(branchSinks, sinkID)
	}

	if len(branchSinks) > 1 {
		globalID := fingerprint(NodeID(sinkPrefix + "global"))
		out.Tasks[globalID] = &Task{
			TaskID:         globalID,
			NodeID:         NodeID(sinkPrefix + "global"),
			PredecessorIDs: append([]TaskID(nil), branchSinks...),
			Call:           unit.Call(sinkUnit),
			Properties:     map[string]any{"node_id": sinkPrefix + "global"},
		}
		for _, b := range branchSinks {
			out.successors[b] = append(out.successors[b], globalID)
		}
		out.order = append(out.order, globalID)
	}

	return out, nil
}

// TerminalTaskID returns the single forced-terminal TaskID a scheduler
// should wait on, after InjectSinks has run. It is the global sink if more
// than one branch sink exists, otherwise the sole branch sink.
func TerminalTaskID(plan *TaskPlan) (TaskID, bool) {
	for _, id := range plan.order {
		task := plan.Tasks[id]
		if task.NodeID == NodeID(sinkPrefix+"global") {
			return id, true
		}
	}
	var sole TaskID
	count := 0
	for _, id := range plan.order {
		task := plan.Tasks[id]
		if len(task.NodeID) > len(sinkPrefix) && string(task.NodeID[:len(sinkPrefix)]) == sinkPrefix {
			sole = id
			count++
		}
	}
	if count == 1 {
		return sole, true
	}
	return "", false
}
