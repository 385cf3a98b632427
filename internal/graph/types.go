// Package graph implements the graph-to-task-plan compiler: it accepts
// a user-supplied DAG in one of several shapes and produces a flat TaskPlan
// keyed by a deterministic fingerprint of each node's identifier.
package graph

import (
	"sort"

	"github.com/dagrunner/dagrunner-go/internal/unit"
)

// NodeID is a user-chosen node identifier, fixed to string: a caller needing
// a richer identifier serializes it to a stable string before building the
// graph.
type NodeID string

// TaskID is the deterministic fingerprint of a NodeID, restricted to a
// primitive string so that schedulers with strict key types remain usable.
type TaskID string

func (t TaskID) String() string { return string(t) }

// Edge is an ordered dependency pair: To depends on From.
type Edge struct {
	From NodeID
	To   NodeID
}

// Attrs is the per-node attribute map. The "call" key is required; every
// other key is a node property.
type Attrs map[string]any

const callKey = "call"

// Task is the compiler's per-node output record.
type Task struct {
	TaskID         TaskID
	NodeID         NodeID
	PredecessorIDs []TaskID
	Call           unit.Descriptor
	Properties     map[string]any
}

// TaskPlan is the flat, scheduler-agnostic output of compilation: a map of
// TaskID to Task plus precomputed successor adjacency (the inverse of each
// Task's PredecessorIDs, needed by every scheduler to find newly-ready work).
type TaskPlan struct {
	Tasks map[TaskID]*Task

	// order is the deterministic declaration order (by NodeID) used
	// wherever a stable iteration order matters (hashing, dummy-sink
	// injection, single-threaded scheduling).
	order []TaskID

	successors map[TaskID][]TaskID
}

// Order returns TaskIDs in deterministic compilation order.
func (p *TaskPlan) Order() []TaskID {
	out := make([]TaskID, len(p.order))
	copy(out, p.order)
	return out
}

// Successors returns the TaskIDs that declare id as a predecessor, in
// deterministic order.
func (p *TaskPlan) Successors(id TaskID) []TaskID {
	out := make([]TaskID, len(p.successors[id]))
	copy(out, p.successors[id])
	return out
}

// Len reports the number of tasks in the plan.
func (p *TaskPlan) Len() int { return len(p.order) }

// RebuildFromTasks constructs a TaskPlan's order and successor adjacency
// from a raw Tasks map, dropping any PredecessorID that no longer appears
// in the map. Used by internal/cache after pruning skippable tasks.
func RebuildFromTasks(tasks map[TaskID]*Task) *TaskPlan {
	order := make([]TaskID, 0, len(tasks))
	for id := range tasks {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	successors := make(map[TaskID][]TaskID, len(tasks))
	for _, id := range order {
		for _, pred := range tasks[id].PredecessorIDs {
			successors[pred] = append(successors[pred], id)
		}
	}
	for id := range successors {
		succs := successors[id]
		sort.Slice(succs, func(i, j int) bool { return succs[i] < succs[j] })
	}

	return &TaskPlan{Tasks: tasks, order: order, successors: successors}
}
