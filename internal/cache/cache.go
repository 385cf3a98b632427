// Package cache implements the cache/skip filter: it elides tasks
// whose persisted artifact is newer than every predecessor's artifact.
package cache

import (
	"container/heap"
	"time"

	"github.com/dagrunner/dagrunner-go/internal/graph"
)

// Store is the external-collaborator interface: given a TaskID, report
// whether an artifact exists and its mtime. The artifact's body is opaque to
// the core; only existence and freshness matter here.
type Store interface {
	Stat(taskID graph.TaskID) (mtime time.Time, exists bool, err error)
}

// Filter returns a copy of plan with every skippable task removed.
// A task is skippable iff its own artifact exists and, for every
// predecessor, either that predecessor's artifact is missing (treated as
// "no newer input") or is no newer than the task's own artifact. The moment
// a task cannot be skipped, it and all its transitive successors are marked
// not-skip even if individually skippable, preserving downstream
// correctness.
func Filter(plan *graph.TaskPlan, store Store) (*graph.TaskPlan, error) {
	mtimes := make(map[graph.TaskID]time.Time, plan.Len())
	exists := make(map[graph.TaskID]bool, plan.Len())
	for _, id := range plan.Order() {
		mtime, ok, err := store.Stat(id)
		if err != nil {
			return nil, err
		}
		mtimes[id] = mtime
		exists[id] = ok
	}

	notSkip := make(map[graph.TaskID]bool, plan.Len())

	var roots []graph.TaskID
	for _, id := range plan.Order() {
		if len(plan.Tasks[id].PredecessorIDs) == 0 {
			roots = append(roots, id)
		}
	}

	h := &taskIDMinHeap{}
	heap.Init(h)
	seeded := make(map[graph.TaskID]bool, len(roots))
	for _, r := range roots {
		heap.Push(h, r)
		seeded[r] = true
	}

	visited := make(map[graph.TaskID]bool, plan.Len())
	for h.Len() > 0 {
		id := heap.Pop(h).(graph.TaskID)
		if visited[id] {
			continue
		}
		visited[id] = true

		if !skippable(plan, id, mtimes, exists, notSkip) {
			markNotSkipTransitively(plan, id, notSkip)
		}

		for _, succ := range plan.Successors(id) {
			if !seeded[succ] {
				seeded[succ] = true
				heap.Push(h, succ)
			}
		}
	}

	prunedTasks := make(map[graph.TaskID]*graph.Task)
	for _, id := range plan.Order() {
		if notSkip[id] {
			prunedTasks[id] = plan.Tasks[id]
		}
	}
	for id, task := range prunedTasks {
		filteredPreds := make([]graph.TaskID, 0, len(task.PredecessorIDs))
		for _, p := range task.PredecessorIDs {
			if _, ok := prunedTasks[p]; ok {
				filteredPreds = append(filteredPreds, p)
			}
		}
		clone := *task
		clone.PredecessorIDs = filteredPreds
		prunedTasks[id] = &clone
	}

	return graph.RebuildFromTasks(prunedTasks), nil
}

func skippable(plan *graph.TaskPlan, id graph.TaskID, mtimes map[graph.TaskID]time.Time, exists map[graph.TaskID]bool, notSkip map[graph.TaskID]bool) bool {
	if notSkip[id] {
		return false
	}
	if !exists[id] {
		return false
	}
	task := plan.Tasks[id]
	for _, pred := range task.PredecessorIDs {
		if notSkip[pred] {
			return false
		}
		if !exists[pred] {
			continue // missing predecessor artifact: treated as no-newer-input
		}
		if mtimes[pred].After(mtimes[id]) {
			return false
		}
	}
	return true
}

func markNotSkipTransitively(plan *graph.TaskPlan, start graph.TaskID, notSkip map[graph.TaskID]bool) {
	h := &taskIDMinHeap{}
	heap.Init(h)
	heap.Push(h, start)
	seen := map[graph.TaskID]bool{start: true}

	for h.Len() > 0 {
		id := heap.Pop(h).(graph.TaskID)
		notSkip[id] = true
		for _, succ := range plan.Successors(id) {
			if !seen[succ] {
				seen[succ] = true
				heap.Push(h, succ)
			}
		}
	}
}

type taskIDMinHeap []graph.TaskID

func (h taskIDMinHeap) Len() int           { return len(h) }
func (h taskIDMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h taskIDMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskIDMinHeap) Push(x any)        { *h = append(*h, x.(graph.TaskID)) }
func (h *taskIDMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
