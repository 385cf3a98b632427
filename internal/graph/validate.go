package graph

import (
	"container/heap"
	"sort"
)

type taskIDMinHeap []TaskID

func (h taskIDMinHeap) Len() int            { return len(h) }
func (h taskIDMinHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h taskIDMinHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *taskIDMinHeap) Push(x any)         { *h = append(*h, x.(TaskID)) }
func (h *taskIDMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// validateAcyclic proves the plan has no cycles using Kahn's algorithm,
// ported from the dependency-graph cycle check used elsewhere in this
// codebase's ancestry: compute in-degree, repeatedly remove zero-in-degree
// nodes in deterministic (sorted TaskID) order, and fail if any node is left
// over once the frontier is exhausted.
func validateAcyclic(p *TaskPlan) error {
	order := topoOrder(p)
	if len(order) == len(p.Tasks) {
		return nil
	}
	return cycleError(findCycle(p))
}

func topoOrder(p *TaskPlan) []TaskID {
	indeg := make(map[TaskID]int, len(p.Tasks))
	for id, task := range p.Tasks {
		indeg[id] = len(task.PredecessorIDs)
	}

	ready := &taskIDMinHeap{}
	heap.Init(ready)
	for id, d := range indeg {
		if d == 0 {
			heap.Push(ready, id)
		}
	}

	out := make([]TaskID, 0, len(p.Tasks))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(TaskID)
		out = append(out, id)

		for _, succ := range p.successors[id] {
			indeg[succ]--
			if indeg[succ] == 0 {
				heap.Push(ready, succ)
			}
		}
	}
	return out
}

// findCycle performs a deterministic DFS over sorted TaskIDs to extract one
// cycle's NodeID path for the error message.
func findCycle(p *TaskPlan) []NodeID {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	ids := make([]TaskID, 0, len(p.Tasks))
	for id := range p.Tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	color := make(map[TaskID]int, len(ids))
	parent := make(map[TaskID]TaskID)

	var cycle []TaskID
	var dfs func(u TaskID) bool
	dfs = func(u TaskID) bool {
		color[u] = gray
		succs := append([]TaskID(nil), p.successors[u]...)
		sort.Slice(succs, func(i, j int) bool { return succs[i] < succs[j] })
		for _, v := range succs {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				cycle = append(cycle, v)
				cur := u
				for cur != v {
					cycle = append(cycle, cur)
					p, ok := parent[cur]
					if !ok {
						break
					}
					cur = p
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for _, id := range ids {
		if color[id] == white {
			if dfs(id) {
				break
			}
		}
	}

	if len(cycle) == 0 {
		return nil
	}

	rev := make([]TaskID, len(cycle))
	for i := range cycle {
		rev[i] = cycle[len(cycle)-1-i]
	}

	out := make([]NodeID, 0, len(rev))
	for _, id := range rev {
		out = append(out, p.Tasks[id].NodeID)
	}
	return out
}
