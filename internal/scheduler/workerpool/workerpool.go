// Package workerpool implements the dependency-driven asynchronous
// worker-pool scheduler: a fixed-size pool of goroutines driven by a
// dependency-satisfied-ready queue owned by a single coordinator goroutine,
// with fail-fast termination and in-memory result passing.
//
// The dispatch/poll loop is modelled on the asyncmp scheduler this module's
// ancestry used for multiprocess execution: seed the ready frontier with
// predecessor-less tasks, submit to a bounded pool, and on each completion
// extend the frontier with newly-ready successors while evicting consumed
// results from the in-memory result map.
package workerpool

import (
	"container/heap"
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/dagrunner/dagrunner-go/internal/dagrunnerlog"
	"github.com/dagrunner/dagrunner-go/internal/graph"
	"github.com/dagrunner/dagrunner-go/internal/scheduler"
)

// Pool is the worker-pool Scheduler.
type Pool struct {
	runner scheduler.NodeRunner
	cfg    scheduler.Config
	logger dagrunnerlog.Logger
	sem    *semaphore.Weighted
}

// New validates cfg and builds a Pool.
func New(runner scheduler.NodeRunner, cfg scheduler.Config, logger dagrunnerlog.Logger) (*Pool, error) {
	if err := scheduler.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = dagrunnerlog.Nop()
	}
	return &Pool{
		runner: runner,
		cfg:    cfg,
		logger: logger,
		sem:    semaphore.NewWeighted(int64(cfg.NumWorkers)),
	}, nil
}

// Close is a no-op: Pool holds no resources beyond its semaphore, which
// needs no teardown.
func (p *Pool) Close() error { return nil }

type doneMsg struct {
	id    graph.TaskID
	value any
	err   error
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

// Run dispatches every ready task to the bounded pool as its dependencies
// are satisfied. With FailFast it cancels outstanding work on the first
// failure and returns that failure; otherwise it runs until no task can be
// dispatched and returns every failure, joined when there is more than one.
func (p *Pool) Run(ctx context.Context, plan *graph.TaskPlan) (map[graph.TaskID]any, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	indeg := make(map[graph.TaskID]int, plan.Len())
	for _, id := range plan.Order() {
		indeg[id] = len(plan.Tasks[id].PredecessorIDs)
	}

	successorsRemaining := make(map[graph.TaskID]int, plan.Len())
	for _, id := range plan.Order() {
		successorsRemaining[id] = len(plan.Successors(id))
	}

	resultOf := make(map[graph.TaskID]any, plan.Len())
	doneCh := make(chan doneMsg)
	var wg sync.WaitGroup

	dispatch := func(id graph.TaskID) {
		task := plan.Tasks[id]
		inputs := make([]any, len(task.PredecessorIDs))
		for i, pred := range task.PredecessorIDs {
			inputs[i] = resultOf[pred]
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.sem.Acquire(runCtx, 1); err != nil {
				doneCh <- doneMsg{id: id, err: err}
				return
			}
			defer p.sem.Release(1)
			p.cfg.Metrics.WorkerStarted()
			defer p.cfg.Metrics.WorkerFinished()

			res, err := p.runner.Invoke(runCtx, inputs, task.Call, p.cfg.CommonParams, task.Properties, string(task.NodeID))
			if err != nil {
				doneCh <- doneMsg{id: id, err: err}
				return
			}
			doneCh <- doneMsg{id: id, value: res.Value}
		}()
	}

	ready := &taskIDMinHeap{}
	heap.Init(ready)
	for _, id := range plan.Order() {
		if indeg[id] == 0 {
			heap.Push(ready, id)
		}
	}

	inFlight := 0
	for ready.Len() > 0 {
		id := heap.Pop(ready).(graph.TaskID)
		inFlight++
		dispatch(id)
	}

	var errs []error
	failFastTriggered := false

	for inFlight > 0 {
		msg := <-doneCh
		inFlight--

		if msg.err != nil {
			errs = append(errs, &scheduler.TaskExecutionError{
				TaskID:            msg.id,
				DescriptorSummary: plan.Tasks[msg.id].Call.UnitName(),
				Cause:             msg.err,
			})
			if p.cfg.FailFast && !failFastTriggered {
				failFastTriggered = true
				cancel()
			}
			continue
		}

		resultOf[msg.id] = msg.value

		for _, succ := range plan.Successors(msg.id) {
			indeg[succ]--
			if indeg[succ] == 0 {
				inFlight++
				dispatch(succ)
			}
		}

		for _, pred := range plan.Tasks[msg.id].PredecessorIDs {
			successorsRemaining[pred]--
			if successorsRemaining[pred] == 0 {
				delete(resultOf, pred)
			}
		}
	}

	wg.Wait()

	if len(errs) == 0 {
		return resultOf, nil
	}
	if p.cfg.FailFast || len(errs) == 1 {
		return resultOf, errs[0]
	}
	return resultOf, errors.Join(errs...)
}
