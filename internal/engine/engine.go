// Package engine implements the run coordinator: the single entrypoint
// that compiles a graph, applies the cache/skip filter, selects and scopes a
// scheduler, and executes the resulting plan end to end.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"runtime/pprof"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dagrunner/dagrunner-go/internal/cache"
	"github.com/dagrunner/dagrunner-go/internal/dagrunnerlog"
	"github.com/dagrunner/dagrunner-go/internal/graph"
	"github.com/dagrunner/dagrunner-go/internal/metrics"
	"github.com/dagrunner/dagrunner-go/internal/nodeexec"
	"github.com/dagrunner/dagrunner-go/internal/scheduler"
	"github.com/dagrunner/dagrunner-go/internal/scheduler/dataflow"
	"github.com/dagrunner/dagrunner-go/internal/scheduler/workerpool"
	"github.com/dagrunner/dagrunner-go/internal/trace"
	"github.com/dagrunner/dagrunner-go/internal/unit"
)

// SchedulerKind names the backend the run coordinator scopes for a run
// (the "scheduler" option).
type SchedulerKind string

const (
	WorkerPool      SchedulerKind = "worker-pool"
	DataflowThreads SchedulerKind = "threads"
	DataflowProcess SchedulerKind = "processes"
	SingleThreaded  SchedulerKind = "single-threaded"
	// Ray names the distributed backend left unimplemented: a run
	// requesting it fails fast with a SchedulerConfigError rather than
	// silently falling back to an in-process scheduler.
	Ray SchedulerKind = "ray"
	// DataflowDistributed names a multi-machine dataflow backend, also left
	// unimplemented for the same reason as Ray: no Unit has a wire
	// representation that would let it cross a machine boundary.
	DataflowDistributed SchedulerKind = "dataflow-distributed"
)

// RunConfig collects every run-coordinator option.
type RunConfig struct {
	Graph        graph.Input
	GraphParams  map[string]any
	Scheduler    SchedulerKind
	NumWorkers   int
	DryRun       bool
	Verbose      bool
	ProfilerPath string
	CommonParams map[string]any
	CachePath    string
	CacheEnabled bool
	PollInterval time.Duration
	Registry     unit.Registry
	Logger       dagrunnerlog.Logger
	Metrics      *metrics.Recorder
}

// RunResult is what a completed (or failed) run reports back.
type RunResult struct {
	RunID   string
	Results map[graph.TaskID]any
	Skipped int
	Total   int
	Trace   trace.ExecutionTrace
}

// Run executes cfg end to end: compile, cache-filter, scope a scheduler,
// run, propagate the first error.
func Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	runID := uuid.NewString()
	logger := cfg.Logger
	if logger == nil {
		logger = dagrunnerlog.Nop()
	}
	log := logger.With().Str("run_id", runID).Logger()

	if cfg.ProfilerPath != "" {
		f, err := os.Create(cfg.ProfilerPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return nil, err
		}
		defer pprof.StopCPUProfile()
	}

	plan, err := graph.Compile(ctx, cfg.Graph, cfg.GraphParams, registryAdapter{cfg.Registry})
	if err != nil {
		return nil, err
	}
	total := plan.Len()
	graphHash := fingerprintPlan(plan)
	recorder := trace.NewRecorder()

	if cfg.CacheEnabled {
		store := cache.FileStore{Dir: cfg.CachePath}
		filtered, err := cache.Filter(plan, store)
		if err != nil {
			return nil, err
		}
		kept := make(map[graph.TaskID]bool, filtered.Len())
		for _, id := range filtered.Order() {
			kept[id] = true
		}
		for _, id := range plan.Order() {
			if !kept[id] {
				recorder.Record(trace.TraceEvent{Kind: trace.EventTaskSkipped, TaskID: id.String(), Reason: "ArtifactFresh"})
				cfg.Metrics.IncOutcome(metrics.OutcomeCached)
			}
		}
		plan = filtered
	}
	skipped := total - plan.Len()

	executor := nodeexec.New(cfg.Registry, logger)
	if cfg.Metrics != nil {
		executor.Metrics = cfg.Metrics
	}

	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = scheduler.DefaultPollInterval
	}
	commonParams := make(map[string]any, len(cfg.CommonParams)+2)
	for k, v := range cfg.CommonParams {
		commonParams[k] = v
	}
	if cfg.DryRun {
		commonParams["dryRun"] = true
	}
	commonParams["verbose"] = cfg.Verbose
	schedCfg := scheduler.Config{
		NumWorkers:   cfg.NumWorkers,
		PollInterval: pollInterval,
		CommonParams: commonParams,
		Metrics:      cfg.Metrics,
	}

	sched, err := newScheduler(cfg.Scheduler, executor, schedCfg, logger)
	if err != nil {
		return nil, err
	}
	defer sched.Close()

	log.Info().Int("tasks", plan.Len()).Int("skipped", skipped).Msg("run starting")

	results, runErr := sched.Run(ctx, plan)
	if runErr == nil {
		// A scheduler may drop consumed results, so the executed set is the
		// whole (filtered) plan rather than the keys of results.
		for _, id := range plan.Order() {
			recorder.Record(trace.TraceEvent{Kind: trace.EventTaskExecuted, TaskID: id.String()})
		}
	}
	var execErr *scheduler.TaskExecutionError
	if errors.As(runErr, &execErr) {
		recorder.Record(trace.TraceEvent{Kind: trace.EventTaskFailed, TaskID: execErr.TaskID.String(), Reason: execErr.Error()})
	}
	runTrace := recorder.Trace(graphHash)

	if runErr != nil {
		return nil, runErr
	}

	return &RunResult{RunID: runID, Results: results, Skipped: skipped, Total: total, Trace: runTrace}, nil
}

// fingerprintPlan derives a stable identity for plan from its sorted TaskID
// set, independent of compilation or execution order.
func fingerprintPlan(plan *graph.TaskPlan) string {
	ids := make([]string, 0, plan.Len())
	for _, id := range plan.Order() {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, ",")))
	return hex.EncodeToString(sum[:])
}

func newScheduler(kind SchedulerKind, runner scheduler.NodeRunner, cfg scheduler.Config, logger dagrunnerlog.Logger) (scheduler.Scheduler, error) {
	switch kind {
	case "", WorkerPool:
		return workerpool.New(runner, cfg, logger)
	case DataflowThreads:
		return dataflow.New(runner, cfg, dataflow.Threads, logger)
	case DataflowProcess:
		return dataflow.New(runner, cfg, dataflow.Processes, logger)
	case SingleThreaded:
		return dataflow.New(runner, cfg, dataflow.SingleThreaded, logger)
	case Ray:
		return nil, &scheduler.SchedulerConfigError{Msg: "ray scheduler is not implemented"}
	case DataflowDistributed:
		return nil, &scheduler.SchedulerConfigError{Msg: "dataflow-distributed scheduler is not implemented"}
	default:
		return nil, &scheduler.SchedulerConfigError{Msg: fmt.Sprintf("unknown scheduler %q", kind)}
	}
}

// registryAdapter narrows a unit.Registry to graph.Registry, which needs only
// dotted-path lookup of graph factories.
type registryAdapter struct {
	reg unit.Registry
}

func (r registryAdapter) Lookup(path string) (any, bool) {
	if r.reg == nil {
		return nil, false
	}
	return r.reg.Lookup(path)
}
