// Package scheduler defines the shared scheduler abstraction and the
// TaskExecutionError/SchedulerConfigError error kinds raised by the two
// concrete backends in internal/scheduler/workerpool and
// internal/scheduler/dataflow.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/dagrunner/dagrunner-go/internal/graph"
	"github.com/dagrunner/dagrunner-go/internal/metrics"
	"github.com/dagrunner/dagrunner-go/internal/nodeexec"
	"github.com/dagrunner/dagrunner-go/internal/unit"
)

// NodeRunner is how a scheduler invokes a single task's unit; it is the
// scheduler-facing narrowing of nodeexec.Executor.
type NodeRunner interface {
	Invoke(ctx context.Context, rawInputs []any, descriptor unit.Descriptor, commonParams, properties map[string]any, nodeID string) (nodeexec.Result, error)
}

// Scheduler runs a compiled TaskPlan to completion.
type Scheduler interface {
	// Run executes every task in plan, feeding each task's positional
	// inputs from its predecessors' results, and returns the map of
	// TaskID to result value for the results still held when the run
	// ends: a scheduler may drop a result once every successor has
	// consumed it.
	Run(ctx context.Context, plan *graph.TaskPlan) (map[graph.TaskID]any, error)

	// Close releases the scheduler's resources (worker pool, process
	// handles). Safe to call multiple times.
	Close() error
}

// Config is the subset of run-coordinator options a scheduler constructor
// needs.
type Config struct {
	NumWorkers   int
	FailFast     bool
	PollInterval time.Duration
	CommonParams map[string]any
	Metrics      *metrics.Recorder
}

// DefaultPollInterval is the default Config.PollInterval. Neither scheduler
// in this module reads PollInterval: both receive task completions directly
// from their completion channel instead of polling.
const DefaultPollInterval = 500 * time.Millisecond

// SchedulerConfigError reports an unknown backend name or a non-positive
// worker count.
type SchedulerConfigError struct {
	Msg string
}

func (e *SchedulerConfigError) Error() string { return "scheduler config: " + e.Msg }

// TaskExecutionError reports a scheduler-observed task failure, wrapping the
// inner UnitInitError/UnitCallError.
type TaskExecutionError struct {
	TaskID            graph.TaskID
	DescriptorSummary string
	Cause             error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %s (%s) failed: %v", e.TaskID, e.DescriptorSummary, e.Cause)
}

func (e *TaskExecutionError) Unwrap() error { return e.Cause }

// ValidateConfig rejects a non-positive worker count.
func ValidateConfig(cfg Config) error {
	if cfg.NumWorkers <= 0 {
		return &SchedulerConfigError{Msg: fmt.Sprintf("numWorkers must be positive, got %d", cfg.NumWorkers)}
	}
	return nil
}
