// Package nodeexec implements the node-execution contract: resolving a
// call descriptor, applying control-token semantics, injecting common and
// node-aware parameters, invoking the unit, and measuring time/memory.
package nodeexec

import (
	"context"
	"runtime"
	"time"

	"github.com/dagrunner/dagrunner-go/internal/dagrunnerlog"
	"github.com/dagrunner/dagrunner-go/internal/metrics"
	"github.com/dagrunner/dagrunner-go/internal/token"
	"github.com/dagrunner/dagrunner-go/internal/unit"
)

type reentryGuardKey struct{}

// Result is the outcome of a single node invocation: either a value, one of
// the control tokens, or (via the returned error) a failure.
type Result struct {
	Value    any
	Skipped  bool
	Ignored  bool
	Elapsed  time.Duration
	PeakHeap uint64
}

// Executor applies the node-invocation algorithm. It is safe for concurrent use by
// multiple goroutines invoking distinct nodes; a single Executor value
// enforces the re-entrancy guard across all of them via the context it
// hands to each Unit.
type Executor struct {
	Registry unit.Registry
	Logger   dagrunnerlog.Logger
	Metrics  *metrics.Recorder
}

// New builds an Executor. A nil Logger defaults to a no-op sink; a nil
// Metrics recorder simply skips metric emission.
func New(reg unit.Registry, logger dagrunnerlog.Logger) *Executor {
	if logger == nil {
		logger = dagrunnerlog.Nop()
	}
	return &Executor{Registry: reg, Logger: logger}
}

// Invoke runs one node: rawInputs are the predecessor results in
// declaration order (possibly containing nil, SKIP, or IGNORE); descriptor
// is the node's CallDescriptor; commonParams are the run-wide defaults;
// properties are the node's own attributes (minus "call"); nodeID
// identifies the node for error messages and logs.
func (e *Executor) Invoke(ctx context.Context, rawInputs []any, descriptor unit.Descriptor, commonParams, properties map[string]any, nodeID string) (Result, error) {
	if _, reentrant := ctx.Value(reentryGuardKey{}).(bool); reentrant {
		return Result{}, &ErrReentrant{UnitName: descriptor.UnitName()}
	}

	positional, verdict := applyTokenSemantics(rawInputs)
	switch verdict {
	case verdictSkip:
		e.Metrics.IncOutcome(metrics.OutcomeSkipped)
		return Result{Value: token.SKIP, Skipped: true}, nil
	case verdictIgnore:
		return Result{Value: token.IGNORE, Ignored: true}, nil
	}

	resolved, err := unit.Resolve(descriptor, e.Registry)
	if err != nil {
		return Result{}, err
	}

	dryRun, _ := commonParams["dryRun"].(bool)

	bound := resolved.Invocable
	if resolved.Constructor != nil {
		var ctorDecl unit.ParamDeclarer
		if d, ok := resolved.Constructor.(unit.ParamDeclarer); ok {
			ctorDecl = d
		}
		initParams := unit.RestrictAndOverride(descriptor.InitParams, commonParams, ctorDecl)

		instance, ctorErr := resolved.Constructor.New(initParams)
		if ctorErr != nil {
			return Result{}, newUnitInitError(resolved.Name, initParams, properties, ctorErr)
		}
		bound = instance
	}

	var invocableDecl unit.ParamDeclarer
	if d, ok := bound.(unit.ParamDeclarer); ok {
		invocableDecl = d
	}
	callParams := unit.RestrictAndMerge(descriptor.CallParams, commonParams, invocableDecl)

	if aware, ok := bound.(unit.NodeAware); ok && aware.NodeAware() {
		callParams["node_properties"] = properties
	}

	if dryRun {
		e.Logger.Info().Str("unit", resolved.Name).Str("node_id", nodeID).Bool("dry_run", true).Msg("node dry-run")
		return Result{Value: nil}, nil
	}

	guardedCtx := context.WithValue(ctx, reentryGuardKey{}, true)

	start := time.Now()
	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	value, callErr := bound.Call(guardedCtx, unit.Args{Positional: positional, Params: callParams})

	elapsed := time.Since(start)
	var after runtime.MemStats
	runtime.ReadMemStats(&after)
	peak := after.HeapAlloc
	if before.HeapAlloc > peak {
		peak = before.HeapAlloc
	}

	outcome := metrics.OutcomeExecuted
	if callErr != nil {
		outcome = metrics.OutcomeFailed
	}
	e.Metrics.ObserveNode(outcome, elapsed)

	e.Logger.Info().
		Str("unit", resolved.Name).
		Str("node_id", nodeID).
		Dur("elapsed", elapsed).
		Int64("peak_heap_bytes", int64(peak)).
		Msg("node invoked")

	if callErr != nil {
		return Result{}, newUnitCallError(resolved.Name, positional, callParams, properties, callErr)
	}

	return Result{Value: value, Elapsed: elapsed, PeakHeap: peak}, nil
}

type tokenVerdict int

const (
	verdictNone tokenVerdict = iota
	verdictSkip
	verdictIgnore
)

// applyTokenSemantics filters nulls, then IGNORE, then checks for SKIP among
// what remains. IGNORE filtering happens before the SKIP check.
func applyTokenSemantics(rawInputs []any) ([]any, tokenVerdict) {
	inputs := make([]any, 0, len(rawInputs))
	for _, v := range rawInputs {
		if v == nil {
			continue
		}
		inputs = append(inputs, v)
	}

	if len(inputs) >= 2 {
		allIgnore := true
		for _, v := range inputs {
			if !token.IsIgnore(v) {
				allIgnore = false
				break
			}
		}
		if allIgnore {
			return nil, verdictIgnore
		}
	}

	filtered := token.FilterIgnore(inputs)

	if token.ContainsSkip(filtered) {
		return nil, verdictSkip
	}

	return filtered, verdictNone
}
