package main

import (
	"errors"

	"github.com/dagrunner/dagrunner-go/internal/graph"
	"github.com/dagrunner/dagrunner-go/internal/nodeexec"
	"github.com/dagrunner/dagrunner-go/internal/scheduler"
)

// Exit codes per the documented contract: 0 success, 1 a graph or scheduler
// configuration defect, 2 a unit construction or invocation failure, 130 a
// user interrupt (SIGINT, or SIGTERM).
const (
	exitSuccess       = 0
	exitConfigFailure = 1
	exitUnitFailure   = 2
	exitInterrupted   = 130
)

func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}

	var graphErr *graph.GraphValidationError
	if errors.As(err, &graphErr) {
		return exitConfigFailure
	}
	var schedErr *scheduler.SchedulerConfigError
	if errors.As(err, &schedErr) {
		return exitConfigFailure
	}
	var initErr *nodeexec.UnitInitError
	if errors.As(err, &initErr) {
		return exitUnitFailure
	}
	var callErr *nodeexec.UnitCallError
	if errors.As(err, &callErr) {
		return exitUnitFailure
	}
	var execErr *scheduler.TaskExecutionError
	if errors.As(err, &execErr) {
		return exitCodeFor(errors.Unwrap(execErr))
	}
	return exitUnitFailure
}
