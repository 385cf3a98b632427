package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidGraph and ErrCycleFound are the sentinel kinds wrapped by
// GraphValidationError.
var (
	ErrInvalidGraph = errors.New("invalid graph")
	ErrCycleFound   = errors.New("cycle detected")
)

// GraphValidationError reports a compiler-time rejection: cycles, a missing
// "call" attribute, a self-edge, or a malformed (edges, attrs) pair.
type GraphValidationError struct {
	Kind error
	Msg  string
}

func (e *GraphValidationError) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphValidationError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphValidationError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []NodeID) error {
	msg := "cycle"
	if len(path) > 0 {
		names := make([]string, len(path))
		for i, n := range path {
			names[i] = string(n)
		}
		msg = "cycle: " + strings.Join(names, " -> ")
	}
	return &GraphValidationError{Kind: ErrCycleFound, Msg: msg}
}
