package nodeexec

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// UnitInitError wraps a failure raised by a Unit's Constructor.
type UnitInitError struct {
	UnitName      string
	InitParams    map[string]any
	NodeProperties map[string]any
	Cause         error
}

func (e *UnitInitError) Error() string {
	return fmt.Sprintf("unit %q: construction failed: %v", e.UnitName, e.Cause)
}

func (e *UnitInitError) Unwrap() error { return e.Cause }

func newUnitInitError(unitName string, initParams, nodeProperties map[string]any, cause error) error {
	return &UnitInitError{
		UnitName:       unitName,
		InitParams:     initParams,
		NodeProperties: nodeProperties,
		Cause:          pkgerrors.WithStack(cause),
	}
}

// UnitCallError wraps a failure raised by invoking a Unit.
type UnitCallError struct {
	UnitName       string
	Args           []any
	CallParams     map[string]any
	NodeProperties map[string]any
	Cause          error
}

func (e *UnitCallError) Error() string {
	return fmt.Sprintf("unit %q: invocation failed: %v", e.UnitName, e.Cause)
}

func (e *UnitCallError) Unwrap() error { return e.Cause }

func newUnitCallError(unitName string, args []any, callParams, nodeProperties map[string]any, cause error) error {
	return &UnitCallError{
		UnitName:       unitName,
		Args:           args,
		CallParams:     callParams,
		NodeProperties: nodeProperties,
		Cause:          pkgerrors.WithStack(cause),
	}
}

// ErrReentrant reports a Unit attempting to invoke the executor from within
// its own invocation: Units must not re-enter the scheduler.
type ErrReentrant struct{ UnitName string }

func (e *ErrReentrant) Error() string {
	return fmt.Sprintf("unit %q attempted to re-enter the node executor", e.UnitName)
}
