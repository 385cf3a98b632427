// Package unit defines the call-descriptor contract: how a processing Unit
// is named, constructed and invoked. A Unit is either a direct Go value
// (an Invocable, or a Constructor that produces one) or a dotted-path string
// resolved at execution time through a Registry (see internal/registry).
package unit

import (
	"context"
	"fmt"
)

// Args is the materialised argument set passed to an invocable: the ordered
// predecessor results (after token filtering) plus the merged parameter map.
type Args struct {
	Positional []any
	Params     map[string]any
}

// Invocable is anything the node executor can call directly.
type Invocable interface {
	Call(ctx context.Context, args Args) (any, error)
}

// Func adapts a plain function to Invocable.
type Func func(ctx context.Context, args Args) (any, error)

func (f Func) Call(ctx context.Context, args Args) (any, error) { return f(ctx, args) }

// Constructor produces an Invocable from constructor parameters. A Unit
// satisfying Constructor is a "constructible type" in descriptor-shape-3
// terms: it is built once per node invocation with InitParams, then the
// returned Invocable is called with CallParams.
type Constructor interface {
	New(initParams map[string]any) (Invocable, error)
}

// ConstructorFunc adapts a plain function to Constructor.
type ConstructorFunc func(initParams map[string]any) (Invocable, error)

func (f ConstructorFunc) New(initParams map[string]any) (Invocable, error) { return f(initParams) }

// NodeAware is the capability marker a Unit (Invocable or the Invocable
// returned by a Constructor) implements to opt into receiving the node's
// properties under the "node_properties" call-param key.
type NodeAware interface {
	NodeAware() bool
}

// ParamDeclarer lets a Unit publish the set of parameter names its signature
// accepts, so commonParams restriction only pulls in relevant
// keys. A Unit that does not implement ParamDeclarer is treated as accepting
// every key the caller offers, a permissive default since Go gives no
// reflective signature for an arbitrary map-based invocable.
type ParamDeclarer interface {
	ParamNames() []string
}

// Descriptor is the immutable CallDescriptor: a Unit reference (a Go
// value or a dotted path string, resolved later by a registry) plus its
// constructor and invocation parameter maps.
type Descriptor struct {
	Unit       any
	InitParams map[string]any
	CallParams map[string]any
}

// Call builds descriptor shape 1: `(Unit)`.
func Call(u any) Descriptor { return Descriptor{Unit: u} }

// CallWith builds descriptor shape 2: `(Unit, callParams)`.
func CallWith(u any, callParams map[string]any) Descriptor {
	return Descriptor{Unit: u, CallParams: callParams}
}

// CallConstruct builds descriptor shape 3: `(Unit, initParams, callParams)`,
// valid only when Unit resolves to a Constructor.
func CallConstruct(u any, initParams, callParams map[string]any) Descriptor {
	return Descriptor{Unit: u, InitParams: initParams, CallParams: callParams}
}

// UnitName returns a best-effort human-readable name for error messages and
// structured log records.
func (d Descriptor) UnitName() string {
	switch u := d.Unit.(type) {
	case string:
		return u
	case fmt.Stringer:
		return u.String()
	default:
		return fmt.Sprintf("%T", d.Unit)
	}
}

// Resolved is a Descriptor after dotted-path lookup, ready for arity
// validation and invocation.
type Resolved struct {
	Name        string
	Invocable   Invocable
	Constructor Constructor
}

// Registry resolves a dotted-path Unit reference to a Go value. Implemented
// by internal/registry.Registry; kept as a narrow interface here so unit
// does not depend on the concrete registry package.
type Registry interface {
	Lookup(dottedPath string) (any, bool)
}

// Resolve normalises d.Unit into a Resolved, performing dotted-path lookup
// through reg when d.Unit is a string, and validates the descriptor's arity
// against the Unit's kind (InitArityError).
func Resolve(d Descriptor, reg Registry) (Resolved, error) {
	value := d.Unit
	if path, ok := value.(string); ok {
		resolvedValue, found := reg.Lookup(path)
		if !found {
			return Resolved{}, fmt.Errorf("unit: dotted path %q not found in registry", path)
		}
		value = resolvedValue
	}

	name := d.UnitName()

	if ctor, ok := value.(Constructor); ok {
		return Resolved{Name: name, Constructor: ctor}, nil
	}

	if inv, ok := value.(Invocable); ok {
		if d.InitParams != nil {
			return Resolved{}, &InitArityError{
				UnitName: name,
				Arity:    3,
				Reason:   "initParams supplied but unit is a plain invocable, not a constructible type",
			}
		}
		return Resolved{Name: name, Invocable: inv}, nil
	}

	return Resolved{}, &InitArityError{
		UnitName: name,
		Arity:    arityOf(d),
		Reason:   "unit does not implement unit.Invocable or unit.Constructor",
	}
}

func arityOf(d Descriptor) int {
	switch {
	case d.InitParams != nil:
		return 3
	case d.CallParams != nil:
		return 2
	default:
		return 1
	}
}

// InitArityError reports a CallDescriptor whose tuple arity is incompatible
// with its Unit's kind.
type InitArityError struct {
	UnitName string
	Arity    int
	Reason   string
}

func (e *InitArityError) Error() string {
	return fmt.Sprintf("unit %q: incompatible call-descriptor arity (%d): %s", e.UnitName, e.Arity, e.Reason)
}

// RestrictAndMerge returns the subset of src whose keys are accepted by
// decl, merged so that the caller-pinned dst wins on collision. Used by
// nodeexec to implement "commonParams restricted to signature, overriding
// only unpinned keys".
func RestrictAndMerge(dst map[string]any, src map[string]any, decl ParamDeclarer) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}

	var accepted map[string]struct{}
	if decl != nil {
		names := decl.ParamNames()
		accepted = make(map[string]struct{}, len(names))
		for _, n := range names {
			accepted[n] = struct{}{}
		}
	}

	for k, v := range src {
		if accepted != nil {
			if _, ok := accepted[k]; !ok {
				continue
			}
		}
		if _, pinned := dst[k]; pinned {
			continue
		}
		out[k] = v
	}
	return out
}

// RestrictAndOverride returns dst merged with the subset of src accepted by
// decl, with src winning on collision. Used for the constructor-parameter
// merge, where commonParams overrides the descriptor's own
// initParams rather than only filling gaps.
func RestrictAndOverride(dst map[string]any, src map[string]any, decl ParamDeclarer) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}

	var accepted map[string]struct{}
	if decl != nil {
		names := decl.ParamNames()
		accepted = make(map[string]struct{}, len(names))
		for _, n := range names {
			accepted[n] = struct{}{}
		}
	}

	for k, v := range src {
		if accepted != nil {
			if _, ok := accepted[k]; !ok {
				continue
			}
		}
		out[k] = v
	}
	return out
}
