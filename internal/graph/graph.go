package graph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/dagrunner/dagrunner-go/internal/unit"
)

// Graph is a ready-to-use directed graph object.
type Graph interface {
	Nodes() []NodeID
	Attrs(id NodeID) Attrs
	Predecessors(id NodeID) []NodeID
}

// Factory is a callable producing a Graph, given the run coordinator's
// graphParams.
type Factory func(ctx context.Context, kwargs map[string]any) (Graph, error)

// EdgesAttrs is the `(edges, attrs)` ingestion form.
type EdgesAttrs struct {
	Edges []Edge
	Attrs map[NodeID]Attrs
}

// Registry resolves a dotted-path graph reference the same way unit.Registry
// resolves a Unit reference.
type Registry interface {
	Lookup(dottedPath string) (any, bool)
}

// Input is whatever the run coordinator was handed as the `graph` option:
// a Graph, a Factory, a dotted-path string, or an EdgesAttrs pair.
type Input any

// Compile turns a graph Input into a TaskPlan. kwargs is passed to a Factory
// input (graphParams); reg resolves dotted-path inputs.
func Compile(ctx context.Context, input Input, kwargs map[string]any, reg Registry) (*TaskPlan, error) {
	g, err := resolveGraph(ctx, input, kwargs, reg)
	if err != nil {
		return nil, err
	}
	return compileGraph(g)
}

func resolveGraph(ctx context.Context, input Input, kwargs map[string]any, reg Registry) (Graph, error) {
	switch v := input.(type) {
	case Graph:
		return v, nil
	case Factory:
		return v(ctx, kwargs)
	case func(ctx context.Context, kwargs map[string]any) (Graph, error):
		return Factory(v)(ctx, kwargs)
	case EdgesAttrs:
		return edgesAttrsGraph(v)
	case string:
		if reg == nil {
			return nil, invalidf("dotted-path graph %q given with no registry", v)
		}
		resolved, ok := reg.Lookup(v)
		if !ok {
			return nil, invalidf("dotted path %q not found in registry", v)
		}
		switch r := resolved.(type) {
		case Graph:
			return r, nil
		case func(ctx context.Context, kwargs map[string]any) (Graph, error):
			return Factory(r)(ctx, kwargs)
		default:
			return nil, invalidf("dotted path %q did not resolve to a graph or graph factory", v)
		}
	default:
		return nil, invalidf("unsupported graph input type %T", input)
	}
}

// simpleGraph is the in-memory Graph built from an EdgesAttrs pair.
type simpleGraph struct {
	nodes        []NodeID
	attrs        map[NodeID]Attrs
	predecessors map[NodeID][]NodeID
}

func (g *simpleGraph) Nodes() []NodeID            { return g.nodes }
func (g *simpleGraph) Attrs(id NodeID) Attrs      { return g.attrs[id] }
func (g *simpleGraph) Predecessors(id NodeID) []NodeID { return g.predecessors[id] }

func edgesAttrsGraph(ea EdgesAttrs) (Graph, error) {
	nodeSet := make(map[NodeID]struct{})
	for n := range ea.Attrs {
		nodeSet[n] = struct{}{}
	}
	for _, e := range ea.Edges {
		nodeSet[e.From] = struct{}{}
		nodeSet[e.To] = struct{}{}
	}

	nodes := make([]NodeID, 0, len(nodeSet))
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	// Per-field merge: copy each node's own declared attrs, attrs[node] wins
	// on conflict. Since EdgesAttrs carries attrs as the single source, this
	// degenerates to "use attrs[node], defaulting to empty" (there is no
	// separate node-local field source in this ingestion form).
	attrs := make(map[NodeID]Attrs, len(nodes))
	for _, n := range nodes {
		merged := Attrs{}
		for k, v := range ea.Attrs[n] {
			merged[k] = v
		}
		attrs[n] = merged
	}

	predecessors := make(map[NodeID][]NodeID, len(nodes))
	for _, e := range ea.Edges {
		if e.From == e.To {
			return nil, invalidf("self-edge: %q -> %q", e.From, e.To)
		}
		predecessors[e.To] = append(predecessors[e.To], e.From)
	}
	for n := range predecessors {
		sort.Slice(predecessors[n], func(i, j int) bool { return predecessors[n][i] < predecessors[n][j] })
	}

	return &simpleGraph{nodes: nodes, attrs: attrs, predecessors: predecessors}, nil
}

func fingerprint(id NodeID) TaskID {
	sum := sha256.Sum256([]byte(id))
	return TaskID(hex.EncodeToString(sum[:]))
}

func compileGraph(g Graph) (*TaskPlan, error) {
	nodes := append([]NodeID(nil), g.Nodes()...)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	plan := &TaskPlan{
		Tasks:      make(map[TaskID]*Task, len(nodes)),
		successors: make(map[TaskID][]TaskID, len(nodes)),
	}

	idOf := make(map[NodeID]TaskID, len(nodes))
	for _, n := range nodes {
		idOf[n] = fingerprint(n)
	}

	for _, n := range nodes {
		attrs := g.Attrs(n)
		rawCall, ok := attrs[callKey]
		if !ok {
			return nil, invalidf("node %q has no %q attribute", n, callKey)
		}
		descriptor, ok := rawCall.(unit.Descriptor)
		if !ok {
			return nil, invalidf("node %q %q attribute is not a unit.Descriptor (got %T)", n, callKey, rawCall)
		}

		preds := g.Predecessors(n)
		predIDs := make([]TaskID, 0, len(preds))
		for _, p := range preds {
			if p == n {
				return nil, invalidf("self-edge: %q -> %q", n, n)
			}
			predIDs = append(predIDs, idOf[p])
		}

		properties := make(map[string]any, len(attrs)+1)
		for k, v := range attrs {
			if k == callKey {
				continue
			}
			properties[k] = v
		}
		properties["node_id"] = string(n)

		taskID := idOf[n]
		plan.Tasks[taskID] = &Task{
			TaskID:         taskID,
			NodeID:         n,
			PredecessorIDs: predIDs,
			Call:           descriptor,
			Properties:     properties,
		}
		plan.order = append(plan.order, taskID)

		for _, pid := range predIDs {
			plan.successors[pid] = append(plan.successors[pid], taskID)
		}
	}

	for id := range plan.successors {
		succs := plan.successors[id]
		sort.Slice(succs, func(i, j int) bool { return succs[i] < succs[j] })
	}

	if err := validateAcyclic(plan); err != nil {
		return nil, err
	}

	return plan, nil
}

func init() {
	// Compile-time assertion that Factory satisfies the func signature used
	// in the resolveGraph type switch.
	var _ Factory = func(ctx context.Context, kwargs map[string]any) (Graph, error) { return nil, fmt.Errorf("unreachable") }
}
