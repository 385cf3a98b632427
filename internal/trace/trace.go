// Package trace is the canonical, deterministic record of a run: an ordered
// list of logical per-task transitions (skipped, executed, failed), hashed
// into a stable, timing-independent fingerprint.
//
// An ExecutionTrace never affects execution: it is populated after the fact
// from the decisions the cache filter and scheduler already made, so two
// runs over the same graph and cache state compare byte-for-byte regardless
// of goroutine scheduling order.
package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ExecutionTrace captures a run's identity (GraphHash) and its ordered
// events.
//
// Invariants:
//   - GraphHash and Events must be present.
//   - Events record logical decisions, never timestamps, pointers, or other
//     runtime-dependent values.
//   - Treat as immutable once Canonicalize has run.
type ExecutionTrace struct {
	GraphHash string
	Events    []TraceEvent
}

// TraceEventKind is the stable, canonical discriminator for TraceEvent. The
// string values are part of the trace's canonical bytes; do not rename.
type TraceEventKind string

const (
	EventTaskInvalidated       TraceEventKind = "TaskInvalidated"
	EventTaskArtifactsRestored TraceEventKind = "TaskArtifactsRestored"
	EventTaskCached            TraceEventKind = "TaskCached"
	EventTaskExecuted          TraceEventKind = "TaskExecuted"
	EventTaskFailed            TraceEventKind = "TaskFailed"
	EventTaskSkipped           TraceEventKind = "TaskSkipped"
)

// TraceEvent is a single logical transition/decision.
//
// Optional fields are normalized on Canonicalize: empty slices become nil
// (and are omitted from JSON), and Artifacts is sorted.
type TraceEvent struct {
	Kind TraceEventKind

	// TaskID identifies the task this event refers to; required.
	TaskID string

	// Reason is a stable, logical reason code (e.g. "InputChanged",
	// "UpstreamFailed"). The set of values is open; producers must keep
	// whatever they emit stable across runs.
	Reason string

	// CauseTaskID records a related upstream task, e.g. the failing
	// upstream task that caused a downstream skip.
	CauseTaskID string

	// Artifacts lists restored artifact identifiers, sorted on
	// canonicalization.
	Artifacts []string
}

// Validate checks basic invariants and returns a descriptive error.
func (t *ExecutionTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.GraphHash == "" {
		return errors.New("graphHash is required")
	}
	for i := range t.Events {
		e := t.Events[i]
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if e.TaskID == "" {
			return fmt.Errorf("events[%d].taskId is required for kind %q", i, e.Kind)
		}
		for j, a := range e.Artifacts {
			if a == "" {
				return fmt.Errorf("events[%d].artifacts[%d] is empty", i, j)
			}
		}
	}
	return nil
}

// Canonicalize normalizes and sorts the trace into its canonical form,
// giving a total order over events independent of execution timing or
// concurrency: primary key TaskID, then event kind, reason, cause, and
// artifact list.
func (t *ExecutionTrace) Canonicalize() {
	if t == nil {
		return
	}
	for i := range t.Events {
		if len(t.Events[i].Artifacts) == 0 {
			t.Events[i].Artifacts = nil
			continue
		}
		art := make([]string, len(t.Events[i].Artifacts))
		copy(art, t.Events[i].Artifacts)
		sort.Strings(art)
		t.Events[i].Artifacts = art
	}

	sort.SliceStable(t.Events, func(i, j int) bool {
		a := t.Events[i]
		b := t.Events[j]

		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		if a.CauseTaskID != b.CauseTaskID {
			return a.CauseTaskID < b.CauseTaskID
		}
		return compareStringSlices(a.Artifacts, b.Artifacts)
	})
}

func kindOrder(k TraceEventKind) int {
	switch k {
	case EventTaskInvalidated:
		return 10
	case EventTaskArtifactsRestored:
		return 20
	case EventTaskCached:
		return 30
	case EventTaskExecuted:
		return 40
	case EventTaskFailed:
		return 50
	case EventTaskSkipped:
		return 60
	default:
		return 1000
	}
}

func compareStringSlices(a, b []string) bool {
	min := len(a)
	if len(b) < min {
		min = len(b)
	}
	for i := 0; i < min; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// CanonicalJSON returns the canonical JSON encoding of the trace. It
// canonicalizes a copy, leaving the receiver's slices untouched.
func (t ExecutionTrace) CanonicalJSON() ([]byte, error) {
	cp := ExecutionTrace{GraphHash: t.GraphHash}
	cp.Events = make([]TraceEvent, len(t.Events))
	copy(cp.Events, t.Events)
	cp.Canonicalize()
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&cp)
}

// Hash returns the deterministic trace hash (sha256 hex) of the canonical
// JSON bytes.
func (t ExecutionTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// MarshalJSON fixes field order and omits absent optional fields so two
// traces with identical content always serialize to identical bytes.
func (t ExecutionTrace) MarshalJSON() ([]byte, error) {
	if t.GraphHash == "" {
		return nil, errors.New("graphHash is required")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')

	buf.WriteString("\"graphHash\":")
	gh, _ := json.Marshal(t.GraphHash)
	buf.Write(gh)
	buf.WriteByte(',')

	buf.WriteString("\"events\":[")
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteByte(']')

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON fixes field order (kind first) and omits empty optional
// fields.
func (e TraceEvent) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var artifacts []string
	if len(e.Artifacts) > 0 {
		artifacts = make([]string, len(e.Artifacts))
		copy(artifacts, e.Artifacts)
		sort.Strings(artifacts)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')

	buf.WriteString("\"kind\":")
	kb, _ := json.Marshal(string(e.Kind))
	buf.Write(kb)

	if e.TaskID != "" {
		buf.WriteByte(',')
		buf.WriteString("\"taskId\":")
		tb, _ := json.Marshal(e.TaskID)
		buf.Write(tb)
	}

	if e.Reason != "" {
		buf.WriteByte(',')
		buf.WriteString("\"reason\":")
		rb, _ := json.Marshal(e.Reason)
		buf.Write(rb)
	}

	if e.CauseTaskID != "" {
		buf.WriteByte(',')
		buf.WriteString("\"causeTaskId\":")
		cb, _ := json.Marshal(e.CauseTaskID)
		buf.Write(cb)
	}

	if len(artifacts) > 0 {
		buf.WriteByte(',')
		buf.WriteString("\"artifacts\":[")
		for i := range artifacts {
			if i > 0 {
				buf.WriteByte(',')
			}
			ab, _ := json.Marshal(artifacts[i])
			buf.Write(ab)
		}
		buf.WriteByte(']')
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
