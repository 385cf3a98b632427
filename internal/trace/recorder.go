package trace

import "sync"

// Recorder is a concurrency-safe in-memory collector. A single mutex guards
// every Record call; this adds contention but doesn't affect the canonical
// trace ordering, since ordering is computed after collection.
type Recorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Record(event TraceEvent) {
	if r == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Snapshot returns a point-in-time copy of all recorded events.
func (r *Recorder) Snapshot() []TraceEvent {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Trace builds an ExecutionTrace from the currently recorded events.
// The returned trace is independent from the recorder (events are copied).
func (r *Recorder) Trace(graphHash string) ExecutionTrace {
	tr := ExecutionTrace{GraphHash: graphHash}
	tr.Events = r.Snapshot()
	tr.Canonicalize()
	return tr
}
