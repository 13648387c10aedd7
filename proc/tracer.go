package proc

import "sync"

// TraceEntry is one immutable record of a completed step: its name, the
// resolved property snapshot at completion time, and the entries of its
// direct children nested beneath it.
type TraceEntry struct {
	Step     string
	Props    map[string]any
	Children []TraceEntry
}

// Tracer records steps in strict completion order. Safe for concurrent
// use: queued siblings complete from multiple goroutines.
type Tracer struct {
	mu      sync.Mutex
	entries []TraceEntry
}

// NewTracer creates an empty tracer.
func NewTracer() *Tracer {
	return &Tracer{}
}

// Record appends a completion entry for the given step, snapshotting
// its resolved properties and those of its direct children.
func (t *Tracer) Record(s Step) {
	e := snapshotEntry(s)
	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.mu.Unlock()
}

// Entries returns a copy of the recorded entries in completion order.
func (t *Tracer) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TraceEntry(nil), t.entries...)
}

// Names returns just the step names in completion order, a convenience
// for order assertions.
func (t *Tracer) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Step
	}
	return out
}

// Reset discards all recorded entries.
func (t *Tracer) Reset() {
	t.mu.Lock()
	t.entries = nil
	t.mu.Unlock()
}

func snapshotEntry(s Step) TraceEntry {
	e := TraceEntry{Step: s.Name(), Props: s.Meta().Props()}
	for _, c := range directChildren(s) {
		e.Children = append(e.Children, snapshotEntry(c))
	}
	return e
}
