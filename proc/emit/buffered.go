package emit

import "sync"

// BufferedEmitter stores events in memory, organized by run id. Meant
// for tests and post-run analysis; everything stays in memory, so long
// production runs want a persistent backend instead.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// HistoryFilter selects events from a run's history. Empty fields
// match everything; set fields combine with AND.
type HistoryFilter struct {
	// Step filters by step name.
	Step string

	// Msg filters by event message.
	Msg string
}

// NewBufferedEmitter creates an empty buffer.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

// Emit stores the event.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	b.events[event.RunID] = append(b.events[event.RunID], event)
	b.mu.Unlock()
}

// History returns a copy of the events recorded for a run, in emission
// order.
func (b *BufferedEmitter) History(runID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Event(nil), b.events[runID]...)
}

// HistoryWithFilter returns the run's events matching the filter.
func (b *BufferedEmitter) HistoryWithFilter(runID string, f HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Event
	for _, e := range b.events[runID] {
		if f.Step != "" && e.Step != f.Step {
			continue
		}
		if f.Msg != "" && e.Msg != f.Msg {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Clear drops the events of one run.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	delete(b.events, runID)
	b.mu.Unlock()
}

// ClearAll drops everything.
func (b *BufferedEmitter) ClearAll() {
	b.mu.Lock()
	b.events = make(map[string][]Event)
	b.mu.Unlock()
}
