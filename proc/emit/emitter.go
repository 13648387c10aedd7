// Package emit defines the observability events the procedure engine
// produces and the pluggable sinks that receive them.
package emit

// Emitter receives observability events from procedure execution.
//
// Implementations should be:
//   - Non-blocking: never slow down step scheduling
//   - Thread-safe: queued steps emit concurrently
//   - Resilient: a failing backend must not crash the run
//
// Common patterns: buffering (collect and flush in batches), filtering
// (errors only), fan-out to multiple backends.
type Emitter interface {
	// Emit sends one event to the configured backend. Emit must not
	// panic; backend errors are handled internally.
	Emit(event Event)
}

// Multi fans one event out to several emitters in order.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(event Event) {
	for _, e := range m {
		e.Emit(event)
	}
}
