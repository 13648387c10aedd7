package emit

// Event is one observability event from procedure execution: a step
// starting, completing, failing, a dynamic phase transition, a lock
// wait, an empty repeat match set.
type Event struct {
	// RunID identifies the execution that emitted this event.
	RunID string

	// Path is the step-index chain from the root, e.g. "2.0.1". Empty
	// for run-level events.
	Path string

	// Step is the step's name ("Add", "Repeat", "Await", ...). Empty
	// for run-level events.
	Step string

	// Msg is a short human-readable description of what happened.
	Msg string

	// Meta carries additional structured data. Common keys:
	//   - "signal": the step's continuation signal
	//   - "error": failure details
	//   - "state": a dynamic step's lifecycle state
	Meta map[string]any
}
