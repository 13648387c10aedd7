// Package proc provides the core execution engine for hierarchical
// laboratory procedures: a tree of steps compiled against a resource
// graph and executed with queue-grouped concurrency, named resource
// locks and cooperative stop propagation.
package proc

// Signal is the tri-state result of executing a step.
//
// Stop and Continue form the ordinary control-flow pair: a step returns
// Continue when the procedure should carry on and Stop to request a
// controlled early termination of the whole run (for example a Confirm
// step the operator declined). Stop is not an error; failures travel on
// the error return alongside the Signal.
//
// Done is a third value reserved for monitor steps: it means "feedback
// threshold satisfied" and is used by open-ended Repeat steps to decide
// when to leave their batch loop. Outside a monitored Repeat, Done is
// treated exactly like Continue.
type Signal int

const (
	// Stop requests controlled termination of the run. Pending sibling
	// tasks are cancelled and the signal propagates to every ancestor.
	Stop Signal = iota

	// Continue means the step completed and execution should proceed.
	Continue

	// Done is returned by monitor steps once their threshold is
	// satisfied. It implies Continue everywhere except inside an
	// open-ended Repeat, which counts Done results to end its loop.
	Done
)

// String returns the signal name for logging.
func (s Signal) String() string {
	switch s {
	case Stop:
		return "stop"
	case Continue:
		return "continue"
	case Done:
		return "done"
	}
	return "unknown"
}
