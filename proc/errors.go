package proc

import (
	"errors"
	"fmt"
)

// Error codes attached to the structured error types. Codes are stable
// machine-readable identifiers; messages are for humans.
const (
	CodeNotCompiled        = "NOT_COMPILED"
	CodeAlreadyCompiled    = "ALREADY_COMPILED"
	CodeGraphHashMismatch  = "GRAPH_HASH_MISMATCH"
	CodeInternalPropFrozen = "INTERNAL_PROP_FROZEN"
	CodePlanShapeMismatch  = "PLAN_SHAPE_MISMATCH"
	CodeSanityCheckFailed  = "SANITY_CHECK_FAILED"

	CodeUndeclaredVessel  = "UNDECLARED_VESSEL"
	CodeUndeclaredReagent = "UNDECLARED_REAGENT"
)

// ErrNotCompiled is returned when execution, duration estimation or
// reagent accounting is requested before Compile has run.
var ErrNotCompiled = errors.New("procedure has not been compiled")

// ErrGraphMismatch is returned when a compiled plan is executed against
// a resource graph whose content hash differs from the one it was
// compiled with. The plan is never silently recompiled.
var ErrGraphMismatch = errors.New("graph hash does not match compiled plan")

// ConfigError reports an invalid step configuration: mutually exclusive
// options set together, a failed sanity check, a Repeat with no
// children. Raised at validation time, fatal, never retried.
type ConfigError struct {
	// Step names the offending step.
	Step string

	// Message is the human-readable description.
	Message string

	// Code is the machine-readable identifier.
	Code string
}

func (e *ConfigError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: step %s: %s", e.Code, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// DeclarationError reports a reference to an undeclared vessel or
// reagent. Raised during validation, fatal.
type DeclarationError struct {
	// Step names the step holding the dangling reference.
	Step string

	// Prop is the property holding the reference.
	Prop string

	// Ref is the undeclared id.
	Ref string

	// Code is CodeUndeclaredVessel or CodeUndeclaredReagent.
	Code string
}

func (e *DeclarationError) Error() string {
	return fmt.Sprintf("%s: step %s: property %s references undeclared id %q", e.Code, e.Step, e.Prop, e.Ref)
}

// StateError reports a compilation-state violation: executing before
// compiling, compiling twice, or executing against a different graph
// than the one compiled against. Fatal, never silently recovered.
type StateError struct {
	Message string
	Code    string
}

func (e *StateError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// Unwrap maps well-known state codes onto their sentinel errors so
// callers can match with errors.Is.
func (e *StateError) Unwrap() error {
	switch e.Code {
	case CodeNotCompiled:
		return ErrNotCompiled
	case CodeGraphHashMismatch:
		return ErrGraphMismatch
	}
	return nil
}

// StepError wraps an execution-time failure of a leaf action with the
// step's name and resolved properties at the point of failure. The
// engine releases held locks before letting a StepError propagate; it
// never retries (retry, if wanted, belongs to a higher-level Repeat
// with a monitor).
type StepError struct {
	// Step names the failing step.
	Step string

	// Path is the step-index path from the root, e.g. "2.0.1".
	Path string

	// Props is the resolved property snapshot at failure time.
	Props map[string]any

	// Err is the underlying failure.
	Err error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (path %s) failed: %v", e.Step, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StepError) Unwrap() error { return e.Err }
