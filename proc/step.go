package proc

import (
	"context"
	"reflect"

	"github.com/google/uuid"
)

// PropKind classifies a step property for validation and formatting.
//
// Vessel and Reagent properties are resolved against the procedure's
// declaration sections during compilation; a reference to an undeclared
// id is a DeclarationError. The remaining kinds exist so tools (tracer
// output, human-readable generation) can format values sensibly.
type PropKind int

const (
	KindString PropKind = iota
	KindNumber
	KindBool
	KindDuration
	KindUnit
	KindVessel
	KindReagent
	KindSteps
)

// Meta holds the state every step carries regardless of variant: a
// unique id, the property bag, the scheduling queue tag and the parent
// back-reference. Step implementations embed a *Meta and expose it via
// the Step interface.
//
// The parent reference is non-owning: it is set by the engine when a
// step is adopted as a child and is only ever walked upward (for
// ancestor-held lock computation). The step tree itself owns children
// through the usual slice references, so no cycles are created.
type Meta struct {
	id     string
	queue  string
	parent Step

	props    map[string]any
	kinds    map[string]PropKind
	internal map[string]bool

	compiled bool

	// resume makes a dynamic step's next execution skip its start
	// phase. Cleared when the execution begins.
	resume bool

	// startBlock caches a dynamic step's compiled start block. Only
	// populated for steps implementing Dynamic.
	startBlock []Step

	// childSnapshot / children memoize a composite's derived child list
	// keyed by the property values at derivation time.
	childSnapshot map[string]any
	children      []Step
}

// NewMeta creates a Meta with a fresh unique id and an empty property
// bag. Queue is unset, meaning the step schedules as a barrier.
func NewMeta() *Meta {
	return &Meta{
		id:       uuid.NewString(),
		props:    make(map[string]any),
		kinds:    make(map[string]PropKind),
		internal: make(map[string]bool),
	}
}

// ID returns the step's unique identifier.
func (m *Meta) ID() string { return m.id }

// Queue returns the scheduling queue tag. The empty string means the
// step is unqueued and acts as a barrier across all queues.
func (m *Meta) Queue() string { return m.queue }

// SetQueue assigns the scheduling queue tag.
func (m *Meta) SetQueue(q string) { m.queue = q }

// Parent returns the step this step is a child of, or nil for roots.
func (m *Meta) Parent() Step { return m.parent }

// Compiled reports whether graph-derived properties have been resolved.
func (m *Meta) Compiled() bool { return m.compiled }

// Declare registers a property with its kind and initial value. Kinds
// drive declaration validation: Vessel and Reagent properties must
// resolve against the procedure's declaration sections.
func (m *Meta) Declare(name string, kind PropKind, value any) {
	m.kinds[name] = kind
	m.props[name] = value
}

// DeclareInternal registers a graph-derived property. Internal
// properties are resolved during compilation and must not be written by
// ordinary step code once the step is compiled.
func (m *Meta) DeclareInternal(name string, kind PropKind, value any) {
	m.Declare(name, kind, value)
	m.internal[name] = true
}

// Set writes an ordinary property value. Writing an internal property
// after compilation returns a StateError; only the compilation phase
// (SetInternal) may touch graph-derived state on a compiled step.
func (m *Meta) Set(name string, value any) error {
	if m.compiled && m.internal[name] {
		return &StateError{
			Message: "internal property " + name + " is frozen after compilation",
			Code:    CodeInternalPropFrozen,
		}
	}
	m.props[name] = value
	return nil
}

// SetInternal writes a graph-derived property. Called from OnCompile
// implementations; bypasses the frozen-after-compile guard.
func (m *Meta) SetInternal(name string, value any) {
	m.internal[name] = true
	m.props[name] = value
}

// Get returns a property value and whether it is present.
func (m *Meta) Get(name string) (any, bool) {
	v, ok := m.props[name]
	return v, ok
}

// GetString returns a string property, or "" if absent or not a string.
func (m *Meta) GetString(name string) string {
	if v, ok := m.props[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Kind returns the declared kind of a property.
func (m *Meta) Kind(name string) (PropKind, bool) {
	k, ok := m.kinds[name]
	return k, ok
}

// Props returns a snapshot copy of the property bag. Mutating the
// returned map does not affect the step.
func (m *Meta) Props() map[string]any {
	out := make(map[string]any, len(m.props))
	for k, v := range m.props {
		out[k] = v
	}
	return out
}

// Clone returns a copy of the Meta with a fresh id and no parent. The
// property bag is copied so template instantiation (Repeat) never
// shares mutable state between iterations.
func (m *Meta) Clone() *Meta {
	c := NewMeta()
	c.queue = m.queue
	c.compiled = m.compiled
	for k, v := range m.props {
		c.props[k] = v
	}
	for k, v := range m.kinds {
		c.kinds[k] = v
	}
	for k, v := range m.internal {
		c.internal[k] = v
	}
	return c
}

// Step is one unit of procedure. Every step is exactly one of the
// closed variant set: a Leaf (executes an action), a Composite (derives
// a child list from its properties), a Dynamic (feedback-driven phase
// loop) or an Async (*AsyncStep, independent thread of control). The
// executor dispatches on these capabilities, never on concrete domain
// types.
type Step interface {
	// Name identifies the step kind for logging, tracing and plan
	// snapshots (e.g. "Add", "Repeat", "Wait").
	Name() string

	// Meta returns the step's shared state: id, queue tag, properties
	// and parent back-reference.
	Meta() *Meta

	// Clone returns a fresh instance of the step built from the same
	// template, with copied properties and a new id. Repeat uses Clone
	// to re-instantiate its children each iteration so no instance is
	// mutated across iterations.
	Clone() Step
}

// Leaf is a step with no children: a single action executed against the
// platform controller. Execute returns the continuation signal; a
// returned error is an execution-time failure and aborts the run after
// held locks are released.
type Leaf interface {
	Step

	// Execute performs the leaf action. ctx is cancelled when a sibling
	// signals stop or fails; long-running actions should honour it at
	// natural boundaries but are never forcibly preempted.
	Execute(ctx context.Context, c Controller) (Signal, error)

	// Locks returns the names of the resource locks the action needs.
	// Locks already held by an ancestor are not re-acquired.
	Locks(c Controller) []string
}

// Composite is a step whose behaviour is entirely delegated to a child
// list derived from its current properties. Children must be a pure
// function of the property bag: the engine memoizes the derivation and
// only re-invokes it when a property changes.
type Composite interface {
	Step

	// Children derives the child steps from the current properties.
	// Implementations must not mutate properties here.
	Children() []Step
}

// Dynamic is a stateful step whose continuation is decided at runtime
// from external feedback. The engine runs OnStart once, then OnContinue
// repeatedly until it yields an empty list, then OnFinish, killing any
// spawned async steps afterwards. State lives on the implementing type.
type Dynamic interface {
	Step

	// OnStart returns the block executed once when the step begins.
	OnStart() []Step

	// OnContinue returns the next block of the feedback loop, or an
	// empty list to move on to OnFinish.
	OnContinue() []Step

	// OnFinish returns the block executed once after the loop ends.
	OnFinish() []Step

	// SimulationSteps returns a bounded, statically-known block that
	// stands in for the unbounded loop when the controller is in
	// simulation mode, so dry-run validation terminates.
	SimulationSteps() []Step
}

// Monitor marks a leaf as feedback-driven: its Execute returns Done
// once the monitored threshold is satisfied, and Continue before that.
// Open-ended Repeat steps terminate when every monitor leaf in a batch
// reports Done.
//
// Monitor is a marker method; implementations leave it empty.
type Monitor interface {
	Leaf
	Monitor()
}

// Compilable is implemented by steps with graph-derived internal
// properties. OnCompile is invoked once per step during the compile
// phase, bottom-up.
type Compilable interface {
	OnCompile(g *Graph) error
}

// Checker is implemented by steps that carry structural validity
// checks. The executor runs every returned Check after compilation and
// turns failures into step-attributed ConfigErrors.
type Checker interface {
	SanityChecks(g *Graph) []Check
}

// Check is a single post-compile validity assertion.
type Check struct {
	// OK is the condition that must hold.
	OK bool

	// Msg describes the violation when OK is false.
	Msg string
}

// Estimator is implemented by steps that know their own duration better
// than the default recursion (sum of children, (0.5, 1, 2) for leaves).
type Estimator interface {
	Duration(g *Graph) Estimate
}

// Consumer is implemented by steps that consume reagents. The default
// recursion sums child consumption and reports nothing for plain
// leaves.
type Consumer interface {
	ReagentsConsumed(g *Graph) map[string]float64
}

// Scalable is implemented by steps whose quantities can be scaled
// procedure-wide (volumes, masses). Procedure.Scale walks the tree and
// invokes it where present.
type Scalable interface {
	Scale(factor float64)
}

// FuncStep adapts a plain function to the Leaf interface, the way a
// handler func adapts to an interface elsewhere. Used heavily in tests
// and handy for quick scripting of procedures.
type FuncStep struct {
	meta  *Meta
	name  string
	locks []string
	fn    func(ctx context.Context, c Controller) (Signal, error)
}

// NewFuncStep creates a leaf from a function. locks lists the resource
// locks the action needs; may be nil.
func NewFuncStep(name string, locks []string, fn func(ctx context.Context, c Controller) (Signal, error)) *FuncStep {
	return &FuncStep{meta: NewMeta(), name: name, locks: locks, fn: fn}
}

// Name implements Step.
func (f *FuncStep) Name() string { return f.name }

// Meta implements Step.
func (f *FuncStep) Meta() *Meta { return f.meta }

// Clone implements Step.
func (f *FuncStep) Clone() Step {
	return &FuncStep{meta: f.meta.Clone(), name: f.name, locks: append([]string(nil), f.locks...), fn: f.fn}
}

// Locks implements Leaf.
func (f *FuncStep) Locks(Controller) []string { return f.locks }

// Execute implements Leaf.
func (f *FuncStep) Execute(ctx context.Context, c Controller) (Signal, error) {
	if f.fn == nil {
		return Continue, nil
	}
	return f.fn(ctx, c)
}

// Equal reports whether two steps have the same name, the same resolved
// properties and (recursively) equal children. Ids and parents are
// ignored; Equal compares what a step does, not which instance it is.
func Equal(a, b Step) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Name() != b.Name() {
		return false
	}
	ap, bp := a.Meta().Props(), b.Meta().Props()
	if len(ap) != len(bp) {
		return false
	}
	for k, v := range ap {
		bv, ok := bp[k]
		if !ok || !reflect.DeepEqual(bv, v) {
			return false
		}
	}
	ac, bc := directChildren(a), directChildren(b)
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !Equal(ac[i], bc[i]) {
			return false
		}
	}
	return true
}
