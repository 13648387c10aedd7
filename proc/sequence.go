package proc

// SequenceStep is the plain composite: a named container whose
// children are exactly the steps it was built with. Domain composites
// usually derive their children from properties; SequenceStep covers
// scripting, tests and grouping steps under a shared lock set.
type SequenceStep struct {
	meta     *Meta
	name     string
	children []Step
	locks    []string
}

// NewSequence creates a composite over the given children.
func NewSequence(name string, children ...Step) *SequenceStep {
	s := &SequenceStep{meta: NewMeta(), name: name, children: children}
	adopt(s, children)
	return s
}

// WithLocks declares locks held over the whole subtree for the
// duration of the sequence. Chainable, construction only.
func (s *SequenceStep) WithLocks(names ...string) *SequenceStep {
	s.locks = names
	return s
}

// Name implements Step.
func (s *SequenceStep) Name() string { return s.name }

// Meta implements Step.
func (s *SequenceStep) Meta() *Meta { return s.meta }

// Clone implements Step.
func (s *SequenceStep) Clone() Step {
	children := make([]Step, len(s.children))
	for i, c := range s.children {
		children[i] = c.Clone()
	}
	clone := NewSequence(s.name, children...)
	clone.meta = s.meta.Clone()
	adopt(clone, children)
	clone.locks = append([]string(nil), s.locks...)
	return clone
}

// Children implements Composite.
func (s *SequenceStep) Children() []Step { return s.children }

// Locks implements Locker.
func (s *SequenceStep) Locks(Controller) []string { return s.locks }
