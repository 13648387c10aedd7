package proc

import "reflect"

// directChildren returns the step's current child list, memoized for
// composites. Composite derivation must be a pure function of the
// property bag, so the derived list is cached against a snapshot of the
// properties and recomputed only when a property changed. Leaves return
// nil; dynamic steps expose their compiled start block.
func directChildren(s Step) []Step {
	switch v := s.(type) {
	case Composite:
		m := s.Meta()
		props := m.props
		if m.childSnapshot != nil && reflect.DeepEqual(m.childSnapshot, props) {
			return m.children
		}
		children := v.Children()
		adopt(s, children)
		m.children = children
		m.childSnapshot = m.Props()
		return children
	case Dynamic:
		return s.Meta().startBlock
	default:
		return nil
	}
}

// adopt sets the parent back-reference on each child. The reference is
// non-owning; only the parent chain walk (lock inheritance) reads it.
func adopt(parent Step, children []Step) {
	for _, c := range children {
		c.Meta().parent = parent
	}
}

// walkSteps visits s and every descendant depth-first, parents before
// children. Returning false from fn stops the walk.
func walkSteps(s Step, fn func(Step) bool) bool {
	if !fn(s) {
		return false
	}
	for _, c := range directChildren(s) {
		if !walkSteps(c, fn) {
			return false
		}
	}
	return true
}

// compileStep binds a step subtree to the graph bottom-up: children
// first, then the step's own OnCompile hook, then the compiled flag.
func compileStep(s Step, g *Graph) error {
	for _, c := range directChildren(s) {
		if err := compileStep(c, g); err != nil {
			return err
		}
	}
	if c, ok := s.(Compilable); ok {
		if err := c.OnCompile(g); err != nil {
			return err
		}
	}
	s.Meta().compiled = true
	return nil
}

// sanityCheckStep runs the step's own checks and recurses into its
// children, turning the first failed check into a ConfigError.
func sanityCheckStep(s Step, g *Graph) error {
	if c, ok := s.(Checker); ok {
		for _, check := range c.SanityChecks(g) {
			if !check.OK {
				return &ConfigError{
					Step:    s.Name(),
					Message: check.Msg,
					Code:    CodeSanityCheckFailed,
				}
			}
		}
	}
	for _, child := range directChildren(s) {
		if err := sanityCheckStep(child, g); err != nil {
			return err
		}
	}
	return nil
}
