package proc

// Vessel declares a piece of labware the procedure uses. Every Vessel
// property in the step tree must reference a declared id.
type Vessel struct {
	ID string

	// Type is the required hardware class, matched against the graph
	// during compilation (e.g. "reactor", "separator").
	Type string
}

// Reagent declares a chemical the procedure consumes. Every Reagent
// property in the step tree must reference a declared id.
type Reagent struct {
	ID string

	// Role is a free-form hint ("substrate", "solvent", ...).
	Role string
}

// Procedure aggregates the declarations and the root step list of one
// runnable procedure. It is constructed by a description loader (or by
// hand in tests) and handed to an Executor; the Procedure itself holds
// no execution state.
type Procedure struct {
	Name     string
	Vessels  []Vessel
	Reagents []Reagent
	Steps    []Step
}

// BaseSteps flattens the tree into its leaves, in declaration order.
// Composite, dynamic and repeat structure is expanded as it currently
// stands; dynamic steps contribute their start block only.
func (p *Procedure) BaseSteps() []Step {
	var out []Step
	for _, s := range p.Steps {
		out = append(out, baseSteps(s)...)
	}
	return out
}

func baseSteps(s Step) []Step {
	children := directChildren(s)
	if len(children) == 0 {
		return []Step{s}
	}
	var out []Step
	for _, c := range children {
		out = append(out, baseSteps(c)...)
	}
	return out
}

// Scale multiplies every scalable quantity in the tree by factor.
// Steps implementing Scalable are scaled in place; the walk reaches
// repeat templates and async children through the ordinary child
// expansion.
func (p *Procedure) Scale(factor float64) {
	for _, s := range p.Steps {
		walkSteps(s, func(st Step) bool {
			if sc, ok := st.(Scalable); ok {
				sc.Scale(factor)
			}
			return true
		})
	}
}

func (p *Procedure) declaredVessels() map[string]bool {
	out := make(map[string]bool, len(p.Vessels))
	for _, v := range p.Vessels {
		out[v.ID] = true
	}
	return out
}

func (p *Procedure) declaredReagents() map[string]bool {
	out := make(map[string]bool, len(p.Reagents))
	for _, r := range p.Reagents {
		out[r.ID] = true
	}
	return out
}
