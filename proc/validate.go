package proc

import "strings"

// validateDeclarations checks every Vessel and Reagent property in the
// tree against the procedure's declaration sections, recursing through
// composite children but not into opaque leaf internals. Loop-variable
// placeholders ("$name") are skipped; they are bound to graph nodes,
// not declarations.
func validateDeclarations(p *Procedure) error {
	vessels := p.declaredVessels()
	reagents := p.declaredReagents()
	for _, s := range p.Steps {
		if err := validateStep(s, vessels, reagents); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(s Step, vessels, reagents map[string]bool) error {
	m := s.Meta()
	for name, kind := range m.kinds {
		if kind != KindVessel && kind != KindReagent {
			continue
		}
		ref, ok := m.props[name].(string)
		if !ok || ref == "" || strings.HasPrefix(ref, "$") {
			continue
		}
		switch kind {
		case KindVessel:
			if !vessels[ref] {
				return &DeclarationError{
					Step: s.Name(), Prop: name, Ref: ref,
					Code: CodeUndeclaredVessel,
				}
			}
		case KindReagent:
			if !reagents[ref] {
				return &DeclarationError{
					Step: s.Name(), Prop: name, Ref: ref,
					Code: CodeUndeclaredReagent,
				}
			}
		}
	}
	for _, c := range directChildren(s) {
		if err := validateStep(c, vessels, reagents); err != nil {
			return err
		}
	}
	return nil
}
