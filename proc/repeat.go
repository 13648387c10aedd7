package proc

import (
	"context"
	"strings"
)

// LoopVar declares a loop-variable binding for an iterative Repeat.
// Child properties whose string value is "$"+Name are bound to each
// matched graph node id in turn.
type LoopVar struct {
	Name string

	// Class selects the matching graph nodes.
	Class string
}

// Placeholder returns the property value that marks a binding site for
// this variable.
func (v LoopVar) Placeholder() string { return "$" + v.Name }

// RepeatStep is a composite that expands into batches of its children.
// It runs in exactly one of three modes:
//
//   - fixed-count: Times(n) repeats the children n times, each batch
//     re-instantiated fresh from the stored templates;
//   - loop-variable: Over(vars...) repeats once per member of the match
//     set computed from the graph at compile time, binding placeholder
//     properties each iteration;
//   - monitor-terminated: with neither set and at least one Monitor
//     child, batches run open-endedly until every monitor in a batch
//     reports Done in the same batch.
//
// The modes are mutually exclusive; mixing them is a configuration
// error caught by the post-compile sanity checks.
type RepeatStep struct {
	meta      *Meta
	count     int
	vars      []LoopVar
	templates []Step
}

// NewRepeat creates a Repeat over the given child templates. Without
// Times or Over it repeats once, or runs monitor-terminated if any
// child is a Monitor.
func NewRepeat(children ...Step) *RepeatStep {
	r := &RepeatStep{meta: NewMeta(), templates: children}
	adopt(r, children)
	return r
}

// Times sets the fixed repeat count. Chainable, construction only.
func (rs *RepeatStep) Times(n int) *RepeatStep {
	rs.count = n
	return rs
}

// Over sets the loop-variable bindings. Chainable, construction only.
func (rs *RepeatStep) Over(vars ...LoopVar) *RepeatStep {
	rs.vars = vars
	return rs
}

// Name implements Step.
func (rs *RepeatStep) Name() string { return "Repeat" }

// Meta implements Step.
func (rs *RepeatStep) Meta() *Meta { return rs.meta }

// Clone implements Step.
func (rs *RepeatStep) Clone() Step {
	templates := make([]Step, len(rs.templates))
	for i, t := range rs.templates {
		templates[i] = t.Clone()
	}
	clone := NewRepeat(templates...)
	clone.meta = rs.meta.Clone()
	adopt(clone, templates)
	clone.count = rs.count
	clone.vars = append([]LoopVar(nil), rs.vars...)
	return clone
}

// monitored reports whether any direct child template is a Monitor.
func (rs *RepeatStep) monitored() bool {
	for _, t := range rs.templates {
		if _, ok := t.(Monitor); ok {
			return true
		}
	}
	return false
}

// Children implements Composite. Before compilation the loop-variable
// expansion is unknown, so the raw templates are exposed (that is what
// the compile walk binds); afterwards the expansion reflects the match
// set. Monitor mode exposes a single batch; the open-ended loop lives
// in the execution path.
func (rs *RepeatStep) Children() []Step {
	switch {
	case len(rs.vars) > 0:
		if !rs.meta.compiled {
			return rs.templates
		}
		var out []Step
		for _, match := range rs.matchSet() {
			out = append(out, rs.instantiate(match)...)
		}
		return out
	case rs.monitored():
		return rs.templates
	default:
		n := rs.count
		if n <= 0 {
			n = 1
		}
		var out []Step
		for i := 0; i < n; i++ {
			for _, t := range rs.templates {
				out = append(out, t.Clone())
			}
		}
		return out
	}
}

// instantiate clones the templates with every loop variable bound to
// the given match.
func (rs *RepeatStep) instantiate(match string) []Step {
	out := make([]Step, len(rs.templates))
	for i, t := range rs.templates {
		c := t.Clone()
		for _, v := range rs.vars {
			bindVar(c, v.Placeholder(), match)
		}
		out[i] = c
	}
	return out
}

// bindVar rewrites every property in the subtree whose string value is
// the placeholder to the bound id.
func bindVar(s Step, placeholder, value string) {
	m := s.Meta()
	for k, pv := range m.props {
		if sv, ok := pv.(string); ok && sv == placeholder {
			m.props[k] = value
		}
	}
	for _, c := range directChildren(s) {
		bindVar(c, placeholder, value)
	}
}

// OnCompile implements Compilable: the loop-variable match set is the
// intersection of each binding's class matches. The set is stamped into
// an internal property so the memoized child expansion is invalidated.
func (rs *RepeatStep) OnCompile(g *Graph) error {
	if len(rs.vars) == 0 {
		return nil
	}
	var matches []string
	for i, v := range rs.vars {
		classMatches := g.NodesOfClass(v.Class)
		if i == 0 {
			matches = classMatches
			continue
		}
		matches = intersect(matches, classMatches)
	}
	rs.meta.SetInternal("matches", strings.Join(matches, ","))
	return nil
}

// matchSet reads the compiled match set back out of the internal
// property, so a rebound plan restores it along with everything else.
func (rs *RepeatStep) matchSet() []string {
	joined := rs.meta.GetString("matches")
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[s] = true
	}
	var out []string
	for _, s := range a {
		if set[s] {
			out = append(out, s)
		}
	}
	return out
}

// SanityChecks implements Checker: the three modes are mutually
// exclusive and a Repeat with nothing to repeat is a configuration
// error.
func (rs *RepeatStep) SanityChecks(*Graph) []Check {
	return []Check{
		{OK: len(rs.templates) > 0, Msg: "repeat has no children"},
		{OK: rs.count == 0 || len(rs.vars) == 0,
			Msg: "fixed count and loop variables are mutually exclusive"},
		{OK: !rs.monitored() || rs.count == 0,
			Msg: "monitor children cannot be combined with a fixed count"},
		{OK: !rs.monitored() || len(rs.vars) == 0,
			Msg: "monitor children cannot be combined with loop variables"},
	}
}

// ReagentsConsumed implements Consumer. Under loop-variable mode the
// iteration count is not known statically, so consumption counts one
// representative iteration per distinct reagent; otherwise the full
// expansion is summed.
func (rs *RepeatStep) ReagentsConsumed(g *Graph) map[string]float64 {
	out := make(map[string]float64)
	if len(rs.vars) > 0 {
		for _, t := range rs.templates {
			for reagent, vol := range stepReagents(t, g) {
				out[reagent] += vol
			}
		}
		return out
	}
	for _, c := range directChildren(rs) {
		for reagent, vol := range stepReagents(c, g) {
			out[reagent] += vol
		}
	}
	return out
}

// run executes the repeat. Fixed-count and loop-variable modes are
// ordinary composite levels over the precomputed expansion; monitor
// mode loops fresh batches, awaiting each batch immediately and
// stopping only when every monitor in one batch reports Done.
func (rs *RepeatStep) run(ctx context.Context, r *run, path string) (Signal, error) {
	if len(rs.vars) > 0 && len(rs.matchSet()) == 0 {
		// documented leniency: an empty match set repeats zero times
		r.emit(path, rs, "loop variable match set is empty, zero iterations", nil)
		return Continue, nil
	}
	if len(rs.vars) == 0 && rs.count == 0 && rs.monitored() {
		return rs.runMonitored(ctx, r, path)
	}
	return aggregate(r.runLevel(ctx, rs, directChildren(rs), path))
}

func (rs *RepeatStep) runMonitored(ctx context.Context, r *run, path string) (Signal, error) {
	for iteration := 0; ; iteration++ {
		if ctx.Err() != nil {
			return Stop, nil
		}
		batch := make([]Step, len(rs.templates))
		for i, t := range rs.templates {
			batch[i] = t.Clone()
		}
		results := r.runLevel(ctx, rs, batch, childPath(path, iteration))
		monitors, done := 0, 0
		for _, res := range results {
			if res.err != nil {
				return Stop, res.err
			}
			if res.sig == Stop {
				return Stop, nil
			}
			if _, ok := res.step.(Monitor); ok {
				monitors++
				if res.sig == Done {
					done++
				}
			}
		}
		// partial Done keeps iterating: the batch ends the loop only
		// when every monitor reported Done together
		if monitors > 0 && done == monitors {
			return Continue, nil
		}
	}
}
