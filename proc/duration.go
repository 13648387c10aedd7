package proc

import "time"

// Estimate is a three-point duration estimate: minimum, most likely and
// maximum. Estimates combine by independent summation of each bound.
type Estimate struct {
	Min    time.Duration
	Likely time.Duration
	Max    time.Duration
}

// Add returns the bound-wise sum of two estimates.
func (e Estimate) Add(o Estimate) Estimate {
	return Estimate{
		Min:    e.Min + o.Min,
		Likely: e.Likely + o.Likely,
		Max:    e.Max + o.Max,
	}
}

// Exact returns the degenerate estimate (t, t, t) for an action with a
// known fixed duration, such as a timed wait.
func Exact(t time.Duration) Estimate {
	return Estimate{Min: t, Likely: t, Max: t}
}

// defaultLeafEstimate is the estimate assumed for a leaf that does not
// implement Estimator: one second most likely, half to double as the
// spread.
var defaultLeafEstimate = Estimate{
	Min:    500 * time.Millisecond,
	Likely: time.Second,
	Max:    2 * time.Second,
}

// stepDuration computes a step's estimate: an Estimator answers for
// itself, a composite sums its children, a plain leaf gets the default.
func stepDuration(s Step, g *Graph) Estimate {
	if est, ok := s.(Estimator); ok {
		return est.Duration(g)
	}
	children := directChildren(s)
	if len(children) == 0 {
		return defaultLeafEstimate
	}
	var total Estimate
	for _, c := range children {
		total = total.Add(stepDuration(c, g))
	}
	return total
}

// stepReagents computes a step's reagent consumption: a Consumer
// answers for itself, otherwise child consumption is summed. Plain
// leaves consume nothing.
func stepReagents(s Step, g *Graph) map[string]float64 {
	if c, ok := s.(Consumer); ok {
		return c.ReagentsConsumed(g)
	}
	out := make(map[string]float64)
	for _, child := range directChildren(s) {
		for reagent, vol := range stepReagents(child, g) {
			out[reagent] += vol
		}
	}
	return out
}
