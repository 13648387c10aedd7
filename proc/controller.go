package proc

import "time"

// Controller is the platform the procedure runs against. Leaf actions
// receive it to drive hardware (or, in simulation, to short-circuit);
// the engine consults it for the resource graph and the lock registry.
//
// Implementations must be safe for concurrent use: queued steps call
// into the controller from multiple goroutines.
type Controller interface {
	// Simulation reports whether this is a dry run. Leaves skip
	// physical actions and timed waits when true, and Dynamic steps
	// substitute their bounded simulation blocks.
	Simulation() bool

	// Graph returns the resource graph the controller is bound to.
	Graph() *Graph

	// Locks returns the named-lock registry guarding shared resources.
	Locks() *LockTable
}

// PlatformController is the plain Controller implementation: a graph, a
// lock table and a simulation flag. Real hardware backends embed it and
// add their device handles.
type PlatformController struct {
	graph      *Graph
	locks      *LockTable
	simulation bool
}

// NewController creates a controller bound to the given graph. Pass
// simulation=true for dry runs.
func NewController(g *Graph, simulation bool) *PlatformController {
	return &PlatformController{
		graph:      g,
		locks:      NewLockTable(0),
		simulation: simulation,
	}
}

// WithLockPoll replaces the lock table with one using the given poll
// interval. Chainable, for construction only.
func (c *PlatformController) WithLockPoll(poll time.Duration) *PlatformController {
	c.locks = NewLockTable(poll)
	return c
}

// Simulation implements Controller.
func (c *PlatformController) Simulation() bool { return c.simulation }

// Graph implements Controller.
func (c *PlatformController) Graph() *Graph { return c.graph }

// Locks implements Controller.
func (c *PlatformController) Locks() *LockTable { return c.locks }
