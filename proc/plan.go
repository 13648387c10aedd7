package proc

import (
	"time"

	"github.com/google/uuid"
)

// PlanStep is the serialized form of one step in a compiled plan: name,
// queue tag and the fully resolved property bag, with children nested.
type PlanStep struct {
	Name     string         `json:"name"`
	Queue    string         `json:"queue,omitempty"`
	Props    map[string]any `json:"props,omitempty"`
	Children []PlanStep     `json:"children,omitempty"`
}

// Plan is a snapshot of a compiled procedure: the resolved property
// tree, the graph it was compiled against and the graph's content
// hash. A persisted plan lets a procedure resume later without
// recompiling, subject to the hash-match check at execute time; the
// graph rides along so a rebound executor can still answer duration
// and reagent queries.
type Plan struct {
	ID        string     `json:"id"`
	Procedure string     `json:"procedure"`
	GraphHash string     `json:"graph_hash"`
	Graph     *Graph     `json:"graph,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Steps     []PlanStep `json:"steps"`
}

// Plan snapshots the compiled procedure. ErrNotCompiled before
// Compile: the snapshot's whole point is carrying resolved properties.
func (e *Executor) Plan() (*Plan, error) {
	if !e.compiled {
		return nil, &StateError{
			Message: "plan requested before compile",
			Code:    CodeNotCompiled,
		}
	}
	p := &Plan{
		ID:        uuid.NewString(),
		Procedure: e.proc.Name,
		GraphHash: e.graphHash,
		Graph:     e.graph,
		CreatedAt: time.Now().UTC(),
	}
	for _, s := range e.proc.Steps {
		p.Steps = append(p.Steps, snapshotPlanStep(s))
	}
	return p, nil
}

func snapshotPlanStep(s Step) PlanStep {
	ps := PlanStep{
		Name:  s.Name(),
		Queue: s.Meta().Queue(),
		Props: s.Meta().Props(),
	}
	for _, c := range directChildren(s) {
		ps.Children = append(ps.Children, snapshotPlanStep(c))
	}
	return ps
}

// Rebind applies a previously saved plan to this executor's procedure:
// resolved properties are written back into an identically-shaped step
// tree and the executor is marked compiled, carrying the plan's graph
// hash forward to the execute-time check.
//
// The procedure must match the plan shape exactly (same step names and
// child counts, recursively); any divergence is a StateError, since
// silently rebinding a changed tree would execute stale properties.
func (e *Executor) Rebind(plan *Plan) error {
	if e.compiled {
		return &StateError{
			Message: "procedure is already compiled",
			Code:    CodeAlreadyCompiled,
		}
	}
	if len(plan.Steps) != len(e.proc.Steps) {
		return &StateError{
			Message: "plan does not match procedure shape at the root",
			Code:    CodePlanShapeMismatch,
		}
	}
	for i, s := range e.proc.Steps {
		if err := rebindStep(s, plan.Steps[i]); err != nil {
			return err
		}
	}
	e.graph = plan.Graph
	e.graphHash = plan.GraphHash
	e.compiled = true
	return nil
}

func rebindStep(s Step, ps PlanStep) error {
	if s.Name() != ps.Name {
		return &StateError{
			Message: "plan step " + ps.Name + " does not match procedure step " + s.Name(),
			Code:    CodePlanShapeMismatch,
		}
	}
	m := s.Meta()
	m.queue = ps.Queue
	for k, v := range ps.Props {
		m.props[k] = v
	}
	m.compiled = true
	children := directChildren(s)
	if len(children) != len(ps.Children) {
		return &StateError{
			Message: "plan step " + ps.Name + " child count does not match procedure",
			Code:    CodePlanShapeMismatch,
		}
	}
	for i, c := range children {
		if err := rebindStep(c, ps.Children[i]); err != nil {
			return err
		}
	}
	return nil
}
