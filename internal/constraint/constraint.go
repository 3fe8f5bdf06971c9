// Package constraint declares the placement, state and resource
// restrictions a reconfiguration must satisfy, and the checkers that verify
// them on a model or along a plan.
package constraint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/plan"
)

// ErrContinuousUnsupported is returned by SetContinuous for constraints that
// only have a discrete semantics, or only a continuous one.
var ErrContinuousUnsupported = errors.New("restriction not supported")

// SatConstraint is a restriction that a plan must satisfy.
type SatConstraint interface {
	Name() string
	InvolvedVMs() []model.VM
	InvolvedNodes() []model.Node
	// IsContinuous tells the restriction must hold at every moment of the
	// plan rather than at its end only.
	IsContinuous() bool
	SetContinuous(bool) error
	// Satisfied checks the restriction against a final state.
	Satisfied(mo *model.Model) bool
}

// StepChecker is implemented by constraints with a continuous semantics.
// SatisfiedAt checks one moment of a simulated plan; origin provides the
// views the step does not carry.
type StepChecker interface {
	SatisfiedAt(st plan.Step, origin *model.Model) bool
}

// PlanChecker is implemented by constraints that can only be checked on a
// whole plan.
type PlanChecker interface {
	SatisfiedByPlan(p *plan.ReconfigurationPlan) bool
}

// VMStateDeclaration is implemented by constraints forcing the state of
// their VMs at the end of the plan.
type VMStateDeclaration interface {
	SatConstraint
	RequiredVMState() model.VMState
}

// NodeStateDeclaration is implemented by constraints forcing the state of
// their nodes.
type NodeStateDeclaration interface {
	SatConstraint
	RequiredNodeState() model.NodeState
}

// OptConstraint is an objective to minimize.
type OptConstraint interface {
	Name() string
}

// CheckPlan simulates p and checks c on it: along every step for a
// continuous constraint, on the resulting model otherwise.
func CheckPlan(c SatConstraint, p *plan.ReconfigurationPlan) (bool, error) {
	if pc, ok := c.(PlanChecker); ok && !pc.SatisfiedByPlan(p) {
		return false, nil
	}
	tl, err := plan.Simulate(p)
	if err != nil {
		return false, fmt.Errorf("simulating plan: %w", err)
	}
	if sc, ok := c.(StepChecker); ok && c.IsContinuous() {
		for _, st := range tl.All() {
			if !sc.SatisfiedAt(st, p.Origin()) {
				return false, nil
			}
		}
	}
	return c.Satisfied(tl.Result), nil
}

// SatisfiedAtStart checks a continuous constraint on the origin of a plan.
func SatisfiedAtStart(c SatConstraint, mo *model.Model) bool {
	sc, ok := c.(StepChecker)
	if !ok {
		return c.Satisfied(mo)
	}
	tl, err := plan.Simulate(plan.New(mo))
	if err != nil {
		return false
	}
	return sc.SatisfiedAt(tl.Start, mo)
}

type base struct {
	vms        []model.VM
	nodes      []model.Node
	continuous bool
}

func (b *base) InvolvedVMs() []model.VM     { return b.vms }
func (b *base) InvolvedNodes() []model.Node { return b.nodes }
func (b *base) IsContinuous() bool          { return b.continuous }

// discrete is embedded by constraints without continuous semantics.
type discrete struct{ base }

func (d *discrete) SetContinuous(c bool) error {
	if c {
		return fmt.Errorf("%w: continuous", ErrContinuousUnsupported)
	}
	return nil
}

// optional is embedded by constraints supporting both semantics.
type optional struct{ base }

func (o *optional) SetContinuous(c bool) error {
	o.continuous = c
	return nil
}

func format(name string, continuous bool, parts ...string) string {
	if continuous {
		parts = append(parts, "continuous")
	} else {
		parts = append(parts, "discrete")
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

func joinVMs(vms []model.VM) string {
	s := make([]string, len(vms))
	for i, v := range vms {
		s[i] = string(v)
	}
	return "[" + strings.Join(s, ", ") + "]"
}

func joinNodes(ns []model.Node) string {
	s := make([]string, len(ns))
	for i, n := range ns {
		s[i] = string(n)
	}
	return "[" + strings.Join(s, ", ") + "]"
}

func nodeSet(ns []model.Node) map[model.Node]bool {
	out := make(map[model.Node]bool, len(ns))
	for _, n := range ns {
		out[n] = true
	}
	return out
}

// runningHosts returns the hosts of the running VMs among vms.
func runningHosts(m *model.Mapping, vms []model.VM) map[model.VM]model.Node {
	out := make(map[model.VM]model.Node)
	for _, vm := range vms {
		if m.VMState(vm) != model.VMRunning {
			continue
		}
		if h, ok := m.Host(vm); ok {
			out[vm] = h
		}
	}
	return out
}

// occupied returns, for every VM of vms, the nodes it holds at a step.
func occupied(st plan.Step, vms []model.VM) map[model.VM][]model.Node {
	out := make(map[model.VM][]model.Node)
	for _, vm := range vms {
		if ns := st.Presence[vm]; len(ns) > 0 {
			out[vm] = ns
		}
	}
	return out
}
