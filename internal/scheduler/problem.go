// Package scheduler turns a model and its constraints into a constraint
// satisfaction problem over time-indexed slices, solves it, and extracts
// the resulting reconfiguration plan.
package scheduler

import (
	"time"

	"go.uber.org/zap"

	"github.com/guimove/replanner/internal/constraint"
	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/solver"
)

// Problem is the reconfiguration problem of one solve. It owns the element
// index, the solver and the models of every VM and node action.
type Problem struct {
	Source *model.Model
	Params Parameters
	Logger *zap.Logger

	solver  *solver.Solver
	vms     []model.VM
	vmIdx   map[model.VM]int
	nodes   []model.Node
	nodeIdx map[model.Node]int

	vmNext   []model.VMState
	nodeNext []model.NodeState
	managed  []bool

	vmTrans    []*VMTransition
	nodeTrans  []*NodeTransition
	views      []View
	end        *solver.IntVar
	objective  *solver.IntVar
	strategies []solver.Strategy

	misplaced   []model.VM
	constraints int
	built       time.Time
}

func newProblem(mo *model.Model, params Parameters) *Problem {
	p := &Problem{
		Source:  mo,
		Params:  params,
		Logger:  params.Logger,
		solver:  solver.New(),
		vmIdx:   make(map[model.VM]int),
		nodeIdx: make(map[model.Node]int),
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	for _, n := range mo.Mapping.Nodes() {
		p.nodeIdx[n] = len(p.nodes)
		p.nodes = append(p.nodes, n)
		st, _ := mo.Mapping.NodeState(n)
		p.nodeNext = append(p.nodeNext, st)
	}
	for _, vm := range mo.Mapping.VMs() {
		p.addVM(vm, mo.Mapping.VMState(vm))
	}
	p.end = p.solver.IntVar("end", 0, params.MaxEnd)
	return p
}

func (p *Problem) addVM(vm model.VM, next model.VMState) {
	p.vmIdx[vm] = len(p.vms)
	p.vms = append(p.vms, vm)
	p.vmNext = append(p.vmNext, next)
	p.managed = append(p.managed, true)
}

// declareStates sets the next state of every element from the state
// constraints. A VM unknown to the source model is added when it can be
// forged.
func (p *Problem) declareStates(cstrs []constraint.SatConstraint) error {
	vmBy := make(map[model.VM]constraint.SatConstraint)
	nodeBy := make(map[model.Node]constraint.SatConstraint)
	for _, c := range cstrs {
		switch d := c.(type) {
		case constraint.VMStateDeclaration:
			st := d.RequiredVMState()
			for _, vm := range d.InvolvedVMs() {
				if prev, ok := vmBy[vm]; ok && prev.(constraint.VMStateDeclaration).RequiredVMState() != st {
					return Infeasible(string(vm), "required by %s and %s", prev.Name(), c.Name())
				}
				vmBy[vm] = c
				i, known := p.vmIdx[vm]
				switch {
				case known:
					p.vmNext[i] = st
				case st == model.VMKilled:
					// nothing to kill
				default:
					p.addVM(vm, st)
				}
			}
		case constraint.NodeStateDeclaration:
			st := d.RequiredNodeState()
			for _, n := range d.InvolvedNodes() {
				i, known := p.nodeIdx[n]
				if !known {
					return Infeasible(string(n), "unknown node required by %s", c.Name())
				}
				if prev, ok := nodeBy[n]; ok && prev.(constraint.NodeStateDeclaration).RequiredNodeState() != st {
					return Infeasible(string(n), "required by %s and %s", prev.Name(), c.Name())
				}
				nodeBy[n] = c
				p.nodeNext[i] = st
			}
		}
	}
	return nil
}

// restrictManaged keeps only the VMs of manage in the hands of the search.
// VMs changing state or hosted on a node going offline stay managed.
func (p *Problem) restrictManaged(manage map[model.VM]bool) {
	for i, vm := range p.vms {
		cur := p.Source.Mapping.VMState(vm)
		leaving := false
		if h, ok := p.Source.Mapping.Host(vm); ok {
			leaving = p.nodeNext[p.nodeIdx[h]] != model.NodeOnline
		}
		p.managed[i] = manage[vm] || cur != p.vmNext[i] || leaving
	}
}

func (p *Problem) build() error {
	for i, vm := range p.vms {
		t, err := p.newVMTransition(vm, p.Source.Mapping.VMState(vm), p.vmNext[i])
		if err != nil {
			return err
		}
		p.vmTrans = append(p.vmTrans, t)
	}
	for i := range p.nodes {
		t, err := p.newNodeTransition(i)
		if err != nil {
			return err
		}
		p.nodeTrans = append(p.nodeTrans, t)
	}
	for i, t := range p.nodeTrans {
		if err := t.link(p, i); err != nil {
			return err
		}
	}
	return nil
}

// Solver returns the underlying solver.
func (p *Problem) Solver() *solver.Solver { return p.solver }

// End is the completion time of the plan.
func (p *Problem) End() *solver.IntVar { return p.end }

func (p *Problem) VMs() []model.VM     { return p.vms }
func (p *Problem) Nodes() []model.Node { return p.nodes }

// VM returns the VM at index i.
func (p *Problem) VM(i int) model.VM { return p.vms[i] }

// Node returns the node at index i.
func (p *Problem) Node(i int) model.Node { return p.nodes[i] }

// VMIndex returns the index of vm.
func (p *Problem) VMIndex(vm model.VM) (int, bool) {
	i, ok := p.vmIdx[vm]
	return i, ok
}

// NodeIndex returns the index of n.
func (p *Problem) NodeIndex(n model.Node) (int, bool) {
	i, ok := p.nodeIdx[n]
	return i, ok
}

// NextState returns the state vm must reach.
func (p *Problem) NextState(vm model.VM) (model.VMState, bool) {
	i, ok := p.vmIdx[vm]
	if !ok {
		return model.VMInit, false
	}
	return p.vmNext[i], true
}

// NodeNextState returns the state n must reach.
func (p *Problem) NodeNextState(n model.Node) (model.NodeState, bool) {
	i, ok := p.nodeIdx[n]
	if !ok {
		return model.NodeOffline, false
	}
	return p.nodeNext[i], true
}

// IsManaged tells whether the search may move vm.
func (p *Problem) IsManaged(vm model.VM) bool {
	i, ok := p.vmIdx[vm]
	return ok && p.managed[i]
}

// ManagedVMs returns the VMs the search may move.
func (p *Problem) ManagedVMs() []model.VM {
	var out []model.VM
	for i, vm := range p.vms {
		if p.managed[i] {
			out = append(out, vm)
		}
	}
	return out
}

// FutureRunningVMs returns the VMs that will be running at the end.
func (p *Problem) FutureRunningVMs() []model.VM {
	var out []model.VM
	for i, vm := range p.vms {
		if p.vmNext[i] == model.VMRunning {
			out = append(out, vm)
		}
	}
	return out
}

// Transition returns the model of the action of vm.
func (p *Problem) Transition(vm model.VM) (*VMTransition, bool) {
	i, ok := p.vmIdx[vm]
	if !ok || i >= len(p.vmTrans) {
		return nil, false
	}
	return p.vmTrans[i], true
}

// Transitions returns every VM transition in index order.
func (p *Problem) Transitions() []*VMTransition { return p.vmTrans }

// NodeTransitions returns every node transition in index order.
func (p *Problem) NodeTransitions() []*NodeTransition { return p.nodeTrans }

// AddView attaches v. Views run in the order they were added.
func (p *Problem) AddView(v View) { p.views = append(p.views, v) }

// View looks an attached view up by name.
func (p *Problem) View(name string) (View, bool) {
	for _, v := range p.views {
		if v.Name() == name {
			return v, true
		}
	}
	return nil, false
}

// AddStrategy prepends a branching strategy to the default ones.
func (p *Problem) AddStrategy(s solver.Strategy) { p.strategies = append(p.strategies, s) }

// SetObjective sets the variable to minimize.
func (p *Problem) SetObjective(v *solver.IntVar) { p.objective = v }

// Objective returns the variable to minimize, nil when none.
func (p *Problem) Objective() *solver.IntVar { return p.objective }
