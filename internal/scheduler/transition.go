package scheduler

import (
	"fmt"

	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/plan"
	"github.com/guimove/replanner/internal/solver"
)

// Slice is the interval during which a VM holds resources on a host. A
// consuming slice starts at 0 on the current host; a demanding slice ends
// with the plan on the future host.
type Slice struct {
	Host     *solver.IntVar
	Start    *solver.IntVar
	End      *solver.IntVar
	Duration *solver.IntVar
}

// TransitionKind identifies how a VM goes from its current to its next
// state.
type TransitionKind int

const (
	Stay TransitionKind = iota
	Relocatable
	Boot
	Shutdown
	Suspend
	Resume
	Kill
	Forge
)

func (k TransitionKind) String() string {
	switch k {
	case Stay:
		return "stay"
	case Relocatable:
		return "relocatable"
	case Boot:
		return "boot"
	case Shutdown:
		return "shutdown"
	case Suspend:
		return "suspend"
	case Resume:
		return "resume"
	case Kill:
		return "kill"
	case Forge:
		return "forge"
	}
	return fmt.Sprintf("transition(%d)", int(k))
}

// transitionKind selects the transition between two VM states.
func transitionKind(from, to model.VMState) (TransitionKind, bool) {
	switch {
	case from == to && from != model.VMRunning:
		return Stay, from != model.VMInit && from != model.VMKilled
	case to == model.VMKilled:
		return Kill, from != model.VMInit
	case from == model.VMInit:
		// A plan holds one action per VM: a forged VM is only ready, and
		// booting it is left to a later plan.
		return Forge, to == model.VMReady
	case from == model.VMRunning:
		switch to {
		case model.VMRunning:
			return Relocatable, true
		case model.VMReady:
			return Shutdown, true
		case model.VMSleeping:
			return Suspend, true
		}
	case from == model.VMReady:
		return Boot, to == model.VMRunning
	case from == model.VMSleeping:
		return Resume, to == model.VMRunning
	}
	return 0, false
}

// VMTransition models the action of one VM. Fields that a kind does not
// use are nil: only Relocatable sets Stay, Move, MigrationDuration and
// Bandwidth; CSlice exists when the VM holds resources now, DSlice when it
// will hold some at the end.
type VMTransition struct {
	Kind     TransitionKind
	VM       model.VM
	From, To model.VMState
	// Src is the index of the current host, -1 when the VM has none.
	Src int

	Start, End, Duration *solver.IntVar
	CSlice, DSlice       *Slice

	Stay, Move        *solver.IntVar
	MigrationDuration *solver.IntVar
	Bandwidth         *solver.IntVar

	grows, shrinks bool
	action         *plan.Action
}

// NoteAllocation records how an allocation of the VM evolves. It drives the
// symmetry breaking posted on VMs that stay on their node.
func (t *VMTransition) NoteAllocation(delta int) {
	if delta > 0 {
		t.grows = true
	} else if delta < 0 {
		t.shrinks = true
	}
}

// Action returns the action inserted in the plan for this transition, once
// InsertActions ran.
func (t *VMTransition) Action() *plan.Action { return t.action }

func (p *Problem) newVMTransition(vm model.VM, from, to model.VMState) (*VMTransition, error) {
	kind, ok := transitionKind(from, to)
	if !ok {
		return nil, Infeasible(string(vm), "no transition from %s to %s", from, to)
	}
	t := &VMTransition{Kind: kind, VM: vm, From: from, To: to, Src: -1}
	if h, ok := p.Source.Mapping.Host(vm); ok && from != model.VMSleeping {
		t.Src = p.nodeIdx[h]
	}
	s := p.solver
	h := p.Params.MaxEnd
	name := string(vm)

	switch kind {
	case Stay:
		t.Start = s.Constant(name+".start", 0)
		t.End = t.Start
		t.Duration = t.Start

	case Boot, Resume:
		k := plan.BootVM
		if kind == Resume {
			k = plan.ResumeVM
		}
		d, err := p.duration(k, name)
		if err != nil {
			return nil, err
		}
		if err := p.timedAction(t, d); err != nil {
			return nil, err
		}
		if t.DSlice, err = p.demandingSlice(name, t.Start); err != nil {
			return nil, err
		}

	case Shutdown, Suspend:
		k := plan.ShutdownVM
		if kind == Suspend {
			k = plan.SuspendVM
		}
		d, err := p.duration(k, name)
		if err != nil {
			return nil, err
		}
		if err := p.timedAction(t, d); err != nil {
			return nil, err
		}
		t.CSlice = p.consumingSlice(name, t.Src, t.End)

	case Kill:
		d, err := p.duration(plan.KillVM, name)
		if err != nil {
			return nil, err
		}
		t.Start = s.Constant(name+".start", 0)
		t.End = s.Constant(name+".end", d)
		t.Duration = t.End
		if from == model.VMRunning {
			t.CSlice = p.consumingSlice(name, t.Src, t.End)
		}

	case Forge:
		d, err := p.duration(plan.ForgeVM, name)
		if err != nil {
			return nil, err
		}
		if err := p.timedAction(t, d); err != nil {
			return nil, err
		}

	case Relocatable:
		t.CSlice = p.consumingSlice(name, t.Src, s.IntVar(name+".cSlice.end", 0, h))
		var err error
		start := s.IntVar(name+".dSlice.start", 0, h)
		if t.DSlice, err = p.demandingSlice(name, start); err != nil {
			return nil, err
		}
		if !p.managed[p.vmIdx[vm]] {
			if err := t.DSlice.Host.InstantiateTo(t.Src, nil); err != nil {
				return nil, Contradiction(name, err)
			}
		}
		t.Stay = s.BoolVar(name + ".stay")
		t.Move = s.BoolVar(name + ".move")
		t.MigrationDuration = s.IntVar(name+".migration.duration", 1, max(1, h))
		t.Duration = s.IntVar(name+".duration", 0, h)
		t.Bandwidth = s.IntVar(name+".bandwidth", 0, solver.MaxValue)
		t.Start = start
		t.End = t.CSlice.End
		if _, err := s.NewReifiedEq(t.Stay, t.DSlice.Host, t.Src); err != nil {
			return nil, Contradiction(name, err)
		}
		if err := p.post(name,
			s.PostLinear([]*solver.IntVar{t.Stay, t.Move}, []int{1, 1}, solver.OpEQ, 1),
			s.NewBoolTimes(t.Duration, t.Move, t.MigrationDuration),
			s.PostLinear([]*solver.IntVar{t.Start, t.Duration, t.End}, []int{1, 1, -1}, solver.OpEQ, 0),
		); err != nil {
			return nil, err
		}
	}
	if err := p.post(name, s.Arithm(t.End, 0, solver.OpLE, p.end)); err != nil {
		return nil, err
	}
	return t, nil
}

// timedAction creates start and end variables distant of d.
func (p *Problem) timedAction(t *VMTransition, d int) error {
	name := string(t.VM)
	h := p.Params.MaxEnd
	if d > h {
		return Infeasible(name, "duration %d exceeds the horizon %d", d, h)
	}
	t.Start = p.solver.IntVar(name+".start", 0, h-d)
	t.End = p.solver.IntVar(name+".end", d, h)
	t.Duration = p.solver.Constant(name+".duration", d)
	return p.post(name, p.solver.Arithm(t.Start, d, solver.OpEQ, t.End))
}

func (p *Problem) consumingSlice(name string, host int, end *solver.IntVar) *Slice {
	return &Slice{
		Host:     p.solver.Constant(name+".cSlice.host", host),
		Start:    p.solver.Constant(name+".cSlice.start", 0),
		End:      end,
		Duration: end,
	}
}

// demandingSlice creates a slice on any node that is online at the end.
func (p *Problem) demandingSlice(name string, start *solver.IntVar) (*Slice, error) {
	if len(p.nodes) == 0 {
		return nil, Infeasible(name, "no node to host the VM")
	}
	host := p.solver.EnumVar(name+".dSlice.host", 0, len(p.nodes)-1)
	for i, st := range p.nodeNext {
		if st != model.NodeOnline {
			if err := host.RemoveValue(i, nil); err != nil {
				return nil, Contradiction(name, err)
			}
		}
	}
	d := &Slice{
		Host:     host,
		Start:    start,
		End:      p.end,
		Duration: p.solver.IntVar(name+".dSlice.duration", 0, p.Params.MaxEnd),
	}
	err := p.post(name, p.solver.PostLinear(
		[]*solver.IntVar{d.Start, d.Duration, d.End}, []int{1, 1, -1}, solver.OpEQ, 0))
	return d, err
}

func (p *Problem) duration(k plan.Kind, element string) (int, error) {
	d, err := p.Params.Durations.Evaluate(p.Source, k, element)
	if err != nil {
		return 0, Contradiction(element, err)
	}
	return d, nil
}

// post turns posting errors into an assembly error on element.
func (p *Problem) post(element string, errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return Contradiction(element, err)
		}
	}
	return nil
}

func (t *VMTransition) insertActions(p *Problem, sol *solver.Solution, pl *plan.ReconfigurationPlan) {
	st, ed := sol.Value(t.Start), sol.Value(t.End)
	var src model.Node
	if t.Src >= 0 {
		src = p.nodes[t.Src]
	} else if h, ok := p.Source.Mapping.Host(t.VM); ok {
		src = h
	}
	var dst model.Node
	if t.DSlice != nil {
		dst = p.nodes[sol.Value(t.DSlice.Host)]
	}

	switch t.Kind {
	case Stay:
	case Boot:
		t.action = plan.NewBootVM(t.VM, dst, st, ed)
	case Resume:
		t.action = plan.NewResumeVM(t.VM, src, dst, st, ed)
	case Shutdown:
		t.action = plan.NewShutdownVM(t.VM, src, st, ed)
	case Suspend:
		t.action = plan.NewSuspendVM(t.VM, src, src, st, ed)
	case Kill:
		t.action = plan.NewKillVM(t.VM, src, st, ed)
	case Forge:
		t.action = plan.NewForgeVM(t.VM, st, ed)
	case Relocatable:
		if dst != src {
			t.action = plan.NewMigrateVM(t.VM, src, dst, st, ed, sol.Value(t.Bandwidth))
		}
	}
	if t.action != nil {
		pl.Add(t.action)
	}
}

// NodeTransitionKind identifies how a node reaches its next state.
type NodeTransitionKind int

const (
	StayOnline NodeTransitionKind = iota
	StayOffline
	BootNode
	ShutdownNode
)

// NodeTransition models the action of one node.
type NodeTransition struct {
	Kind       NodeTransitionKind
	Node       model.Node
	Start, End *solver.IntVar
}

func (p *Problem) newNodeTransition(i int) (*NodeTransition, error) {
	n := p.nodes[i]
	cur, _ := p.Source.Mapping.NodeState(n)
	next := p.nodeNext[i]
	t := &NodeTransition{Node: n}
	name := string(n)
	var k plan.Kind
	switch {
	case cur == model.NodeOnline && next == model.NodeOnline:
		t.Kind = StayOnline
	case cur == model.NodeOffline && next == model.NodeOffline:
		t.Kind = StayOffline
	case cur == model.NodeOffline:
		t.Kind, k = BootNode, plan.BootNode
	default:
		t.Kind, k = ShutdownNode, plan.ShutdownNode
	}
	if t.Kind == StayOnline || t.Kind == StayOffline {
		t.Start = p.solver.Constant(name+".start", 0)
		t.End = t.Start
		return t, nil
	}
	d, err := p.duration(k, name)
	if err != nil {
		return nil, err
	}
	if d > p.Params.MaxEnd {
		return nil, Infeasible(name, "duration %d exceeds the horizon %d", d, p.Params.MaxEnd)
	}
	t.Start = p.solver.IntVar(name+".start", 0, p.Params.MaxEnd-d)
	t.End = p.solver.IntVar(name+".end", d, p.Params.MaxEnd)
	return t, p.post(name,
		p.solver.Arithm(t.Start, d, solver.OpEQ, t.End),
		p.solver.Arithm(t.End, 0, solver.OpLE, p.end))
}

// link ties the node action to the VM slices: VMs land on a booting node
// once it is up, and leave a halting node before it goes down.
func (t *NodeTransition) link(p *Problem, i int) error {
	name := string(t.Node)
	for _, vt := range p.vmTrans {
		switch t.Kind {
		case BootNode:
			if vt.DSlice != nil && vt.DSlice.Host.Contains(i) {
				if err := p.solver.NewSameHostPrecedence(vt.DSlice.Host, i, vt.DSlice.Start, t.End); err != nil {
					return Contradiction(name, err)
				}
			}
		case ShutdownNode:
			h, hosted := p.Source.Mapping.Host(vt.VM)
			if !hosted || h != t.Node {
				continue
			}
			switch vt.Kind {
			case Stay, Suspend:
				return Infeasible(name, "VM %s would still sleep on the node", vt.VM)
			}
			if err := p.solver.Arithm(vt.End, 0, solver.OpLE, t.Start); err != nil {
				return Contradiction(name, err)
			}
		}
	}
	return nil
}

func (t *NodeTransition) insertActions(sol *solver.Solution, pl *plan.ReconfigurationPlan) {
	switch t.Kind {
	case BootNode:
		pl.Add(plan.NewBootNode(t.Node, sol.Value(t.Start), sol.Value(t.End)))
	case ShutdownNode:
		pl.Add(plan.NewShutdownNode(t.Node, sol.Value(t.Start), sol.Value(t.End)))
	}
}
