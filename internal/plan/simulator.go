package plan

import (
	"fmt"
	"sort"

	"github.com/guimove/replanner/internal/model"
)

// Step is the state of the infrastructure once every action starting or
// ending at Time has been applied.
type Step struct {
	Time    int
	Mapping *model.Mapping
	// Usage is the amount of each resource held on each node.
	Usage map[string]map[model.Node]int
	// Presence lists the nodes each VM holds resources on. A migrating VM
	// is present on both its source and its destination.
	Presence map[model.VM][]model.Node
}

// Timeline is the outcome of a simulation.
type Timeline struct {
	Start  Step
	Steps  []Step
	Result *model.Model
}

// All returns the initial step followed by the others.
func (t *Timeline) All() []Step {
	return append([]Step{t.Start}, t.Steps...)
}

type simulation struct {
	mo  *model.Model
	occ map[model.VM]map[model.Node]map[string]int
}

// Simulate replays p over a copy of its origin. At a given moment, the
// actions ending are applied before the actions starting. Simulate fails on
// the first action whose precondition does not hold.
func Simulate(p *ReconfigurationPlan) (*Timeline, error) {
	sim := &simulation{
		mo:  p.origin.Clone(),
		occ: make(map[model.VM]map[model.Node]map[string]int),
	}
	for _, vm := range sim.mo.Mapping.RunningVMs() {
		h, _ := sim.mo.Mapping.Host(vm)
		sim.hold(vm, h)
	}
	tl := &Timeline{Start: sim.snapshot(0)}

	actions := p.Actions()
	moments := make(map[int]struct{})
	for _, a := range actions {
		if a.Start < 0 || a.End < a.Start {
			return nil, fmt.Errorf("%w: %s: invalid moments", ErrPrecondition, a)
		}
		moments[a.Start] = struct{}{}
		moments[a.End] = struct{}{}
	}
	times := make([]int, 0, len(moments))
	for t := range moments {
		times = append(times, t)
	}
	sort.Ints(times)

	for _, t := range times {
		for _, a := range actions {
			if a.End == t && a.Start < t {
				if err := sim.end(a); err != nil {
					return nil, err
				}
			}
		}
		for _, a := range actions {
			if a.Start != t {
				continue
			}
			if err := sim.start(a); err != nil {
				return nil, err
			}
			if a.End == t {
				if err := sim.end(a); err != nil {
					return nil, err
				}
			}
		}
		tl.Steps = append(tl.Steps, sim.snapshot(t))
	}
	tl.Result = sim.mo
	return tl, nil
}

func (s *simulation) hold(vm model.VM, n model.Node) {
	h := make(map[string]int)
	for _, rc := range s.mo.Resources() {
		h[rc.Name] = rc.Consumption(vm)
	}
	if s.occ[vm] == nil {
		s.occ[vm] = make(map[model.Node]map[string]int)
	}
	s.occ[vm][n] = h
}

func (s *simulation) start(a *Action) error {
	if err := a.CheckStart(s.mo.Mapping); err != nil {
		return err
	}
	a.applyEvents(s.mo, HookPre)
	switch a.Kind {
	case BootVM:
		s.hold(a.VM, a.Node)
	case MigrateVM, ResumeVM:
		s.hold(a.VM, a.Dst)
	case Allocate:
		if h := s.occ[a.VM][a.Node]; h != nil {
			if cur, known := h[a.Resource]; known {
				h[a.Resource] = max(cur, a.Amount)
			}
		}
	}
	return nil
}

func (s *simulation) end(a *Action) error {
	switch a.Kind {
	case MigrateVM:
		delete(s.occ[a.VM], a.Node)
	case ShutdownVM, SuspendVM, KillVM:
		delete(s.occ, a.VM)
	case Allocate:
		if rc, ok := s.mo.Resource(a.Resource); ok {
			rc.SetConsumption(a.VM, a.Amount)
		}
		if h := s.occ[a.VM][a.Node]; h != nil {
			if _, known := h[a.Resource]; known {
				h[a.Resource] = a.Amount
			}
		}
	}
	if err := a.ApplyEnd(s.mo.Mapping); err != nil {
		return err
	}
	a.applyEvents(s.mo, HookPost)
	if dst, ok := a.Destination(); ok && s.mo.Mapping.VMState(a.VM) == model.VMRunning {
		if h := s.occ[a.VM][dst]; h != nil {
			for _, e := range a.Events {
				if _, known := h[e.Resource]; known {
					h[e.Resource] = e.Amount
				}
			}
		}
	}
	return nil
}

func (s *simulation) snapshot(t int) Step {
	st := Step{
		Time:     t,
		Mapping:  s.mo.Mapping.Clone(),
		Usage:    make(map[string]map[model.Node]int),
		Presence: make(map[model.VM][]model.Node),
	}
	for _, rc := range s.mo.Resources() {
		st.Usage[rc.Name] = make(map[model.Node]int)
	}
	for _, vm := range s.mo.Mapping.VMs() {
		for _, n := range s.mo.Mapping.Nodes() {
			h, ok := s.occ[vm][n]
			if !ok {
				continue
			}
			st.Presence[vm] = append(st.Presence[vm], n)
			for rc, amount := range h {
				st.Usage[rc][n] += amount
			}
		}
	}
	return st
}
