package inject

import (
	"fmt"

	"github.com/guimove/replanner/internal/constraint"
	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/scheduler"
	"github.com/guimove/replanner/internal/solver"
)

type fence struct{ c *constraint.Fence }

func (f *fence) Inject(p *scheduler.Problem) error {
	allowed := nodeIndexes(p, f.c.InvolvedNodes())
	for _, t := range landing(p, f.c.InvolvedVMs()) {
		if err := t.DSlice.Host.RemoveAllBut(func(i int) bool { return allowed[i] }, nil); err != nil {
			return scheduler.Contradiction(string(t.VM), err)
		}
	}
	return nil
}

func (f *fence) MisPlaced(mo *model.Model) []model.VM {
	allowed := make(map[model.Node]bool)
	for _, n := range f.c.InvolvedNodes() {
		allowed[n] = true
	}
	return runningOn(mo, f.c.InvolvedVMs(), func(n model.Node) bool { return !allowed[n] })
}

type ban struct{ c *constraint.Ban }

func (b *ban) Inject(p *scheduler.Problem) error {
	denied := nodeIndexes(p, b.c.InvolvedNodes())
	for _, t := range landing(p, b.c.InvolvedVMs()) {
		if err := t.DSlice.Host.RemoveAllBut(func(i int) bool { return !denied[i] }, nil); err != nil {
			return scheduler.Contradiction(string(t.VM), err)
		}
	}
	return nil
}

func (b *ban) MisPlaced(mo *model.Model) []model.VM {
	denied := make(map[model.Node]bool)
	for _, n := range b.c.InvolvedNodes() {
		denied[n] = true
	}
	return runningOn(mo, b.c.InvolvedVMs(), func(n model.Node) bool { return denied[n] })
}

type root struct{ c *constraint.Root }

func (r *root) Inject(p *scheduler.Problem) error {
	for _, t := range landing(p, r.c.InvolvedVMs()) {
		if t.Kind != scheduler.Relocatable {
			continue
		}
		if err := t.DSlice.Host.InstantiateTo(t.Src, nil); err != nil {
			return scheduler.Contradiction(string(t.VM), err)
		}
	}
	return nil
}

func (*root) MisPlaced(*model.Model) []model.VM { return nil }

type gather struct{ c *constraint.Gather }

// Inject puts every host on the same node. In continuous mode, the VMs
// already running pin that node.
func (g *gather) Inject(p *scheduler.Problem) error {
	ts := landing(p, g.c.InvolvedVMs())
	if len(ts) == 0 {
		return nil
	}
	if g.c.IsContinuous() {
		for _, t := range ts {
			if t.Kind != scheduler.Relocatable {
				continue
			}
			for _, o := range ts {
				if err := o.DSlice.Host.InstantiateTo(t.Src, nil); err != nil {
					return scheduler.Contradiction(string(o.VM), err)
				}
			}
			return nil
		}
	}
	s := p.Solver()
	for _, t := range ts[1:] {
		if err := s.Arithm(ts[0].DSlice.Host, 0, solver.OpEQ, t.DSlice.Host); err != nil {
			return scheduler.Contradiction(string(t.VM), err)
		}
	}
	return nil
}

func (g *gather) MisPlaced(mo *model.Model) []model.VM {
	return allIfViolated(g.c, mo, g.c.InvolvedVMs())
}

type among struct{ c *constraint.Among }

// groupTable maps every node index to its group, -1 outside any group.
func groupTable(p *scheduler.Problem, groups [][]model.Node) ([]int, error) {
	table := make([]int, len(p.Nodes()))
	for i := range table {
		table[i] = -1
	}
	for g, ns := range groups {
		for _, n := range ns {
			i, ok := p.NodeIndex(n)
			if !ok {
				continue
			}
			if table[i] >= 0 && table[i] != g {
				return nil, fmt.Errorf("node %s belongs to groups %d and %d", n, table[i], g)
			}
			table[i] = g
		}
	}
	return table, nil
}

// Inject ties every host to a group variable. In continuous mode, the group
// of the running VMs is kept.
func (a *among) Inject(p *scheduler.Problem) error {
	groups := a.c.Groups()
	if len(groups) == 0 {
		return scheduler.Contradiction(a.c.Name(), fmt.Errorf("no group"))
	}
	table, err := groupTable(p, groups)
	if err != nil {
		return scheduler.Contradiction(fmt.Sprint(a.c), err)
	}
	ts := landing(p, a.c.InvolvedVMs())
	if len(ts) == 0 {
		return nil
	}
	s := p.Solver()
	group := s.EnumVar(a.c.Name()+".group", 0, len(groups)-1)
	if a.c.IsContinuous() {
		if g := currentGroup(p.Source, a.c.InvolvedVMs(), groups); g >= 0 {
			if err := group.InstantiateTo(g, nil); err != nil {
				return scheduler.Contradiction(a.c.Name(), err)
			}
		}
	}
	for _, t := range ts {
		if err := s.NewElement(group, table, t.DSlice.Host); err != nil {
			return scheduler.Contradiction(string(t.VM), err)
		}
	}
	return nil
}

// currentGroup returns the group hosting the running vms, -1 when none is
// running.
func currentGroup(mo *model.Model, vms []model.VM, groups [][]model.Node) int {
	var used []model.Node
	for _, vm := range vms {
		if mo.Mapping.VMState(vm) != model.VMRunning {
			continue
		}
		if h, ok := mo.Mapping.Host(vm); ok {
			used = append(used, h)
		}
	}
	if len(used) == 0 {
		return -1
	}
	return constraint.GroupOf(groups, used)
}

func (a *among) MisPlaced(mo *model.Model) []model.VM {
	return allIfViolated(a.c, mo, a.c.InvolvedVMs())
}

type spread struct{ c *constraint.Spread }

// Inject requires distinct hosts. In continuous mode, a VM may only land on
// the current host of another one once that one has left.
func (sp *spread) Inject(p *scheduler.Problem) error {
	ts := landing(p, sp.c.InvolvedVMs())
	s := p.Solver()
	if len(ts) > 1 {
		hosts := make([]*solver.IntVar, len(ts))
		for i, t := range ts {
			hosts[i] = t.DSlice.Host
		}
		if err := s.NewAllDifferent(hosts); err != nil {
			return scheduler.Contradiction(sp.c.Name(), err)
		}
	}
	if !sp.c.IsContinuous() {
		return nil
	}
	return precedences(p, leaving(p, sp.c.InvolvedVMs()), ts, func(a, b *scheduler.VMTransition) bool {
		return a != b
	})
}

// precedences delays the arrival of every VM of in on the current host of
// a VM of out until the latter is gone, for the pairs conflict selects.
func precedences(p *scheduler.Problem, out, in []*scheduler.VMTransition, conflict func(a, b *scheduler.VMTransition) bool) error {
	s := p.Solver()
	for _, a := range out {
		for _, b := range in {
			if !conflict(a, b) || !b.DSlice.Host.Contains(a.Src) {
				continue
			}
			if err := s.NewSameHostPrecedence(b.DSlice.Host, a.Src, b.DSlice.Start, a.CSlice.End); err != nil {
				return scheduler.Contradiction(string(b.VM), err)
			}
		}
	}
	return nil
}

func (sp *spread) MisPlaced(mo *model.Model) []model.VM {
	hosts := make(map[model.Node][]model.VM)
	for _, vm := range runningOn(mo, sp.c.InvolvedVMs(), func(model.Node) bool { return true }) {
		h, _ := mo.Mapping.Host(vm)
		hosts[h] = append(hosts[h], vm)
	}
	var out []model.VM
	for _, vm := range sp.c.InvolvedVMs() {
		if h, ok := mo.Mapping.Host(vm); ok && len(hosts[h]) > 1 {
			out = append(out, vm)
		}
	}
	return out
}
