package inject

import (
	"fmt"

	"github.com/guimove/replanner/internal/constraint"
	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/scheduler"
	"github.com/guimove/replanner/internal/solver"
)

type split struct{ c *constraint.Split }

// Inject keeps the host sets of the groups disjoint. In continuous mode, a
// VM of one group lands on a node left by another group only after the
// departure.
func (sp *split) Inject(p *scheduler.Problem) error {
	groups := sp.c.Groups()
	var hosts [][]*solver.IntVar
	member := make(map[*scheduler.VMTransition]int)
	var in, out []*scheduler.VMTransition
	for g, vms := range groups {
		var hs []*solver.IntVar
		for _, t := range landing(p, vms) {
			hs = append(hs, t.DSlice.Host)
			member[t] = g
			in = append(in, t)
		}
		for _, t := range leaving(p, vms) {
			member[t] = g
			out = append(out, t)
		}
		if len(hs) > 0 {
			hosts = append(hosts, hs)
		}
	}
	if len(hosts) > 1 {
		if _, err := p.Solver().PostDisjoint(hosts, len(p.Nodes())); err != nil {
			return scheduler.Contradiction(sp.c.Name(), err)
		}
	}
	if !sp.c.IsContinuous() {
		return nil
	}
	return precedences(p, out, in, func(a, b *scheduler.VMTransition) bool {
		return member[a] != member[b]
	})
}

func (sp *split) MisPlaced(mo *model.Model) []model.VM {
	return allIfViolated(sp.c, mo, sp.c.InvolvedVMs())
}

type splitAmong struct{ c *constraint.SplitAmong }

// Inject assigns every VM group to a node group, each to a distinct one.
// In continuous mode, the groups already running keep their node group.
func (sa *splitAmong) Inject(p *scheduler.Problem) error {
	vGroups, pGroups := sa.c.VMGroups(), sa.c.NodeGroups()
	if len(pGroups) == 0 {
		return scheduler.Contradiction(sa.c.Name(), fmt.Errorf("no node group"))
	}
	table, err := groupTable(p, pGroups)
	if err != nil {
		return scheduler.Contradiction(fmt.Sprint(sa.c), err)
	}
	s := p.Solver()
	var assigned []*solver.IntVar
	for i, vms := range vGroups {
		ts := landing(p, vms)
		if len(ts) == 0 {
			continue
		}
		g := s.EnumVar(fmt.Sprintf("%s.group(%d)", sa.c.Name(), i), 0, len(pGroups)-1)
		if sa.c.IsContinuous() {
			if cur := currentGroup(p.Source, vms, pGroups); cur >= 0 {
				if err := g.InstantiateTo(cur, nil); err != nil {
					return scheduler.Contradiction(sa.c.Name(), err)
				}
			}
		}
		for _, t := range ts {
			if err := s.NewElement(g, table, t.DSlice.Host); err != nil {
				return scheduler.Contradiction(string(t.VM), err)
			}
		}
		assigned = append(assigned, g)
	}
	if len(assigned) > 1 {
		if err := s.NewAllDifferent(assigned); err != nil {
			return scheduler.Contradiction(sa.c.Name(), err)
		}
	}
	return nil
}

func (sa *splitAmong) MisPlaced(mo *model.Model) []model.VM {
	return allIfViolated(sa.c, mo, sa.c.InvolvedVMs())
}
