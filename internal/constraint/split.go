package constraint

import (
	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/plan"
)

// Split prevents VMs of distinct groups from sharing a node.
type Split struct {
	optional
	groups [][]model.VM
}

func NewSplit(groups [][]model.VM) *Split {
	var all []model.VM
	for _, g := range groups {
		all = append(all, g...)
	}
	return &Split{optional: optional{base{vms: all}}, groups: groups}
}

func (c *Split) Name() string { return "split" }

// Groups returns the VM groups.
func (c *Split) Groups() [][]model.VM { return c.groups }

func (c *Split) String() string {
	parts := make([]string, len(c.groups))
	for i, g := range c.groups {
		parts[i] = joinVMs(g)
	}
	return format(c.Name(), c.continuous, parts...)
}

func (c *Split) Satisfied(mo *model.Model) bool {
	owner := make(map[model.Node]int)
	for i, g := range c.groups {
		for _, h := range runningHosts(mo.Mapping, g) {
			if o, taken := owner[h]; taken && o != i {
				return false
			}
			owner[h] = i
		}
	}
	return true
}

func (c *Split) SatisfiedAt(st plan.Step, _ *model.Model) bool {
	owner := make(map[model.Node]int)
	for i, g := range c.groups {
		for _, ns := range occupied(st, g) {
			for _, n := range ns {
				if o, taken := owner[n]; taken && o != i {
					return false
				}
				owner[n] = i
			}
		}
	}
	return true
}

// SplitAmong confines every VM group to one node group, each VM group on a
// distinct node group.
type SplitAmong struct {
	optional
	vGroups [][]model.VM
	pGroups [][]model.Node
}

func NewSplitAmong(vGroups [][]model.VM, pGroups [][]model.Node) *SplitAmong {
	var vms []model.VM
	for _, g := range vGroups {
		vms = append(vms, g...)
	}
	var nodes []model.Node
	for _, g := range pGroups {
		nodes = append(nodes, g...)
	}
	return &SplitAmong{optional: optional{base{vms: vms, nodes: nodes}}, vGroups: vGroups, pGroups: pGroups}
}

func (c *SplitAmong) Name() string { return "splitAmong" }

// VMGroups returns the VM groups.
func (c *SplitAmong) VMGroups() [][]model.VM { return c.vGroups }

// NodeGroups returns the node groups.
func (c *SplitAmong) NodeGroups() [][]model.Node { return c.pGroups }

func (c *SplitAmong) String() string {
	vs := make([]string, len(c.vGroups))
	for i, g := range c.vGroups {
		vs[i] = joinVMs(g)
	}
	return format(c.Name(), c.continuous, "vms="+joinStrings(vs), "nodes="+joinGroups(c.pGroups))
}

func (c *SplitAmong) Satisfied(mo *model.Model) bool {
	return c.assignable(func(g []model.VM) []model.Node {
		var used []model.Node
		for _, h := range runningHosts(mo.Mapping, g) {
			used = append(used, h)
		}
		return used
	})
}

func (c *SplitAmong) SatisfiedAt(st plan.Step, _ *model.Model) bool {
	return c.assignable(func(g []model.VM) []model.Node {
		var used []model.Node
		for _, ns := range occupied(st, g) {
			used = append(used, ns...)
		}
		return used
	})
}

// assignable checks every VM group fits one node group and that no node
// group serves two VM groups.
func (c *SplitAmong) assignable(used func([]model.VM) []model.Node) bool {
	taken := make(map[int]int)
	for i, g := range c.vGroups {
		ns := used(g)
		if len(ns) == 0 {
			continue
		}
		pg := GroupOf(c.pGroups, ns)
		if pg < 0 {
			return false
		}
		if o, ok := taken[pg]; ok && o != i {
			return false
		}
		taken[pg] = i
	}
	return true
}

func joinStrings(s []string) string {
	out := "["
	for i, x := range s {
		if i > 0 {
			out += ", "
		}
		out += x
	}
	return out + "]"
}
