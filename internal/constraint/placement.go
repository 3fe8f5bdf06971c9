package constraint

import (
	"fmt"

	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/plan"
)

// Fence restricts the running VMs to a set of nodes.
type Fence struct{ optional }

func NewFence(vms []model.VM, nodes []model.Node) *Fence {
	return &Fence{optional{base{vms: vms, nodes: nodes}}}
}

func (c *Fence) Name() string { return "fence" }
func (c *Fence) String() string {
	return format(c.Name(), c.continuous, "vms="+joinVMs(c.vms), "nodes="+joinNodes(c.nodes))
}

func (c *Fence) Satisfied(mo *model.Model) bool {
	allowed := nodeSet(c.nodes)
	for _, h := range runningHosts(mo.Mapping, c.vms) {
		if !allowed[h] {
			return false
		}
	}
	return true
}

func (c *Fence) SatisfiedAt(st plan.Step, _ *model.Model) bool {
	allowed := nodeSet(c.nodes)
	for _, ns := range occupied(st, c.vms) {
		for _, n := range ns {
			if !allowed[n] {
				return false
			}
		}
	}
	return true
}

// Ban forbids the running VMs to use a set of nodes.
type Ban struct{ optional }

func NewBan(vms []model.VM, nodes []model.Node) *Ban {
	return &Ban{optional{base{vms: vms, nodes: nodes}}}
}

func (c *Ban) Name() string { return "ban" }
func (c *Ban) String() string {
	return format(c.Name(), c.continuous, "vms="+joinVMs(c.vms), "nodes="+joinNodes(c.nodes))
}

func (c *Ban) Satisfied(mo *model.Model) bool {
	denied := nodeSet(c.nodes)
	for _, h := range runningHosts(mo.Mapping, c.vms) {
		if denied[h] {
			return false
		}
	}
	return true
}

func (c *Ban) SatisfiedAt(st plan.Step, _ *model.Model) bool {
	denied := nodeSet(c.nodes)
	for _, ns := range occupied(st, c.vms) {
		for _, n := range ns {
			if denied[n] {
				return false
			}
		}
	}
	return true
}

// Root forbids relocating running VMs.
type Root struct{ base }

func NewRoot(vms ...model.VM) *Root {
	return &Root{base{vms: vms, continuous: true}}
}

func (c *Root) Name() string                { return "root" }
func (c *Root) String() string              { return format(c.Name(), true, joinVMs(c.vms)) }
func (c *Root) Satisfied(*model.Model) bool { return true }

// SetContinuous only accepts the continuous semantics.
func (c *Root) SetContinuous(b bool) error {
	if !b {
		return fmt.Errorf("%w: discrete", ErrContinuousUnsupported)
	}
	return nil
}

func (c *Root) SatisfiedByPlan(p *plan.ReconfigurationPlan) bool {
	for _, vm := range c.vms {
		if _, moved := p.Find(vm, plan.MigrateVM); moved {
			return false
		}
	}
	return true
}

// Gather puts the running VMs on one node.
type Gather struct{ optional }

func NewGather(vms ...model.VM) *Gather {
	return &Gather{optional{base{vms: vms}}}
}

func (c *Gather) Name() string   { return "gather" }
func (c *Gather) String() string { return format(c.Name(), c.continuous, joinVMs(c.vms)) }

func (c *Gather) Satisfied(mo *model.Model) bool {
	return sameHost(runningHosts(mo.Mapping, c.vms))
}

func (c *Gather) SatisfiedAt(st plan.Step, _ *model.Model) bool {
	return sameHost(runningHosts(st.Mapping, c.vms))
}

func sameHost(hosts map[model.VM]model.Node) bool {
	var ref model.Node
	for _, h := range hosts {
		if ref == "" {
			ref = h
		} else if h != ref {
			return false
		}
	}
	return true
}

// Among puts the running VMs inside one of several node groups.
type Among struct {
	optional
	groups [][]model.Node
}

func NewAmong(vms []model.VM, groups [][]model.Node) *Among {
	var all []model.Node
	for _, g := range groups {
		all = append(all, g...)
	}
	return &Among{optional: optional{base{vms: vms, nodes: all}}, groups: groups}
}

func (c *Among) Name() string { return "among" }

// Groups returns the candidate node groups.
func (c *Among) Groups() [][]model.Node { return c.groups }

func (c *Among) String() string {
	return format(c.Name(), c.continuous, "vms="+joinVMs(c.vms), "groups="+joinGroups(c.groups))
}

func (c *Among) Satisfied(mo *model.Model) bool {
	var used []model.Node
	for _, h := range runningHosts(mo.Mapping, c.vms) {
		used = append(used, h)
	}
	return GroupOf(c.groups, used) >= 0 || len(used) == 0
}

func (c *Among) SatisfiedAt(st plan.Step, _ *model.Model) bool {
	var used []model.Node
	for _, ns := range occupied(st, c.vms) {
		used = append(used, ns...)
	}
	return GroupOf(c.groups, used) >= 0 || len(used) == 0
}

// GroupOf returns the index of the first group that contains every node of
// ns, or -1.
func GroupOf(groups [][]model.Node, ns []model.Node) int {
	for i, g := range groups {
		in := nodeSet(g)
		ok := true
		for _, n := range ns {
			if !in[n] {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return -1
}

func joinGroups(groups [][]model.Node) string {
	s := "["
	for i, g := range groups {
		if i > 0 {
			s += ", "
		}
		s += joinNodes(g)
	}
	return s + "]"
}

// Spread puts the running VMs on distinct nodes. It is continuous by
// default: a node hosting one of the VMs is denied to the others until the
// VM leaves.
type Spread struct{ optional }

func NewSpread(vms ...model.VM) *Spread {
	return &Spread{optional{base{vms: vms, continuous: true}}}
}

func (c *Spread) Name() string   { return "spread" }
func (c *Spread) String() string { return format(c.Name(), c.continuous, joinVMs(c.vms)) }

func (c *Spread) Satisfied(mo *model.Model) bool {
	seen := make(map[model.Node]bool)
	for _, vm := range c.vms {
		h, ok := runningHosts(mo.Mapping, []model.VM{vm})[vm]
		if !ok {
			continue
		}
		if seen[h] {
			return false
		}
		seen[h] = true
	}
	return true
}

func (c *Spread) SatisfiedAt(st plan.Step, _ *model.Model) bool {
	owner := make(map[model.Node]model.VM)
	for _, vm := range c.vms {
		for _, n := range st.Presence[vm] {
			if o, taken := owner[n]; taken && o != vm {
				return false
			}
			owner[n] = vm
		}
	}
	return true
}
