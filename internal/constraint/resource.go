package constraint

import (
	"fmt"
	"math"

	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/plan"
)

// Preserve guarantees a minimal amount of a resource to running VMs.
type Preserve struct {
	discrete
	resource string
	amount   int
}

func NewPreserve(vms []model.VM, rc string, amount int) *Preserve {
	return &Preserve{discrete: discrete{base{vms: vms}}, resource: rc, amount: amount}
}

func (c *Preserve) Name() string     { return "preserve" }
func (c *Preserve) Resource() string { return c.resource }
func (c *Preserve) Amount() int      { return c.amount }

func (c *Preserve) String() string {
	return format(c.Name(), false, "vms="+joinVMs(c.vms), "rc="+c.resource, fmt.Sprintf("amount=%d", c.amount))
}

func (c *Preserve) Satisfied(mo *model.Model) bool {
	rc, ok := mo.Resource(c.resource)
	if !ok {
		return false
	}
	for _, vm := range c.vms {
		if mo.Mapping.VMState(vm) == model.VMRunning && rc.Consumption(vm) < c.amount {
			return false
		}
	}
	return true
}

// Overbook bounds the virtual capacity of nodes to a ratio of their
// physical capacity.
type Overbook struct {
	optional
	resource string
	ratio    float64
}

func NewOverbook(nodes []model.Node, rc string, ratio float64) *Overbook {
	return &Overbook{optional: optional{base{nodes: nodes, continuous: true}}, resource: rc, ratio: ratio}
}

func (c *Overbook) Name() string     { return "overbook" }
func (c *Overbook) Resource() string { return c.resource }
func (c *Overbook) Ratio() float64   { return c.ratio }

func (c *Overbook) String() string {
	return format(c.Name(), c.continuous, "nodes="+joinNodes(c.nodes), "rc="+c.resource, fmt.Sprintf("ratio=%g", c.ratio))
}

// VirtualCapacity is the capacity of n seen by the VMs.
func (c *Overbook) VirtualCapacity(rc *model.ShareableResource, n model.Node) int {
	return int(math.Floor(float64(rc.Capacity(n)) * c.ratio))
}

func (c *Overbook) Satisfied(mo *model.Model) bool {
	rc, ok := mo.Resource(c.resource)
	if !ok {
		return false
	}
	for _, n := range c.nodes {
		if !mo.Mapping.IsOnline(n) {
			continue
		}
		if rc.SumConsumption(mo.Mapping.RunningOn(n)) > c.VirtualCapacity(rc, n) {
			return false
		}
	}
	return true
}

func (c *Overbook) SatisfiedAt(st plan.Step, origin *model.Model) bool {
	rc, ok := origin.Resource(c.resource)
	if !ok {
		return false
	}
	for _, n := range c.nodes {
		if st.Usage[c.resource][n] > c.VirtualCapacity(rc, n) {
			return false
		}
	}
	return true
}

// ResourceCapacity bounds the amount of a resource the running VMs use on
// a set of nodes.
type ResourceCapacity struct {
	optional
	resource string
	amount   int
}

func NewResourceCapacity(nodes []model.Node, rc string, amount int) *ResourceCapacity {
	return &ResourceCapacity{optional: optional{base{nodes: nodes}}, resource: rc, amount: amount}
}

func (c *ResourceCapacity) Name() string     { return "resourceCapacity" }
func (c *ResourceCapacity) Resource() string { return c.resource }
func (c *ResourceCapacity) Amount() int      { return c.amount }

func (c *ResourceCapacity) String() string {
	return format(c.Name(), c.continuous, "nodes="+joinNodes(c.nodes), "rc="+c.resource, fmt.Sprintf("amount=%d", c.amount))
}

func (c *ResourceCapacity) Satisfied(mo *model.Model) bool {
	rc, ok := mo.Resource(c.resource)
	if !ok {
		return false
	}
	sum := 0
	for _, n := range c.nodes {
		sum += rc.SumConsumption(mo.Mapping.RunningOn(n))
	}
	return sum <= c.amount
}

func (c *ResourceCapacity) SatisfiedAt(st plan.Step, _ *model.Model) bool {
	sum := 0
	for _, n := range c.nodes {
		sum += st.Usage[c.resource][n]
	}
	return sum <= c.amount
}

// MinMTTR minimizes the sum of the completion times of the VM actions.
type MinMTTR struct{}

func (MinMTTR) Name() string { return "minMTTR" }

// MinMigrations minimizes the number of relocations, then the completion
// times.
type MinMigrations struct{}

func (MinMigrations) Name() string { return "minMigrations" }
