package constraint

import "github.com/guimove/replanner/internal/model"

// Running forces VMs to be running at the end of the plan.
type Running struct{ discrete }

func NewRunning(vms ...model.VM) *Running {
	return &Running{discrete{base{vms: vms}}}
}

func (c *Running) Name() string                   { return "running" }
func (c *Running) RequiredVMState() model.VMState { return model.VMRunning }
func (c *Running) Satisfied(mo *model.Model) bool { return allInState(mo, c.vms, model.VMRunning) }
func (c *Running) String() string                 { return format(c.Name(), false, joinVMs(c.vms)) }

// Ready forces VMs to be ready at the end of the plan.
type Ready struct{ discrete }

func NewReady(vms ...model.VM) *Ready {
	return &Ready{discrete{base{vms: vms}}}
}

func (c *Ready) Name() string                   { return "ready" }
func (c *Ready) RequiredVMState() model.VMState { return model.VMReady }
func (c *Ready) Satisfied(mo *model.Model) bool { return allInState(mo, c.vms, model.VMReady) }
func (c *Ready) String() string                 { return format(c.Name(), false, joinVMs(c.vms)) }

// Sleeping forces VMs to be suspended at the end of the plan.
type Sleeping struct{ discrete }

func NewSleeping(vms ...model.VM) *Sleeping {
	return &Sleeping{discrete{base{vms: vms}}}
}

func (c *Sleeping) Name() string                   { return "sleeping" }
func (c *Sleeping) RequiredVMState() model.VMState { return model.VMSleeping }
func (c *Sleeping) Satisfied(mo *model.Model) bool { return allInState(mo, c.vms, model.VMSleeping) }
func (c *Sleeping) String() string                 { return format(c.Name(), false, joinVMs(c.vms)) }

// Killed forces VMs out of the model.
type Killed struct{ discrete }

func NewKilled(vms ...model.VM) *Killed {
	return &Killed{discrete{base{vms: vms}}}
}

func (c *Killed) Name() string                   { return "killed" }
func (c *Killed) RequiredVMState() model.VMState { return model.VMKilled }
func (c *Killed) String() string                 { return format(c.Name(), false, joinVMs(c.vms)) }

func (c *Killed) Satisfied(mo *model.Model) bool {
	for _, vm := range c.vms {
		if mo.Mapping.Contains(vm) {
			return false
		}
	}
	return true
}

func allInState(mo *model.Model, vms []model.VM, st model.VMState) bool {
	for _, vm := range vms {
		if mo.Mapping.VMState(vm) != st {
			return false
		}
	}
	return true
}

// Online forces nodes to be online.
type Online struct{ discrete }

func NewOnline(nodes ...model.Node) *Online {
	return &Online{discrete{base{nodes: nodes}}}
}

func (c *Online) Name() string                       { return "online" }
func (c *Online) RequiredNodeState() model.NodeState { return model.NodeOnline }
func (c *Online) String() string                     { return format(c.Name(), false, joinNodes(c.nodes)) }

func (c *Online) Satisfied(mo *model.Model) bool {
	for _, n := range c.nodes {
		if !mo.Mapping.IsOnline(n) {
			return false
		}
	}
	return true
}

// Offline forces nodes to be offline.
type Offline struct{ discrete }

func NewOffline(nodes ...model.Node) *Offline {
	return &Offline{discrete{base{nodes: nodes}}}
}

func (c *Offline) Name() string                       { return "offline" }
func (c *Offline) RequiredNodeState() model.NodeState { return model.NodeOffline }
func (c *Offline) String() string                     { return format(c.Name(), false, joinNodes(c.nodes)) }

func (c *Offline) Satisfied(mo *model.Model) bool {
	for _, n := range c.nodes {
		if st, ok := mo.Mapping.NodeState(n); !ok || st != model.NodeOffline {
			return false
		}
	}
	return true
}
