package model

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownNode = errors.New("unknown node")
	ErrUnknownVM   = errors.New("unknown VM")
	ErrNodeOffline = errors.New("node is offline")
	ErrNodeInUse   = errors.New("node hosts VMs")
)

// Mapping tracks node states and the state and host of every VM. Insertion
// order is kept so that iterating a mapping is deterministic.
type Mapping struct {
	nodes     []Node
	nodeState map[Node]NodeState
	vms       []VM
	vmState   map[VM]VMState
	host      map[VM]Node
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{
		nodeState: make(map[Node]NodeState),
		vmState:   make(map[VM]VMState),
		host:      make(map[VM]Node),
	}
}

func (m *Mapping) addNode(n Node, st NodeState) {
	if _, ok := m.nodeState[n]; !ok {
		m.nodes = append(m.nodes, n)
	}
	m.nodeState[n] = st
}

// AddOnlineNode declares n online.
func (m *Mapping) AddOnlineNode(n Node) { m.addNode(n, NodeOnline) }

// AddOfflineNode declares n offline. It fails if n hosts VMs.
func (m *Mapping) AddOfflineNode(n Node) error {
	if len(m.HostedOn(n)) > 0 {
		return fmt.Errorf("setting %s offline: %w", n, ErrNodeInUse)
	}
	m.addNode(n, NodeOffline)
	return nil
}

func (m *Mapping) place(vm VM, st VMState, n Node) error {
	ns, ok := m.nodeState[n]
	if !ok {
		return fmt.Errorf("placing %s on %s: %w", vm, n, ErrUnknownNode)
	}
	if ns != NodeOnline {
		return fmt.Errorf("placing %s on %s: %w", vm, n, ErrNodeOffline)
	}
	m.addVM(vm, st)
	m.host[vm] = n
	return nil
}

func (m *Mapping) addVM(vm VM, st VMState) {
	if _, ok := m.vmState[vm]; !ok {
		m.vms = append(m.vms, vm)
	}
	m.vmState[vm] = st
	delete(m.host, vm)
}

// AddRunningVM places a running VM on an online node.
func (m *Mapping) AddRunningVM(vm VM, n Node) error { return m.place(vm, VMRunning, n) }

// AddSleepingVM places a sleeping VM on an online node.
func (m *Mapping) AddSleepingVM(vm VM, n Node) error { return m.place(vm, VMSleeping, n) }

// AddReadyVM declares a VM ready to be booted.
func (m *Mapping) AddReadyVM(vm VM) { m.addVM(vm, VMReady) }

// Remove forgets a VM.
func (m *Mapping) Remove(vm VM) {
	if _, ok := m.vmState[vm]; !ok {
		return
	}
	delete(m.vmState, vm)
	delete(m.host, vm)
	for i, v := range m.vms {
		if v == vm {
			m.vms = append(m.vms[:i], m.vms[i+1:]...)
			break
		}
	}
}

// RemoveNode forgets an empty node.
func (m *Mapping) RemoveNode(n Node) error {
	if _, ok := m.nodeState[n]; !ok {
		return fmt.Errorf("removing %s: %w", n, ErrUnknownNode)
	}
	if len(m.HostedOn(n)) > 0 {
		return fmt.Errorf("removing %s: %w", n, ErrNodeInUse)
	}
	delete(m.nodeState, n)
	for i, x := range m.nodes {
		if x == n {
			m.nodes = append(m.nodes[:i], m.nodes[i+1:]...)
			break
		}
	}
	return nil
}

// Nodes returns every node in insertion order.
func (m *Mapping) Nodes() []Node { return append([]Node(nil), m.nodes...) }

// VMs returns every VM in insertion order.
func (m *Mapping) VMs() []VM { return append([]VM(nil), m.vms...) }

// NodeState returns the state of n.
func (m *Mapping) NodeState(n Node) (NodeState, bool) {
	st, ok := m.nodeState[n]
	return st, ok
}

// VMState returns the state of vm, VMInit when absent.
func (m *Mapping) VMState(vm VM) VMState {
	if st, ok := m.vmState[vm]; ok {
		return st
	}
	return VMInit
}

// Contains reports whether vm is in the mapping.
func (m *Mapping) Contains(vm VM) bool {
	_, ok := m.vmState[vm]
	return ok
}

// ContainsNode reports whether n is in the mapping.
func (m *Mapping) ContainsNode(n Node) bool {
	_, ok := m.nodeState[n]
	return ok
}

// Host returns the node hosting a running or sleeping VM.
func (m *Mapping) Host(vm VM) (Node, bool) {
	n, ok := m.host[vm]
	return n, ok
}

// IsOnline reports whether n is online.
func (m *Mapping) IsOnline(n Node) bool { return m.nodeState[n] == NodeOnline && m.ContainsNode(n) }

func (m *Mapping) vmsIn(st VMState) []VM {
	var out []VM
	for _, vm := range m.vms {
		if m.vmState[vm] == st {
			out = append(out, vm)
		}
	}
	return out
}

func (m *Mapping) nodesIn(st NodeState) []Node {
	var out []Node
	for _, n := range m.nodes {
		if m.nodeState[n] == st {
			out = append(out, n)
		}
	}
	return out
}

func (m *Mapping) RunningVMs() []VM    { return m.vmsIn(VMRunning) }
func (m *Mapping) SleepingVMs() []VM   { return m.vmsIn(VMSleeping) }
func (m *Mapping) ReadyVMs() []VM      { return m.vmsIn(VMReady) }
func (m *Mapping) OnlineNodes() []Node { return m.nodesIn(NodeOnline) }
func (m *Mapping) OfflineNodes() []Node {
	return m.nodesIn(NodeOffline)
}

// RunningOn returns the VMs running on n.
func (m *Mapping) RunningOn(n Node) []VM { return m.on(n, VMRunning) }

// SleepingOn returns the VMs sleeping on n.
func (m *Mapping) SleepingOn(n Node) []VM { return m.on(n, VMSleeping) }

// HostedOn returns the VMs running or sleeping on n.
func (m *Mapping) HostedOn(n Node) []VM {
	var out []VM
	for _, vm := range m.vms {
		if h, ok := m.host[vm]; ok && h == n {
			out = append(out, vm)
		}
	}
	return out
}

func (m *Mapping) on(n Node, st VMState) []VM {
	var out []VM
	for _, vm := range m.vms {
		if h, ok := m.host[vm]; ok && h == n && m.vmState[vm] == st {
			out = append(out, vm)
		}
	}
	return out
}

// Clone returns a deep copy.
func (m *Mapping) Clone() *Mapping {
	c := NewMapping()
	c.nodes = append(c.nodes, m.nodes...)
	c.vms = append(c.vms, m.vms...)
	for k, v := range m.nodeState {
		c.nodeState[k] = v
	}
	for k, v := range m.vmState {
		c.vmState[k] = v
	}
	for k, v := range m.host {
		c.host[k] = v
	}
	return c
}

// Equal reports whether both mappings hold the same states and hosts,
// regardless of insertion order.
func (m *Mapping) Equal(o *Mapping) bool {
	if len(m.nodeState) != len(o.nodeState) || len(m.vmState) != len(o.vmState) || len(m.host) != len(o.host) {
		return false
	}
	for k, v := range m.nodeState {
		if w, ok := o.nodeState[k]; !ok || w != v {
			return false
		}
	}
	for k, v := range m.vmState {
		if w, ok := o.vmState[k]; !ok || w != v {
			return false
		}
	}
	for k, v := range m.host {
		if w, ok := o.host[k]; !ok || w != v {
			return false
		}
	}
	return true
}
