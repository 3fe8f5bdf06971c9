package model

import "fmt"

// VM identifies a virtual machine.
type VM string

// Node identifies a physical node.
type Node string

// VMState is the state of a VM in a mapping.
type VMState int

const (
	// VMInit is the state of a VM absent from a mapping.
	VMInit VMState = iota
	VMReady
	VMRunning
	VMSleeping
	VMKilled
)

func (s VMState) String() string {
	switch s {
	case VMInit:
		return "init"
	case VMReady:
		return "ready"
	case VMRunning:
		return "running"
	case VMSleeping:
		return "sleeping"
	case VMKilled:
		return "killed"
	}
	return fmt.Sprintf("VMState(%d)", int(s))
}

// ParseVMState maps a state name to its value.
func ParseVMState(s string) (VMState, error) {
	switch s {
	case "ready":
		return VMReady, nil
	case "running":
		return VMRunning, nil
	case "sleeping":
		return VMSleeping, nil
	case "killed":
		return VMKilled, nil
	}
	return VMInit, fmt.Errorf("unknown VM state %q", s)
}

// NodeState is the state of a node in a mapping.
type NodeState int

const (
	NodeOffline NodeState = iota
	NodeOnline
)

func (s NodeState) String() string {
	if s == NodeOnline {
		return "online"
	}
	return "offline"
}
