// Package partition splits a reconfiguration problem into independent
// instances over disjoint node sets and solves them in parallel.
package partition

import (
	"errors"
	"fmt"

	"github.com/guimove/replanner/internal/constraint"
	"github.com/guimove/replanner/internal/model"
)

var (
	// ErrSplitRejected reports a problem that cannot be soundly split. The
	// caller should solve it as one instance.
	ErrSplitRejected = errors.New("split rejected")
	// ErrInvalidPartition reports node sets that do not cover the model
	// exactly once.
	ErrInvalidPartition = errors.New("invalid partition")
)

// Instance is a model with the constraints and objective to solve it with.
type Instance struct {
	Model       *model.Model
	Constraints []constraint.SatConstraint
	Objective   constraint.OptConstraint
}

// Splitter distributes the elements of an instance over partitions.
type Splitter struct {
	// Ready pins ready or unknown VMs to a partition. The others are
	// dealt round-robin.
	Ready map[model.VM]int
}

// positions locates every element of an instance.
type positions struct {
	node map[model.Node]int
	vm   map[model.VM]int
}

func (p *positions) vms(vms []model.VM) map[int][]model.VM {
	out := make(map[int][]model.VM)
	for _, vm := range vms {
		if i, ok := p.vm[vm]; ok {
			out[i] = append(out[i], vm)
		}
	}
	return out
}

func (p *positions) nodes(ns []model.Node) map[int][]model.Node {
	out := make(map[int][]model.Node)
	for _, n := range ns {
		if i, ok := p.node[n]; ok {
			out[i] = append(out[i], n)
		}
	}
	return out
}

// Split projects inst onto the node sets of parts. Every node of the model
// must belong to exactly one part.
func (s *Splitter) Split(inst Instance, parts [][]model.Node) ([]Instance, error) {
	mo := inst.Model
	if mo.Network != nil && len(mo.Network.Links()) > 0 {
		return nil, fmt.Errorf("%w: the network links the partitions", ErrSplitRejected)
	}
	pos := positions{node: make(map[model.Node]int), vm: make(map[model.VM]int)}
	for i, ns := range parts {
		for _, n := range ns {
			if !mo.Mapping.ContainsNode(n) {
				return nil, fmt.Errorf("%w: unknown node %s", ErrInvalidPartition, n)
			}
			if j, dup := pos.node[n]; dup {
				return nil, fmt.Errorf("%w: node %s in parts %d and %d", ErrInvalidPartition, n, j, i)
			}
			pos.node[n] = i
		}
	}
	for _, n := range mo.Mapping.Nodes() {
		if _, ok := pos.node[n]; !ok {
			return nil, fmt.Errorf("%w: node %s in no part", ErrInvalidPartition, n)
		}
	}

	next := 0
	place := func(vm model.VM) error {
		if _, done := pos.vm[vm]; done {
			return nil
		}
		if h, ok := mo.Mapping.Host(vm); ok {
			pos.vm[vm] = pos.node[h]
			return nil
		}
		if i, ok := s.Ready[vm]; ok {
			if i < 0 || i >= len(parts) {
				return fmt.Errorf("%w: VM %s pinned to part %d", ErrInvalidPartition, vm, i)
			}
			pos.vm[vm] = i
			return nil
		}
		pos.vm[vm] = next % len(parts)
		next++
		return nil
	}
	for _, vm := range mo.Mapping.VMs() {
		if err := place(vm); err != nil {
			return nil, err
		}
	}
	// VMs only known from state constraints are forged in one part
	for _, c := range inst.Constraints {
		if _, ok := c.(constraint.VMStateDeclaration); !ok {
			continue
		}
		for _, vm := range c.InvolvedVMs() {
			if err := place(vm); err != nil {
				return nil, err
			}
		}
	}

	out := make([]Instance, len(parts))
	for i, ns := range parts {
		sub, err := subModel(mo, ns, &pos, i)
		if err != nil {
			return nil, err
		}
		out[i] = Instance{Model: sub, Objective: inst.Objective}
	}
	for _, c := range inst.Constraints {
		projected, err := project(c, &pos)
		if err != nil {
			return nil, err
		}
		for i, cs := range projected {
			out[i].Constraints = append(out[i].Constraints, cs...)
		}
	}
	return out, nil
}

// subModel keeps the nodes of part i and the VMs they host.
func subModel(mo *model.Model, ns []model.Node, pos *positions, i int) (*model.Model, error) {
	sub := model.New()
	for _, n := range ns {
		if mo.Mapping.IsOnline(n) {
			sub.Mapping.AddOnlineNode(n)
		} else if err := sub.Mapping.AddOfflineNode(n); err != nil {
			return nil, err
		}
	}
	for _, vm := range mo.Mapping.VMs() {
		if pos.vm[vm] != i {
			continue
		}
		var err error
		h, _ := mo.Mapping.Host(vm)
		switch mo.Mapping.VMState(vm) {
		case model.VMRunning:
			err = sub.Mapping.AddRunningVM(vm, h)
		case model.VMSleeping:
			err = sub.Mapping.AddSleepingVM(vm, h)
		case model.VMReady:
			sub.Mapping.AddReadyVM(vm)
		}
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
	}
	sub.Attributes = mo.Attributes.Clone()
	for _, rc := range mo.Resources() {
		sub.AddResource(rc.Clone())
	}
	return sub, nil
}

// EvenParts cuts nodes into k contiguous parts whose sizes differ by at most
// one. k is capped to the number of nodes.
func EvenParts(nodes []model.Node, k int) [][]model.Node {
	k = min(k, len(nodes))
	if k <= 0 {
		return nil
	}
	parts := make([][]model.Node, k)
	size, extra := len(nodes)/k, len(nodes)%k
	at := 0
	for i := range parts {
		n := size
		if i < extra {
			n++
		}
		parts[i] = append([]model.Node(nil), nodes[at:at+n]...)
		at += n
	}
	return parts
}
