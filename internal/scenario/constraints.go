package scenario

import (
	"fmt"

	"github.com/guimove/replanner/internal/constraint"
	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/plan"
)

// SatConstraints builds the declared constraints.
func (s *Scenario) SatConstraints() ([]constraint.SatConstraint, error) {
	out := make([]constraint.SatConstraint, 0, len(s.Constraints))
	for i, cs := range s.Constraints {
		c, err := cs.build()
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", i, err)
		}
		if cs.Continuous != nil && *cs.Continuous != c.IsContinuous() {
			if err := c.SetContinuous(*cs.Continuous); err != nil {
				return nil, fmt.Errorf("constraint %d (%s): %w", i, cs.Type, err)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (cs ConstraintSpec) build() (constraint.SatConstraint, error) {
	switch cs.Type {
	case "running":
		return constraint.NewRunning(cs.VMs...), nil
	case "ready":
		return constraint.NewReady(cs.VMs...), nil
	case "sleeping":
		return constraint.NewSleeping(cs.VMs...), nil
	case "killed":
		return constraint.NewKilled(cs.VMs...), nil
	case "online":
		return constraint.NewOnline(cs.Nodes...), nil
	case "offline":
		return constraint.NewOffline(cs.Nodes...), nil
	case "fence":
		return constraint.NewFence(cs.VMs, cs.Nodes), nil
	case "ban":
		return constraint.NewBan(cs.VMs, cs.Nodes), nil
	case "root":
		return constraint.NewRoot(cs.VMs...), nil
	case "gather":
		return constraint.NewGather(cs.VMs...), nil
	case "among":
		return constraint.NewAmong(cs.VMs, cs.NodeGroups), nil
	case "spread":
		return constraint.NewSpread(cs.VMs...), nil
	case "split":
		return constraint.NewSplit(cs.VMGroups), nil
	case "splitAmong":
		return constraint.NewSplitAmong(cs.VMGroups, cs.NodeGroups), nil
	case "preserve":
		return constraint.NewPreserve(cs.VMs, cs.Resource, cs.Amount), nil
	case "overbook":
		if cs.Ratio <= 0 {
			return nil, fmt.Errorf("%w: overbook ratio %g", ErrInvalidScenario, cs.Ratio)
		}
		return constraint.NewOverbook(cs.Nodes, cs.Resource, cs.Ratio), nil
	case "resourceCapacity":
		return constraint.NewResourceCapacity(cs.Nodes, cs.Resource, cs.Amount), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownConstraint, cs.Type)
}

// OptConstraint builds the declared objective, nil when none is set.
func (s *Scenario) OptConstraint() (constraint.OptConstraint, error) {
	switch s.Objective {
	case "":
		return nil, nil
	case constraint.MinMTTR{}.Name():
		return constraint.MinMTTR{}, nil
	case constraint.MinMigrations{}.Name():
		return constraint.MinMigrations{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownObjective, s.Objective)
}

// ReconfigurationPlan builds the plan section over origin.
func (s *Scenario) ReconfigurationPlan(origin *model.Model) (*plan.ReconfigurationPlan, error) {
	if s.Plan == nil {
		return nil, fmt.Errorf("%w: no plan section", ErrInvalidScenario)
	}
	p := plan.New(origin)
	for _, a := range s.Plan.Actions {
		if !p.Add(a) {
			return nil, fmt.Errorf("%w: duplicated action %s", ErrInvalidScenario, a)
		}
	}
	return p, nil
}

// FromModel describes mo. Resource values are written for every element.
func FromModel(mo *model.Model) *Scenario {
	s := &Scenario{}
	for _, n := range mo.Mapping.Nodes() {
		st, _ := mo.Mapping.NodeState(n)
		s.Nodes = append(s.Nodes, NodeSpec{ID: n, State: st.String()})
	}
	for _, vm := range mo.Mapping.VMs() {
		h, _ := mo.Mapping.Host(vm)
		s.VMs = append(s.VMs, VMSpec{ID: vm, State: mo.Mapping.VMState(vm).String(), Host: h})
	}
	for _, rc := range mo.Resources() {
		r := ResourceSpec{
			Name:               rc.Name,
			DefaultCapacity:    rc.DefaultCapacity,
			DefaultConsumption: rc.DefaultConsumption,
			Capacity:           make(map[model.Node]int),
			Consumption:        make(map[model.VM]int),
		}
		for _, n := range mo.Mapping.Nodes() {
			if rc.DefinedCapacity(n) {
				r.Capacity[n] = rc.Capacity(n)
			}
		}
		for _, vm := range mo.Mapping.VMs() {
			if rc.DefinedConsumption(vm) {
				r.Consumption[vm] = rc.Consumption(vm)
			}
		}
		s.Resources = append(s.Resources, r)
	}
	if mo.Network != nil {
		ns := &NetworkSpec{}
		for _, sw := range mo.Network.Switches() {
			ns.Switches = append(ns.Switches, SwitchSpec{ID: sw.ID, Capacity: sw.Capacity})
		}
		for _, l := range mo.Network.Links() {
			ns.Links = append(ns.Links, LinkSpec{ID: l.ID, Capacity: l.Capacity, A: endpointSpec(l.A), B: endpointSpec(l.B)})
		}
		s.Network = ns
	}
	for _, vm := range mo.Mapping.VMs() {
		for _, k := range mo.Attributes.VMKeys(vm) {
			if s.Attributes.VMs == nil {
				s.Attributes.VMs = make(map[model.VM]map[string]any)
			}
			if s.Attributes.VMs[vm] == nil {
				s.Attributes.VMs[vm] = make(map[string]any)
			}
			s.Attributes.VMs[vm][k], _ = mo.Attributes.VM(vm, k)
		}
	}
	for _, n := range mo.Mapping.Nodes() {
		for _, k := range mo.Attributes.NodeKeys(n) {
			if s.Attributes.Nodes == nil {
				s.Attributes.Nodes = make(map[model.Node]map[string]any)
			}
			if s.Attributes.Nodes[n] == nil {
				s.Attributes.Nodes[n] = make(map[string]any)
			}
			s.Attributes.Nodes[n][k], _ = mo.Attributes.Node(n, k)
		}
	}
	return s
}

func endpointSpec(e model.Endpoint) EndpointSpec {
	if e.Switch != nil {
		return EndpointSpec{Switch: e.Switch.ID}
	}
	return EndpointSpec{Node: e.Node}
}

// WithPlan sets the plan section.
func (s *Scenario) WithPlan(p *plan.ReconfigurationPlan) *Scenario {
	s.Plan = &PlanSpec{Actions: p.Actions()}
	return s
}
