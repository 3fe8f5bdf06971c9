// Package inject translates the constraints and objectives into relations
// of a scheduler problem.
package inject

import (
	"fmt"

	"github.com/guimove/replanner/internal/constraint"
	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/packing"
	"github.com/guimove/replanner/internal/scheduler"
	"github.com/guimove/replanner/internal/scheduler/view"
)

// Catalog maps every constraint of the constraint package to its injector.
type Catalog struct{}

func NewCatalog() *Catalog { return &Catalog{} }

// Injector returns the injector of c. Continuous constraints are first
// checked against the source model.
func (*Catalog) Injector(c constraint.SatConstraint) (scheduler.Injector, error) {
	var inj scheduler.Injector
	switch x := c.(type) {
	case constraint.VMStateDeclaration:
		inj = &vmState{x}
	case constraint.NodeStateDeclaration:
		inj = &nodeState{x}
	case *constraint.Fence:
		inj = &fence{x}
	case *constraint.Ban:
		inj = &ban{x}
	case *constraint.Root:
		inj = &root{x}
	case *constraint.Gather:
		inj = &gather{x}
	case *constraint.Among:
		inj = &among{x}
	case *constraint.Spread:
		inj = &spread{x}
	case *constraint.Split:
		inj = &split{x}
	case *constraint.SplitAmong:
		inj = &splitAmong{x}
	case *constraint.Preserve:
		inj = &preserve{x}
	case *constraint.Overbook:
		inj = &overbook{x}
	case *constraint.ResourceCapacity:
		inj = &resourceCapacity{x}
	default:
		return nil, fmt.Errorf("%w: %s", scheduler.ErrUnsupportedConstraint, c.Name())
	}
	if c.IsContinuous() {
		return &precondition{c: c, Injector: inj}, nil
	}
	return inj, nil
}

// Objective returns the injector of o.
func (*Catalog) Objective(o constraint.OptConstraint) (scheduler.ObjectiveInjector, error) {
	switch o.(type) {
	case constraint.MinMTTR, *constraint.MinMTTR:
		return minMTTR{}, nil
	case constraint.MinMigrations, *constraint.MinMigrations:
		return minMigrations{}, nil
	}
	return nil, fmt.Errorf("%w: %s", scheduler.ErrUnsupportedConstraint, o.Name())
}

// precondition refuses a continuous constraint violated at the start.
type precondition struct {
	scheduler.Injector
	c constraint.SatConstraint
}

func (p *precondition) Inject(pb *scheduler.Problem) error {
	if !constraint.SatisfiedAtStart(p.c, pb.Source) {
		return scheduler.Unsatisfiable(fmt.Sprint(p.c))
	}
	return p.Injector.Inject(pb)
}

// DefaultParameters returns scheduler parameters using this catalog, one
// view per resource and the network view.
func DefaultParameters() scheduler.Parameters {
	return NewParameters(view.DefaultNetworkSettings())
}

// NewParameters is DefaultParameters with custom network settings.
func NewParameters(net view.NetworkSettings) scheduler.Parameters {
	ps := scheduler.DefaultParameters()
	ps.Catalog = NewCatalog()
	ps.Views = []scheduler.ViewBuilder{view.Resources, view.NetworkBuilder(net)}
	ps.Hint = &packing.BestFitDecreasing{}
	return ps
}

// landing returns the transitions of the vms that host them at the end.
func landing(p *scheduler.Problem, vms []model.VM) []*scheduler.VMTransition {
	var out []*scheduler.VMTransition
	for _, vm := range vms {
		if t, ok := p.Transition(vm); ok && t.DSlice != nil {
			out = append(out, t)
		}
	}
	return out
}

// leaving returns the transitions of the vms that hold resources now.
func leaving(p *scheduler.Problem, vms []model.VM) []*scheduler.VMTransition {
	var out []*scheduler.VMTransition
	for _, vm := range vms {
		if t, ok := p.Transition(vm); ok && t.CSlice != nil {
			out = append(out, t)
		}
	}
	return out
}

// nodeIndexes returns the problem indexes of ns, skipping unknown nodes.
func nodeIndexes(p *scheduler.Problem, ns []model.Node) map[int]bool {
	out := make(map[int]bool, len(ns))
	for _, n := range ns {
		if i, ok := p.NodeIndex(n); ok {
			out[i] = true
		}
	}
	return out
}

func runningOn(mo *model.Model, vms []model.VM, keep func(model.Node) bool) []model.VM {
	var out []model.VM
	for _, vm := range vms {
		if mo.Mapping.VMState(vm) != model.VMRunning {
			continue
		}
		if h, ok := mo.Mapping.Host(vm); ok && keep(h) {
			out = append(out, vm)
		}
	}
	return out
}

// allIfViolated returns vms when c does not hold in mo.
func allIfViolated(c constraint.SatConstraint, mo *model.Model, vms []model.VM) []model.VM {
	if c.Satisfied(mo) {
		return nil
	}
	return vms
}
