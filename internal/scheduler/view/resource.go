// Package view holds the resource and network models that a problem
// attaches next to its transitions.
package view

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/plan"
	"github.com/guimove/replanner/internal/scheduler"
	"github.com/guimove/replanner/internal/solver"
)

var ErrNoSuchView = errors.New("no such view")

// ResourceName is the name of the view of resource rc.
func ResourceName(rc string) string { return "resource." + rc }

// Resource models a shareable resource. Every node has a physical and a
// virtual usage, every VM an allocation. The virtual usage of a node is the
// sum of the allocations of the VMs landing on it.
type Resource struct {
	rc        *model.ShareableResource
	phyUsage  []*solver.IntVar
	virtUsage []*solver.IntVar
	alloc     []*solver.IntVar
	ratios    []float64
}

// Resources builds one view per resource of the source model.
func Resources(p *scheduler.Problem) ([]scheduler.View, error) {
	var out []scheduler.View
	for _, rc := range p.Source.Resources() {
		r, err := NewResource(p, rc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// NewResource creates the variables of rc.
func NewResource(p *scheduler.Problem, rc *model.ShareableResource) (*Resource, error) {
	s := p.Solver()
	r := &Resource{rc: rc}
	for _, n := range p.Nodes() {
		capacity := rc.Capacity(n)
		if capacity < 0 {
			return nil, scheduler.Contradiction(string(n), fmt.Errorf("negative %s capacity %d", rc.Name, capacity))
		}
		r.phyUsage = append(r.phyUsage, s.IntVar(fmt.Sprintf("%s.phy(%s)", rc.Name, n), 0, capacity))
		r.virtUsage = append(r.virtUsage, s.IntVar(fmt.Sprintf("%s.virt(%s)", rc.Name, n), 0, solver.MaxValue))
		r.ratios = append(r.ratios, 0)
	}
	for _, t := range p.Transitions() {
		name := fmt.Sprintf("%s.alloc(%s)", rc.Name, t.VM)
		if t.DSlice == nil {
			r.alloc = append(r.alloc, s.Constant(name, 0))
			continue
		}
		// -1 means no constraint asked for a given amount
		r.alloc = append(r.alloc, s.IntVar(name, -1, solver.MaxValue))
	}
	return r, nil
}

// ResourceOf returns the view of rc attached to p.
func ResourceOf(p *scheduler.Problem, rc string) (*Resource, error) {
	v, ok := p.View(ResourceName(rc))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchView, ResourceName(rc))
	}
	r, ok := v.(*Resource)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %T", ErrNoSuchView, ResourceName(rc), v)
	}
	return r, nil
}

func (r *Resource) Name() string { return ResourceName(r.rc.Name) }

// Source returns the resource of the source model.
func (r *Resource) Source() *model.ShareableResource { return r.rc }

// VMAllocation returns the allocation variable of the VM at index i.
func (r *Resource) VMAllocation(i int) *solver.IntVar { return r.alloc[i] }

// PhysicalUsage returns the physical usage of the node at index i.
func (r *Resource) PhysicalUsage(i int) *solver.IntVar { return r.phyUsage[i] }

// VirtualUsage returns the virtual usage of the node at index i.
func (r *Resource) VirtualUsage(i int) *solver.IntVar { return r.virtUsage[i] }

// SetOverbookRatio sets the overbooking ratio of the node at index i. The
// smallest ratio wins when several are set.
func (r *Resource) SetOverbookRatio(i int, ratio float64) error {
	if ratio <= 0 {
		return fmt.Errorf("invalid overbooking ratio %g", ratio)
	}
	if r.ratios[i] == 0 || ratio < r.ratios[i] {
		r.ratios[i] = ratio
	}
	return nil
}

// OverbookRatio returns the ratio of the node at index i, 1 by default.
func (r *Resource) OverbookRatio(i int) float64 {
	if r.ratios[i] == 0 {
		return 1
	}
	return r.ratios[i]
}

// VirtualCapacity is the capacity of the node at index i seen by the VMs.
func (r *Resource) VirtualCapacity(p *scheduler.Problem, i int) int {
	return solver.VirtualCapacity(r.rc.Capacity(p.Node(i)), r.OverbookRatio(i))
}

// BeforeSolve fixes the allocations, then posts the packing and scheduling
// relations. A VM without an explicit amount keeps its consumption.
func (r *Resource) BeforeSolve(p *scheduler.Problem) error {
	s := p.Solver()
	var sizes, bins []*solver.IntVar
	var cSlices []solver.ConsumingSlice
	var dSlices []solver.DemandingSlice
	for i, t := range p.Transitions() {
		a := r.alloc[i]
		if t.DSlice != nil {
			amount := a.LB()
			if amount < 0 {
				amount = r.rc.Consumption(t.VM)
			}
			if err := a.InstantiateTo(amount, nil); err != nil {
				p.Logger.Error("unable to pin allocation",
					zap.String("resource", r.rc.Name), zap.String("vm", string(t.VM)), zap.Int("amount", amount))
				return scheduler.Contradiction(string(t.VM), err)
			}
			sizes = append(sizes, a)
			bins = append(bins, t.DSlice.Host)
			dSlices = append(dSlices, solver.DemandingSlice{Host: t.DSlice.Host, Start: t.DSlice.Start, Height: a})
		}
		if t.CSlice != nil {
			cons := r.rc.Consumption(t.VM)
			cSlices = append(cSlices, solver.ConsumingSlice{Host: t.Src, End: t.CSlice.End, Height: cons})
			if t.Kind == scheduler.Relocatable {
				t.NoteAllocation(a.Value() - cons)
			}
		}
	}
	if err := s.NewBinPacking(r.virtUsage, sizes, bins); err != nil {
		return scheduler.Contradiction(r.Name(), err)
	}

	capacities := make([]int, len(p.Nodes()))
	for i := range p.Nodes() {
		capacities[i] = r.VirtualCapacity(p, i)
		if err := r.linkVirtualToPhysical(p, i); err != nil {
			return err
		}
	}
	if err := s.NewSliceScheduler(r.rc.Name, capacities, cSlices, dSlices); err != nil {
		return scheduler.Contradiction(r.Name(), err)
	}
	return nil
}

func (r *Resource) linkVirtualToPhysical(p *scheduler.Problem, i int) error {
	s := p.Solver()
	n := string(p.Node(i))
	ratio := r.OverbookRatio(i)
	if ratio == 1 {
		if err := s.Arithm(r.phyUsage[i], 0, solver.OpEQ, r.virtUsage[i]); err != nil {
			return scheduler.Contradiction(n, err)
		}
		if err := r.virtUsage[i].UpdateUpperBound(r.phyUsage[i].UB(), nil); err != nil {
			return scheduler.Contradiction(n, err)
		}
		return nil
	}
	if err := s.NewOverbookLink(r.phyUsage[i], r.virtUsage[i], r.rc.Capacity(p.Node(i)), ratio); err != nil {
		return scheduler.Contradiction(n, err)
	}
	return nil
}

// InsertActions adds an allocation for the VMs staying on their node whose
// amount changes, and hooks the new amount on the action of the VMs that
// land on a node.
func (r *Resource) InsertActions(p *scheduler.Problem, sol *solver.Solution, pl *plan.ReconfigurationPlan) error {
	for i, t := range p.Transitions() {
		if t.DSlice == nil {
			continue
		}
		prev := r.rc.Consumption(t.VM)
		now := sol.Value(r.alloc[i])
		if prev == now {
			continue
		}
		dst := p.Node(sol.Value(t.DSlice.Host))
		if a := t.Action(); a != nil {
			a.AddEvent(plan.HookPre, r.rc.Name, now)
			continue
		}
		st := sol.Value(t.DSlice.Start)
		pl.Add(plan.NewAllocate(t.VM, dst, r.rc.Name, now, st, st))
	}
	return nil
}
