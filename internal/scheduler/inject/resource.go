package inject

import (
	"github.com/guimove/replanner/internal/constraint"
	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/scheduler"
	"github.com/guimove/replanner/internal/scheduler/view"
	"github.com/guimove/replanner/internal/solver"
)

type preserve struct{ c *constraint.Preserve }

// Inject raises the allocation of the VMs that will run.
func (pr *preserve) Inject(p *scheduler.Problem) error {
	r, err := view.ResourceOf(p, pr.c.Resource())
	if err != nil {
		return scheduler.Contradiction(pr.c.Name(), err)
	}
	for _, t := range landing(p, pr.c.InvolvedVMs()) {
		i, _ := p.VMIndex(t.VM)
		if err := r.VMAllocation(i).UpdateLowerBound(pr.c.Amount(), nil); err != nil {
			return scheduler.Contradiction(string(t.VM), err)
		}
	}
	return nil
}

func (pr *preserve) MisPlaced(mo *model.Model) []model.VM {
	rc, ok := mo.Resource(pr.c.Resource())
	if !ok {
		return nil
	}
	var out []model.VM
	for _, vm := range pr.c.InvolvedVMs() {
		if mo.Mapping.VMState(vm) == model.VMRunning && rc.Consumption(vm) < pr.c.Amount() {
			out = append(out, vm)
		}
	}
	return out
}

type overbook struct{ c *constraint.Overbook }

func (o *overbook) Inject(p *scheduler.Problem) error {
	r, err := view.ResourceOf(p, o.c.Resource())
	if err != nil {
		return scheduler.Contradiction(o.c.Name(), err)
	}
	for i := range nodeIndexes(p, o.c.InvolvedNodes()) {
		if err := r.SetOverbookRatio(i, o.c.Ratio()); err != nil {
			return scheduler.Contradiction(string(p.Node(i)), err)
		}
	}
	return nil
}

func (o *overbook) MisPlaced(mo *model.Model) []model.VM {
	if o.c.Satisfied(mo) {
		return nil
	}
	var out []model.VM
	for _, n := range o.c.InvolvedNodes() {
		out = append(out, mo.Mapping.RunningOn(n)...)
	}
	return out
}

type resourceCapacity struct{ c *constraint.ResourceCapacity }

// Inject bounds the summed virtual usage of the nodes. In continuous mode,
// the nodes are folded into one slice scheduler host so the bound holds at
// every moment.
func (rc *resourceCapacity) Inject(p *scheduler.Problem) error {
	r, err := view.ResourceOf(p, rc.c.Resource())
	if err != nil {
		return scheduler.Contradiction(rc.c.Name(), err)
	}
	in := nodeIndexes(p, rc.c.InvolvedNodes())
	s := p.Solver()
	if !rc.c.IsContinuous() {
		usage := make([]*solver.IntVar, 0, len(in))
		for i := range in {
			usage = append(usage, r.VirtualUsage(i))
		}
		if err := s.Sum(usage, solver.OpLE, rc.c.Amount()); err != nil {
			return scheduler.Contradiction(rc.c.Name(), err)
		}
		return nil
	}

	// host 0 is the node set, host 1 the rest of the fleet
	table := make([]int, len(p.Nodes()))
	for i := range table {
		if !in[i] {
			table[i] = 1
		}
	}
	var cSlices []solver.ConsumingSlice
	var dSlices []solver.DemandingSlice
	for _, t := range p.Transitions() {
		i, _ := p.VMIndex(t.VM)
		if t.CSlice != nil && in[t.Src] {
			cSlices = append(cSlices, solver.ConsumingSlice{
				Host: 0, End: t.CSlice.End, Height: r.Source().Consumption(t.VM),
			})
		}
		if t.DSlice != nil {
			side := s.EnumVar(string(t.VM)+".side", 0, 1)
			if err := s.NewElement(side, table, t.DSlice.Host); err != nil {
				return scheduler.Contradiction(string(t.VM), err)
			}
			dSlices = append(dSlices, solver.DemandingSlice{Host: side, Start: t.DSlice.Start, Height: r.VMAllocation(i)})
		}
	}
	err = s.NewSliceScheduler(rc.c.Name(), []int{rc.c.Amount(), solver.MaxValue}, cSlices, dSlices)
	if err != nil {
		return scheduler.Contradiction(rc.c.Name(), err)
	}
	return nil
}

func (rc *resourceCapacity) MisPlaced(mo *model.Model) []model.VM {
	if rc.c.Satisfied(mo) {
		return nil
	}
	var out []model.VM
	for _, n := range rc.c.InvolvedNodes() {
		out = append(out, mo.Mapping.RunningOn(n)...)
	}
	return out
}
