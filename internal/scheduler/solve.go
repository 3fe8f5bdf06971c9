package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/guimove/replanner/internal/constraint"
	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/plan"
	"github.com/guimove/replanner/internal/solver"
)

var ErrNoCatalog = errors.New("no constraint catalog")

// Build assembles the problem of reconfiguring mo under cstrs. obj may be
// nil to accept the first solution.
func Build(mo *model.Model, cstrs []constraint.SatConstraint, obj constraint.OptConstraint, params Parameters) (*Problem, error) {
	if params.Catalog == nil {
		return nil, ErrNoCatalog
	}
	if params.MaxEnd <= 0 {
		params.MaxEnd = DefaultMaxEnd
	}
	if params.Durations == nil {
		params.Durations = NewDurationEvaluators()
	}
	started := time.Now()

	injectors := make([]Injector, 0, len(cstrs))
	for _, c := range cstrs {
		inj, err := params.Catalog.Injector(c)
		if err != nil {
			return nil, err
		}
		injectors = append(injectors, inj)
	}
	var objective ObjectiveInjector
	if obj != nil {
		var err error
		if objective, err = params.Catalog.Objective(obj); err != nil {
			return nil, err
		}
	}

	p := newProblem(mo, params)
	p.built = started
	if err := p.declareStates(cstrs); err != nil {
		return nil, err
	}
	misplaced := make(map[model.VM]bool)
	for _, inj := range injectors {
		for _, vm := range inj.MisPlaced(mo) {
			if !misplaced[vm] {
				misplaced[vm] = true
				p.misplaced = append(p.misplaced, vm)
			}
		}
	}
	if params.Repair {
		p.restrictManaged(misplaced)
	}
	if err := p.build(); err != nil {
		return nil, err
	}
	for _, vb := range params.Views {
		views, err := vb(p)
		if err != nil {
			return nil, err
		}
		for _, v := range views {
			p.AddView(v)
		}
	}
	for i, inj := range injectors {
		if err := inj.Inject(p); err != nil {
			p.Logger.Debug("injection failed", zap.String("constraint", fmt.Sprint(cstrs[i])), zap.Error(err))
			return nil, err
		}
	}
	if objective != nil {
		if err := objective.Inject(p); err != nil {
			return nil, err
		}
	}
	for _, v := range p.views {
		if err := v.BeforeSolve(p); err != nil {
			return nil, err
		}
	}
	if err := p.finalize(); err != nil {
		return nil, err
	}
	p.constraints = len(cstrs)
	return p, nil
}

// Solve builds then solves the problem. When no plan exists, or none was
// found in the budget, the plan is nil and the statistics tell which case
// happened.
func Solve(ctx context.Context, mo *model.Model, cstrs []constraint.SatConstraint, obj constraint.OptConstraint, params Parameters) (*plan.ReconfigurationPlan, *plan.Statistics, error) {
	p, err := Build(mo, cstrs, obj, params)
	if err != nil {
		return nil, nil, err
	}
	return p.Solve(ctx)
}

// finalize fixes the migration durations no view decided and breaks the
// symmetries of the VMs that stay on their node.
func (p *Problem) finalize() error {
	for _, t := range p.vmTrans {
		if t.Kind != Relocatable {
			continue
		}
		name := string(t.VM)
		if !t.MigrationDuration.IsInstantiated() {
			d, err := p.duration(plan.MigrateVM, name)
			if err != nil {
				return err
			}
			if err := t.MigrationDuration.InstantiateTo(d, nil); err != nil {
				return Contradiction(name, err)
			}
		}
		switch {
		case t.grows && t.shrinks:
		case t.grows:
			// the new amount is granted at the end
			if err := p.solver.NewImpliesEq(t.Stay, t.DSlice.Duration, 0); err != nil {
				return Contradiction(name, err)
			}
		default:
			// the amount is released at once
			if err := p.solver.NewImpliesEq(t.Stay, t.CSlice.Duration, 0); err != nil {
				return Contradiction(name, err)
			}
		}
	}
	return nil
}

// Solve runs the search once. It may only be called once.
func (p *Problem) Solve(ctx context.Context) (*plan.ReconfigurationPlan, *plan.Statistics, error) {
	stats := &plan.Statistics{
		RunID:         uuid.NewString(),
		Nodes:         len(p.nodes),
		VMs:           len(p.vms),
		Constraints:   p.constraints,
		ManagedVMs:    len(p.ManagedVMs()),
		TimeLimit:     p.Params.TimeLimit,
		Optimize:      p.Params.Optimize,
		BuildDuration: time.Since(p.built),
	}
	log := p.Logger.With(zap.String("component", "scheduler"), zap.String("run_id", stats.RunID))

	var objective *solver.IntVar
	if p.Params.Optimize {
		objective = p.objective
	}
	search := p.solver.NewSearch(p.strategy(), objective, solver.Limits{
		TimeLimit: p.Params.TimeLimit,
		NodeLimit: p.Params.NodeLimit,
	})
	res, err := search.Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	stats.SearchDuration = res.Duration
	stats.NodesExplored = res.Nodes
	stats.Backtracks = res.Backtracks
	stats.Fails = res.Fails
	stats.Completed = res.Completed
	for _, s := range res.Solutions {
		stats.Solutions = append(stats.Solutions, plan.SolutionStatistics{
			Time: s.Time, Nodes: s.Nodes, Objective: s.Objective, Optimized: s.Optimized,
		})
	}
	log.Debug("search over",
		zap.Int("vms", stats.VMs),
		zap.Int("managed", stats.ManagedVMs),
		zap.Int("nodes", res.Nodes),
		zap.Int("solutions", len(res.Solutions)),
		zap.Bool("completed", res.Completed),
		zap.Duration("duration", res.Duration))

	if res.Best == nil {
		return nil, stats, nil
	}
	pl, err := p.extract(res.Best)
	if err != nil {
		return nil, stats, err
	}
	return pl, stats, nil
}

func (p *Problem) extract(sol *solver.Solution) (*plan.ReconfigurationPlan, error) {
	pl := plan.New(p.Source)
	pl.MisPlaced = append(pl.MisPlaced, p.misplaced...)
	pl.Managed = p.ManagedVMs()
	for _, t := range p.nodeTrans {
		t.insertActions(sol, pl)
	}
	for _, t := range p.vmTrans {
		t.insertActions(p, sol, pl)
	}
	for _, v := range p.views {
		if err := v.InsertActions(p, sol, pl); err != nil {
			return nil, err
		}
	}
	return pl, nil
}

// hints maps the host variable of the VMs without a source node to the
// node index suggested by the placement hint.
func (p *Problem) hints() map[int]int {
	if p.Params.Hint == nil {
		return nil
	}
	var vms []model.VM
	for _, t := range p.vmTrans {
		if t.DSlice != nil && t.Src < 0 {
			vms = append(vms, t.VM)
		}
	}
	if len(vms) == 0 {
		return nil
	}
	out := make(map[int]int)
	for vm, n := range p.Params.Hint.Hint(p.Source, vms) {
		t, ok := p.Transition(vm)
		if !ok {
			continue
		}
		if i, ok := p.NodeIndex(n); ok {
			out[t.DSlice.Host.ID()] = i
		}
	}
	return out
}

// strategy places the VMs first, preferring their current host, then
// schedules the actions as early as possible.
func (p *Problem) strategy() solver.Strategy {
	var hosts, nodeStarts, starts, ends []*solver.IntVar
	prefer := make(map[int]int)
	for _, t := range p.vmTrans {
		if t.DSlice != nil {
			hosts = append(hosts, t.DSlice.Host)
			if t.Src >= 0 {
				prefer[t.DSlice.Host.ID()] = t.Src
			}
		}
		starts = append(starts, t.Start)
		ends = append(ends, t.End)
	}
	for _, t := range p.nodeTrans {
		nodeStarts = append(nodeStarts, t.Start)
	}
	hint := p.hints()
	current := solver.Prefer(func(v *solver.IntVar) (int, bool) {
		if x, ok := prefer[v.ID()]; ok && v.Contains(x) {
			return x, true
		}
		x, ok := hint[v.ID()]
		return x, ok
	})
	all := append([]solver.Strategy(nil), p.strategies...)
	all = append(all,
		solver.InputOrder(hosts, current),
		solver.InputOrder(nodeStarts, solver.MinValue),
		solver.InputOrder(starts, solver.MinValue),
		solver.InputOrder(ends, solver.MinValue),
		solver.InputOrder([]*solver.IntVar{p.end}, solver.MinValue),
		solver.InputOrder(p.solver.Vars(), solver.MinValue),
	)
	return solver.Sequence(all...)
}
