package partition

import (
	"context"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/guimove/replanner/internal/plan"
	"github.com/guimove/replanner/internal/scheduler"
)

// Runner solves independent instances concurrently.
type Runner struct {
	Params scheduler.Parameters
	// Parallelism bounds the number of instances solved at once. Zero means
	// one per CPU.
	Parallelism int
	Logger      *zap.Logger
}

// Result is the outcome of one instance.
type Result struct {
	Plan  *plan.ReconfigurationPlan
	Stats *plan.Statistics
}

// Solve solves every instance then merges the plans over origin. The merged
// plan is nil when one instance has no solution. An assembly error in one
// instance cancels the others.
func (r *Runner) Solve(ctx context.Context, origin Instance, insts []Instance) (*plan.ReconfigurationPlan, *plan.Statistics, []Result, error) {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	runID := uuid.NewString()
	log = log.With(zap.String("component", "partition"), zap.String("run_id", runID))

	limit := r.Parallelism
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	results := make([]Result, len(insts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, inst := range insts {
		g.Go(func() error {
			ps := r.Params
			ps.Logger = log.With(zap.Int("part", i))
			pl, stats, err := scheduler.Solve(gctx, inst.Model, inst.Constraints, inst.Objective, ps)
			if err != nil {
				return fmt.Errorf("part %d: %w", i, err)
			}
			results[i] = Result{Plan: pl, Stats: stats}
			log.Debug("part solved",
				zap.Int("part", i),
				zap.Int("vms", stats.VMs),
				zap.Bool("solved", pl != nil),
				zap.Duration("search", stats.SearchDuration))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	merged := plan.New(origin.Model)
	total := &plan.Statistics{RunID: runID, Completed: true, Optimize: r.Params.Optimize, TimeLimit: r.Params.TimeLimit}
	solved := true
	for _, res := range results {
		total.Add(res.Stats)
		if res.Plan == nil {
			solved = false
			continue
		}
		merged.Merge(res.Plan)
	}
	total.Constraints = len(origin.Constraints)
	if !solved {
		return nil, total, results, nil
	}
	return merged, total, results, nil
}
