package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/guimove/replanner/internal/config"
	"github.com/guimove/replanner/internal/constraint"
	"github.com/guimove/replanner/internal/metrics"
	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/packing"
	"github.com/guimove/replanner/internal/partition"
	"github.com/guimove/replanner/internal/plan"
	"github.com/guimove/replanner/internal/report"
	"github.com/guimove/replanner/internal/scheduler"
	"github.com/guimove/replanner/internal/scheduler/inject"
	"github.com/guimove/replanner/internal/scheduler/view"
)

// Orchestrator coordinates the end-to-end planning pipeline.
type Orchestrator struct {
	// Collector fills VM attributes before solving. Optional.
	Collector metrics.AttributeCollector
	// Exporter records the outcome of solves. Optional.
	Exporter *metrics.Exporter
	Config   config.Config
	Logger   *zap.Logger
	Writer   io.Writer
}

// New creates an orchestrator writing to stdout.
func New(cfg config.Config, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		Config: cfg,
		Logger: log,
		Writer: os.Stdout,
	}
}

// Request is a model with the constraints to satisfy.
type Request struct {
	// Source names where the model comes from, for the report.
	Source      string
	Model       *model.Model
	Constraints []constraint.SatConstraint
	Objective   constraint.OptConstraint
}

// Outcome is the result of a pipeline run. Plan is nil when none was found.
type Outcome struct {
	Plan       *plan.ReconfigurationPlan
	Stats      *plan.Statistics
	Violations []string
	Partitions int
}

// Parameters translates the configuration into solving parameters.
func Parameters(cfg config.Config, log *zap.Logger) scheduler.Parameters {
	ps := inject.NewParameters(view.NetworkSettings{
		HotDirtySize:     cfg.Network.HotDirtySize,
		HotDirtyDuration: cfg.Network.HotDirtyDuration,
		ColdDirtyRate:    cfg.Network.ColdDirtyRate,
		Efficiency:       cfg.Network.Efficiency,
	})
	ps.TimeLimit = cfg.Solver.TimeLimit
	ps.NodeLimit = cfg.Solver.NodeLimit
	ps.MaxEnd = cfg.Solver.MaxEnd
	ps.Optimize = cfg.Solver.Optimize
	ps.Repair = cfg.Solver.Repair
	ps.Logger = log

	d := cfg.Durations
	for k, v := range map[plan.Kind]int{
		plan.BootVM:       d.Boot,
		plan.ShutdownVM:   d.Shutdown,
		plan.MigrateVM:    d.Migrate,
		plan.SuspendVM:    d.Suspend,
		plan.ResumeVM:     d.Resume,
		plan.KillVM:       d.Kill,
		plan.ForgeVM:      d.Forge,
		plan.BootNode:     d.BootNode,
		plan.ShutdownNode: d.ShutdownNode,
	} {
		ps.Durations.Register(k, scheduler.ConstantDuration(v))
	}
	return ps
}

// Solve runs the full pipeline: collect → solve → verify → report → export.
func (o *Orchestrator) Solve(ctx context.Context, req Request) (*Outcome, error) {
	cfg := o.Config
	log := o.logger()

	// Step 1: Collect attributes
	if o.Collector != nil {
		_, _ = fmt.Fprintf(o.Writer, "Collecting VM attributes from %s backend...\n", o.Collector.BackendType())
		err := o.Collector.Collect(ctx, req.Model, metrics.CollectOptions{Window: cfg.Prometheus.Window})
		switch {
		case errors.Is(err, metrics.ErrNoMetricsFound):
			log.Warn("no attributes collected", zap.Error(err))
		case err != nil:
			return nil, fmt.Errorf("collecting attributes: %w", err)
		}
	}

	// Step 2: Solve, split when asked and possible
	_, _ = fmt.Fprintf(o.Writer, "Planning %d VMs over %d nodes under %d constraints...\n",
		len(req.Model.Mapping.VMs()), len(req.Model.Mapping.Nodes()), len(req.Constraints))
	out, err := o.solve(ctx, req)
	if err != nil {
		return nil, err
	}

	// Step 3: Verify the plan against every constraint
	if out.Plan != nil {
		if out.Violations, err = Verify(out.Plan, req.Constraints); err != nil {
			return nil, fmt.Errorf("verifying plan: %w", err)
		}
		for _, v := range out.Violations {
			log.Error("plan violates a constraint", zap.String("constraint", v))
		}
	}

	// Step 4: Report
	if err := o.report(ctx, req, out); err != nil {
		return nil, err
	}

	// Step 5: Export
	if err := o.export(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) solve(ctx context.Context, req Request) (*Outcome, error) {
	cfg := o.Config
	log := o.logger()
	ps := Parameters(cfg, log)
	inst := partition.Instance{Model: req.Model, Constraints: req.Constraints, Objective: req.Objective}

	if k := cfg.Solver.Partitions; k > 1 {
		insts, err := (&partition.Splitter{}).Split(inst, partition.EvenParts(req.Model.Mapping.Nodes(), k))
		switch {
		case errors.Is(err, partition.ErrSplitRejected):
			log.Warn("solving as a single instance", zap.Error(err))
		case err != nil:
			return nil, fmt.Errorf("partitioning: %w", err)
		default:
			runner := &partition.Runner{Params: ps, Parallelism: cfg.Solver.Parallelism, Logger: log}
			pl, stats, _, err := runner.Solve(ctx, inst, insts)
			if err != nil {
				return nil, fmt.Errorf("solving partitions: %w", err)
			}
			return &Outcome{Plan: pl, Stats: stats, Partitions: len(insts)}, nil
		}
	}

	pl, stats, err := scheduler.Solve(ctx, req.Model, req.Constraints, req.Objective, ps)
	if err != nil {
		return nil, fmt.Errorf("solving: %w", err)
	}
	return &Outcome{Plan: pl, Stats: stats, Partitions: 1}, nil
}

// Verify checks p against cstrs and returns the violated ones.
func Verify(p *plan.ReconfigurationPlan, cstrs []constraint.SatConstraint) ([]string, error) {
	var violated []string
	for _, c := range cstrs {
		ok, err := constraint.CheckPlan(c, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			violated = append(violated, fmt.Sprint(c))
		}
	}
	return violated, nil
}

// VerifyPlan checks an existing plan and reports it.
func (o *Orchestrator) VerifyPlan(ctx context.Context, req Request, p *plan.ReconfigurationPlan) (*Outcome, error) {
	violations, err := Verify(p, req.Constraints)
	if err != nil {
		return nil, fmt.Errorf("verifying plan: %w", err)
	}
	out := &Outcome{Plan: p, Violations: violations}
	if err := o.report(ctx, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) report(ctx context.Context, req Request, out *Outcome) error {
	meta := report.ReportMeta{
		Source:      req.Source,
		Nodes:       len(req.Model.Mapping.Nodes()),
		VMs:         len(req.Model.Mapping.VMs()),
		Constraints: len(req.Constraints),
		Partitions:  out.Partitions,
		Violations:  out.Violations,
	}
	if req.Objective != nil {
		meta.Objective = req.Objective.Name()
	}
	if out.Stats != nil {
		meta.RunID = out.Stats.RunID
	}
	if out.Plan != nil {
		if res, err := out.Plan.Result(); err == nil {
			f := packing.AnalyzeFragmentation(res)
			meta.Fragmentation = &f
		} else {
			o.logger().Warn("cannot apply the plan", zap.Error(err))
		}
	}

	reporter := report.NewReporter(o.Config.Output.Format, o.Writer)
	if err := reporter.Report(ctx, out.Plan, out.Stats, meta); err != nil {
		return fmt.Errorf("generating report: %w", err)
	}
	return nil
}

func (o *Orchestrator) export(out *Outcome) error {
	if o.Exporter == nil || out.Stats == nil {
		return nil
	}
	o.Exporter.Observe(out.Plan, out.Stats)
	if path := o.Config.Metrics.Textfile; path != "" {
		if err := o.Exporter.WriteTextfile(path); err != nil {
			return fmt.Errorf("exporting metrics: %w", err)
		}
		o.logger().Debug("metrics exported", zap.String("path", path))
	}
	return nil
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
