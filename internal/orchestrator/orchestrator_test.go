package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/guimove/replanner/internal/config"
	"github.com/guimove/replanner/internal/constraint"
	"github.com/guimove/replanner/internal/metrics"
	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/plan"
	"github.com/guimove/replanner/internal/scheduler"
)

// crowded hosts two VMs on the first node of every pair.
func crowded(t *testing.T, nodes ...model.Node) *model.Model {
	t.Helper()
	mo := model.New()
	for _, n := range nodes {
		mo.Mapping.AddOnlineNode(n)
	}
	for i := 0; i+1 < len(nodes); i += 2 {
		for _, vm := range []model.VM{model.VM(nodes[i]) + "-a", model.VM(nodes[i]) + "-b"} {
			if err := mo.Mapping.AddRunningVM(vm, nodes[i]); err != nil {
				t.Fatal(err)
			}
		}
	}
	mo.AddResource(model.NewShareableResource("cpu", 4, 1))
	return mo
}

// spreadAtEnd separates vms in the resulting model only. They start on the
// same node, which a continuous spread refuses.
func spreadAtEnd(t *testing.T, vms ...model.VM) constraint.SatConstraint {
	t.Helper()
	c := constraint.NewSpread(vms...)
	if err := c.SetContinuous(false); err != nil {
		t.Fatal(err)
	}
	return c
}

func newOrchestrator(cfg config.Config) (*Orchestrator, *bytes.Buffer) {
	var buf bytes.Buffer
	o := New(cfg, nil)
	o.Writer = &buf
	return o, &buf
}

func TestOrchestrator_Solve(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "replanner.prom")

	o, buf := newOrchestrator(cfg)
	o.Collector = metrics.NewStaticCollectorFromValues(map[model.VM]map[string]any{
		"n1-a": {metrics.AttrMemUsed: 512},
	})
	o.Exporter = metrics.NewExporter()

	mo := crowded(t, "n1", "n2")
	out, err := o.Solve(context.Background(), Request{
		Source:      "test",
		Model:       mo,
		Constraints: []constraint.SatConstraint{spreadAtEnd(t, "n1-a", "n1-b")},
		Objective:   constraint.MinMTTR{},
	})
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if out.Plan == nil {
		t.Fatal("no plan")
	}
	if got := out.Plan.Count(plan.MigrateVM); got != 1 {
		t.Errorf("migrations = %d, want 1", got)
	}
	if len(out.Violations) != 0 {
		t.Errorf("violations = %v", out.Violations)
	}
	if out.Partitions != 1 {
		t.Errorf("partitions = %d, want 1", out.Partitions)
	}
	if v, ok := mo.Attributes.VMInt("n1-a", metrics.AttrMemUsed); !ok || v != 512 {
		t.Errorf("memUsed = %v, %v; want 512", v, ok)
	}

	if !strings.Contains(buf.String(), "Collecting VM attributes from static backend") {
		t.Errorf("missing progress line in:\n%s", buf.String())
	}
	raw, err := os.ReadFile(cfg.Metrics.Textfile)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	if !strings.Contains(string(raw), "replanner_solves_total") {
		t.Errorf("textfile lacks the solve counter:\n%s", raw)
	}
}

func TestOrchestrator_Solve_Partitioned(t *testing.T) {
	cfg := config.Default()
	cfg.Solver.Partitions = 2
	o, buf := newOrchestrator(cfg)

	out, err := o.Solve(context.Background(), Request{
		Model: crowded(t, "n1", "n2", "n3", "n4"),
		Constraints: []constraint.SatConstraint{
			spreadAtEnd(t, "n1-a", "n1-b"),
			spreadAtEnd(t, "n3-a", "n3-b"),
		},
		Objective: constraint.MinMTTR{},
	})
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if out.Plan == nil {
		t.Fatal("no plan")
	}
	if out.Partitions != 2 {
		t.Errorf("partitions = %d, want 2", out.Partitions)
	}
	if got := out.Plan.Count(plan.MigrateVM); got != 2 {
		t.Errorf("migrations = %d, want 2", got)
	}
	if !strings.Contains(buf.String(), "Partitions:  2") {
		t.Errorf("report lacks the partition count:\n%s", buf.String())
	}
}

func TestOrchestrator_Solve_FallsBackOnRejectedSplit(t *testing.T) {
	cfg := config.Default()
	cfg.Solver.Partitions = 2
	o, _ := newOrchestrator(cfg)

	// Gathering n1-a and n3-a ties both partitions together.
	out, err := o.Solve(context.Background(), Request{
		Model:       crowded(t, "n1", "n2", "n3", "n4"),
		Constraints: []constraint.SatConstraint{constraint.NewGather("n1-a", "n3-a")},
	})
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if out.Partitions != 1 {
		t.Errorf("partitions = %d, want 1", out.Partitions)
	}
	if out.Plan == nil || len(out.Violations) != 0 {
		t.Errorf("plan = %v, violations = %v", out.Plan, out.Violations)
	}
}

func TestVerify(t *testing.T) {
	mo := crowded(t, "n1", "n2")
	p := plan.New(mo)

	spread := spreadAtEnd(t, "n1-a", "n1-b")
	got, err := Verify(p, []constraint.SatConstraint{constraint.NewRunning("n1-a"), spread})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if diff := cmp.Diff([]string{fmt.Sprint(spread)}, got); diff != "" {
		t.Errorf("violations mismatch (-want +got):\n%s", diff)
	}

	p.Add(plan.NewMigrateVM("n1-b", "n1", "n2", 0, 2, 0))
	if got, err = Verify(p, []constraint.SatConstraint{spread}); err != nil || len(got) != 0 {
		t.Errorf("Verify() = %v, %v; want no violation", got, err)
	}
}

func TestOrchestrator_VerifyPlan(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Format = "markdown"
	o, buf := newOrchestrator(cfg)

	mo := crowded(t, "n1", "n2")
	req := Request{Model: mo, Constraints: []constraint.SatConstraint{constraint.NewSpread("n1-a", "n1-b")}}
	out, err := o.VerifyPlan(context.Background(), req, plan.New(mo))
	if err != nil {
		t.Fatalf("VerifyPlan() error = %v", err)
	}
	if len(out.Violations) != 1 {
		t.Errorf("violations = %v, want 1", out.Violations)
	}
	if !strings.Contains(buf.String(), "spread") {
		t.Errorf("report lacks the violation:\n%s", buf.String())
	}
}

func TestParameters(t *testing.T) {
	cfg := config.Default()
	cfg.Durations.Migrate = 7
	cfg.Solver.Repair = true

	ps := Parameters(cfg, nil)
	if !ps.Repair || ps.MaxEnd != cfg.Solver.MaxEnd {
		t.Errorf("solver settings not carried: %+v", ps)
	}
	d, err := ps.Durations.Evaluate(model.New(), plan.MigrateVM, "vm1")
	if err != nil || d != 7 {
		t.Errorf("migrate duration = %d, %v; want 7", d, err)
	}
	if ps.Hint == nil {
		t.Error("no placement hint")
	}
}

func TestOrchestrator_Solve_ContinuousSpreadFromSharedNode(t *testing.T) {
	o, _ := newOrchestrator(config.Default())

	_, err := o.Solve(context.Background(), Request{
		Model:       crowded(t, "n1", "n2"),
		Constraints: []constraint.SatConstraint{constraint.NewSpread("n1-a", "n1-b")},
	})
	if !errors.Is(err, scheduler.ErrContinuousPrecondition) {
		t.Fatalf("Solve() error = %v, want %v", err, scheduler.ErrContinuousPrecondition)
	}
}
