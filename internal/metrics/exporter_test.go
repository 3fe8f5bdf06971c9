package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/guimove/replanner/internal/plan"
)

func TestExporter_Observe(t *testing.T) {
	mo := testModel(t)
	p := plan.New(mo)
	p.Add(plan.NewBootVM("web/b", "n1", 0, 3))
	st := &plan.Statistics{
		ManagedVMs:     1,
		NodesExplored:  7,
		Completed:      true,
		SearchDuration: 250 * time.Millisecond,
		Solutions:      []plan.SolutionStatistics{{Objective: 3}},
	}

	e := NewExporter()
	e.Observe(p, st)
	e.Observe(nil, &plan.Statistics{Completed: true})

	if got := testutil.ToFloat64(e.solvesTotal.WithLabelValues("solved")); got != 1 {
		t.Errorf("solved = %g, want 1", got)
	}
	if got := testutil.ToFloat64(e.solvesTotal.WithLabelValues("infeasible")); got != 1 {
		t.Errorf("infeasible = %g, want 1", got)
	}

	e.Observe(p, st)
	if got := testutil.ToFloat64(e.actions.WithLabelValues("bootVM")); got != 1 {
		t.Errorf("bootVM actions = %g, want 1", got)
	}
	if got := testutil.CollectAndCount(e.actions); got != 10 {
		t.Errorf("action series = %d, want 10", got)
	}
	expected := `
# HELP replanner_plan_duration Duration of the last plan in time units.
# TYPE replanner_plan_duration gauge
replanner_plan_duration 3
# HELP replanner_objective Objective value of the best solution.
# TYPE replanner_objective gauge
replanner_objective 3
`
	if err := testutil.GatherAndCompare(e.Registry(), strings.NewReader(expected),
		"replanner_plan_duration", "replanner_objective"); err != nil {
		t.Error(err)
	}
}

func TestExporter_WriteTextfile(t *testing.T) {
	e := NewExporter()
	e.Observe(nil, &plan.Statistics{})

	path := filepath.Join(t.TempDir(), "replanner.prom")
	if err := e.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `replanner_solves_total{outcome="unknown"} 1`) {
		t.Errorf("missing solve counter:\n%s", data)
	}
}
