package partition

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/guimove/replanner/internal/constraint"
	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/plan"
	"github.com/guimove/replanner/internal/scheduler"
	"github.com/guimove/replanner/internal/scheduler/inject"
)

var halves = [][]model.Node{{"n1", "n2"}, {"n3", "n4"}}

// fleet: vm1 on n1, vm2 on n3, vm3 and vm4 ready; cpu 4 per node, 2 per VM.
func fleet(t *testing.T) *model.Model {
	t.Helper()
	mo := model.New()
	for _, n := range []model.Node{"n1", "n2", "n3", "n4"} {
		mo.Mapping.AddOnlineNode(n)
	}
	if err := mo.Mapping.AddRunningVM("vm1", "n1"); err != nil {
		t.Fatal(err)
	}
	if err := mo.Mapping.AddRunningVM("vm2", "n3"); err != nil {
		t.Fatal(err)
	}
	mo.Mapping.AddReadyVM("vm3")
	mo.Mapping.AddReadyVM("vm4")
	mo.AddResource(model.NewShareableResource("cpu", 4, 2))
	return mo
}

func TestSplit_DistributesElements(t *testing.T) {
	mo := fleet(t)
	s := &Splitter{Ready: map[model.VM]int{"vm4": 0}}
	cstrs := []constraint.SatConstraint{
		constraint.NewRunning("vm1", "vm2", "vm3", "vm4"),
		constraint.NewBan([]model.VM{"vm1", "vm2"}, []model.Node{"n1"}),
	}
	parts, err := s.Split(Instance{Model: mo, Constraints: cstrs}, halves)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d parts", len(parts))
	}
	if diff := cmp.Diff([]model.VM{"vm1", "vm3", "vm4"}, parts[0].Model.Mapping.VMs()); diff != "" {
		t.Errorf("part 0 VMs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]model.VM{"vm2"}, parts[1].Model.Mapping.VMs()); diff != "" {
		t.Errorf("part 1 VMs (-want +got):\n%s", diff)
	}
	// the ban only touches n1, so the second part keeps no trace of it
	if got := len(parts[1].Constraints); got != 1 {
		t.Errorf("part 1 has %d constraints: %v", got, parts[1].Constraints)
	}
	if _, ok := parts[1].Model.Resource("cpu"); !ok {
		t.Error("resources were not copied")
	}
}

func TestSplit_Rejections(t *testing.T) {
	tests := []struct {
		name string
		c    constraint.SatConstraint
	}{
		{"gather", constraint.NewGather("vm1", "vm2")},
		{"among", constraint.NewAmong([]model.VM{"vm1", "vm2"}, [][]model.Node{{"n1", "n3"}})},
		{"among without group", constraint.NewAmong([]model.VM{"vm1"}, [][]model.Node{{"n3"}})},
		{"capacity", constraint.NewResourceCapacity([]model.Node{"n1", "n3"}, "cpu", 4)},
		{"splitAmong VM group", constraint.NewSplitAmong([][]model.VM{{"vm1", "vm2"}}, [][]model.Node{{"n1"}})},
		{"splitAmong node group", constraint.NewSplitAmong([][]model.VM{{"vm1"}}, [][]model.Node{{"n2", "n3"}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&Splitter{}).Split(Instance{Model: fleet(t), Constraints: []constraint.SatConstraint{tt.c}}, halves)
			if !errors.Is(err, ErrSplitRejected) {
				t.Fatalf("Split() error = %v, want ErrSplitRejected", err)
			}
		})
	}
}

func TestSplit_NetworkIsRejected(t *testing.T) {
	mo := fleet(t)
	mo.Network = model.NewNetwork()
	mo.Network.Connect("l", 10, model.NodeEndpoint("n1"), model.NodeEndpoint("n3"))
	if _, err := (&Splitter{}).Split(Instance{Model: mo}, halves); !errors.Is(err, ErrSplitRejected) {
		t.Fatalf("Split() error = %v", err)
	}
}

func TestSplit_InvalidPartition(t *testing.T) {
	tests := map[string][][]model.Node{
		"missing node": {{"n1", "n2"}, {"n3"}},
		"duplicate":    {{"n1", "n2", "n3"}, {"n3", "n4"}},
		"unknown":      {{"n1", "n2", "n9"}, {"n3", "n4"}},
	}
	for name, parts := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := (&Splitter{}).Split(Instance{Model: fleet(t)}, parts); !errors.Is(err, ErrInvalidPartition) {
				t.Fatalf("Split() error = %v", err)
			}
		})
	}
}

func runner() *Runner {
	return &Runner{Params: inject.DefaultParameters(), Parallelism: 2}
}

func TestRunner_MergesPlans(t *testing.T) {
	mo := fleet(t)
	inst := Instance{
		Model: mo,
		Constraints: []constraint.SatConstraint{
			constraint.NewBan([]model.VM{"vm1", "vm2"}, []model.Node{"n1", "n3"}),
			constraint.NewRunning("vm3"),
		},
		Objective: constraint.MinMTTR{},
	}
	parts, err := (&Splitter{}).Split(inst, halves)
	if err != nil {
		t.Fatal(err)
	}
	pl, stats, results, err := runner().Solve(context.Background(), inst, parts)
	if err != nil {
		t.Fatal(err)
	}
	if pl == nil {
		t.Fatal("no plan")
	}
	if len(results) != 2 || stats.VMs != 4 || stats.Nodes != 4 || !stats.Solved() {
		t.Errorf("stats = %+v", stats)
	}
	res, err := pl.Result()
	if err != nil {
		t.Fatal(err)
	}
	want := map[model.VM]model.Node{"vm1": "n2", "vm2": "n4"}
	for vm, n := range want {
		if h, _ := res.Mapping.Host(vm); h != n {
			t.Errorf("%s on %s, want %s", vm, h, n)
		}
	}
	if res.Mapping.VMState("vm3") != model.VMRunning {
		t.Errorf("vm3 is %s", res.Mapping.VMState("vm3"))
	}
}

func TestRunner_OnePartWithoutSolution(t *testing.T) {
	mo := fleet(t)
	inst := Instance{
		Model:       mo,
		Constraints: []constraint.SatConstraint{constraint.NewPreserve([]model.VM{"vm2"}, "cpu", 5)},
	}
	parts, err := (&Splitter{}).Split(inst, halves)
	if err != nil {
		t.Fatal(err)
	}
	pl, stats, results, err := runner().Solve(context.Background(), inst, parts)
	if err != nil {
		t.Fatal(err)
	}
	if pl != nil {
		t.Fatalf("got plan %v", pl)
	}
	if results[0].Plan == nil || results[1].Plan != nil {
		t.Errorf("results = %+v", results)
	}
	if !stats.Completed {
		t.Error("an exhausted part must keep the aggregate completed")
	}
}

func TestRunner_AssemblyErrorStopsTheRun(t *testing.T) {
	mo := fleet(t)
	inst := Instance{Model: mo, Constraints: []constraint.SatConstraint{constraint.NewSleeping("vm4")}}
	parts, err := (&Splitter{Ready: map[model.VM]int{"vm4": 1}}).Split(inst, halves)
	if err != nil {
		t.Fatal(err)
	}
	_, _, _, err = runner().Solve(context.Background(), inst, parts)
	if !errors.Is(err, scheduler.ErrInfeasibleTransition) {
		t.Fatalf("Solve() error = %v", err)
	}
}

// A constraint contained in one part leads to the same final placement
// whether the fleet is split or not.
func TestProjection_MatchesWholeInstance(t *testing.T) {
	cstrs := []constraint.SatConstraint{
		constraint.NewFence([]model.VM{"vm1"}, []model.Node{"n2"}),
		constraint.NewRoot("vm2"),
	}
	whole, _, err := scheduler.Solve(context.Background(), fleet(t), cstrs, constraint.MinMTTR{}, inject.DefaultParameters())
	if err != nil || whole == nil {
		t.Fatalf("whole instance: %v, %v", whole, err)
	}
	inst := Instance{Model: fleet(t), Constraints: cstrs, Objective: constraint.MinMTTR{}}
	parts, err := (&Splitter{}).Split(inst, halves)
	if err != nil {
		t.Fatal(err)
	}
	split, _, _, err := runner().Solve(context.Background(), inst, parts)
	if err != nil || split == nil {
		t.Fatalf("split instance: %v, %v", split, err)
	}
	a, b := mustResult(t, whole), mustResult(t, split)
	if !a.Mapping.Equal(b.Mapping) {
		t.Errorf("mappings differ:\nwhole %v\nsplit %v", whole, split)
	}
}

func mustResult(t *testing.T, p *plan.ReconfigurationPlan) *model.Model {
	t.Helper()
	mo, err := p.Result()
	if err != nil {
		t.Fatal(err)
	}
	return mo
}

func TestEvenParts(t *testing.T) {
	nodes := []model.Node{"n1", "n2", "n3", "n4", "n5"}
	tests := []struct {
		k    int
		want [][]model.Node
	}{
		{0, nil},
		{1, [][]model.Node{nodes}},
		{2, [][]model.Node{{"n1", "n2", "n3"}, {"n4", "n5"}}},
		{7, [][]model.Node{{"n1"}, {"n2"}, {"n3"}, {"n4"}, {"n5"}}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, EvenParts(nodes, tt.k)); diff != "" {
			t.Errorf("EvenParts(%d) mismatch (-want +got):\n%s", tt.k, diff)
		}
	}
}
