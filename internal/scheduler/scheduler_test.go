package scheduler_test

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

func newModel(t *testing.T, nodes []model.Node, running map[model.VM]model.Node, ready ...model.VM) *model.Model {
	t.Helper()
	mo := model.New()
	for _, n := range nodes {
		mo.Mapping.AddOnlineNode(n)
	}
	for vm, n := range running {
		if err := mo.Mapping.AddRunningVM(vm, n); err != nil {
			t.Fatal(err)
		}
	}
	for _, vm := range ready {
		mo.Mapping.AddReadyVM(vm)
	}
	return mo
}

func solve(t *testing.T, mo *model.Model, cstrs []constraint.SatConstraint, obj constraint.OptConstraint, ps scheduler.Parameters) (*plan.ReconfigurationPlan, *plan.Statistics) {
	t.Helper()
	pl, stats, err := scheduler.Solve(context.Background(), mo, cstrs, obj, ps)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	return pl, stats
}

func kinds(pl *plan.ReconfigurationPlan) []string {
	var out []string
	for _, a := range pl.Actions() {
		out = append(out, a.Kind.String())
	}
	return out
}

func TestSolve_BootSingleVM(t *testing.T) {
	mo := newModel(t, []model.Node{"n1"}, nil, "vm1")
	mo.AddResource(model.NewShareableResource("cpu", 4, 2))

	pl, stats := solve(t, mo, []constraint.SatConstraint{constraint.NewRunning("vm1")}, constraint.MinMTTR{}, inject.DefaultParameters())
	if pl == nil {
		t.Fatalf("no plan, completed=%v", stats.Completed)
	}
	if diff := cmp.Diff([]string{"bootVM"}, kinds(pl)); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
	a := pl.Actions()[0]
	if a.Start != 0 || a.End != 1 || a.Node != "n1" {
		t.Errorf("boot = %v, want 0:1 on n1", a)
	}
	if len(a.Events) != 0 {
		t.Errorf("allocation changed: %v", a.Events)
	}
	if pl.Count(plan.Allocate) != 0 {
		t.Errorf("unexpected allocate actions in %v", pl)
	}
}

func TestSolve_NoCapacityIsNoSolution(t *testing.T) {
	mo := newModel(t, []model.Node{"nA", "nB"}, map[model.VM]model.Node{"vm1": "nA"}, "vm2")
	cpu := model.NewShareableResource("cpu", 10, 0)
	cpu.SetConsumption("vm1", 10).SetConsumption("vm2", 12)
	mo.AddResource(cpu)

	cstrs := []constraint.SatConstraint{
		constraint.NewRunning("vm2"),
		constraint.NewFence([]model.VM{"vm2"}, []model.Node{"nA"}),
	}
	pl, stats, err := scheduler.Solve(context.Background(), mo, cstrs, constraint.MinMTTR{}, inject.DefaultParameters())
	if err != nil {
		t.Fatalf("Solve() error = %v, want no solution", err)
	}
	if pl != nil {
		t.Fatalf("got plan %v, want none", pl)
	}
	if !stats.Completed || stats.Solved() {
		t.Errorf("stats = %+v, want a completed search without solution", stats)
	}
}

func TestSolve_SplitAmongSingleMatching(t *testing.T) {
	mo := newModel(t, []model.Node{"n1", "n2", "n3", "n4"}, nil, "a1", "a2", "b1", "c1")
	cpu := model.NewShareableResource("cpu", 4, 0)
	cpu.SetCapacity("n4", 2)
	cpu.SetConsumption("a1", 3).SetConsumption("a2", 3).SetConsumption("b1", 4).SetConsumption("c1", 2)
	mo.AddResource(cpu)

	cstrs := []constraint.SatConstraint{
		constraint.NewRunning("a1", "a2", "b1", "c1"),
		constraint.NewSplitAmong(
			[][]model.VM{{"a1", "a2"}, {"b1"}, {"c1"}},
			[][]model.Node{{"n1", "n2"}, {"n3"}, {"n4"}}),
	}
	pl, _ := solve(t, mo, cstrs, constraint.MinMTTR{}, inject.DefaultParameters())
	if pl == nil {
		t.Fatal("no plan")
	}
	res, err := pl.Result()
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[model.VM]model.Node)
	for _, vm := range []model.VM{"a1", "a2", "b1", "c1"} {
		got[vm], _ = res.Mapping.Host(vm)
	}
	if got["a1"] == got["a2"] || (got["a1"] != "n1" && got["a1"] != "n2") || (got["a2"] != "n1" && got["a2"] != "n2") {
		t.Errorf("a-group placed on %s and %s", got["a1"], got["a2"])
	}
	if got["b1"] != "n3" || got["c1"] != "n4" {
		t.Errorf("b1 on %s, c1 on %s; want n3 and n4", got["b1"], got["c1"])
	}
}

func TestBuild_AssemblyErrors(t *testing.T) {
	tests := []struct {
		name  string
		cstrs []constraint.SatConstraint
		want  error
	}{
		{"ready to sleeping", []constraint.SatConstraint{constraint.NewSleeping("vm3")}, scheduler.ErrInfeasibleTransition},
		{"running a VM to forge", []constraint.SatConstraint{constraint.NewRunning("vm9")}, scheduler.ErrInfeasibleTransition},
		{"conflicting states", []constraint.SatConstraint{constraint.NewRunning("vm3"), constraint.NewReady("vm3")}, scheduler.ErrInfeasibleTransition},
		{"unknown node", []constraint.SatConstraint{constraint.NewOffline("n9")}, scheduler.ErrInfeasibleTransition},
		{"continuous spread violated", []constraint.SatConstraint{constraint.NewSpread("vm1", "vm2")}, scheduler.ErrContinuousPrecondition},
		{"fence on no node", []constraint.SatConstraint{constraint.NewFence([]model.VM{"vm1"}, nil)}, scheduler.ErrModelingContradiction},
		{"unsupported", []constraint.SatConstraint{unknown{}}, scheduler.ErrUnsupportedConstraint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mo := newModel(t, []model.Node{"n1", "n2"}, map[model.VM]model.Node{"vm1": "n1", "vm2": "n1"}, "vm3")
			_, err := scheduler.Build(mo, tt.cstrs, nil, inject.DefaultParameters())
			if !errors.Is(err, tt.want) {
				t.Fatalf("Build() error = %v, want %v", err, tt.want)
			}
			var ae *scheduler.AssemblyError
			if errors.As(err, &ae) && ae.Element == "" {
				t.Errorf("assembly error %v names no element", err)
			}
		})
	}
}

func TestBuild_ContinuousPreconditionIsDeterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		mo := newModel(t, []model.Node{"n1", "n2"}, map[model.VM]model.Node{"vm1": "n1", "vm2": "n2"})
		among := constraint.NewAmong([]model.VM{"vm1", "vm2"}, [][]model.Node{{"n1"}, {"n2"}})
		if err := among.SetContinuous(true); err != nil {
			t.Fatal(err)
		}
		pl, _, err := scheduler.Solve(context.Background(), mo, []constraint.SatConstraint{among}, nil, inject.DefaultParameters())
		if !errors.Is(err, scheduler.ErrContinuousPrecondition) || pl != nil {
			t.Fatalf("run %d: plan %v, error %v", i, pl, err)
		}
	}
}

func TestSolve_RepairManagesMisplacedOnly(t *testing.T) {
	mo := newModel(t, []model.Node{"n1", "n2", "n3"},
		map[model.VM]model.Node{"vm1": "n1", "vm2": "n1", "vm3": "n2"})
	mo.AddResource(model.NewShareableResource("cpu", 8, 1))

	ps := inject.DefaultParameters()
	ps.Repair = true
	cstrs := []constraint.SatConstraint{constraint.NewBan([]model.VM{"vm3"}, []model.Node{"n2"})}
	pl, stats := solve(t, mo, cstrs, constraint.MinMigrations{}, ps)
	if pl == nil {
		t.Fatal("no plan")
	}
	if stats.ManagedVMs != 1 {
		t.Errorf("managed = %d, want 1", stats.ManagedVMs)
	}
	if diff := cmp.Diff([]model.VM{"vm3"}, pl.MisPlaced); diff != "" {
		t.Errorf("misplaced mismatch (-want +got):\n%s", diff)
	}
	a, ok := pl.Find("vm3", plan.MigrateVM)
	if !ok || a.Dst == "n2" {
		t.Fatalf("plan %v does not move vm3 away from n2", pl)
	}
	if pl.Size() != 1 {
		t.Errorf("plan %v, want one action", pl)
	}
}

func TestSolve_CapacityHoldsAlongThePlan(t *testing.T) {
	mo := newModel(t, []model.Node{"n1", "n2", "n3"},
		map[model.VM]model.Node{"vm1": "n1", "vm2": "n2"})
	cpu := model.NewShareableResource("cpu", 4, 3)
	mo.AddResource(cpu)

	cstrs := []constraint.SatConstraint{
		constraint.NewBan([]model.VM{"vm1"}, []model.Node{"n1"}),
		constraint.NewBan([]model.VM{"vm2"}, []model.Node{"n2", "n3"}),
	}
	pl, _ := solve(t, mo, cstrs, constraint.MinMTTR{}, inject.DefaultParameters())
	if pl == nil {
		t.Fatal("no plan")
	}
	tl, err := plan.Simulate(pl)
	if err != nil {
		t.Fatal(err)
	}
	for _, st := range tl.All() {
		for _, n := range []model.Node{"n1", "n2", "n3"} {
			if u := st.Usage["cpu"][n]; u > cpu.Capacity(n) {
				t.Errorf("t=%d: %s uses %d over %d", st.Time, n, u, cpu.Capacity(n))
			}
		}
	}
	m1, _ := pl.Find("vm1", plan.MigrateVM)
	m2, _ := pl.Find("vm2", plan.MigrateVM)
	if m1 == nil || m2 == nil {
		t.Fatalf("plan %v, want two migrations", pl)
	}
	if m1.Dst == "n2" && m1.Start < m2.End {
		t.Errorf("vm1 lands on n2 at %d before vm2 leaves at %d", m1.Start, m2.End)
	}
}

func TestSolve_PreserveAllocatesInPlace(t *testing.T) {
	mo := newModel(t, []model.Node{"n1"}, map[model.VM]model.Node{"vm1": "n1"})
	mo.AddResource(model.NewShareableResource("mem", 16, 2))

	cstrs := []constraint.SatConstraint{constraint.NewPreserve([]model.VM{"vm1"}, "mem", 6)}
	pl, _ := solve(t, mo, cstrs, constraint.MinMTTR{}, inject.DefaultParameters())
	if pl == nil {
		t.Fatal("no plan")
	}
	a, ok := pl.Find("vm1", plan.Allocate)
	if !ok || a.Amount != 6 || a.Resource != "mem" {
		t.Fatalf("plan %v, want an allocation of 6 mem", pl)
	}
}

func TestSolve_OverbookRaisesCapacity(t *testing.T) {
	mo := newModel(t, []model.Node{"n1"}, map[model.VM]model.Node{"vm1": "n1"}, "vm2")
	mo.AddResource(model.NewShareableResource("cpu", 4, 3))
	cstrs := []constraint.SatConstraint{constraint.NewRunning("vm2")}

	pl, _ := solve(t, mo, cstrs, nil, inject.DefaultParameters())
	if pl != nil {
		t.Fatalf("plan %v without overbooking", pl)
	}
	cstrs = append(cstrs, constraint.NewOverbook([]model.Node{"n1"}, "cpu", 2))
	if pl, _ = solve(t, mo, cstrs, nil, inject.DefaultParameters()); pl == nil {
		t.Fatal("no plan with a ratio of 2")
	}
}

func networkModel(t *testing.T) *model.Model {
	t.Helper()
	mo := newModel(t, []model.Node{"n1", "n2"}, map[model.VM]model.Node{"vm1": "n1", "vm2": "n1"})
	net := model.NewNetwork()
	sw := net.AddSwitch("sw", 0)
	net.Connect("l1", 1000, model.NodeEndpoint("n1"), model.SwitchEndpoint(sw))
	net.Connect("l2", 1000, model.SwitchEndpoint(sw), model.NodeEndpoint("n2"))
	mo.Network = net
	mo.Attributes.PutVM("vm1", "memUsed", 1000)
	mo.Attributes.PutVM("vm2", "memUsed", 1000)
	return mo
}

func TestBuild_NetworkStayingVMHasNoBandwidth(t *testing.T) {
	mo := networkModel(t)
	p, err := scheduler.Build(mo, []constraint.SatConstraint{constraint.NewRoot("vm1", "vm2")}, nil, inject.DefaultParameters())
	if err != nil {
		t.Fatal(err)
	}
	tr, _ := p.Transition("vm1")
	if !tr.Bandwidth.IsInstantiated() || tr.Bandwidth.Value() != 0 {
		t.Errorf("bandwidth = %v, want 0", tr.Bandwidth)
	}
	if !tr.MigrationDuration.IsInstantiated() || tr.MigrationDuration.Value() < 1 {
		t.Errorf("migration duration = %v, want a positive constant", tr.MigrationDuration)
	}
}

func TestSolve_NetworkSerializesMigrations(t *testing.T) {
	mo := networkModel(t)
	cstrs := []constraint.SatConstraint{constraint.NewFence([]model.VM{"vm1", "vm2"}, []model.Node{"n2"})}
	pl, _ := solve(t, mo, cstrs, constraint.MinMTTR{}, inject.DefaultParameters())
	if pl == nil {
		t.Fatal("no plan")
	}
	m1, _ := pl.Find("vm1", plan.MigrateVM)
	m2, _ := pl.Find("vm2", plan.MigrateVM)
	if m1 == nil || m2 == nil {
		t.Fatalf("plan %v, want two migrations", pl)
	}
	for _, m := range []*plan.Action{m1, m2} {
		if m.Bandwidth != 1000 || m.Duration() != 9 {
			t.Errorf("%v: bandwidth %d, duration %d; want 1000 and 9", m, m.Bandwidth, m.Duration())
		}
	}
	if m1.Start < m2.End && m2.Start < m1.End {
		t.Errorf("migrations overlap on a saturated link: %v, %v", m1, m2)
	}
}

func TestBuild_NetworkNeedsMemory(t *testing.T) {
	mo := networkModel(t)
	mo.Attributes = model.NewAttributes()
	_, err := scheduler.Build(mo, []constraint.SatConstraint{constraint.NewRoot("vm1", "vm2")}, nil, inject.DefaultParameters())
	if !errors.Is(err, scheduler.ErrModelingContradiction) {
		t.Fatalf("Build() error = %v, want a modeling contradiction", err)
	}
}

func TestSolve_StatisticsOfAnEmptyChange(t *testing.T) {
	mo := newModel(t, []model.Node{"n1"}, map[model.VM]model.Node{"vm1": "n1"})
	pl, stats := solve(t, mo, nil, constraint.MinMTTR{}, inject.DefaultParameters())
	if pl == nil || pl.Size() != 0 {
		t.Fatalf("plan %v, want an empty one", pl)
	}
	if stats.RunID == "" || !stats.Solved() || stats.VMs != 1 || stats.Nodes != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

type unknown struct{}

func (unknown) Name() string                { return "unknown" }
func (unknown) InvolvedVMs() []model.VM     { return nil }
func (unknown) InvolvedNodes() []model.Node { return nil }
func (unknown) IsContinuous() bool          { return false }
func (unknown) SetContinuous(bool) error    { return nil }
func (unknown) Satisfied(*model.Model) bool { return true }

func TestSolve_PlacementHintGuidesBoot(t *testing.T) {
	mo := newModel(t, []model.Node{"n1", "n2"}, nil, "vm1")
	cpu := model.NewShareableResource("cpu", 10, 2)
	cpu.SetCapacity("n2", 3)
	mo.AddResource(cpu)
	cstrs := []constraint.SatConstraint{constraint.NewRunning("vm1")}

	tests := []struct {
		name string
		hint bool
		want model.Node
	}{
		{"best fit", true, "n2"},
		{"lowest index", false, "n1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := inject.DefaultParameters()
			ps.Optimize = false
			if !tt.hint {
				ps.Hint = nil
			}
			pl, _ := solve(t, mo, cstrs, nil, ps)
			if pl == nil {
				t.Fatal("no plan")
			}
			a, ok := pl.Find("vm1", plan.BootVM)
			if !ok || a.Node != tt.want {
				t.Errorf("boot = %v, want on %s", a, tt.want)
			}
		})
	}
}

func withMode(t *testing.T, c constraint.SatConstraint, continuous bool) constraint.SatConstraint {
	t.Helper()
	if err := c.SetContinuous(continuous); err != nil {
		t.Fatal(err)
	}
	return c
}

// checkAll fails the test when the plan violates one of cstrs.
func checkAll(t *testing.T, pl *plan.ReconfigurationPlan, cstrs []constraint.SatConstraint) {
	t.Helper()
	for _, c := range cstrs {
		ok, err := constraint.CheckPlan(c, pl)
		if err != nil {
			t.Fatalf("CheckPlan(%v) error = %v", c, err)
		}
		if !ok {
			t.Errorf("plan %v violates %v", pl, c)
		}
	}
}

func TestSolve_Split(t *testing.T) {
	for _, continuous := range []bool{false, true} {
		name := "discrete"
		if continuous {
			name = "continuous"
		}
		t.Run(name, func(t *testing.T) {
			// a1 leaves n1 for n3 while b2 boots on n1.
			mo := newModel(t, []model.Node{"n1", "n2", "n3"},
				map[model.VM]model.Node{"a1": "n1", "b1": "n2"}, "b2")
			mo.AddResource(model.NewShareableResource("cpu", 4, 1))

			cstrs := []constraint.SatConstraint{
				constraint.NewRunning("b2"),
				constraint.NewFence([]model.VM{"a1"}, []model.Node{"n3"}),
				constraint.NewFence([]model.VM{"b2"}, []model.Node{"n1"}),
				withMode(t, constraint.NewSplit([][]model.VM{{"a1"}, {"b1", "b2"}}), continuous),
			}
			pl, _ := solve(t, mo, cstrs, constraint.MinMTTR{}, inject.DefaultParameters())
			if pl == nil {
				t.Fatal("no plan")
			}
			checkAll(t, pl, cstrs)

			mig, ok := pl.Find("a1", plan.MigrateVM)
			if !ok || mig.Dst != "n3" {
				t.Fatalf("plan %v does not move a1 to n3", pl)
			}
			boot, ok := pl.Find("b2", plan.BootVM)
			if !ok || boot.Node != "n1" {
				t.Fatalf("plan %v does not boot b2 on n1", pl)
			}
			if continuous && boot.Start < mig.End {
				t.Errorf("b2 boots at %d on n1, before a1 leaves at %d", boot.Start, mig.End)
			}
		})
	}
}

func TestSolve_SplitDisjointHosts(t *testing.T) {
	for _, continuous := range []bool{false, true} {
		mo := newModel(t, []model.Node{"n1", "n2"}, map[model.VM]model.Node{"a1": "n1", "b1": "n2"}, "a2", "b2")
		mo.AddResource(model.NewShareableResource("cpu", 4, 1))

		cstrs := []constraint.SatConstraint{
			constraint.NewRunning("a2", "b2"),
			withMode(t, constraint.NewSplit([][]model.VM{{"a1", "a2"}, {"b1", "b2"}}), continuous),
		}
		pl, _ := solve(t, mo, cstrs, constraint.MinMTTR{}, inject.DefaultParameters())
		if pl == nil {
			t.Fatalf("continuous=%v: no plan", continuous)
		}
		checkAll(t, pl, cstrs)
		res, err := pl.Result()
		if err != nil {
			t.Fatal(err)
		}
		hostA, _ := res.Mapping.Host("a2")
		hostB, _ := res.Mapping.Host("b2")
		if hostA != "n1" || hostB != "n2" {
			t.Errorf("continuous=%v: a2 on %s, b2 on %s; want n1 and n2", continuous, hostA, hostB)
		}
	}
}

func TestSolve_ContinuousSpreadWaitsForDeparture(t *testing.T) {
	// vm1 takes the node vm2 leaves.
	mo := newModel(t, []model.Node{"n1", "n2", "n3"}, map[model.VM]model.Node{"vm1": "n1", "vm2": "n2"})
	mo.AddResource(model.NewShareableResource("cpu", 4, 1))

	cstrs := []constraint.SatConstraint{
		constraint.NewSpread("vm1", "vm2"),
		constraint.NewFence([]model.VM{"vm1"}, []model.Node{"n2"}),
		constraint.NewFence([]model.VM{"vm2"}, []model.Node{"n3"}),
	}
	pl, _ := solve(t, mo, cstrs, constraint.MinMTTR{}, inject.DefaultParameters())
	if pl == nil {
		t.Fatal("no plan")
	}
	checkAll(t, pl, cstrs)

	m1, ok1 := pl.Find("vm1", plan.MigrateVM)
	m2, ok2 := pl.Find("vm2", plan.MigrateVM)
	if !ok1 || !ok2 {
		t.Fatalf("plan %v, want both VMs migrated", pl)
	}
	if m1.Start < m2.End {
		t.Errorf("vm1 reaches n2 at %d, before vm2 leaves at %d", m1.Start, m2.End)
	}
}
