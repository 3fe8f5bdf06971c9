package inject

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/guimove/replanner/internal/constraint"
	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/scheduler"
)

// fixture: vm1, vm2 on n1; vm3 on n2; vm4 ready; n3 empty.
func fixture(t *testing.T) *model.Model {
	t.Helper()
	mo := model.New()
	for _, n := range []model.Node{"n1", "n2", "n3"} {
		mo.Mapping.AddOnlineNode(n)
	}
	for vm, n := range map[model.VM]model.Node{"vm1": "n1", "vm2": "n1", "vm3": "n2"} {
		if err := mo.Mapping.AddRunningVM(vm, n); err != nil {
			t.Fatal(err)
		}
	}
	mo.Mapping.AddReadyVM("vm4")
	mo.AddResource(model.NewShareableResource("cpu", 4, 2))
	return mo
}

func TestMisPlaced(t *testing.T) {
	tests := []struct {
		name string
		c    constraint.SatConstraint
		want []model.VM
	}{
		{"running", constraint.NewRunning("vm1", "vm4"), []model.VM{"vm4"}},
		{"killed ghost", constraint.NewKilled("ghost"), nil},
		{"offline", constraint.NewOffline("n1"), []model.VM{"vm1", "vm2"}},
		{"online", constraint.NewOnline("n1"), nil},
		{"fence", constraint.NewFence([]model.VM{"vm1", "vm3"}, []model.Node{"n1"}), []model.VM{"vm3"}},
		{"ban", constraint.NewBan([]model.VM{"vm1", "vm3"}, []model.Node{"n1"}), []model.VM{"vm1"}},
		{"root", constraint.NewRoot("vm1"), nil},
		{"gather", constraint.NewGather("vm1", "vm3"), []model.VM{"vm1", "vm3"}},
		{"spread", constraint.NewSpread("vm1", "vm2", "vm3"), []model.VM{"vm1", "vm2"}},
		{"split ok", constraint.NewSplit([][]model.VM{{"vm1", "vm2"}, {"vm3"}}), nil},
		{"preserve", constraint.NewPreserve([]model.VM{"vm1", "vm4"}, "cpu", 3), []model.VM{"vm1"}},
		{"capacity", constraint.NewResourceCapacity([]model.Node{"n1"}, "cpu", 3), []model.VM{"vm1", "vm2"}},
	}
	mo := fixture(t)
	cat := NewCatalog()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inj, err := cat.Injector(tt.c)
			if err != nil {
				t.Fatal(err)
			}
			got := inj.MisPlaced(mo)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty(), cmpopts.SortSlices(func(a, b model.VM) bool { return a < b })); diff != "" {
				t.Errorf("MisPlaced() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCatalog_Objectives(t *testing.T) {
	cat := NewCatalog()
	for _, o := range []constraint.OptConstraint{constraint.MinMTTR{}, &constraint.MinMigrations{}} {
		if _, err := cat.Objective(o); err != nil {
			t.Errorf("Objective(%s) error = %v", o.Name(), err)
		}
	}
	if _, err := cat.Objective(other{}); !errors.Is(err, scheduler.ErrUnsupportedConstraint) {
		t.Errorf("unexpected error %v", err)
	}
}

type other struct{}

func (other) Name() string { return "other" }

func TestAmong_OverlappingGroups(t *testing.T) {
	mo := fixture(t)
	c := constraint.NewAmong([]model.VM{"vm1"}, [][]model.Node{{"n1", "n2"}, {"n2", "n3"}})
	_, err := scheduler.Build(mo, []constraint.SatConstraint{c}, nil, DefaultParameters())
	if !errors.Is(err, scheduler.ErrModelingContradiction) {
		t.Fatalf("Build() error = %v, want a modeling contradiction", err)
	}
}

func TestObjective_MinMigrationsWeighsMoves(t *testing.T) {
	mo := fixture(t)
	p, err := scheduler.Build(mo, nil, constraint.MinMigrations{}, DefaultParameters())
	if err != nil {
		t.Fatal(err)
	}
	obj := p.Objective()
	if obj == nil {
		t.Fatal("no objective")
	}
	// three relocatable VMs, an end bound of 1000 for each VM and node action
	weight := 1000*(4+3) + 1
	if got, want := obj.UB(), 3*weight+weight-1; got != want {
		t.Errorf("objective bound = %d, want %d", got, want)
	}
}

func TestFence_RestrictsHosts(t *testing.T) {
	mo := fixture(t)
	c := constraint.NewFence([]model.VM{"vm1", "vm4"}, []model.Node{"n2", "n3"})
	p, err := scheduler.Build(mo, []constraint.SatConstraint{constraint.NewRunning("vm4"), c}, nil, DefaultParameters())
	if err != nil {
		t.Fatal(err)
	}
	n1, _ := p.NodeIndex("n1")
	for _, vm := range []model.VM{"vm1", "vm4"} {
		tr, _ := p.Transition(vm)
		if tr.DSlice.Host.Contains(n1) {
			t.Errorf("%s may still land on n1: %v", vm, tr.DSlice.Host)
		}
	}
}
