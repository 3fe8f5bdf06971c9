package constraint

import (
	"errors"
	"testing"

	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/plan"
)

// fixture: vm1, vm2 on n1; vm3 on n2; vm4 ready; n3 online and empty.
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

func TestSatisfied(t *testing.T) {
	tests := []struct {
		name string
		c    SatConstraint
		want bool
	}{
		{"running ok", NewRunning("vm1", "vm3"), true},
		{"running ko", NewRunning("vm4"), false},
		{"ready", NewReady("vm4"), true},
		{"killed ko", NewKilled("vm1"), false},
		{"killed ok", NewKilled("ghost"), true},
		{"online", NewOnline("n1", "n3"), true},
		{"offline", NewOffline("n3"), false},
		{"fence ok", NewFence([]model.VM{"vm1", "vm4"}, []model.Node{"n1"}), true},
		{"fence ko", NewFence([]model.VM{"vm3"}, []model.Node{"n1"}), false},
		{"ban", NewBan([]model.VM{"vm3"}, []model.Node{"n2"}), false},
		{"gather ok", NewGather("vm1", "vm2"), true},
		{"gather ko", NewGather("vm1", "vm3"), false},
		{"spread ok", NewSpread("vm1", "vm3"), true},
		{"spread ko", NewSpread("vm1", "vm2"), false},
		{"among ok", NewAmong([]model.VM{"vm1", "vm3"}, [][]model.Node{{"n3"}, {"n1", "n2"}}), true},
		{"among ko", NewAmong([]model.VM{"vm1", "vm3"}, [][]model.Node{{"n1"}, {"n2"}}), false},
		{"split ok", NewSplit([][]model.VM{{"vm1", "vm2"}, {"vm3"}}), true},
		{"split ko", NewSplit([][]model.VM{{"vm1"}, {"vm2"}}), false},
		{"splitAmong ok", NewSplitAmong([][]model.VM{{"vm1"}, {"vm3"}}, [][]model.Node{{"n1"}, {"n2", "n3"}}), true},
		{"splitAmong shared group", NewSplitAmong([][]model.VM{{"vm1"}, {"vm3"}}, [][]model.Node{{"n1", "n2"}, {"n3"}}), false},
		{"preserve ko", NewPreserve([]model.VM{"vm1"}, "cpu", 3), false},
		{"resourceCapacity ok", NewResourceCapacity([]model.Node{"n1"}, "cpu", 4), true},
		{"resourceCapacity ko", NewResourceCapacity([]model.Node{"n1", "n2"}, "cpu", 5), false},
		{"overbook ok", NewOverbook([]model.Node{"n1"}, "cpu", 1), true},
		{"overbook ko", NewOverbook([]model.Node{"n1"}, "cpu", 0.5), false},
	}
	mo := fixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Satisfied(mo); got != tt.want {
				t.Errorf("%v.Satisfied() = %v, want %v", tt.c, got, tt.want)
			}
		})
	}
}

func TestSetContinuous(t *testing.T) {
	if err := NewRunning("vm1").SetContinuous(true); !errors.Is(err, ErrContinuousUnsupported) {
		t.Errorf("running is discrete only, got %v", err)
	}
	if err := NewRoot("vm1").SetContinuous(false); !errors.Is(err, ErrContinuousUnsupported) {
		t.Errorf("root is continuous only, got %v", err)
	}
	f := NewFence([]model.VM{"vm1"}, []model.Node{"n1"})
	if err := f.SetContinuous(true); err != nil || !f.IsContinuous() {
		t.Errorf("fence should become continuous, got %v", err)
	}
	if !NewSpread("vm1").IsContinuous() {
		t.Error("spread is continuous by default")
	}
}

func TestCheckPlan_ContinuousSpread(t *testing.T) {
	mo := fixture(t)
	// vm1 joins vm3 on n2 while vm3 leaves: the end state is spread, not
	// every moment.
	p := plan.New(mo)
	p.Add(plan.NewMigrateVM("vm3", "n2", "n3", 0, 3, 10))
	p.Add(plan.NewMigrateVM("vm1", "n1", "n2", 1, 4, 10))

	c := NewSpread("vm1", "vm3")
	ok, err := CheckPlan(c, p)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("the continuous spread must be violated while both VMs are on n2")
	}

	_ = c.SetContinuous(false)
	ok, err = CheckPlan(c, p)
	if err != nil || !ok {
		t.Errorf("the discrete spread holds on the result, got %v %v", ok, err)
	}

	sequential := plan.New(mo)
	sequential.Add(plan.NewMigrateVM("vm3", "n2", "n3", 0, 3, 10))
	sequential.Add(plan.NewMigrateVM("vm1", "n1", "n2", 3, 6, 10))
	_ = c.SetContinuous(true)
	if ok, err := CheckPlan(c, sequential); err != nil || !ok {
		t.Errorf("a migration starting when the other ends is fine, got %v %v", ok, err)
	}
}

func TestCheckPlan_Root(t *testing.T) {
	mo := fixture(t)
	p := plan.New(mo)
	p.Add(plan.NewMigrateVM("vm1", "n1", "n3", 0, 3, 10))
	if ok, _ := CheckPlan(NewRoot("vm1"), p); ok {
		t.Error("a rooted VM must not migrate")
	}
	if ok, _ := CheckPlan(NewRoot("vm2"), p); !ok {
		t.Error("vm2 did not move")
	}
}

func TestCheckPlan_ResourceCapacityContinuous(t *testing.T) {
	mo := fixture(t)
	p := plan.New(mo)
	p.Add(plan.NewMigrateVM("vm1", "n1", "n3", 0, 3, 10))
	c := NewResourceCapacity([]model.Node{"n1", "n3"}, "cpu", 4)
	if ok, _ := CheckPlan(c, p); !ok {
		t.Error("the discrete capacity holds at the end")
	}
	_ = c.SetContinuous(true)
	if ok, _ := CheckPlan(c, p); ok {
		t.Error("6 cpu are held while vm1 migrates")
	}
}

func TestSatisfiedAtStart(t *testing.T) {
	mo := fixture(t)
	if SatisfiedAtStart(NewSpread("vm1", "vm2"), mo) {
		t.Error("vm1 and vm2 already share n1")
	}
	if !SatisfiedAtStart(NewSpread("vm1", "vm3"), mo) {
		t.Error("vm1 and vm3 are apart")
	}
}
