package model

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMapping_PlaceAndQuery(t *testing.T) {
	m := NewMapping()
	m.AddOnlineNode("n1")
	m.AddOnlineNode("n2")
	if err := m.AddOfflineNode("n3"); err != nil {
		t.Fatal(err)
	}
	if err := m.AddRunningVM("vm1", "n1"); err != nil {
		t.Fatal(err)
	}
	if err := m.AddSleepingVM("vm2", "n1"); err != nil {
		t.Fatal(err)
	}
	m.AddReadyVM("vm3")

	if err := m.AddRunningVM("vm4", "n3"); !errors.Is(err, ErrNodeOffline) {
		t.Errorf("expected ErrNodeOffline, got %v", err)
	}
	if err := m.AddRunningVM("vm4", "n9"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("expected ErrUnknownNode, got %v", err)
	}

	if diff := cmp.Diff([]VM{"vm1", "vm2"}, m.HostedOn("n1")); diff != "" {
		t.Errorf("HostedOn mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]VM{"vm1"}, m.RunningOn("n1")); diff != "" {
		t.Errorf("RunningOn mismatch (-want +got):\n%s", diff)
	}
	if got := m.VMState("vm3"); got != VMReady {
		t.Errorf("expected ready, got %s", got)
	}
	if got := m.VMState("ghost"); got != VMInit {
		t.Errorf("expected init for an absent VM, got %s", got)
	}
	if _, ok := m.Host("vm3"); ok {
		t.Error("a ready VM has no host")
	}
	if err := m.AddOfflineNode("n1"); !errors.Is(err, ErrNodeInUse) {
		t.Errorf("expected ErrNodeInUse, got %v", err)
	}
}

func TestMapping_MoveKeepsOrder(t *testing.T) {
	m := NewMapping()
	m.AddOnlineNode("n1")
	m.AddOnlineNode("n2")
	_ = m.AddRunningVM("a", "n1")
	_ = m.AddRunningVM("b", "n1")
	_ = m.AddRunningVM("a", "n2")

	if diff := cmp.Diff([]VM{"a", "b"}, m.VMs()); diff != "" {
		t.Errorf("moving a VM must not reorder (-want +got):\n%s", diff)
	}
	if h, _ := m.Host("a"); h != "n2" {
		t.Errorf("expected a on n2, got %s", h)
	}
}

func TestMapping_CloneIsIndependent(t *testing.T) {
	m := NewMapping()
	m.AddOnlineNode("n1")
	_ = m.AddRunningVM("a", "n1")
	c := m.Clone()
	if !c.Equal(m) {
		t.Fatal("a clone must be equal to its source")
	}
	c.Remove("a")
	if !m.Contains("a") {
		t.Error("removing from the clone altered the source")
	}
	if c.Equal(m) {
		t.Error("mappings should now differ")
	}
}

func TestShareableResource_Defaults(t *testing.T) {
	r := NewShareableResource("cpu", 8, 1)
	r.SetCapacity("n1", 16).SetConsumption("vm1", 4)

	if r.Capacity("n1") != 16 || r.Capacity("n2") != 8 {
		t.Errorf("unexpected capacities %d %d", r.Capacity("n1"), r.Capacity("n2"))
	}
	if got := r.SumConsumption([]VM{"vm1", "vm2"}); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
	if r.DefinedConsumption("vm2") {
		t.Error("vm2 uses the default consumption")
	}
}

func TestAttributes_Conversions(t *testing.T) {
	a := NewAttributes()
	a.PutVM("vm1", "memUsed", 512)
	a.PutVM("vm1", "coldDirtyRate", "1.5")
	a.PutVM("vm1", "template", "small")

	if f, ok := a.VMFloat("vm1", "memUsed"); !ok || f != 512 {
		t.Errorf("expected 512, got %v %v", f, ok)
	}
	if f, ok := a.VMFloat("vm1", "coldDirtyRate"); !ok || f != 1.5 {
		t.Errorf("expected 1.5, got %v %v", f, ok)
	}
	if _, ok := a.VMFloat("vm1", "template"); ok {
		t.Error("a non numeric string should not convert")
	}
	if diff := cmp.Diff([]string{"coldDirtyRate", "memUsed", "template"}, a.VMKeys("vm1")); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestShortestPathRouting(t *testing.T) {
	net := NewNetwork()
	core := net.AddSwitch("core", 0)
	edge := net.AddSwitch("edge", 1500)
	l1 := net.Connect("l1", 1000, NodeEndpoint("n1"), SwitchEndpoint(edge))
	l2 := net.Connect("l2", 1000, NodeEndpoint("n2"), SwitchEndpoint(edge))
	l3 := net.Connect("l3", 10000, SwitchEndpoint(edge), SwitchEndpoint(core))
	l4 := net.Connect("l4", 400, NodeEndpoint("n3"), SwitchEndpoint(core))

	path, err := net.Routing().Path("n1", "n3")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]*Link{l1, l3, l4}, path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
	bw, err := net.Routing().MaxBandwidth("n1", "n3")
	if err != nil || bw != 400 {
		t.Errorf("expected bottleneck 400, got %d (%v)", bw, err)
	}
	if d := net.Routing().Direction("n1", "n3", l4); d != Downlink {
		t.Errorf("expected downlink on l4, got %s", d)
	}
	if d := net.Routing().Direction("n1", "n3", l1); d != Uplink {
		t.Errorf("expected uplink on l1, got %s", d)
	}
	if d := net.Routing().Direction("n1", "n3", l2); d != LinkNone {
		t.Errorf("l2 is not on the path, got %s", d)
	}
	if _, err := net.Routing().Path("n1", "n9"); !errors.Is(err, ErrNoRoute) {
		t.Errorf("expected ErrNoRoute, got %v", err)
	}
	if !edge.Bounded() || core.Bounded() {
		t.Error("unexpected switch boundedness")
	}
}

func TestModel_NewElementsAndClone(t *testing.T) {
	mo := New()
	n := mo.NewNode()
	mo.Mapping.AddOnlineNode(n)
	vm := mo.NewVM()
	if err := mo.Mapping.AddRunningVM(vm, n); err != nil {
		t.Fatal(err)
	}
	mo.AddResource(NewShareableResource("mem", 1024, 128))

	c := mo.Clone()
	if next := c.NewVM(); next == vm {
		t.Errorf("clone returned an existing identifier %s", next)
	}
	r, _ := c.Resource("mem")
	r.SetConsumption(vm, 512)
	orig, _ := mo.Resource("mem")
	if orig.Consumption(vm) != 128 {
		t.Error("resource views must be deep copied")
	}
}
