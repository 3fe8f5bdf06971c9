package view

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/plan"
	"github.com/guimove/replanner/internal/scheduler"
	"github.com/guimove/replanner/internal/solver"
)

// Attributes read on VMs by the network view.
const (
	AttrMemUsed          = "memUsed"
	AttrHotDirtySize     = "hotDirtySize"
	AttrHotDirtyDuration = "hotDirtyDuration"
	AttrColdDirtyRate    = "coldDirtyRate"
)

// NetworkName is the name of the network view.
const NetworkName = "network"

// NetworkSettings are the values used for a VM that does not declare its
// memory activity. The defaults match an idle VM.
type NetworkSettings struct {
	HotDirtySize     float64
	HotDirtyDuration float64
	ColdDirtyRate    float64
	// Efficiency divides the link bandwidth.
	Efficiency float64
}

func DefaultNetworkSettings() NetworkSettings {
	return NetworkSettings{
		HotDirtySize:     5,
		HotDirtyDuration: 2,
		ColdDirtyRate:    0,
		Efficiency:       9,
	}
}

// Network prices the migrations from the topology and bounds the bandwidth
// they use on every link and bounded switch.
type Network struct {
	net      *model.Network
	settings NetworkSettings
}

// NetworkBuilder attaches a network view when the source model declares a
// topology.
func NetworkBuilder(settings NetworkSettings) scheduler.ViewBuilder {
	return func(p *scheduler.Problem) ([]scheduler.View, error) {
		if p.Source.Network == nil {
			return nil, nil
		}
		return []scheduler.View{&Network{net: p.Source.Network, settings: settings}}, nil
	}
}

func (n *Network) Name() string { return NetworkName }

// cost reads the memory activity of vm.
func (n *Network) cost(mo *model.Model, vm model.VM) (MigrationCost, bool) {
	mem, ok := mo.Attributes.VMFloat(vm, AttrMemUsed)
	if !ok {
		return MigrationCost{}, false
	}
	c := MigrationCost{
		MemUsed:          mem,
		HotDirtySize:     n.settings.HotDirtySize,
		HotDirtyDuration: n.settings.HotDirtyDuration,
		ColdDirtyRate:    n.settings.ColdDirtyRate,
	}
	if v, ok := mo.Attributes.VMFloat(vm, AttrHotDirtySize); ok {
		c.HotDirtySize = v
	}
	if v, ok := mo.Attributes.VMFloat(vm, AttrHotDirtyDuration); ok {
		c.HotDirtyDuration = v
	}
	if v, ok := mo.Attributes.VMFloat(vm, AttrColdDirtyRate); ok {
		c.ColdDirtyRate = v
	}
	return c, true
}

// migration is a relocation between two distinct nodes.
type migration struct {
	t        *scheduler.VMTransition
	src, dst model.Node
	path     []*model.Link
	bw       int
}

// BeforeSolve fixes the bandwidth and the duration of every migration. The
// destinations must be known at this point.
func (n *Network) BeforeSolve(p *scheduler.Problem) error {
	routing := n.net.Routing()
	var moves []migration
	for _, t := range p.Transitions() {
		if t.Kind != scheduler.Relocatable {
			continue
		}
		vm := string(t.VM)
		if !t.DSlice.Host.IsInstantiated() {
			return scheduler.Contradiction(vm, fmt.Errorf("destination of VM %s should be known", vm))
		}
		cost, ok := n.cost(p.Source, t.VM)
		if !ok {
			return scheduler.Contradiction(vm, fmt.Errorf("no %q attribute for VM %s", AttrMemUsed, vm))
		}
		src, dst := p.Node(t.Src), p.Node(t.DSlice.Host.Value())
		if src == dst {
			if err := t.Bandwidth.InstantiateTo(0, nil); err != nil {
				return scheduler.Contradiction(vm, err)
			}
			continue
		}
		path, err := routing.Path(src, dst)
		if err != nil {
			return scheduler.Contradiction(vm, err)
		}
		bw, err := routing.MaxBandwidth(src, dst)
		if err != nil {
			return scheduler.Contradiction(vm, err)
		}
		d := MigrationDuration(cost, bw, n.settings.Efficiency)
		p.Logger.Debug("migration priced",
			zap.String("vm", vm), zap.String("src", string(src)), zap.String("dst", string(dst)),
			zap.Int("bandwidth", bw), zap.Int("duration", d))
		if err := t.MigrationDuration.InstantiateTo(d, nil); err != nil {
			return scheduler.Contradiction(vm, err)
		}
		if err := t.Bandwidth.InstantiateTo(bw, nil); err != nil {
			return scheduler.Contradiction(vm, err)
		}
		moves = append(moves, migration{t: t, src: src, dst: dst, path: path, bw: bw})
	}
	if err := n.linkConstraints(p, moves); err != nil {
		return err
	}
	return n.switchConstraints(p, moves)
}

func task(m migration) solver.Task {
	return solver.Task{Start: m.t.Start, Duration: m.t.Duration, End: m.t.End, Height: m.bw}
}

// linkConstraints bounds each direction of every full-duplex link.
func (n *Network) linkConstraints(p *scheduler.Problem, moves []migration) error {
	routing := n.net.Routing()
	for _, l := range n.net.Links() {
		var up, down []solver.Task
		for _, m := range moves {
			switch routing.Direction(m.src, m.dst, l) {
			case model.Uplink:
				up = append(up, task(m))
			case model.Downlink:
				down = append(down, task(m))
			}
		}
		if len(up) > 0 {
			if err := p.Solver().NewCumulative(l.ID+"/up", up, l.Capacity); err != nil {
				return scheduler.Contradiction(l.ID, err)
			}
		}
		if len(down) > 0 {
			if err := p.Solver().NewCumulative(l.ID+"/down", down, l.Capacity); err != nil {
				return scheduler.Contradiction(l.ID, err)
			}
		}
	}
	return nil
}

// switchConstraints bounds the traffic crossing every bounded switch.
func (n *Network) switchConstraints(p *scheduler.Problem, moves []migration) error {
	for _, sw := range n.net.Switches() {
		if !sw.Bounded() {
			continue
		}
		connected := n.net.ConnectedLinks(sw)
		var tasks []solver.Task
		for _, m := range moves {
			if slices.ContainsFunc(m.path, func(l *model.Link) bool { return slices.Contains(connected, l) }) {
				tasks = append(tasks, task(m))
			}
		}
		if len(tasks) == 0 {
			continue
		}
		if err := p.Solver().NewCumulative(sw.ID, tasks, sw.Capacity); err != nil {
			return scheduler.Contradiction(sw.ID, err)
		}
	}
	return nil
}

// InsertActions has nothing to add: the migrations carry their bandwidth.
func (n *Network) InsertActions(*scheduler.Problem, *solver.Solution, *plan.ReconfigurationPlan) error {
	return nil
}
