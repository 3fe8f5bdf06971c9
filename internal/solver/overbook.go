package solver

import (
	"fmt"
	"math"
)

// OverbookLink ties the physical usage of a node to the virtual usage its
// VMs see when the capacity is overbooked by ratio:
//
//	phy = maxRaw - floor((floor(maxRaw*ratio) - virt) / ratio)
//
// Computing the free physical capacity rather than dividing the virtual
// usage avoids undercounting partially used physical units.
type OverbookLink struct {
	phy, virt *IntVar
	maxRaw    int
	maxReal   int
	ratio     float64
}

// NewOverbookLink posts the relation and restricts virt to the virtual
// capacity.
func (s *Solver) NewOverbookLink(phy, virt *IntVar, maxRaw int, ratio float64) error {
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return fmt.Errorf("%w: ratio %g", ErrInvalidArgument, ratio)
	}
	return s.Post(&OverbookLink{
		phy:     phy,
		virt:    virt,
		maxRaw:  maxRaw,
		maxReal: VirtualCapacity(maxRaw, ratio),
		ratio:   ratio,
	})
}

// VirtualCapacity is floor(capacity*ratio).
func VirtualCapacity(capacity int, ratio float64) int {
	return int(math.Floor(float64(capacity) * ratio))
}

func (p *OverbookLink) Name() string       { return "overbook(" + p.phy.Name() + ")" }
func (p *OverbookLink) Vars() []*IntVar    { return []*IntVar{p.phy, p.virt} }
func (p *OverbookLink) Priority() Priority { return PriorityBinary }

// physical is non decreasing in v.
func (p *OverbookLink) physical(v int) int {
	return p.maxRaw - int(math.Floor(float64(p.maxReal-v)/p.ratio))
}

func (p *OverbookLink) Propagate() error {
	if err := p.virt.UpdateUpperBound(p.maxReal, p); err != nil {
		return err
	}
	if err := p.phy.UpdateLowerBound(p.physical(p.virt.LB()), p); err != nil {
		return err
	}
	if err := p.phy.UpdateUpperBound(p.physical(p.virt.UB()), p); err != nil {
		return err
	}
	// smallest virt reaching phy.LB, largest virt below phy.UB
	lo, hi := p.virt.LB(), p.virt.UB()
	if lo < hi && p.physical(lo) < p.phy.LB() {
		lo = p.search(lo, hi, func(v int) bool { return p.physical(v) >= p.phy.LB() })
	}
	if err := p.virt.UpdateLowerBound(lo, p); err != nil {
		return err
	}
	lo = p.virt.LB()
	if p.physical(hi) > p.phy.UB() {
		// first value exceeding phy.UB, minus one
		first := p.search(lo, hi, func(v int) bool { return p.physical(v) > p.phy.UB() })
		if err := p.virt.UpdateUpperBound(first-1, p); err != nil {
			return err
		}
	}
	return nil
}

// search returns the smallest v in [lo, hi] satisfying the monotonic ok,
// or hi when none.
func (p *OverbookLink) search(lo, hi int, ok func(int) bool) int {
	for lo < hi {
		mid := lo + (hi-lo)/2
		if ok(mid) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

func (p *OverbookLink) IsSatisfied() bool {
	return p.phy.IsInstantiated() && p.virt.IsInstantiated() && p.phy.Value() == p.physical(p.virt.Value())
}
