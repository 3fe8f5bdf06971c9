package solver

import (
	"fmt"
	"math"
	"sort"
)

// Forever marks a compulsory part that never ends.
const Forever = math.MaxInt

type part struct {
	from, to, h int
}

type segment struct {
	from, to, load int
}

// profile sums the parts into consecutive segments of constant load.
func profile(parts []part) []segment {
	if len(parts) == 0 {
		return nil
	}
	deltas := make(map[int]int, 2*len(parts))
	for _, p := range parts {
		deltas[p.from] += p.h
		if p.to != Forever {
			deltas[p.to] -= p.h
		}
	}
	times := make([]int, 0, len(deltas))
	for t := range deltas {
		times = append(times, t)
	}
	sort.Ints(times)
	segs := make([]segment, 0, len(times))
	load := 0
	for i, t := range times {
		load += deltas[t]
		to := Forever
		if i+1 < len(times) {
			to = times[i+1]
		}
		if load != 0 {
			segs = append(segs, segment{from: t, to: to, load: load})
		}
	}
	return segs
}

func inside(s segment, from, to int) bool {
	return from < to && s.from >= from && s.to <= to
}

// Task is an interval of a cumulative resource.
type Task struct {
	Start, Duration, End *IntVar
	Height               int
}

// Cumulative bounds, at every instant, the summed height of the running
// tasks by a fixed capacity. Filtering is time-tabling over the compulsory
// parts of the tasks.
type Cumulative struct {
	name     string
	tasks    []Task
	capacity int
	vars     []*IntVar
}

// NewCumulative posts the relation over tasks with a strictly positive
// height.
func (s *Solver) NewCumulative(name string, tasks []Task, capacity int) error {
	if capacity < 0 {
		return fmt.Errorf("%w: negative capacity for %s", ErrInvalidArgument, name)
	}
	var kept []Task
	var vars []*IntVar
	for _, t := range tasks {
		if t.Height <= 0 {
			continue
		}
		kept = append(kept, t)
		vars = append(vars, t.Start, t.Duration, t.End)
	}
	if len(kept) == 0 {
		return nil
	}
	return s.Post(&Cumulative{name: name, tasks: kept, capacity: capacity, vars: vars})
}

func (p *Cumulative) Name() string       { return "cumulative(" + p.name + ")" }
func (p *Cumulative) Vars() []*IntVar    { return p.vars }
func (p *Cumulative) Priority() Priority { return PriorityQuadratic }

func (p *Cumulative) compulsory(t Task) (int, int) {
	return t.Start.UB(), t.End.LB()
}

func (p *Cumulative) Propagate() error {
	for {
		changed := false
		for _, t := range p.tasks {
			if err := t.End.UpdateLowerBound(t.Start.LB()+t.Duration.LB(), p); err != nil {
				return err
			}
			if err := t.Start.UpdateUpperBound(t.End.UB()-t.Duration.LB(), p); err != nil {
				return err
			}
		}
		parts := make([]part, 0, len(p.tasks))
		for _, t := range p.tasks {
			if from, to := p.compulsory(t); from < to {
				parts = append(parts, part{from: from, to: to, h: t.Height})
			}
		}
		segs := profile(parts)
		for _, sg := range segs {
			if sg.load > p.capacity {
				return Fail(p, "load %d exceeds capacity %d on [%d,%d)", sg.load, p.capacity, sg.from, sg.to)
			}
		}
		for _, t := range p.tasks {
			d := t.Duration.LB()
			if d == 0 {
				continue
			}
			ownFrom, ownTo := p.compulsory(t)
			est := t.Start.LB()
			for _, sg := range segs {
				load := sg.load
				if inside(sg, ownFrom, ownTo) {
					load -= t.Height
				}
				if load+t.Height > p.capacity && est < sg.to && est+d > sg.from {
					est = sg.to
				}
			}
			if est > t.Start.LB() {
				changed = true
				if err := t.Start.UpdateLowerBound(est, p); err != nil {
					return err
				}
			}
		}
		if !changed {
			return nil
		}
	}
}

// ConsumingSlice holds Height units on node Host from time 0 until End.
type ConsumingSlice struct {
	Host   int
	End    *IntVar
	Height int
}

// DemandingSlice holds Height units on the node Host from Start until the
// end of the schedule.
type DemandingSlice struct {
	Host   *IntVar
	Start  *IntVar
	Height *IntVar
}

// SliceScheduler checks, for every node, that the slices it hosts never
// exceed its capacity. A consuming slice ending at t and a demanding slice
// starting at t do not overlap.
type SliceScheduler struct {
	name       string
	capacities []int
	cSlices    []ConsumingSlice
	dSlices    []DemandingSlice
	vars       []*IntVar
}

// NewSliceScheduler posts the relation. Capacities are indexed by node.
func (s *Solver) NewSliceScheduler(name string, capacities []int, cSlices []ConsumingSlice, dSlices []DemandingSlice) error {
	var vars []*IntVar
	for _, c := range cSlices {
		if c.Host < 0 || c.Host >= len(capacities) {
			return fmt.Errorf("%w: consuming slice on unknown node %d", ErrInvalidArgument, c.Host)
		}
		vars = append(vars, c.End)
	}
	for _, d := range dSlices {
		vars = append(vars, d.Host, d.Start, d.Height)
	}
	if len(vars) == 0 {
		return nil
	}
	return s.Post(&SliceScheduler{name: name, capacities: capacities, cSlices: cSlices, dSlices: dSlices, vars: vars})
}

func (p *SliceScheduler) Name() string       { return "sliceScheduler(" + p.name + ")" }
func (p *SliceScheduler) Vars() []*IntVar    { return p.vars }
func (p *SliceScheduler) Priority() Priority { return PriorityCubic }

func (p *SliceScheduler) Propagate() error {
	for {
		changed := false
		for n := range p.capacities {
			c, err := p.filterNode(n)
			if err != nil {
				return err
			}
			changed = changed || c
		}
		if !changed {
			return nil
		}
	}
}

func (p *SliceScheduler) filterNode(n int) (bool, error) {
	capa := p.capacities[n]
	var parts []part
	var cs []ConsumingSlice
	var ds []DemandingSlice
	for _, c := range p.cSlices {
		if c.Host != n || c.Height <= 0 {
			continue
		}
		cs = append(cs, c)
		if c.End.LB() > 0 {
			parts = append(parts, part{from: 0, to: c.End.LB(), h: c.Height})
		}
	}
	for _, d := range p.dSlices {
		if !d.Host.IsInstantiated() || d.Host.Value() != n || d.Height.LB() <= 0 {
			continue
		}
		ds = append(ds, d)
		parts = append(parts, part{from: d.Start.UB(), to: Forever, h: d.Height.LB()})
	}
	if len(parts) == 0 && len(ds) == 0 {
		return false, nil
	}
	segs := profile(parts)
	for _, sg := range segs {
		if sg.load > capa {
			return false, Fail(p, "node %d needs %d over capacity %d at %d", n, sg.load, capa, sg.from)
		}
	}
	changed := false
	for _, d := range ds {
		h := d.Height.LB()
		est := d.Start.LB()
		for _, sg := range segs {
			load := sg.load
			if inside(sg, d.Start.UB(), Forever) {
				load -= h
			}
			if load+h > capa && sg.to > est {
				if sg.to == Forever {
					return false, Fail(p, "node %d cannot host %s", n, d.Start.Name())
				}
				est = sg.to
			}
		}
		if est > d.Start.LB() {
			changed = true
			if err := d.Start.UpdateLowerBound(est, p); err != nil {
				return false, err
			}
		}
	}
	for _, c := range cs {
		lct := c.End.UB()
		for _, sg := range segs {
			if sg.from >= lct {
				break
			}
			load := sg.load
			if inside(sg, 0, c.End.LB()) {
				load -= c.Height
			}
			if load+c.Height > capa {
				lct = sg.from
				break
			}
		}
		if lct < c.End.UB() {
			changed = true
			if err := c.End.UpdateUpperBound(lct, p); err != nil {
				return false, err
			}
		}
	}
	return changed, nil
}
