package solver

import "fmt"

// BinPacking links item assignments to bin loads:
// loads[b] == sum(sizes[i] for items i with bins[i] == b).
type BinPacking struct {
	bins  []*IntVar
	sizes []*IntVar
	loads []*IntVar
	vars  []*IntVar
}

// NewBinPacking posts the relation. Bin variables range over the indices of
// loads.
func (s *Solver) NewBinPacking(loads, sizes, bins []*IntVar) error {
	if len(sizes) != len(bins) {
		return fmt.Errorf("%w: %d sizes for %d items", ErrInvalidArgument, len(sizes), len(bins))
	}
	for _, sz := range sizes {
		if sz.LB() < 0 {
			return fmt.Errorf("%w: negative item size %s", ErrInvalidArgument, sz.Name())
		}
	}
	vars := make([]*IntVar, 0, len(bins)+len(sizes)+len(loads))
	vars = append(vars, bins...)
	vars = append(vars, sizes...)
	vars = append(vars, loads...)
	return s.Post(&BinPacking{bins: bins, sizes: sizes, loads: loads, vars: vars})
}

func (p *BinPacking) Name() string       { return "binPacking" }
func (p *BinPacking) Vars() []*IntVar    { return p.vars }
func (p *BinPacking) Priority() Priority { return PriorityQuadratic }

func (p *BinPacking) Propagate() error {
	nb := len(p.loads)
	for _, b := range p.bins {
		if err := b.UpdateLowerBound(0, p); err != nil {
			return err
		}
		if err := b.UpdateUpperBound(nb-1, p); err != nil {
			return err
		}
	}
	for {
		changed, err := p.filter()
		if err != nil || !changed {
			return err
		}
	}
}

func (p *BinPacking) filter() (bool, error) {
	nb := len(p.loads)
	sure := make([]int, nb)
	possible := make([]int, nb)
	totalMin := 0
	for i, b := range p.bins {
		totalMin += p.sizes[i].LB()
		if b.IsInstantiated() {
			sure[b.Value()] += p.sizes[i].LB()
			possible[b.Value()] += p.sizes[i].UB()
			continue
		}
		for _, x := range b.Values() {
			possible[x] += p.sizes[i].UB()
		}
	}
	changed := false
	capacity := 0
	for j, l := range p.loads {
		if sure[j] > l.LB() {
			changed = true
			if err := l.UpdateLowerBound(sure[j], p); err != nil {
				return false, err
			}
		}
		if possible[j] < l.UB() {
			changed = true
			if err := l.UpdateUpperBound(possible[j], p); err != nil {
				return false, err
			}
		}
		capacity += l.UB()
	}
	if totalMin > capacity {
		return false, Fail(p, "items need %d, bins offer %d", totalMin, capacity)
	}
	for i, b := range p.bins {
		sz := p.sizes[i]
		if b.IsInstantiated() {
			j := b.Value()
			room := p.loads[j].UB() - (sure[j] - sz.LB())
			if room < sz.UB() {
				changed = true
				if err := sz.UpdateUpperBound(room, p); err != nil {
					return false, err
				}
			}
			continue
		}
		for _, x := range b.Values() {
			if sure[x]+sz.LB() > p.loads[x].UB() {
				n := b.Size()
				if err := b.RemoveValue(x, p); err != nil {
					return false, err
				}
				changed = changed || b.Size() != n
			}
		}
	}
	return changed, nil
}

func (p *BinPacking) IsSatisfied() bool {
	sums := make([]int, len(p.loads))
	for i, b := range p.bins {
		if !b.IsInstantiated() || !p.sizes[i].IsInstantiated() {
			return false
		}
		sums[b.Value()] += p.sizes[i].Value()
	}
	for j, l := range p.loads {
		if !l.IsInstantiated() || l.Value() != sums[j] {
			return false
		}
	}
	return true
}
