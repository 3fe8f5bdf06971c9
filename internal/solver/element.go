package solver

import "fmt"

// Element enforces value == table[index]. Both variables should be
// enumerated for the filtering to remove inner values.
type Element struct {
	index, value *IntVar
	table        []int
}

// NewElement posts value == table[index].
func (s *Solver) NewElement(value *IntVar, table []int, index *IntVar) error {
	if len(table) == 0 {
		return fmt.Errorf("%w: empty element table", ErrInvalidArgument)
	}
	return s.Post(&Element{index: index, value: value, table: table})
}

func (p *Element) Name() string       { return "element(" + p.value.Name() + ")" }
func (p *Element) Vars() []*IntVar    { return []*IntVar{p.index, p.value} }
func (p *Element) Priority() Priority { return PriorityBinary }

func (p *Element) Propagate() error {
	if err := p.index.UpdateLowerBound(0, p); err != nil {
		return err
	}
	if err := p.index.UpdateUpperBound(len(p.table)-1, p); err != nil {
		return err
	}
	supported := make(map[int]bool)
	for _, i := range p.index.Values() {
		if !p.value.Contains(p.table[i]) {
			if err := p.index.RemoveValue(i, p); err != nil {
				return err
			}
			continue
		}
		supported[p.table[i]] = true
	}
	return p.value.RemoveAllBut(func(x int) bool { return supported[x] }, p)
}

// AllDifferent forbids two variables from sharing a value.
type AllDifferent struct {
	vars []*IntVar
}

// NewAllDifferent posts allDifferent(vars).
func (s *Solver) NewAllDifferent(vars []*IntVar) error {
	if len(vars) < 2 {
		return nil
	}
	return s.Post(&AllDifferent{vars: vars})
}

func (p *AllDifferent) Name() string       { return "allDifferent" }
func (p *AllDifferent) Vars() []*IntVar    { return p.vars }
func (p *AllDifferent) Priority() Priority { return PriorityQuadratic }

func (p *AllDifferent) Propagate() error {
	for {
		changed := false
		taken := make(map[int]int, len(p.vars))
		for i, v := range p.vars {
			if !v.IsInstantiated() {
				continue
			}
			if j, ok := taken[v.Value()]; ok {
				return Fail(p, "%s and %s both take %d", p.vars[j].Name(), v.Name(), v.Value())
			}
			taken[v.Value()] = i
		}
		for _, v := range p.vars {
			if v.IsInstantiated() {
				continue
			}
			for x := range taken {
				if v.Contains(x) {
					if err := v.RemoveValue(x, p); err != nil {
						return err
					}
					changed = true
				}
			}
		}
		if !changed {
			return p.pigeonHole()
		}
	}
}

// pigeonHole fails when the union of the domains is smaller than the
// number of variables.
func (p *AllDifferent) pigeonHole() error {
	union := make(map[int]struct{})
	for _, v := range p.vars {
		if v.Size() > len(p.vars) {
			return nil
		}
		for _, x := range v.Values() {
			union[x] = struct{}{}
		}
	}
	if len(union) < len(p.vars) {
		return Fail(p, "%d values for %d variables", len(union), len(p.vars))
	}
	return nil
}

func (p *AllDifferent) IsSatisfied() bool {
	seen := make(map[int]bool, len(p.vars))
	for _, v := range p.vars {
		if !v.IsInstantiated() || seen[v.Value()] {
			return false
		}
		seen[v.Value()] = true
	}
	return true
}
