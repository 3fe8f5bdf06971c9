package solver

import "fmt"

// Disjoint forbids variables of different groups from sharing a value,
// while variables of a same group may. Values range over [0, nbValues).
//
// For every group and value it keeps a reversible upper bound of the number
// of variables of the group that may still take the value, and for every
// value the group that reserved it (group index + 1, 0 when free). Work
// done on each event is proportional to the domain changes it reports.
type Disjoint struct {
	vars       []*IntVar
	groupOf    []int
	members    [][]int
	nbValues   int
	candidates [][]StoredInt
	reserved   []StoredInt
}

// NewDisjoint builds the propagator over groups of enumerated variables.
// It is not posted.
func NewDisjoint(s *Solver, groups [][]*IntVar, nbValues int) (*Disjoint, error) {
	if len(groups) < 2 {
		return nil, fmt.Errorf("%w: disjoint needs at least 2 groups, got %d", ErrInvalidArgument, len(groups))
	}
	d := &Disjoint{
		nbValues:   nbValues,
		members:    make([][]int, len(groups)),
		candidates: make([][]StoredInt, len(groups)),
		reserved:   s.env.MakeStored(nbValues, 0),
	}
	for g, vs := range groups {
		d.candidates[g] = s.env.MakeStored(nbValues, 0)
		for _, v := range vs {
			if !v.Enumerated() && !v.IsInstantiated() {
				return nil, fmt.Errorf("%w: %s must have an enumerated domain", ErrInvalidArgument, v.Name())
			}
			if v.LB() < 0 || v.UB() >= nbValues {
				return nil, fmt.Errorf("%w: %s is outside [0,%d)", ErrInvalidArgument, v, nbValues)
			}
			d.members[g] = append(d.members[g], len(d.vars))
			d.vars = append(d.vars, v)
			d.groupOf = append(d.groupOf, g)
		}
	}
	return d, nil
}

// PostDisjoint builds and posts a Disjoint propagator.
func (s *Solver) PostDisjoint(groups [][]*IntVar, nbValues int) (*Disjoint, error) {
	d, err := NewDisjoint(s, groups, nbValues)
	if err != nil {
		return nil, err
	}
	return d, s.Post(d)
}

func (d *Disjoint) Name() string       { return "disjoint" }
func (d *Disjoint) Vars() []*IntVar    { return d.vars }
func (d *Disjoint) Priority() Priority { return PriorityVerySlow }

// Propagate is the initial pass: it counts the undetermined candidates and
// commits the values of the variables already instantiated.
func (d *Disjoint) Propagate() error {
	owner := make([]int, d.nbValues)
	for i, v := range d.vars {
		g := d.groupOf[i]
		if v.IsInstantiated() {
			val := v.Value()
			if owner[val] != 0 && owner[val] != g+1 {
				return Fail(d, "value %d taken by groups %d and %d", val, owner[val]-1, g)
			}
			owner[val] = g + 1
			continue
		}
		for _, val := range v.Values() {
			d.candidates[g][val].Add(1)
		}
	}
	for val, g := range owner {
		if g == 0 {
			continue
		}
		if err := d.reserve(g-1, val); err != nil {
			return err
		}
	}
	return nil
}

func (d *Disjoint) PropagateEvent(idx int, ev Event) error {
	if !ev.Has(EventInstantiate) {
		return nil
	}
	return d.reserve(d.groupOf[idx], d.vars[idx].Value())
}

// OnRemove keeps the candidate counters up to date.
func (d *Disjoint) OnRemove(idx, val int) {
	if val < 0 || val >= d.nbValues {
		return
	}
	d.candidates[d.groupOf[idx]][val].Add(-1)
}

// reserve commits val to group g and removes it from the other groups.
func (d *Disjoint) reserve(g, val int) error {
	r := d.reserved[val].Get()
	if r == g+1 {
		return nil
	}
	if r != 0 {
		return Fail(d, "value %d is reserved by group %d, wanted by group %d", val, r-1, g)
	}
	d.reserved[val].Set(g + 1)
	for other, members := range d.members {
		if other == g {
			continue
		}
		c := d.candidates[other][val].Get()
		for _, idx := range members {
			if c <= 0 {
				break
			}
			v := d.vars[idx]
			if !v.Contains(val) {
				continue
			}
			if err := v.RemoveValue(val, d); err != nil {
				return err
			}
			c--
			if v.IsInstantiated() {
				if err := d.reserve(other, v.Value()); err != nil {
					return err
				}
			}
		}
		d.candidates[other][val].Set(0)
	}
	return nil
}

// IsSatisfied reports whether no value is held by instantiated variables of
// two different groups.
func (d *Disjoint) IsSatisfied() bool {
	usedBy := make([]int, d.nbValues)
	for i, v := range d.vars {
		if !v.IsInstantiated() {
			continue
		}
		g := d.groupOf[i] + 1
		if u := usedBy[v.Value()]; u != 0 && u != g {
			return false
		}
		usedBy[v.Value()] = g
	}
	return true
}

// Reserved returns the group owning val, or -1.
func (d *Disjoint) Reserved(val int) int {
	return d.reserved[val].Get() - 1
}

// Candidates returns the candidate counter of group g for val.
func (d *Disjoint) Candidates(g, val int) int {
	return d.candidates[g][val].Get()
}
