package solver

import (
	"math/bits"
	"strconv"
	"strings"
)

const wordBits = 32

// Event is a bitmask describing a domain modification.
type Event uint8

const (
	EventInstantiate Event = 1 << iota
	EventLowerBound
	EventUpperBound
	EventRemove
)

// Has reports whether e carries every bit of o.
func (e Event) Has(o Event) bool { return e&o == o }

// IntVar is an integer variable with either a bounded domain (an interval)
// or an enumerated domain (an interval with holes, stored as a reversible
// bitset). The bounds of an enumerated domain always belong to it.
type IntVar struct {
	s      *Solver
	id     int
	name   string
	lb, ub StoredInt
	size   StoredInt
	offset int
	words  []StoredInt

	watchers  []watcher
	listeners int
}

type watcher struct {
	st  *propState
	idx int
}

// Name returns the name given at creation.
func (v *IntVar) Name() string { return v.name }

// ID is the position of the variable in its solver.
func (v *IntVar) ID() int { return v.id }

// LB returns the lower bound.
func (v *IntVar) LB() int { return v.lb.val }

// UB returns the upper bound.
func (v *IntVar) UB() int { return v.ub.val }

// Size returns the number of values in the domain.
func (v *IntVar) Size() int { return v.size.val }

// IsInstantiated reports whether the domain is a singleton.
func (v *IntVar) IsInstantiated() bool { return v.lb.val == v.ub.val }

// Value returns the lower bound, which is the value once instantiated.
func (v *IntVar) Value() int { return v.lb.val }

// Enumerated reports whether the domain can hold holes.
func (v *IntVar) Enumerated() bool { return v.words != nil }

// Contains reports whether x belongs to the domain.
func (v *IntVar) Contains(x int) bool {
	if x < v.lb.val || x > v.ub.val {
		return false
	}
	if v.words == nil {
		return true
	}
	return v.bit(x)
}

// NextValue returns the smallest value of the domain greater than x, or
// false when there is none.
func (v *IntVar) NextValue(x int) (int, bool) {
	if x >= v.ub.val {
		return 0, false
	}
	from := x + 1
	if from < v.lb.val {
		from = v.lb.val
	}
	if v.words == nil {
		return from, true
	}
	return v.nextSet(from, v.ub.val), true
}

// PrevValue returns the largest value of the domain lower than x, or false
// when there is none.
func (v *IntVar) PrevValue(x int) (int, bool) {
	if x <= v.lb.val {
		return 0, false
	}
	from := x - 1
	if from > v.ub.val {
		from = v.ub.val
	}
	if v.words == nil {
		return from, true
	}
	return v.prevSet(from, v.lb.val), true
}

// Values lists the domain in increasing order.
func (v *IntVar) Values() []int {
	out := make([]int, 0, v.Size())
	for x, ok := v.lb.val, true; ok; x, ok = v.NextValue(x) {
		out = append(out, x)
	}
	return out
}

func (v *IntVar) String() string {
	if v.IsInstantiated() {
		return v.name + "=" + strconv.Itoa(v.Value())
	}
	if v.words == nil || v.Size() == v.ub.val-v.lb.val+1 {
		return v.name + "=[" + strconv.Itoa(v.lb.val) + "," + strconv.Itoa(v.ub.val) + "]"
	}
	vals := v.Values()
	parts := make([]string, len(vals))
	for i, x := range vals {
		parts[i] = strconv.Itoa(x)
	}
	return v.name + "={" + strings.Join(parts, ",") + "}"
}

// InstantiateTo reduces the domain to {x}.
func (v *IntVar) InstantiateTo(x int, cause Propagator) error {
	if !v.Contains(x) {
		return failVar(v, cause, "%d is not in %s", x, v)
	}
	if v.IsInstantiated() {
		return nil
	}
	var removed []int
	if v.listeners > 0 {
		removed = v.s.delta[:0]
		for y, ok := v.lb.val, true; ok; y, ok = v.NextValue(y) {
			if y != x {
				removed = append(removed, y)
			}
		}
	}
	ev := EventInstantiate | EventRemove
	if x != v.lb.val {
		ev |= EventLowerBound
	}
	if x != v.ub.val {
		ev |= EventUpperBound
	}
	v.lb.Set(x)
	v.ub.Set(x)
	v.size.Set(1)
	v.notify(ev, cause, removed)
	return nil
}

// RemoveValue removes x from the domain. Removing an inner value from a
// bounded domain is a no-op.
func (v *IntVar) RemoveValue(x int, cause Propagator) error {
	if !v.Contains(x) {
		return nil
	}
	if v.IsInstantiated() {
		return failVar(v, cause, "removing its last value %d", x)
	}
	if x == v.lb.val {
		return v.UpdateLowerBound(x+1, cause)
	}
	if x == v.ub.val {
		return v.UpdateUpperBound(x-1, cause)
	}
	if v.words == nil {
		return nil
	}
	v.clearBit(x)
	v.size.Add(-1)
	var removed []int
	if v.listeners > 0 {
		removed = append(v.s.delta[:0], x)
	}
	ev := EventRemove
	if v.IsInstantiated() {
		ev |= EventInstantiate
	}
	v.notify(ev, cause, removed)
	return nil
}

// RemoveAllBut keeps only the values accepted by keep.
func (v *IntVar) RemoveAllBut(keep func(int) bool, cause Propagator) error {
	for _, x := range v.Values() {
		if !keep(x) {
			if err := v.RemoveValue(x, cause); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpdateLowerBound removes every value lower than x.
func (v *IntVar) UpdateLowerBound(x int, cause Propagator) error {
	old := v.lb.val
	if x <= old {
		return nil
	}
	if x > v.ub.val {
		return failVar(v, cause, "lower bound %d exceeds %s", x, v)
	}
	nlb := x
	var removed []int
	if v.words != nil {
		nlb = v.nextSet(x, v.ub.val)
		n := 0
		if v.listeners > 0 {
			removed = v.s.delta[:0]
		}
		for y := old; y < nlb; y = v.nextSet(y+1, nlb) {
			n++
			if v.listeners > 0 {
				removed = append(removed, y)
			}
		}
		v.size.Add(-n)
	} else {
		v.size.Set(v.ub.val - nlb + 1)
	}
	v.lb.Set(nlb)
	ev := EventLowerBound | EventRemove
	if v.IsInstantiated() {
		ev |= EventInstantiate
	}
	v.notify(ev, cause, removed)
	return nil
}

// UpdateUpperBound removes every value greater than x.
func (v *IntVar) UpdateUpperBound(x int, cause Propagator) error {
	old := v.ub.val
	if x >= old {
		return nil
	}
	if x < v.lb.val {
		return failVar(v, cause, "upper bound %d is below %s", x, v)
	}
	nub := x
	var removed []int
	if v.words != nil {
		nub = v.prevSet(x, v.lb.val)
		n := 0
		if v.listeners > 0 {
			removed = v.s.delta[:0]
		}
		for y := old; y > nub; y = v.prevSet(y-1, nub) {
			n++
			if v.listeners > 0 {
				removed = append(removed, y)
			}
		}
		v.size.Add(-n)
	} else {
		v.size.Set(nub - v.lb.val + 1)
	}
	v.ub.Set(nub)
	ev := EventUpperBound | EventRemove
	if v.IsInstantiated() {
		ev |= EventInstantiate
	}
	v.notify(ev, cause, removed)
	return nil
}

func (v *IntVar) notify(ev Event, cause Propagator, removed []int) {
	for _, w := range v.watchers {
		st := w.st
		if st.inc != nil && cause != nil && st.prop == cause {
			continue
		}
		if st.listener != nil && st.initialized {
			for _, x := range removed {
				st.listener.OnRemove(w.idx, x)
			}
		}
		v.s.schedule(st, w.idx, ev)
	}
}

func (v *IntVar) bit(x int) bool {
	i := x - v.offset
	w := uint32(v.words[i/wordBits].val)
	return w&(1<<(uint(i)%wordBits)) != 0
}

func (v *IntVar) clearBit(x int) {
	i := x - v.offset
	c := &v.words[i/wordBits]
	c.Set(int(uint32(c.val) &^ (1 << (uint(i) % wordBits))))
}

// nextSet returns the smallest value of the bitset in [from, to], or to+1.
func (v *IntVar) nextSet(from, to int) int {
	for x := from; x <= to; {
		i := x - v.offset
		r := uint(i) % wordBits
		w := uint32(v.words[i/wordBits].val) >> r
		if w != 0 {
			if y := x + bits.TrailingZeros32(w); y <= to {
				return y
			}
			return to + 1
		}
		x += wordBits - int(r)
	}
	return to + 1
}

// prevSet returns the largest value of the bitset in [to, from], or to-1.
func (v *IntVar) prevSet(from, to int) int {
	for x := from; x >= to; {
		i := x - v.offset
		r := uint(i) % wordBits
		w := uint32(v.words[i/wordBits].val) << (wordBits - 1 - r)
		if w != 0 {
			if y := x - bits.LeadingZeros32(w); y >= to {
				return y
			}
			return to - 1
		}
		x -= int(r) + 1
	}
	return to - 1
}
