package solver

import "fmt"

// Op is the relation of a linear constraint.
type Op int

const (
	OpEQ Op = iota
	OpLE
	OpGE
)

func (o Op) String() string {
	switch o {
	case OpLE:
		return "<="
	case OpGE:
		return ">="
	}
	return "="
}

// Linear enforces sum(coefs[i]*vars[i]) op rhs with bounds consistency.
type Linear struct {
	name  string
	vars  []*IntVar
	coefs []int
	op    Op
	rhs   int
}

// NewLinear validates the arguments and builds the propagator.
func NewLinear(vars []*IntVar, coefs []int, op Op, rhs int) (*Linear, error) {
	if len(vars) != len(coefs) {
		return nil, fmt.Errorf("%w: %d variables for %d coefficients", ErrInvalidArgument, len(vars), len(coefs))
	}
	return &Linear{name: "linear", vars: vars, coefs: coefs, op: op, rhs: rhs}, nil
}

// Sum posts sum(vars) op rhs.
func (s *Solver) Sum(vars []*IntVar, op Op, rhs int) error {
	coefs := make([]int, len(vars))
	for i := range coefs {
		coefs[i] = 1
	}
	return s.PostLinear(vars, coefs, op, rhs)
}

// PostLinear builds and posts a Linear propagator.
func (s *Solver) PostLinear(vars []*IntVar, coefs []int, op Op, rhs int) error {
	l, err := NewLinear(vars, coefs, op, rhs)
	if err != nil {
		return err
	}
	return s.Post(l)
}

// Arithm posts x + c op y.
func (s *Solver) Arithm(x *IntVar, c int, op Op, y *IntVar) error {
	return s.PostLinear([]*IntVar{x, y}, []int{1, -1}, op, -c)
}

func (l *Linear) Name() string       { return l.name }
func (l *Linear) Vars() []*IntVar    { return l.vars }
func (l *Linear) Priority() Priority { return PriorityLinear }

func (l *Linear) Propagate() error {
	for {
		changed := false
		if l.op == OpEQ || l.op == OpLE {
			c, err := l.filterLE(1, l.rhs)
			if err != nil {
				return err
			}
			changed = changed || c
		}
		if l.op == OpEQ || l.op == OpGE {
			c, err := l.filterLE(-1, -l.rhs)
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

// filterLE enforces sum(sign*coefs[i]*vars[i]) <= rhs.
func (l *Linear) filterLE(sign, rhs int) (bool, error) {
	minSum := 0
	for i, v := range l.vars {
		minSum += minTerm(sign*l.coefs[i], v)
	}
	if minSum > rhs {
		return false, Fail(l, "minimal sum %d exceeds %d", minSum, rhs)
	}
	changed := false
	for i, v := range l.vars {
		a := sign * l.coefs[i]
		if a == 0 {
			continue
		}
		room := rhs - (minSum - minTerm(a, v))
		var err error
		if a > 0 {
			nub := floorDiv(room, a)
			if nub < v.UB() {
				changed = true
				err = v.UpdateUpperBound(nub, l)
			}
		} else {
			nlb := ceilDiv(room, a)
			if nlb > v.LB() {
				changed = true
				err = v.UpdateLowerBound(nlb, l)
			}
		}
		if err != nil {
			return false, err
		}
	}
	return changed, nil
}

// IsSatisfied checks an instantiated assignment.
func (l *Linear) IsSatisfied() bool {
	sum := 0
	for i, v := range l.vars {
		if !v.IsInstantiated() {
			return false
		}
		sum += l.coefs[i] * v.Value()
	}
	switch l.op {
	case OpLE:
		return sum <= l.rhs
	case OpGE:
		return sum >= l.rhs
	}
	return sum == l.rhs
}

func minTerm(a int, v *IntVar) int {
	if a >= 0 {
		return a * v.LB()
	}
	return a * v.UB()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) == (b < 0)) {
		q++
	}
	return q
}
