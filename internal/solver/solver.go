// Package solver is a small finite-domain constraint engine: reversible
// integer cells, integer variables, a prioritized propagation queue and a
// depth-first branch-and-bound search.
package solver

import (
	"fmt"
	"math"

	"github.com/emirpasic/gods/trees/binaryheap"
)

// MaxValue is the upper bound used for variables without a natural one.
// It keeps sums of a few thousand terms far from overflowing.
const MaxValue = math.MaxInt32

// Priority orders propagators in the queue; cheaper ones run first.
type Priority int

const (
	PriorityUnary Priority = iota
	PriorityBinary
	PriorityTernary
	PriorityLinear
	PriorityQuadratic
	PriorityCubic
	PriorityVerySlow
)

// Propagator filters the domains of its variables.
type Propagator interface {
	Name() string
	Vars() []*IntVar
	Priority() Priority
	// Propagate performs a full filtering pass.
	Propagate() error
}

// IncrementalPropagator is notified of each event on its variables after its
// first full pass, instead of being fully re-run. Events it caused itself are
// not delivered.
type IncrementalPropagator interface {
	Propagator
	PropagateEvent(idx int, ev Event) error
}

// RemovalListener receives every value removed from a watched variable,
// synchronously, as soon as the removal happens.
type RemovalListener interface {
	OnRemove(idx, val int)
}

// Checker is implemented by propagators able to verify a full assignment.
type Checker interface {
	IsSatisfied() bool
}

type propState struct {
	prop        Propagator
	inc         IncrementalPropagator
	listener    RemovalListener
	seq         int
	queued      bool
	initialized bool
	pending     []pendingEvent
}

type pendingEvent struct {
	idx int
	ev  Event
}

type queueItem struct {
	st  *propState
	pri Priority
	seq int
}

// Solver owns the variables, the propagators and the trail of one problem.
// It is not safe for concurrent use.
type Solver struct {
	env     *Env
	vars    []*IntVar
	props   []*propState
	queue   *binaryheap.Heap
	counter int
	delta   []int
	solved  bool
}

// New returns an empty solver.
func New() *Solver {
	return &Solver{
		env: NewEnv(),
		queue: binaryheap.NewWith(func(a, b interface{}) int {
			x, y := a.(queueItem), b.(queueItem)
			if x.pri != y.pri {
				return int(x.pri) - int(y.pri)
			}
			return x.seq - y.seq
		}),
	}
}

// Env exposes the trail, for propagators that keep reversible state.
func (s *Solver) Env() *Env { return s.env }

// Vars returns every variable, in creation order.
func (s *Solver) Vars() []*IntVar { return s.vars }

// Propagators returns every posted propagator.
func (s *Solver) Propagators() []Propagator {
	out := make([]Propagator, len(s.props))
	for i, st := range s.props {
		out[i] = st.prop
	}
	return out
}

func (s *Solver) newVar(name string, lb, ub int) *IntVar {
	v := &IntVar{s: s, id: len(s.vars), name: name}
	s.env.init(&v.lb, lb)
	s.env.init(&v.ub, ub)
	s.env.init(&v.size, ub-lb+1)
	s.vars = append(s.vars, v)
	return v
}

// IntVar creates a variable with the bounded domain [lb, ub].
func (s *Solver) IntVar(name string, lb, ub int) *IntVar {
	if lb > ub {
		lb, ub = ub, lb
	}
	return s.newVar(name, lb, ub)
}

// EnumVar creates a variable with the enumerated domain [lb, ub].
func (s *Solver) EnumVar(name string, lb, ub int) *IntVar {
	if lb > ub {
		lb, ub = ub, lb
	}
	v := s.newVar(name, lb, ub)
	v.offset = lb
	n := ub - lb + 1
	v.words = s.env.MakeStored((n+wordBits-1)/wordBits, 0)
	for i := 0; i < n; i++ {
		c := &v.words[i/wordBits]
		c.val = int(uint32(c.val) | 1<<(uint(i)%wordBits))
	}
	return v
}

// EnumVarValues creates an enumerated variable holding exactly values. It
// returns an error if values is empty.
func (s *Solver) EnumVarValues(name string, values []int) (*IntVar, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty domain for %s", ErrInvalidArgument, name)
	}
	lb, ub := values[0], values[0]
	for _, x := range values {
		lb = min(lb, x)
		ub = max(ub, x)
	}
	v := s.newVar(name, lb, ub)
	v.offset = lb
	v.words = s.env.MakeStored((ub-lb+wordBits)/wordBits, 0)
	n := 0
	for _, x := range values {
		i := x - lb
		c := &v.words[i/wordBits]
		bit := uint32(1) << (uint(i) % wordBits)
		if uint32(c.val)&bit == 0 {
			c.val = int(uint32(c.val) | bit)
			n++
		}
	}
	v.size.val = n
	return v, nil
}

// BoolVar creates a 0/1 variable.
func (s *Solver) BoolVar(name string) *IntVar {
	return s.EnumVar(name, 0, 1)
}

// Constant creates an instantiated variable.
func (s *Solver) Constant(name string, x int) *IntVar {
	return s.newVar(name, x, x)
}

// Post registers p and schedules its first full pass.
func (s *Solver) Post(p Propagator) error {
	if s.solved {
		return ErrAlreadySolved
	}
	st := &propState{prop: p}
	if inc, ok := p.(IncrementalPropagator); ok {
		st.inc = inc
	}
	if l, ok := p.(RemovalListener); ok {
		st.listener = l
	}
	for i, v := range p.Vars() {
		if v == nil || v.s != s {
			return fmt.Errorf("%w: %s", ErrForeignVariable, p.Name())
		}
		v.watchers = append(v.watchers, watcher{st: st, idx: i})
		if st.listener != nil {
			v.listeners++
		}
	}
	s.props = append(s.props, st)
	s.enqueue(st)
	return nil
}

func (s *Solver) enqueue(st *propState) {
	if st.queued {
		return
	}
	st.queued = true
	s.counter++
	st.seq = s.counter
	s.queue.Push(queueItem{st: st, pri: st.prop.Priority(), seq: st.seq})
}

func (s *Solver) schedule(st *propState, idx int, ev Event) {
	if st.inc != nil && st.initialized {
		st.pending = append(st.pending, pendingEvent{idx: idx, ev: ev})
	}
	s.enqueue(st)
}

// Propagate runs the queue to a fixpoint. On failure the queue is flushed
// and the returned error matches ErrContradiction.
func (s *Solver) Propagate() error {
	for {
		it, ok := s.queue.Pop()
		if !ok {
			return nil
		}
		st := it.(queueItem).st
		st.queued = false
		var err error
		if st.inc != nil && st.initialized {
			events := st.pending
			st.pending = nil
			for _, e := range events {
				if err = st.inc.PropagateEvent(e.idx, e.ev); err != nil {
					break
				}
			}
		} else {
			st.pending = nil
			err = st.prop.Propagate()
			if err == nil {
				st.initialized = true
			}
		}
		if err != nil {
			s.flush()
			return err
		}
	}
}

func (s *Solver) flush() {
	for {
		it, ok := s.queue.Pop()
		if !ok {
			return
		}
		st := it.(queueItem).st
		st.queued = false
		st.pending = nil
	}
}
