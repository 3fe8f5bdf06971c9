package solver

import (
	"context"
	"time"
)

// Decision assigns Value to Var on the left branch and removes it on the
// right one.
type Decision struct {
	Var   *IntVar
	Value int
}

// Strategy picks the next decision. It returns false once every variable
// it covers is instantiated.
type Strategy interface {
	Next() (Decision, bool)
}

// ValueSelector picks a value in the domain of a variable.
type ValueSelector func(v *IntVar) int

// MinValue selects the lower bound.
func MinValue(v *IntVar) int { return v.LB() }

// MaxValueSelector selects the upper bound.
func MaxValueSelector(v *IntVar) int { return v.UB() }

// Prefer selects the value returned by pick when it is in the domain and
// falls back to the lower bound.
func Prefer(pick func(v *IntVar) (int, bool)) ValueSelector {
	return func(v *IntVar) int {
		if x, ok := pick(v); ok && v.Contains(x) {
			return x
		}
		return v.LB()
	}
}

type inputOrder struct {
	vars []*IntVar
	sel  ValueSelector
}

// InputOrder branches on the first uninstantiated variable.
func InputOrder(vars []*IntVar, sel ValueSelector) Strategy {
	return &inputOrder{vars: vars, sel: sel}
}

func (s *inputOrder) Next() (Decision, bool) {
	for _, v := range s.vars {
		if !v.IsInstantiated() {
			return Decision{Var: v, Value: s.sel(v)}, true
		}
	}
	return Decision{}, false
}

type firstFail struct {
	vars []*IntVar
	sel  ValueSelector
}

// FirstFail branches on the uninstantiated variable with the smallest
// domain, ties broken by input order.
func FirstFail(vars []*IntVar, sel ValueSelector) Strategy {
	return &firstFail{vars: vars, sel: sel}
}

func (s *firstFail) Next() (Decision, bool) {
	var best *IntVar
	for _, v := range s.vars {
		if v.IsInstantiated() {
			continue
		}
		if best == nil || v.Size() < best.Size() {
			best = v
		}
	}
	if best == nil {
		return Decision{}, false
	}
	return Decision{Var: best, Value: s.sel(best)}, true
}

type sequence []Strategy

// Sequence tries each strategy in turn.
func Sequence(strategies ...Strategy) Strategy {
	return sequence(strategies)
}

func (s sequence) Next() (Decision, bool) {
	for _, st := range s {
		if d, ok := st.Next(); ok {
			return d, true
		}
	}
	return Decision{}, false
}

// Limits bounds a search. Zero values mean no limit.
type Limits struct {
	TimeLimit time.Duration
	NodeLimit int
}

// SolutionStat describes one solution found during the search.
type SolutionStat struct {
	Time      time.Duration
	Nodes     int
	Objective int
	Optimized bool
}

// Solution is a snapshot of the lower bounds of every variable.
type Solution struct {
	values []int
}

// Value returns the value v had in the solution.
func (s *Solution) Value(v *IntVar) int {
	return s.values[v.id]
}

// SearchResult summarizes a search.
type SearchResult struct {
	Solutions  []SolutionStat
	Best       *Solution
	Nodes      int
	Backtracks int
	Fails      int
	Duration   time.Duration
	// Completed is false when a limit or the context stopped the search.
	Completed bool
}

// Search runs a depth-first search. With a nil objective it stops at the
// first solution; otherwise it minimizes objective by branch-and-bound and
// keeps the best solution. Search may only run once per solver.
type Search struct {
	s         *Solver
	strategy  Strategy
	objective *IntVar
	limits    Limits

	start    time.Time
	deadline time.Time
	res      SearchResult
	best     int
	hasBest  bool
	aborted  bool
}

// NewSearch prepares a search over s.
func (s *Solver) NewSearch(strategy Strategy, objective *IntVar, limits Limits) *Search {
	return &Search{s: s, strategy: strategy, objective: objective, limits: limits}
}

// Run explores the search tree. The returned error is only set when the
// search could not start; failing to find a solution is reported through
// the result.
func (se *Search) Run(ctx context.Context) (SearchResult, error) {
	if se.s.solved {
		return SearchResult{}, ErrAlreadySolved
	}
	se.s.solved = true
	se.start = time.Now()
	if se.limits.TimeLimit > 0 {
		se.deadline = se.start.Add(se.limits.TimeLimit)
	}
	root := se.s.env.World()
	if err := se.s.Propagate(); err != nil {
		se.res.Fails++
	} else {
		se.dfs(ctx)
	}
	se.s.env.PopTo(root)
	se.res.Completed = !se.aborted
	se.res.Duration = time.Since(se.start)
	return se.res, nil
}

func (se *Search) stop(ctx context.Context) bool {
	if se.aborted {
		return true
	}
	if ctx.Err() != nil ||
		(!se.deadline.IsZero() && time.Now().After(se.deadline)) ||
		(se.limits.NodeLimit > 0 && se.res.Nodes >= se.limits.NodeLimit) {
		se.aborted = true
	}
	return se.aborted
}

// dfs returns true when the search must end.
func (se *Search) dfs(ctx context.Context) bool {
	if se.stop(ctx) {
		return true
	}
	d, ok := se.strategy.Next()
	if !ok {
		se.record()
		return se.objective == nil
	}
	if !d.Var.Enumerated() && d.Value != d.Var.LB() && d.Value != d.Var.UB() {
		// an inner value cannot be refuted on an interval
		d.Value = d.Var.LB()
	}
	se.res.Nodes++

	env := se.s.env
	env.Push()
	err := d.Var.InstantiateTo(d.Value, nil)
	if err == nil {
		err = se.fixpoint()
	}
	if err == nil {
		if se.dfs(ctx) {
			env.Pop()
			return true
		}
	} else {
		se.res.Fails++
	}
	env.Pop()
	se.res.Backtracks++

	env.Push()
	err = d.Var.RemoveValue(d.Value, nil)
	if err == nil {
		err = se.fixpoint()
	}
	if err == nil {
		if se.dfs(ctx) {
			env.Pop()
			return true
		}
	} else {
		se.res.Fails++
	}
	env.Pop()
	return false
}

func (se *Search) fixpoint() error {
	if se.objective != nil && se.hasBest {
		if err := se.objective.UpdateUpperBound(se.best-1, nil); err != nil {
			se.s.flush()
			return err
		}
	}
	return se.s.Propagate()
}

func (se *Search) record() {
	sol := &Solution{values: make([]int, len(se.s.vars))}
	for i, v := range se.s.vars {
		sol.values[i] = v.LB()
	}
	st := SolutionStat{Time: time.Since(se.start), Nodes: se.res.Nodes}
	if se.objective != nil {
		st.Objective = se.objective.LB()
		st.Optimized = true
		se.best = st.Objective
		se.hasBest = true
	}
	se.res.Solutions = append(se.res.Solutions, st)
	se.res.Best = sol
}
