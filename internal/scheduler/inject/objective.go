package inject

import (
	"github.com/guimove/replanner/internal/scheduler"
	"github.com/guimove/replanner/internal/solver"
)

// mttr sums the ends of every VM and node action.
func mttr(p *scheduler.Problem) (*solver.IntVar, error) {
	var ends []*solver.IntVar
	for _, t := range p.Transitions() {
		ends = append(ends, t.End)
	}
	for _, t := range p.NodeTransitions() {
		ends = append(ends, t.End)
	}
	ub := min(p.Params.MaxEnd*len(ends), solver.MaxValue)
	s := p.Solver()
	v := s.IntVar("mttr", 0, ub)
	coefs := make([]int, len(ends)+1)
	for i := range ends {
		coefs[i] = 1
	}
	coefs[len(ends)] = -1
	if err := s.PostLinear(append(ends, v), coefs, solver.OpEQ, 0); err != nil {
		return nil, scheduler.Contradiction("mttr", err)
	}
	return v, nil
}

type minMTTR struct{}

func (minMTTR) Inject(p *scheduler.Problem) error {
	v, err := mttr(p)
	if err != nil {
		return err
	}
	p.SetObjective(v)
	return nil
}

// minMigrations ranks plans by their number of migrations, then by MTTR.
type minMigrations struct{}

func (minMigrations) Inject(p *scheduler.Problem) error {
	var moves []*solver.IntVar
	for _, t := range p.Transitions() {
		if t.Move != nil {
			moves = append(moves, t.Move)
		}
	}
	s := p.Solver()
	count := s.IntVar("migrations", 0, len(moves))
	coefs := make([]int, len(moves)+1)
	for i := range moves {
		coefs[i] = 1
	}
	coefs[len(moves)] = -1
	if err := s.PostLinear(append(moves, count), coefs, solver.OpEQ, 0); err != nil {
		return scheduler.Contradiction("migrations", err)
	}
	m, err := mttr(p)
	if err != nil {
		return err
	}
	weight := m.UB() + 1
	if len(moves) > 0 && weight > (solver.MaxValue-m.UB())/len(moves) {
		// the weighted sum overflows the domains
		p.SetObjective(count)
		return nil
	}
	obj := s.IntVar("cost", 0, weight*len(moves)+m.UB())
	if err := s.PostLinear([]*solver.IntVar{count, m, obj}, []int{weight, 1, -1}, solver.OpEQ, 0); err != nil {
		return scheduler.Contradiction("cost", err)
	}
	p.SetObjective(obj)
	return nil
}
