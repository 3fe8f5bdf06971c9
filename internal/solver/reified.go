package solver

import "fmt"

// ReifiedEq enforces b <=> (x == c) for a 0/1 variable b.
type ReifiedEq struct {
	b, x *IntVar
	c    int
}

// NewReifiedEq links b to the equality x == c.
func (s *Solver) NewReifiedEq(b, x *IntVar, c int) (*ReifiedEq, error) {
	if b.LB() < 0 || b.UB() > 1 {
		return nil, fmt.Errorf("%w: %s is not boolean", ErrInvalidArgument, b.Name())
	}
	p := &ReifiedEq{b: b, x: x, c: c}
	return p, s.Post(p)
}

func (p *ReifiedEq) Name() string       { return "reifiedEq(" + p.b.Name() + ")" }
func (p *ReifiedEq) Vars() []*IntVar    { return []*IntVar{p.b, p.x} }
func (p *ReifiedEq) Priority() Priority { return PriorityBinary }

func (p *ReifiedEq) Propagate() error {
	if p.b.IsInstantiated() {
		if p.b.Value() == 1 {
			return p.x.InstantiateTo(p.c, p)
		}
		return p.x.RemoveValue(p.c, p)
	}
	if !p.x.Contains(p.c) {
		return p.b.InstantiateTo(0, p)
	}
	if p.x.IsInstantiated() {
		return p.b.InstantiateTo(1, p)
	}
	return nil
}

// BoolTimes enforces z = b * x for a 0/1 variable b and x >= 0.
type BoolTimes struct {
	z, b, x *IntVar
}

// NewBoolTimes posts z = b * x.
func (s *Solver) NewBoolTimes(z, b, x *IntVar) error {
	if x.LB() < 0 {
		return fmt.Errorf("%w: %s must be non-negative", ErrInvalidArgument, x.Name())
	}
	return s.Post(&BoolTimes{z: z, b: b, x: x})
}

func (p *BoolTimes) Name() string       { return "boolTimes(" + p.z.Name() + ")" }
func (p *BoolTimes) Vars() []*IntVar    { return []*IntVar{p.z, p.b, p.x} }
func (p *BoolTimes) Priority() Priority { return PriorityTernary }

func (p *BoolTimes) Propagate() error {
	if p.z.LB() > 0 {
		if err := p.b.InstantiateTo(1, p); err != nil {
			return err
		}
	}
	if p.z.UB() < p.x.LB() {
		if err := p.b.InstantiateTo(0, p); err != nil {
			return err
		}
	}
	if p.b.IsInstantiated() {
		if p.b.Value() == 0 {
			return p.z.InstantiateTo(0, p)
		}
		if err := p.z.UpdateLowerBound(p.x.LB(), p); err != nil {
			return err
		}
		if err := p.z.UpdateUpperBound(p.x.UB(), p); err != nil {
			return err
		}
		if err := p.x.UpdateLowerBound(p.z.LB(), p); err != nil {
			return err
		}
		if err := p.x.UpdateUpperBound(p.z.UB(), p); err != nil {
			return err
		}
		return nil
	}
	if err := p.z.UpdateLowerBound(0, p); err != nil {
		return err
	}
	return p.z.UpdateUpperBound(p.x.UB(), p)
}

// ImpliesEq enforces b == 1 => x == c.
type ImpliesEq struct {
	b, x *IntVar
	c    int
}

// NewImpliesEq posts b == 1 => x == c.
func (s *Solver) NewImpliesEq(b, x *IntVar, c int) error {
	return s.Post(&ImpliesEq{b: b, x: x, c: c})
}

func (p *ImpliesEq) Name() string       { return "implies(" + p.b.Name() + "," + p.x.Name() + ")" }
func (p *ImpliesEq) Vars() []*IntVar    { return []*IntVar{p.b, p.x} }
func (p *ImpliesEq) Priority() Priority { return PriorityBinary }

func (p *ImpliesEq) Propagate() error {
	if p.b.LB() == 1 {
		return p.x.InstantiateTo(p.c, p)
	}
	if !p.x.Contains(p.c) {
		return p.b.InstantiateTo(0, p)
	}
	return nil
}

// SameHostPrecedence enforces host == h => start >= end: a demanding slice
// may only begin on node h once the consuming slice hosted there is over.
type SameHostPrecedence struct {
	host       *IntVar
	h          int
	start, end *IntVar
}

// NewSameHostPrecedence posts host == h => start >= end.
func (s *Solver) NewSameHostPrecedence(host *IntVar, h int, start, end *IntVar) error {
	return s.Post(&SameHostPrecedence{host: host, h: h, start: start, end: end})
}

func (p *SameHostPrecedence) Name() string { return "precedence(" + p.host.Name() + ")" }
func (p *SameHostPrecedence) Vars() []*IntVar {
	return []*IntVar{p.host, p.start, p.end}
}
func (p *SameHostPrecedence) Priority() Priority { return PriorityTernary }

func (p *SameHostPrecedence) Propagate() error {
	if !p.host.Contains(p.h) {
		return nil
	}
	if p.host.IsInstantiated() {
		if err := p.start.UpdateLowerBound(p.end.LB(), p); err != nil {
			return err
		}
		return p.end.UpdateUpperBound(p.start.UB(), p)
	}
	if p.start.UB() < p.end.LB() {
		return p.host.RemoveValue(p.h, p)
	}
	return nil
}
