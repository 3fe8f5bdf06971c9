package solver

import (
	"errors"
	"fmt"
)

var (
	// ErrContradiction is matched by every failure raised while filtering.
	ErrContradiction = errors.New("contradiction")

	ErrForeignVariable = errors.New("variable belongs to another solver")
	ErrInvalidArgument = errors.New("invalid propagator argument")
	ErrAlreadySolved   = errors.New("solver already ran a search")
)

// Contradiction reports an empty domain or a violated relation.
type Contradiction struct {
	Var   string
	Cause string
	Msg   string
}

func (c *Contradiction) Error() string {
	switch {
	case c.Var != "" && c.Cause != "":
		return fmt.Sprintf("contradiction on %s (%s): %s", c.Var, c.Cause, c.Msg)
	case c.Var != "":
		return fmt.Sprintf("contradiction on %s: %s", c.Var, c.Msg)
	case c.Cause != "":
		return fmt.Sprintf("contradiction in %s: %s", c.Cause, c.Msg)
	}
	return "contradiction: " + c.Msg
}

// Is makes every Contradiction match ErrContradiction.
func (c *Contradiction) Is(target error) bool {
	return target == ErrContradiction
}

func causeName(p Propagator) string {
	if p == nil {
		return ""
	}
	return p.Name()
}

func failVar(v *IntVar, cause Propagator, format string, args ...any) error {
	return &Contradiction{Var: v.name, Cause: causeName(cause), Msg: fmt.Sprintf(format, args...)}
}

// Fail builds a contradiction raised by a propagator.
func Fail(p Propagator, format string, args ...any) error {
	return &Contradiction{Cause: causeName(p), Msg: fmt.Sprintf(format, args...)}
}
