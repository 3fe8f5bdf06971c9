package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrModelingContradiction reports a relation that cannot hold before
	// the search even starts.
	ErrModelingContradiction = errors.New("modeling contradiction")
	// ErrInfeasibleTransition reports a VM or node whose required state
	// cannot be reached from its current one.
	ErrInfeasibleTransition = errors.New("infeasible transition")
	// ErrContinuousPrecondition reports a continuous constraint that is
	// already violated by the source model.
	ErrContinuousPrecondition = errors.New("continuous constraint unsatisfiable from this start state")
	ErrUnsupportedConstraint  = errors.New("unsupported constraint")
	ErrNoDurationEvaluator    = errors.New("no duration evaluator")
)

// AssemblyKind classifies the failures met while building a problem.
type AssemblyKind int

const (
	ModelingContradiction AssemblyKind = iota
	InfeasibleTransition
	ContinuousPrecondition
)

func (k AssemblyKind) String() string {
	switch k {
	case InfeasibleTransition:
		return "infeasible transition"
	case ContinuousPrecondition:
		return "continuous precondition"
	}
	return "modeling contradiction"
}

func (k AssemblyKind) sentinel() error {
	switch k {
	case InfeasibleTransition:
		return ErrInfeasibleTransition
	case ContinuousPrecondition:
		return ErrContinuousPrecondition
	}
	return ErrModelingContradiction
}

// AssemblyError is returned when a problem cannot be built. Element names
// the VM, node, resource or constraint responsible for the failure.
type AssemblyError struct {
	Kind    AssemblyKind
	Element string
	Err     error
}

func (e *AssemblyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Element)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Element, e.Err)
}

// Unwrap exposes both the sentinel of the kind and the cause.
func (e *AssemblyError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// Contradiction wraps err as a modeling contradiction on element.
func Contradiction(element string, err error) error {
	return &AssemblyError{Kind: ModelingContradiction, Element: element, Err: err}
}

// Infeasible reports that element cannot reach its required state.
func Infeasible(element, format string, args ...any) error {
	return &AssemblyError{Kind: InfeasibleTransition, Element: element, Err: fmt.Errorf(format, args...)}
}

// Unsatisfiable reports a continuous constraint violated from the start.
func Unsatisfiable(constraint string) error {
	return &AssemblyError{Kind: ContinuousPrecondition, Element: constraint}
}
