package scheduler

import (
	"time"

	"go.uber.org/zap"

	"github.com/guimove/replanner/internal/constraint"
	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/plan"
	"github.com/guimove/replanner/internal/solver"
)

// DefaultMaxEnd is the default horizon of a plan.
const DefaultMaxEnd = 1000

// Parameters tune the assembly and the search.
type Parameters struct {
	// TimeLimit and NodeLimit bound the search. Zero means no limit.
	TimeLimit time.Duration
	NodeLimit int
	// MaxEnd is the horizon: every action ends before it.
	MaxEnd int
	// Optimize keeps searching for better solutions after the first one.
	Optimize bool
	// Repair only manages the VMs that are misplaced or change state.
	Repair bool

	Durations *DurationEvaluators
	Catalog   Catalog
	Views     []ViewBuilder
	// Hint suggests hosts for the VMs without a current one. Optional.
	Hint   PlacementHint
	Logger *zap.Logger
}

// DefaultParameters optimizes over the whole model with constant durations.
// The catalog and the views are left for the caller to set.
func DefaultParameters() Parameters {
	return Parameters{
		MaxEnd:    DefaultMaxEnd,
		Optimize:  true,
		Durations: NewDurationEvaluators(),
	}
}

// View is a model fragment attached to a problem. BeforeSolve runs once
// every transition and constraint is injected; InsertActions runs once the
// VM and node transitions have inserted theirs.
type View interface {
	Name() string
	BeforeSolve(p *Problem) error
	InsertActions(p *Problem, sol *solver.Solution, pl *plan.ReconfigurationPlan) error
}

// ViewBuilder creates the views a problem needs. It may return none.
type ViewBuilder func(p *Problem) ([]View, error)

// PlacementHint suggests a host for each of vms given the current load of
// mo. VMs it cannot place are left out.
type PlacementHint interface {
	Hint(mo *model.Model, vms []model.VM) map[model.VM]model.Node
}

// Injector translates a constraint into relations of a problem.
type Injector interface {
	Inject(p *Problem) error
	// MisPlaced returns the VMs violating the constraint in mo.
	MisPlaced(mo *model.Model) []model.VM
}

// ObjectiveInjector sets the objective of a problem.
type ObjectiveInjector interface {
	Inject(p *Problem) error
}

// Catalog finds the injector of every constraint.
type Catalog interface {
	Injector(c constraint.SatConstraint) (Injector, error)
	Objective(o constraint.OptConstraint) (ObjectiveInjector, error)
}
