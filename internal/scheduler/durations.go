package scheduler

import (
	"fmt"

	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/plan"
)

// DurationEvaluator estimates the duration of an action on an element.
type DurationEvaluator interface {
	Evaluate(mo *model.Model, element string) (int, error)
}

// ConstantDuration always returns the same duration.
type ConstantDuration int

func (d ConstantDuration) Evaluate(*model.Model, string) (int, error) { return int(d), nil }

// AttributeDuration reads the duration from an integer VM attribute and
// falls back to another evaluator when it is not set.
type AttributeDuration struct {
	Key      string
	Fallback DurationEvaluator
}

func (d AttributeDuration) Evaluate(mo *model.Model, element string) (int, error) {
	if v, ok := mo.Attributes.VMInt(model.VM(element), d.Key); ok {
		return v, nil
	}
	if d.Fallback == nil {
		return 0, fmt.Errorf("%w: attribute %q unset for %s", ErrNoDurationEvaluator, d.Key, element)
	}
	return d.Fallback.Evaluate(mo, element)
}

// DurationEvaluators maps every action kind to its evaluator.
type DurationEvaluators struct {
	evaluators map[plan.Kind]DurationEvaluator
}

// NewDurationEvaluators returns evaluators with constant durations for
// every kind. Allocations are instantaneous.
func NewDurationEvaluators() *DurationEvaluators {
	return &DurationEvaluators{evaluators: map[plan.Kind]DurationEvaluator{
		plan.BootVM:       ConstantDuration(1),
		plan.ShutdownVM:   ConstantDuration(1),
		plan.MigrateVM:    ConstantDuration(2),
		plan.SuspendVM:    ConstantDuration(1),
		plan.ResumeVM:     ConstantDuration(1),
		plan.KillVM:       ConstantDuration(1),
		plan.ForgeVM:      ConstantDuration(1),
		plan.Allocate:     ConstantDuration(0),
		plan.BootNode:     ConstantDuration(1),
		plan.ShutdownNode: ConstantDuration(1),
	}}
}

// Register sets the evaluator of k.
func (d *DurationEvaluators) Register(k plan.Kind, ev DurationEvaluator) {
	d.evaluators[k] = ev
}

// Evaluate estimates the duration of an action of kind k on element. The
// duration must be positive, allocations aside.
func (d *DurationEvaluators) Evaluate(mo *model.Model, k plan.Kind, element string) (int, error) {
	ev, ok := d.evaluators[k]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoDurationEvaluator, k)
	}
	v, err := ev.Evaluate(mo, element)
	if err != nil {
		return 0, err
	}
	if v < 0 || (v == 0 && k != plan.Allocate) {
		return 0, fmt.Errorf("duration of %s on %s must be positive, got %d", k, element, v)
	}
	return v, nil
}
