package plan

import (
	"sort"
	"strings"

	"github.com/guimove/replanner/internal/model"
)

// ReconfigurationPlan is the set of timed actions that turns its origin
// into the solved model.
type ReconfigurationPlan struct {
	origin  *model.Model
	actions []*Action

	// MisPlaced lists the VMs that violated a constraint in the origin.
	MisPlaced []model.VM
	// Managed lists the VMs the scheduler was allowed to touch.
	Managed []model.VM
}

// New returns an empty plan starting from origin.
func New(origin *model.Model) *ReconfigurationPlan {
	return &ReconfigurationPlan{origin: origin}
}

// Origin returns the source model.
func (p *ReconfigurationPlan) Origin() *model.Model { return p.origin }

// Add appends a. Adding the same action twice is a no-op.
func (p *ReconfigurationPlan) Add(a *Action) bool {
	for _, x := range p.actions {
		if x == a {
			return false
		}
	}
	p.actions = append(p.actions, a)
	return true
}

// Actions returns the actions sorted by start time.
func (p *ReconfigurationPlan) Actions() []*Action {
	out := append([]*Action(nil), p.actions...)
	sort.SliceStable(out, func(i, j int) bool {
		return StartFirst.Compare(out[i], out[j]) < 0
	})
	return out
}

// Size is the number of actions.
func (p *ReconfigurationPlan) Size() int { return len(p.actions) }

// Duration is the end of the last action.
func (p *ReconfigurationPlan) Duration() int {
	d := 0
	for _, a := range p.actions {
		d = max(d, a.End)
	}
	return d
}

// ActionsOf returns the actions that manipulate vm.
func (p *ReconfigurationPlan) ActionsOf(vm model.VM) []*Action {
	var out []*Action
	for _, a := range p.actions {
		if a.IsVMAction() && a.VM == vm {
			out = append(out, a)
		}
	}
	return out
}

// Find returns the first action on vm of kind k.
func (p *ReconfigurationPlan) Find(vm model.VM, k Kind) (*Action, bool) {
	for _, a := range p.actions {
		if a.Kind == k && a.VM == vm {
			return a, true
		}
	}
	return nil, false
}

// Count returns the number of actions of kind k.
func (p *ReconfigurationPlan) Count(k Kind) int {
	n := 0
	for _, a := range p.actions {
		if a.Kind == k {
			n++
		}
	}
	return n
}

// Merge appends every action of o. Plans over disjoint elements merge into
// a consistent plan.
func (p *ReconfigurationPlan) Merge(o *ReconfigurationPlan) {
	p.actions = append(p.actions, o.actions...)
	p.MisPlaced = append(p.MisPlaced, o.MisPlaced...)
	p.Managed = append(p.Managed, o.Managed...)
}

// Result simulates the plan and returns the resulting model.
func (p *ReconfigurationPlan) Result() (*model.Model, error) {
	tl, err := Simulate(p)
	if err != nil {
		return nil, err
	}
	return tl.Result, nil
}

func (p *ReconfigurationPlan) String() string {
	var b strings.Builder
	for _, a := range p.Actions() {
		b.WriteString(a.String())
		b.WriteByte('\n')
	}
	return b.String()
}
