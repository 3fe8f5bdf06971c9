package inject

import (
	"github.com/guimove/replanner/internal/constraint"
	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/scheduler"
)

// The problem reads the required states itself; these injectors only report
// the misplaced VMs.

type vmState struct{ c constraint.VMStateDeclaration }

func (*vmState) Inject(*scheduler.Problem) error { return nil }

func (s *vmState) MisPlaced(mo *model.Model) []model.VM {
	var out []model.VM
	want := s.c.RequiredVMState()
	for _, vm := range s.c.InvolvedVMs() {
		cur := mo.Mapping.VMState(vm)
		if cur == want || (want == model.VMKilled && cur == model.VMInit) {
			continue
		}
		out = append(out, vm)
	}
	return out
}

type nodeState struct{ c constraint.NodeStateDeclaration }

func (*nodeState) Inject(*scheduler.Problem) error { return nil }

func (s *nodeState) MisPlaced(mo *model.Model) []model.VM {
	if s.c.RequiredNodeState() != model.NodeOffline {
		return nil
	}
	var out []model.VM
	for _, n := range s.c.InvolvedNodes() {
		out = append(out, mo.Mapping.HostedOn(n)...)
	}
	return out
}
