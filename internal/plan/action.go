package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/guimove/replanner/internal/model"
)

var (
	ErrUnknownKind = errors.New("unknown action kind")
	// ErrPrecondition is returned when an action cannot apply to a model.
	ErrPrecondition = errors.New("action precondition not met")
)

// Kind identifies the action variant.
type Kind int

const (
	BootVM Kind = iota
	ShutdownVM
	MigrateVM
	SuspendVM
	ResumeVM
	KillVM
	ForgeVM
	Allocate
	BootNode
	ShutdownNode
)

var kindNames = [...]string{
	BootVM:       "bootVM",
	ShutdownVM:   "shutdownVM",
	MigrateVM:    "migrateVM",
	SuspendVM:    "suspendVM",
	ResumeVM:     "resumeVM",
	KillVM:       "killVM",
	ForgeVM:      "forgeVM",
	Allocate:     "allocate",
	BootNode:     "bootNode",
	ShutdownNode: "shutdownNode",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind is the inverse of Kind.String. It is case insensitive.
func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if strings.EqualFold(n, s) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Hook tells when an event fires relative to its action.
type Hook string

const (
	HookPre  Hook = "pre"
	HookPost Hook = "post"
)

// Event is a resource allocation attached to an action.
type Event struct {
	Hook     Hook   `json:"hook"`
	Resource string `json:"resource"`
	Amount   int    `json:"amount"`
}

// Action is one timed step of a plan. Which fields are meaningful depends
// on Kind:
//
//	BootVM, ShutdownVM, KillVM: VM, Node
//	MigrateVM: VM, Node (source), Dst, Bandwidth
//	SuspendVM, ResumeVM: VM, Node (source), Dst
//	ForgeVM: VM
//	Allocate: VM, Node, Resource, Amount
//	BootNode, ShutdownNode: Node
type Action struct {
	Kind      Kind       `json:"kind"`
	VM        model.VM   `json:"vm,omitempty"`
	Node      model.Node `json:"node,omitempty"`
	Dst       model.Node `json:"dst,omitempty"`
	Start     int        `json:"start"`
	End       int        `json:"end"`
	Bandwidth int        `json:"bandwidth,omitempty"`
	Resource  string     `json:"resource,omitempty"`
	Amount    int        `json:"amount,omitempty"`
	Events    []Event    `json:"events,omitempty"`
}

func NewBootVM(vm model.VM, n model.Node, st, ed int) *Action {
	return &Action{Kind: BootVM, VM: vm, Node: n, Start: st, End: ed}
}

func NewShutdownVM(vm model.VM, n model.Node, st, ed int) *Action {
	return &Action{Kind: ShutdownVM, VM: vm, Node: n, Start: st, End: ed}
}

func NewMigrateVM(vm model.VM, src, dst model.Node, st, ed, bw int) *Action {
	return &Action{Kind: MigrateVM, VM: vm, Node: src, Dst: dst, Start: st, End: ed, Bandwidth: bw}
}

func NewSuspendVM(vm model.VM, src, dst model.Node, st, ed int) *Action {
	return &Action{Kind: SuspendVM, VM: vm, Node: src, Dst: dst, Start: st, End: ed}
}

func NewResumeVM(vm model.VM, src, dst model.Node, st, ed int) *Action {
	return &Action{Kind: ResumeVM, VM: vm, Node: src, Dst: dst, Start: st, End: ed}
}

// NewKillVM kills vm. n is empty for a VM that has no host.
func NewKillVM(vm model.VM, n model.Node, st, ed int) *Action {
	return &Action{Kind: KillVM, VM: vm, Node: n, Start: st, End: ed}
}

func NewForgeVM(vm model.VM, st, ed int) *Action {
	return &Action{Kind: ForgeVM, VM: vm, Start: st, End: ed}
}

func NewAllocate(vm model.VM, n model.Node, rc string, amount, st, ed int) *Action {
	return &Action{Kind: Allocate, VM: vm, Node: n, Resource: rc, Amount: amount, Start: st, End: ed}
}

func NewBootNode(n model.Node, st, ed int) *Action {
	return &Action{Kind: BootNode, Node: n, Start: st, End: ed}
}

func NewShutdownNode(n model.Node, st, ed int) *Action {
	return &Action{Kind: ShutdownNode, Node: n, Start: st, End: ed}
}

// AddEvent hooks an allocation on the action.
func (a *Action) AddEvent(h Hook, rc string, amount int) {
	a.Events = append(a.Events, Event{Hook: h, Resource: rc, Amount: amount})
}

// Duration is End - Start.
func (a *Action) Duration() int { return a.End - a.Start }

// IsVMAction tells whether the action manipulates a VM.
func (a *Action) IsVMAction() bool { return a.Kind != BootNode && a.Kind != ShutdownNode }

// Destination returns the node hosting the VM once the action is over, if
// any.
func (a *Action) Destination() (model.Node, bool) {
	switch a.Kind {
	case BootVM, Allocate:
		return a.Node, true
	case MigrateVM, ResumeVM, SuspendVM:
		return a.Dst, true
	}
	return "", false
}

func (a *Action) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%d %s(", a.Start, a.End, a.Kind)
	switch a.Kind {
	case BootNode, ShutdownNode:
		fmt.Fprintf(&b, "node=%s", a.Node)
	case MigrateVM:
		fmt.Fprintf(&b, "vm=%s, from=%s, to=%s, bw=%d", a.VM, a.Node, a.Dst, a.Bandwidth)
	case SuspendVM, ResumeVM:
		fmt.Fprintf(&b, "vm=%s, from=%s, to=%s", a.VM, a.Node, a.Dst)
	case Allocate:
		fmt.Fprintf(&b, "vm=%s, on=%s, rc=%s, amount=%d", a.VM, a.Node, a.Resource, a.Amount)
	case ForgeVM:
		fmt.Fprintf(&b, "vm=%s", a.VM)
	default:
		fmt.Fprintf(&b, "vm=%s, on=%s", a.VM, a.Node)
	}
	b.WriteString(")")
	for _, e := range a.Events {
		fmt.Fprintf(&b, " @%s{%s=%d}", e.Hook, e.Resource, e.Amount)
	}
	return b.String()
}

func preconditionf(a *Action, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrPrecondition, a, fmt.Sprintf(format, args...))
}

// CheckStart verifies the action may begin on m.
func (a *Action) CheckStart(m *model.Mapping) error {
	switch a.Kind {
	case BootVM:
		if m.VMState(a.VM) != model.VMReady {
			return preconditionf(a, "VM is %s", m.VMState(a.VM))
		}
		if !m.IsOnline(a.Node) {
			return preconditionf(a, "node %s is not online", a.Node)
		}
	case ShutdownVM, SuspendVM, MigrateVM:
		if h, ok := m.Host(a.VM); !ok || h != a.Node || m.VMState(a.VM) != model.VMRunning {
			return preconditionf(a, "VM is not running on %s", a.Node)
		}
		if a.Kind != ShutdownVM && !m.IsOnline(a.Dst) {
			return preconditionf(a, "node %s is not online", a.Dst)
		}
	case ResumeVM:
		if h, ok := m.Host(a.VM); !ok || h != a.Node || m.VMState(a.VM) != model.VMSleeping {
			return preconditionf(a, "VM is not sleeping on %s", a.Node)
		}
		if !m.IsOnline(a.Dst) {
			return preconditionf(a, "node %s is not online", a.Dst)
		}
	case KillVM:
		if !m.Contains(a.VM) {
			return preconditionf(a, "unknown VM")
		}
	case ForgeVM:
		if m.Contains(a.VM) {
			return preconditionf(a, "VM already exists")
		}
	case Allocate:
		if h, ok := m.Host(a.VM); !ok || h != a.Node || m.VMState(a.VM) != model.VMRunning {
			return preconditionf(a, "VM is not running on %s", a.Node)
		}
	case BootNode:
		if st, ok := m.NodeState(a.Node); !ok || st != model.NodeOffline {
			return preconditionf(a, "node is not offline")
		}
	case ShutdownNode:
		if !m.IsOnline(a.Node) {
			return preconditionf(a, "node is not online")
		}
		if vms := m.HostedOn(a.Node); len(vms) > 0 {
			return preconditionf(a, "node still hosts %v", vms)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, int(a.Kind))
	}
	return nil
}

// ApplyEnd performs the state change of the action on m.
func (a *Action) ApplyEnd(m *model.Mapping) error {
	switch a.Kind {
	case BootVM, MigrateVM, ResumeVM:
		dst, _ := a.Destination()
		return m.AddRunningVM(a.VM, dst)
	case SuspendVM:
		return m.AddSleepingVM(a.VM, a.Dst)
	case ShutdownVM:
		m.AddReadyVM(a.VM)
	case KillVM:
		m.Remove(a.VM)
	case ForgeVM:
		m.AddReadyVM(a.VM)
	case Allocate:
	case BootNode:
		m.AddOnlineNode(a.Node)
	case ShutdownNode:
		if err := m.AddOfflineNode(a.Node); err != nil {
			return preconditionf(a, "%v", err)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, int(a.Kind))
	}
	return nil
}

// Apply checks then applies the action and its events on mo at once,
// ignoring time.
func (a *Action) Apply(mo *model.Model) error {
	if err := a.CheckStart(mo.Mapping); err != nil {
		return err
	}
	a.applyEvents(mo, HookPre)
	if a.Kind == Allocate {
		if rc, ok := mo.Resource(a.Resource); ok {
			rc.SetConsumption(a.VM, a.Amount)
		}
	}
	if err := a.ApplyEnd(mo.Mapping); err != nil {
		return err
	}
	a.applyEvents(mo, HookPost)
	return nil
}

func (a *Action) applyEvents(mo *model.Model, h Hook) {
	for _, e := range a.Events {
		if e.Hook != h {
			continue
		}
		if rc, ok := mo.Resource(e.Resource); ok {
			rc.SetConsumption(a.VM, e.Amount)
		}
	}
}
