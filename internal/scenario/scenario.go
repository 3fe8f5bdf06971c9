// Package scenario reads and writes the YAML or JSON description of a
// fleet, the constraints to satisfy and, optionally, a plan.
package scenario

import (
	"errors"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/plan"
)

var (
	ErrUnknownConstraint = errors.New("unknown constraint type")
	ErrUnknownObjective  = errors.New("unknown objective")
	ErrInvalidScenario   = errors.New("invalid scenario")
)

// Scenario is the file format. Field names follow the JSON encoding; YAML
// documents are converted to JSON before decoding.
type Scenario struct {
	Nodes       []NodeSpec       `json:"nodes"`
	VMs         []VMSpec         `json:"vms,omitempty"`
	Resources   []ResourceSpec   `json:"resources,omitempty"`
	Network     *NetworkSpec     `json:"network,omitempty"`
	Attributes  AttributesSpec   `json:"attributes,omitempty"`
	Constraints []ConstraintSpec `json:"constraints,omitempty"`
	Objective   string           `json:"objective,omitempty"`
	Plan        *PlanSpec        `json:"plan,omitempty"`
}

type NodeSpec struct {
	ID model.Node `json:"id"`
	// State is online (default) or offline.
	State string `json:"state,omitempty"`
}

type VMSpec struct {
	ID model.VM `json:"id"`
	// State is running, sleeping or ready (default).
	State string     `json:"state,omitempty"`
	Host  model.Node `json:"host,omitempty"`
}

type ResourceSpec struct {
	Name               string             `json:"name"`
	DefaultCapacity    int                `json:"defaultCapacity"`
	DefaultConsumption int                `json:"defaultConsumption"`
	Capacity           map[model.Node]int `json:"capacity,omitempty"`
	Consumption        map[model.VM]int   `json:"consumption,omitempty"`
}

type NetworkSpec struct {
	Switches []SwitchSpec `json:"switches,omitempty"`
	Links    []LinkSpec   `json:"links"`
}

type SwitchSpec struct {
	ID       string `json:"id"`
	Capacity int    `json:"capacity,omitempty"`
}

// EndpointSpec names either a node or a switch.
type EndpointSpec struct {
	Node   model.Node `json:"node,omitempty"`
	Switch string     `json:"switch,omitempty"`
}

type LinkSpec struct {
	ID       string       `json:"id"`
	Capacity int          `json:"capacity"`
	A        EndpointSpec `json:"a"`
	B        EndpointSpec `json:"b"`
}

type AttributesSpec struct {
	VMs   map[model.VM]map[string]any   `json:"vms,omitempty"`
	Nodes map[model.Node]map[string]any `json:"nodes,omitempty"`
}

// ConstraintSpec declares one constraint. Type selects the fields used.
type ConstraintSpec struct {
	Type       string         `json:"type"`
	VMs        []model.VM     `json:"vms,omitempty"`
	Nodes      []model.Node   `json:"nodes,omitempty"`
	VMGroups   [][]model.VM   `json:"vmGroups,omitempty"`
	NodeGroups [][]model.Node `json:"nodeGroups,omitempty"`
	Resource   string         `json:"resource,omitempty"`
	Amount     int            `json:"amount,omitempty"`
	Ratio      float64        `json:"ratio,omitempty"`
	Continuous *bool          `json:"continuous,omitempty"`
}

type PlanSpec struct {
	Actions []*plan.Action `json:"actions"`
}

// Decode parses a YAML or JSON document.
func Decode(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	return &s, nil
}

// Load reads the scenario at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Decode(data)
}

// Encode renders s as YAML.
func (s *Scenario) Encode() ([]byte, error) {
	return yaml.Marshal(s)
}

// Model builds the source model.
func (s *Scenario) Model() (*model.Model, error) {
	mo := model.New()
	for _, n := range s.Nodes {
		switch n.State {
		case "", "online":
			mo.Mapping.AddOnlineNode(n.ID)
		case "offline":
			if err := mo.Mapping.AddOfflineNode(n.ID); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: node %s has state %q", ErrInvalidScenario, n.ID, n.State)
		}
	}
	for _, v := range s.VMs {
		var err error
		switch v.State {
		case "", "ready":
			mo.Mapping.AddReadyVM(v.ID)
		case "running":
			err = mo.Mapping.AddRunningVM(v.ID, v.Host)
		case "sleeping":
			err = mo.Mapping.AddSleepingVM(v.ID, v.Host)
		default:
			err = fmt.Errorf("%w: VM %s has state %q", ErrInvalidScenario, v.ID, v.State)
		}
		if err != nil {
			return nil, err
		}
	}
	for _, r := range s.Resources {
		rc := model.NewShareableResource(r.Name, r.DefaultCapacity, r.DefaultConsumption)
		for n, c := range r.Capacity {
			rc.SetCapacity(n, c)
		}
		for vm, c := range r.Consumption {
			rc.SetConsumption(vm, c)
		}
		mo.AddResource(rc)
	}
	if s.Network != nil {
		net, err := s.Network.build()
		if err != nil {
			return nil, err
		}
		mo.Network = net
	}
	for vm, kv := range s.Attributes.VMs {
		for k, v := range kv {
			mo.Attributes.PutVM(vm, k, v)
		}
	}
	for n, kv := range s.Attributes.Nodes {
		for k, v := range kv {
			mo.Attributes.PutNode(n, k, v)
		}
	}
	return mo, nil
}

func (ns *NetworkSpec) build() (*model.Network, error) {
	net := model.NewNetwork()
	for _, sw := range ns.Switches {
		net.AddSwitch(sw.ID, sw.Capacity)
	}
	endpoint := func(e EndpointSpec) (model.Endpoint, error) {
		switch {
		case e.Switch != "" && e.Node != "":
			return model.Endpoint{}, fmt.Errorf("%w: endpoint names both node %s and switch %s", ErrInvalidScenario, e.Node, e.Switch)
		case e.Switch != "":
			sw, ok := net.Switch(e.Switch)
			if !ok {
				return model.Endpoint{}, fmt.Errorf("%w: unknown switch %s", ErrInvalidScenario, e.Switch)
			}
			return model.SwitchEndpoint(sw), nil
		case e.Node != "":
			return model.NodeEndpoint(e.Node), nil
		}
		return model.Endpoint{}, fmt.Errorf("%w: empty endpoint", ErrInvalidScenario)
	}
	for _, l := range ns.Links {
		a, err := endpoint(l.A)
		if err != nil {
			return nil, fmt.Errorf("link %s: %w", l.ID, err)
		}
		b, err := endpoint(l.B)
		if err != nil {
			return nil, fmt.Errorf("link %s: %w", l.ID, err)
		}
		net.Connect(l.ID, l.Capacity, a, b)
	}
	return net, nil
}
