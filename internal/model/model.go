package model

import (
	"fmt"
	"sort"
)

// Model is a snapshot of a fleet: the mapping, the attributes and the views
// describing resources and the network.
type Model struct {
	Mapping    *Mapping
	Attributes *Attributes
	Network    *Network

	resources map[string]*ShareableResource
	nextVM    int
	nextNode  int
}

// New returns an empty model.
func New() *Model {
	return &Model{
		Mapping:    NewMapping(),
		Attributes: NewAttributes(),
		resources:  make(map[string]*ShareableResource),
	}
}

// NewVM returns a fresh VM identifier that is not yet in the mapping.
func (m *Model) NewVM() VM {
	for {
		vm := VM(fmt.Sprintf("vm%d", m.nextVM))
		m.nextVM++
		if !m.Mapping.Contains(vm) {
			return vm
		}
	}
}

// NewNode returns a fresh node identifier that is not yet in the mapping.
func (m *Model) NewNode() Node {
	for {
		n := Node(fmt.Sprintf("node%d", m.nextNode))
		m.nextNode++
		if !m.Mapping.ContainsNode(n) {
			return n
		}
	}
}

// AddResource attaches a resource view, replacing any with the same name.
func (m *Model) AddResource(r *ShareableResource) {
	m.resources[r.Name] = r
}

// Resource returns the resource view named name.
func (m *Model) Resource(name string) (*ShareableResource, bool) {
	r, ok := m.resources[name]
	return r, ok
}

// Resources returns every resource view sorted by name.
func (m *Model) Resources() []*ShareableResource {
	out := make([]*ShareableResource, 0, len(m.resources))
	for _, r := range m.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clone returns a deep copy. The network topology is shared.
func (m *Model) Clone() *Model {
	c := &Model{
		Mapping:    m.Mapping.Clone(),
		Attributes: m.Attributes.Clone(),
		Network:    m.Network,
		resources:  make(map[string]*ShareableResource, len(m.resources)),
		nextVM:     m.nextVM,
		nextNode:   m.nextNode,
	}
	for k, r := range m.resources {
		c.resources[k] = r.Clone()
	}
	return c
}
