package model

import (
	"sort"
	"strconv"
)

// Attributes stores typed key/value pairs per element. Supported value
// types are bool, int, float64 and string.
type Attributes struct {
	vms   map[VM]map[string]any
	nodes map[Node]map[string]any
}

// NewAttributes returns an empty store.
func NewAttributes() *Attributes {
	return &Attributes{
		vms:   make(map[VM]map[string]any),
		nodes: make(map[Node]map[string]any),
	}
}

// PutVM sets an attribute of vm.
func (a *Attributes) PutVM(vm VM, key string, value any) {
	if a.vms[vm] == nil {
		a.vms[vm] = make(map[string]any)
	}
	a.vms[vm][key] = value
}

// PutNode sets an attribute of n.
func (a *Attributes) PutNode(n Node, key string, value any) {
	if a.nodes[n] == nil {
		a.nodes[n] = make(map[string]any)
	}
	a.nodes[n][key] = value
}

// VM returns the raw attribute of vm.
func (a *Attributes) VM(vm VM, key string) (any, bool) {
	v, ok := a.vms[vm][key]
	return v, ok
}

// Node returns the raw attribute of n.
func (a *Attributes) Node(n Node, key string) (any, bool) {
	v, ok := a.nodes[n][key]
	return v, ok
}

// VMKeys lists the attribute keys of vm, sorted.
func (a *Attributes) VMKeys(vm VM) []string {
	keys := make([]string, 0, len(a.vms[vm]))
	for k := range a.vms[vm] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NodeKeys lists the attribute keys of n, sorted.
func (a *Attributes) NodeKeys(n Node) []string {
	keys := make([]string, 0, len(a.nodes[n]))
	for k := range a.nodes[n] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// VMFloat returns a numeric attribute of vm as a float64. Integers and
// numeric strings are converted.
func (a *Attributes) VMFloat(vm VM, key string) (float64, bool) {
	v, ok := a.VM(vm, key)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// VMInt returns a numeric attribute of vm truncated to an int.
func (a *Attributes) VMInt(vm VM, key string) (int, bool) {
	f, ok := a.VMFloat(vm, key)
	return int(f), ok
}

// VMString returns a string attribute of vm.
func (a *Attributes) VMString(vm VM, key string) (string, bool) {
	v, ok := a.VM(vm, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// NodeFloat returns a numeric attribute of n as a float64.
func (a *Attributes) NodeFloat(n Node, key string) (float64, bool) {
	v, ok := a.Node(n, key)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// NodeBool returns a boolean attribute of n.
func (a *Attributes) NodeBool(n Node, key string) (bool, bool) {
	v, ok := a.Node(n, key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

// Clone returns a deep copy.
func (a *Attributes) Clone() *Attributes {
	c := NewAttributes()
	for vm, kv := range a.vms {
		for k, v := range kv {
			c.PutVM(vm, k, v)
		}
	}
	for n, kv := range a.nodes {
		for k, v := range kv {
			c.PutNode(n, k, v)
		}
	}
	return c
}
