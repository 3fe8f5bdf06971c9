package model

// ShareableResource declares a resource such as CPU or memory: a capacity
// per node and a consumption per VM. Undeclared elements take the defaults.
type ShareableResource struct {
	Name               string
	DefaultCapacity    int
	DefaultConsumption int

	capacity    map[Node]int
	consumption map[VM]int
}

// NewShareableResource creates a resource with default values.
func NewShareableResource(name string, defCapacity, defConsumption int) *ShareableResource {
	return &ShareableResource{
		Name:               name,
		DefaultCapacity:    defCapacity,
		DefaultConsumption: defConsumption,
		capacity:           make(map[Node]int),
		consumption:        make(map[VM]int),
	}
}

// SetCapacity sets the capacity of n.
func (r *ShareableResource) SetCapacity(n Node, v int) *ShareableResource {
	r.capacity[n] = v
	return r
}

// SetConsumption sets the consumption of vm.
func (r *ShareableResource) SetConsumption(vm VM, v int) *ShareableResource {
	r.consumption[vm] = v
	return r
}

// Capacity returns the capacity of n.
func (r *ShareableResource) Capacity(n Node) int {
	if v, ok := r.capacity[n]; ok {
		return v
	}
	return r.DefaultCapacity
}

// Consumption returns the consumption of vm.
func (r *ShareableResource) Consumption(vm VM) int {
	if v, ok := r.consumption[vm]; ok {
		return v
	}
	return r.DefaultConsumption
}

// DefinedCapacity reports whether a capacity was set for n.
func (r *ShareableResource) DefinedCapacity(n Node) bool {
	_, ok := r.capacity[n]
	return ok
}

// DefinedConsumption reports whether a consumption was set for vm.
func (r *ShareableResource) DefinedConsumption(vm VM) bool {
	_, ok := r.consumption[vm]
	return ok
}

// SumConsumption sums the consumption of vms.
func (r *ShareableResource) SumConsumption(vms []VM) int {
	sum := 0
	for _, vm := range vms {
		sum += r.Consumption(vm)
	}
	return sum
}

// Clone returns a deep copy.
func (r *ShareableResource) Clone() *ShareableResource {
	c := NewShareableResource(r.Name, r.DefaultCapacity, r.DefaultConsumption)
	for k, v := range r.capacity {
		c.capacity[k] = v
	}
	for k, v := range r.consumption {
		c.consumption[k] = v
	}
	return c
}
