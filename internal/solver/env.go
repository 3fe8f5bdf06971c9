package solver

// Env is the trail backing every reversible cell of a solver. A world is
// pushed before each decision and popped on backtrack; popping restores the
// value every cell had when the world was pushed.
type Env struct {
	world int
	trail []trailEntry
	marks []int
}

type trailEntry struct {
	cell  *StoredInt
	val   int
	stamp int
}

// StoredInt is an integer cell whose modifications are undone on backtrack.
// The zero value is not usable; cells are created through an Env.
type StoredInt struct {
	env   *Env
	val   int
	stamp int
}

// NewEnv returns an empty trail at world 0.
func NewEnv() *Env {
	return &Env{}
}

// World returns the current depth.
func (e *Env) World() int {
	return e.world
}

// NewStoredInt allocates a reversible cell holding v.
func (e *Env) NewStoredInt(v int) *StoredInt {
	return &StoredInt{env: e, val: v, stamp: e.world}
}

// MakeStored allocates n contiguous reversible cells holding v.
func (e *Env) MakeStored(n, v int) []StoredInt {
	cells := make([]StoredInt, n)
	for i := range cells {
		e.init(&cells[i], v)
	}
	return cells
}

func (e *Env) init(c *StoredInt, v int) {
	c.env = e
	c.val = v
	c.stamp = e.world
}

// Push opens a new world.
func (e *Env) Push() {
	e.marks = append(e.marks, len(e.trail))
	e.world++
}

// Pop restores every cell modified since the matching Push.
func (e *Env) Pop() {
	if len(e.marks) == 0 {
		return
	}
	mark := e.marks[len(e.marks)-1]
	e.marks = e.marks[:len(e.marks)-1]
	for i := len(e.trail) - 1; i >= mark; i-- {
		t := e.trail[i]
		t.cell.val = t.val
		t.cell.stamp = t.stamp
	}
	e.trail = e.trail[:mark]
	e.world--
}

// PopTo pops worlds until the depth equals w.
func (e *Env) PopTo(w int) {
	for e.world > w {
		e.Pop()
	}
}

// Get returns the current value.
func (c *StoredInt) Get() int {
	return c.val
}

// Set changes the value, trailing the previous one once per world.
func (c *StoredInt) Set(v int) {
	if c.val == v {
		return
	}
	if c.stamp != c.env.world {
		c.env.trail = append(c.env.trail, trailEntry{cell: c, val: c.val, stamp: c.stamp})
		c.stamp = c.env.world
	}
	c.val = v
}

// Add increments the value by d.
func (c *StoredInt) Add(d int) {
	c.Set(c.val + d)
}
