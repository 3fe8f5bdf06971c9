package solver

import "testing"

func TestStoredInt_PushPop(t *testing.T) {
	env := NewEnv()
	c := env.NewStoredInt(3)

	env.Push()
	c.Set(5)
	c.Set(7)
	env.Push()
	c.Add(1)
	if c.Get() != 8 {
		t.Fatalf("expected 8, got %d", c.Get())
	}
	env.Pop()
	if c.Get() != 7 {
		t.Errorf("expected 7 after first pop, got %d", c.Get())
	}
	env.Pop()
	if c.Get() != 3 {
		t.Errorf("expected 3 after second pop, got %d", c.Get())
	}
}

func TestStoredInt_TrailsOncePerWorld(t *testing.T) {
	env := NewEnv()
	c := env.NewStoredInt(0)
	env.Push()
	for i := 1; i <= 10; i++ {
		c.Set(i)
	}
	if len(env.trail) != 1 {
		t.Errorf("expected a single trail entry, got %d", len(env.trail))
	}
	env.Pop()
	if c.Get() != 0 {
		t.Errorf("expected 0, got %d", c.Get())
	}
}

func TestEnv_PopTo(t *testing.T) {
	env := NewEnv()
	cells := env.MakeStored(4, 1)
	for w := 0; w < 4; w++ {
		env.Push()
		cells[w].Set(10 + w)
	}
	env.PopTo(1)
	if env.World() != 1 {
		t.Fatalf("expected world 1, got %d", env.World())
	}
	if cells[0].Get() != 10 {
		t.Errorf("cell 0 should keep its world-1 value, got %d", cells[0].Get())
	}
	for i := 1; i < 4; i++ {
		if cells[i].Get() != 1 {
			t.Errorf("cell %d should be restored to 1, got %d", i, cells[i].Get())
		}
	}
}
