package solver

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIntVar_EnumeratedRemoval(t *testing.T) {
	s := New()
	v := s.EnumVar("x", 0, 70)

	s.env.Push()
	for _, x := range []int{0, 1, 33, 69, 70} {
		if err := v.RemoveValue(x, nil); err != nil {
			t.Fatalf("removing %d: %v", x, err)
		}
	}
	if v.LB() != 2 || v.UB() != 68 {
		t.Errorf("expected bounds [2,68], got [%d,%d]", v.LB(), v.UB())
	}
	if v.Contains(33) {
		t.Error("33 should have been removed")
	}
	if v.Size() != 66 {
		t.Errorf("expected size 66, got %d", v.Size())
	}
	if next, _ := v.NextValue(32); next != 34 {
		t.Errorf("expected next of 32 to be 34, got %d", next)
	}
	if prev, _ := v.PrevValue(34); prev != 32 {
		t.Errorf("expected prev of 34 to be 32, got %d", prev)
	}
	s.env.Pop()

	if v.LB() != 0 || v.UB() != 70 || v.Size() != 71 || !v.Contains(33) {
		t.Errorf("domain not restored: %s", v)
	}
}

func TestIntVar_BoundsOnEnumerated(t *testing.T) {
	s := New()
	v, err := s.EnumVarValues("x", []int{1, 4, 6, 9})
	if err != nil {
		t.Fatal(err)
	}
	if err := v.UpdateLowerBound(2, nil); err != nil {
		t.Fatal(err)
	}
	if err := v.UpdateUpperBound(8, nil); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{4, 6}, v.Values()); diff != "" {
		t.Errorf("unexpected domain (-want +got):\n%s", diff)
	}
	if err := v.UpdateLowerBound(7, nil); !errors.Is(err, ErrContradiction) {
		t.Errorf("expected a contradiction, got %v", err)
	}
}

func TestIntVar_Instantiate(t *testing.T) {
	s := New()
	v := s.IntVar("x", 0, 10)
	if err := v.InstantiateTo(11, nil); !errors.Is(err, ErrContradiction) {
		t.Fatalf("expected a contradiction, got %v", err)
	}
	if err := v.InstantiateTo(4, nil); err != nil {
		t.Fatal(err)
	}
	if !v.IsInstantiated() || v.Value() != 4 {
		t.Errorf("expected x=4, got %s", v)
	}
	if err := v.RemoveValue(4, nil); err == nil {
		t.Error("removing the last value should fail")
	}
}

func TestIntVar_BoundedInnerRemovalIsNoop(t *testing.T) {
	s := New()
	v := s.IntVar("x", 0, 10)
	if err := v.RemoveValue(5, nil); err != nil {
		t.Fatal(err)
	}
	if !v.Contains(5) || v.Size() != 11 {
		t.Errorf("bounded domain should not hold holes: %s", v)
	}
	if err := v.RemoveValue(0, nil); err != nil {
		t.Fatal(err)
	}
	if v.LB() != 1 {
		t.Errorf("expected lower bound 1, got %d", v.LB())
	}
}
