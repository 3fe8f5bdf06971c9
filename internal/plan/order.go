package plan

import "cmp"

// TimedComparator orders actions by time.
type TimedComparator struct {
	// EndFirst compares the end moments before the start moments.
	EndFirst bool
	// Simultaneous makes actions with the same moments compare equal.
	// Otherwise ties are broken on the kind then the element names.
	Simultaneous bool
}

var (
	StartFirst = TimedComparator{}
	EndFirst   = TimedComparator{EndFirst: true}
)

// Compare returns a negative number when a happens before b.
func (c TimedComparator) Compare(a, b *Action) int {
	first, second := cmp.Compare(a.Start, b.Start), cmp.Compare(a.End, b.End)
	if c.EndFirst {
		first, second = second, first
	}
	if first != 0 {
		return first
	}
	if second != 0 || c.Simultaneous {
		return second
	}
	if x := cmp.Compare(a.Kind, b.Kind); x != 0 {
		return x
	}
	if x := cmp.Compare(a.VM, b.VM); x != 0 {
		return x
	}
	return cmp.Compare(a.Node, b.Node)
}
