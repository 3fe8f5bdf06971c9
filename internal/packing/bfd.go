// Package packing holds greedy placement heuristics and load analysis over
// a model's resources.
package packing

import (
	"math"
	"sort"

	"github.com/guimove/replanner/internal/model"
)

// BestFitDecreasing is a multi-resource best-fit-decreasing heuristic. It
// serves as a placement hint: the search tries the suggested host first.
type BestFitDecreasing struct{}

func (b *BestFitDecreasing) Name() string { return "best-fit-decreasing" }

// nodeState tracks the remaining capacity of a node during packing.
type nodeState struct {
	node      model.Node
	remaining []int
	capacity  []int
}

// Hint places vms, largest first, on the online node where they leave the
// least room. The load of the VMs already hosted, other than vms, is taken
// into account.
func (b *BestFitDecreasing) Hint(mo *model.Model, vms []model.VM) map[model.VM]model.Node {
	rcs := mo.Resources()
	moving := make(map[model.VM]bool, len(vms))
	for _, vm := range vms {
		moving[vm] = true
	}

	nodes := make([]nodeState, 0, len(mo.Mapping.OnlineNodes()))
	for _, n := range mo.Mapping.OnlineNodes() {
		ns := nodeState{node: n, remaining: make([]int, len(rcs)), capacity: make([]int, len(rcs))}
		for i, rc := range rcs {
			ns.capacity[i] = rc.Capacity(n)
			ns.remaining[i] = ns.capacity[i]
			for _, vm := range mo.Mapping.RunningOn(n) {
				if !moving[vm] {
					ns.remaining[i] -= rc.Consumption(vm)
				}
			}
		}
		nodes = append(nodes, ns)
	}

	sorted := append([]model.VM(nil), vms...)
	sortByDominance(sorted, rcs, nodes)

	out := make(map[model.VM]model.Node, len(vms))
	demand := make([]int, len(rcs))
	for _, vm := range sorted {
		for i, rc := range rcs {
			demand[i] = rc.Consumption(vm)
		}
		best := -1
		bestScore := math.MaxFloat64
		for j := range nodes {
			if !canFit(&nodes[j], demand) {
				continue
			}
			if score := compositeRemaining(&nodes[j], demand); score < bestScore {
				best, bestScore = j, score
			}
		}
		if best < 0 {
			continue
		}
		place(&nodes[best], demand)
		out[vm] = nodes[best].node
	}
	return out
}

// sortByDominance sorts VMs so the most demanding come first. Dominance is
// the largest fraction of the biggest node a VM consumes.
func sortByDominance(vms []model.VM, rcs []*model.ShareableResource, nodes []nodeState) {
	largest := make([]int, len(rcs))
	for _, n := range nodes {
		for i, c := range n.capacity {
			largest[i] = max(largest[i], c)
		}
	}
	dominance := func(vm model.VM) float64 {
		d := 0.0
		for i, rc := range rcs {
			if largest[i] > 0 {
				d = math.Max(d, float64(rc.Consumption(vm))/float64(largest[i]))
			}
		}
		return d
	}
	sort.SliceStable(vms, func(i, j int) bool { return dominance(vms[i]) > dominance(vms[j]) })
}

func canFit(n *nodeState, demand []int) bool {
	for i, d := range demand {
		if d > n.remaining[i] {
			return false
		}
	}
	return true
}

// compositeRemaining is the sum of the fractions of each resource left on n
// once demand is placed. Lower is a tighter fit.
func compositeRemaining(n *nodeState, demand []int) float64 {
	s := 0.0
	for i, d := range demand {
		if n.capacity[i] > 0 {
			s += float64(n.remaining[i]-d) / float64(n.capacity[i])
		}
	}
	return s
}

func place(n *nodeState, demand []int) {
	for i, d := range demand {
		n.remaining[i] -= d
	}
}
