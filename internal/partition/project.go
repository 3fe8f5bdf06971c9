package partition

import (
	"fmt"

	"github.com/guimove/replanner/internal/constraint"
	"github.com/guimove/replanner/internal/model"
)

func reject(c constraint.SatConstraint, why string) error {
	return fmt.Errorf("%w: %s %s", ErrSplitRejected, c.Name(), why)
}

// keepMode copies the restriction mode of src onto dst.
func keepMode(dst, src constraint.SatConstraint) (constraint.SatConstraint, error) {
	if dst.IsContinuous() == src.IsContinuous() {
		return dst, nil
	}
	return dst, dst.SetContinuous(src.IsContinuous())
}

// single returns the only part of m, -1 when m is empty, or false when the
// elements spread over several parts.
func single[V any](m map[int]V) (int, bool) {
	found := -1
	for i := range m {
		if found >= 0 {
			return 0, false
		}
		found = i
	}
	return found, true
}

// project returns, per part, the constraints that c becomes there.
func project(c constraint.SatConstraint, pos *positions) (map[int][]constraint.SatConstraint, error) {
	out := make(map[int][]constraint.SatConstraint)
	add := func(i int, sub constraint.SatConstraint) error {
		sub, err := keepMode(sub, c)
		if err != nil {
			return err
		}
		out[i] = append(out[i], sub)
		return nil
	}
	vms := pos.vms(c.InvolvedVMs())
	nodes := pos.nodes(c.InvolvedNodes())

	switch x := c.(type) {
	case *constraint.Running:
		for i, vs := range vms {
			out[i] = append(out[i], constraint.NewRunning(vs...))
		}
	case *constraint.Ready:
		for i, vs := range vms {
			out[i] = append(out[i], constraint.NewReady(vs...))
		}
	case *constraint.Sleeping:
		for i, vs := range vms {
			out[i] = append(out[i], constraint.NewSleeping(vs...))
		}
	case *constraint.Killed:
		for i, vs := range vms {
			out[i] = append(out[i], constraint.NewKilled(vs...))
		}
	case *constraint.Online:
		for i, ns := range nodes {
			out[i] = append(out[i], constraint.NewOnline(ns...))
		}
	case *constraint.Offline:
		for i, ns := range nodes {
			out[i] = append(out[i], constraint.NewOffline(ns...))
		}
	case *constraint.Fence:
		// a part without any allowed node cannot host its VMs
		for i, vs := range vms {
			if err := add(i, constraint.NewFence(vs, nodes[i])); err != nil {
				return nil, err
			}
		}
	case *constraint.Ban:
		for i, vs := range vms {
			if len(nodes[i]) == 0 {
				continue
			}
			if err := add(i, constraint.NewBan(vs, nodes[i])); err != nil {
				return nil, err
			}
		}
	case *constraint.Root:
		for i, vs := range vms {
			out[i] = append(out[i], constraint.NewRoot(vs...))
		}
	case *constraint.Gather:
		i, ok := single(vms)
		if !ok {
			return nil, reject(c, "spans several parts")
		}
		if i >= 0 {
			if err := add(i, constraint.NewGather(vms[i]...)); err != nil {
				return nil, err
			}
		}
	case *constraint.Spread:
		for i, vs := range vms {
			if len(vs) < 2 {
				continue
			}
			if err := add(i, constraint.NewSpread(vs...)); err != nil {
				return nil, err
			}
		}
	case *constraint.Among:
		i, ok := single(vms)
		if !ok {
			return nil, reject(c, "VMs span several parts")
		}
		if i < 0 {
			break
		}
		groups := groupsIn(x.Groups(), pos, i)
		if len(groups) == 0 {
			return nil, reject(c, fmt.Sprintf("has no group in part %d", i))
		}
		if err := add(i, constraint.NewAmong(vms[i], groups)); err != nil {
			return nil, err
		}
	case *constraint.Split:
		per := make(map[int][][]model.VM)
		for _, g := range x.Groups() {
			for i, vs := range pos.vms(g) {
				per[i] = append(per[i], vs)
			}
		}
		for i, groups := range per {
			if len(groups) < 2 {
				continue
			}
			if err := add(i, constraint.NewSplit(groups)); err != nil {
				return nil, err
			}
		}
	case *constraint.SplitAmong:
		vPer := make(map[int][][]model.VM)
		for _, g := range x.VMGroups() {
			parts := pos.vms(g)
			i, ok := single(parts)
			if !ok {
				return nil, reject(c, "has a VM group over several parts")
			}
			if i >= 0 {
				vPer[i] = append(vPer[i], parts[i])
			}
		}
		pPer := make(map[int][][]model.Node)
		for _, g := range x.NodeGroups() {
			parts := pos.nodes(g)
			i, ok := single(parts)
			if !ok {
				return nil, reject(c, "has a node group over several parts")
			}
			if i >= 0 {
				pPer[i] = append(pPer[i], parts[i])
			}
		}
		for i, vg := range vPer {
			if len(pPer[i]) == 0 {
				return nil, reject(c, fmt.Sprintf("has no node group in part %d", i))
			}
			if err := add(i, constraint.NewSplitAmong(vg, pPer[i])); err != nil {
				return nil, err
			}
		}
	case *constraint.Preserve:
		for i, vs := range vms {
			out[i] = append(out[i], constraint.NewPreserve(vs, x.Resource(), x.Amount()))
		}
	case *constraint.Overbook:
		for i, ns := range nodes {
			if err := add(i, constraint.NewOverbook(ns, x.Resource(), x.Ratio())); err != nil {
				return nil, err
			}
		}
	case *constraint.ResourceCapacity:
		i, ok := single(nodes)
		if !ok {
			return nil, reject(c, "bounds nodes of several parts")
		}
		if i >= 0 {
			if err := add(i, constraint.NewResourceCapacity(nodes[i], x.Resource(), x.Amount())); err != nil {
				return nil, err
			}
		}
	default:
		return nil, reject(c, "has no projection")
	}
	return out, nil
}

// groupsIn restricts node groups to part i, dropping the empty ones.
func groupsIn(groups [][]model.Node, pos *positions, i int) [][]model.Node {
	var out [][]model.Node
	for _, g := range groups {
		if ns := pos.nodes(g)[i]; len(ns) > 0 {
			out = append(out, ns)
		}
	}
	return out
}
