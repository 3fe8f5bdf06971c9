package packing

import (
	"github.com/guimove/replanner/internal/model"
)

// FragmentationReport describes how evenly the resources of the online
// nodes are used.
type FragmentationReport struct {
	// ResourceBalanceScore is 1 when every resource of a node is used in the
	// same proportion, averaged over the loaded nodes.
	ResourceBalanceScore float64 `json:"resource_balance_score"`
	// UnderutilizedNodeFraction is the share of online nodes with a resource
	// below half of its capacity.
	UnderutilizedNodeFraction float64 `json:"underutilized_node_fraction"`
	// Stranded is, per resource, the capacity left on nodes where another
	// resource is nearly exhausted.
	Stranded map[string]int `json:"stranded,omitempty"`
	// IdleNodes counts the online nodes hosting nothing.
	IdleNodes int `json:"idle_nodes"`
}

// AnalyzeFragmentation computes fragmentation metrics over the online nodes
// of mo.
func AnalyzeFragmentation(mo *model.Model) FragmentationReport {
	report := FragmentationReport{ResourceBalanceScore: 1.0, Stranded: make(map[string]int)}
	rcs := mo.Resources()
	online := mo.Mapping.OnlineNodes()
	if len(online) == 0 || len(rcs) == 0 {
		return report
	}

	var underutilized, loaded int
	balance := 0.0
	for _, n := range online {
		hosted := mo.Mapping.RunningOn(n)
		if len(hosted) == 0 {
			report.IdleNodes++
		}
		utils := make([]float64, len(rcs))
		lo, hi := 1.0, 0.0
		counted := false
		for i, rc := range rcs {
			capacity := rc.Capacity(n)
			if capacity <= 0 {
				continue
			}
			utils[i] = float64(rc.SumConsumption(hosted)) / float64(capacity)
			lo, hi = min(lo, utils[i]), max(hi, utils[i])
			counted = true
		}
		if !counted {
			continue
		}
		loaded++
		if lo < 0.50 {
			underutilized++
		}
		// Nearly full on one resource, mostly free on another.
		if hi > 0.85 {
			for i, rc := range rcs {
				if capacity := rc.Capacity(n); capacity > 0 && utils[i] < 0.50 {
					report.Stranded[rc.Name] += capacity - rc.SumConsumption(hosted)
				}
			}
		}
		balance += 1.0 - (hi - lo)
	}
	if loaded == 0 {
		return report
	}
	report.UnderutilizedNodeFraction = float64(underutilized) / float64(loaded)
	report.ResourceBalanceScore = balance / float64(loaded)
	return report
}
