package report

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/guimove/replanner/internal/plan"
)

// TableReporter outputs the plan as a formatted terminal table.
type TableReporter struct {
	w io.Writer
}

func (r *TableReporter) Report(ctx context.Context, p *plan.ReconfigurationPlan, stats *plan.Statistics, meta ReportMeta) error {
	fmt.Fprintf(r.w, "\n")
	fmt.Fprintf(r.w, "Reconfiguration Plan\n")
	fmt.Fprintf(r.w, "%s\n", strings.Repeat("=", 60))
	fmt.Fprintf(r.w, "Source:      %s\n", meta.Source)
	if meta.RunID != "" {
		fmt.Fprintf(r.w, "Run:         %s\n", meta.RunID)
	}
	fmt.Fprintf(r.w, "Elements:    %d nodes, %d VMs\n", meta.Nodes, meta.VMs)
	fmt.Fprintf(r.w, "Constraints: %d\n", meta.Constraints)
	if meta.Objective != "" {
		fmt.Fprintf(r.w, "Objective:   %s\n", meta.Objective)
	}
	if meta.Partitions > 1 {
		fmt.Fprintf(r.w, "Partitions:  %d\n", meta.Partitions)
	}
	fmt.Fprintf(r.w, "%s\n\n", strings.Repeat("=", 60))

	if p == nil {
		fmt.Fprintf(r.w, "%s\n", outcome(stats))
	} else if p.Size() == 0 {
		fmt.Fprintf(r.w, "No action needed.\n")
	} else {
		fmt.Fprintf(r.w, "%6s %6s %-13s %-24s %-28s %s\n", "Start", "End", "Action", "VM", "Node", "Details")
		fmt.Fprintf(r.w, "%s\n", strings.Repeat("-", 100))
		for _, a := range p.Actions() {
			vm := string(a.VM)
			if vm == "" {
				vm = "-"
			}
			if len(vm) > 24 {
				vm = vm[:21] + "..."
			}
			fmt.Fprintf(r.w, "%6d %6d %-13s %-24s %-28s %s\n",
				a.Start, a.End, a.Kind, vm, placement(a), details(a))
		}
		fmt.Fprintf(r.w, "%s\n", strings.Repeat("-", 100))
		fmt.Fprintf(r.w, "\nDuration: %d (%d actions)\n", p.Duration(), p.Size())
	}

	if len(meta.Violations) > 0 {
		fmt.Fprintf(r.w, "\nViolated constraints:\n")
		for _, v := range meta.Violations {
			fmt.Fprintf(r.w, "  - %s\n", v)
		}
	}

	if f := meta.Fragmentation; f != nil {
		fmt.Fprintf(r.w, "\nResulting load:\n")
		fmt.Fprintf(r.w, "  Balance score:  %.2f\n", f.ResourceBalanceScore)
		fmt.Fprintf(r.w, "  Underutilized:  %.0f%%\n", f.UnderutilizedNodeFraction*100)
		fmt.Fprintf(r.w, "  Idle nodes:     %d\n", f.IdleNodes)
		for _, rc := range slices.Sorted(maps.Keys(f.Stranded)) {
			fmt.Fprintf(r.w, "  Stranded %s: %d\n", rc, f.Stranded[rc])
		}
	}

	if stats != nil {
		fmt.Fprintf(r.w, "\nSearch:\n")
		fmt.Fprintf(r.w, "  Managed VMs:  %d\n", stats.ManagedVMs)
		fmt.Fprintf(r.w, "  Build:        %s\n", stats.BuildDuration)
		fmt.Fprintf(r.w, "  Search:       %s\n", stats.SearchDuration)
		fmt.Fprintf(r.w, "  Nodes:        %d (%d backtracks)\n", stats.NodesExplored, stats.Backtracks)
		fmt.Fprintf(r.w, "  Solutions:    %d\n", len(stats.Solutions))
		if last, ok := stats.Last(); ok {
			fmt.Fprintf(r.w, "  Objective:    %d\n", last.Objective)
		}
		fmt.Fprintf(r.w, "  Completed:    %t\n", stats.Completed)
	}

	fmt.Fprintf(r.w, "\n")
	return nil
}

func details(a *plan.Action) string {
	var parts []string
	if a.Bandwidth > 0 {
		parts = append(parts, fmt.Sprintf("bw=%d", a.Bandwidth))
	}
	if a.Kind == plan.Allocate {
		parts = append(parts, fmt.Sprintf("%s=%d", a.Resource, a.Amount))
	}
	for _, e := range a.Events {
		parts = append(parts, fmt.Sprintf("%s:%s=%d", e.Hook, e.Resource, e.Amount))
	}
	return strings.Join(parts, " ")
}
