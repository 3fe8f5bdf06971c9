package report

import (
	"context"
	"fmt"
	"io"

	"github.com/guimove/replanner/internal/plan"
)

// MarkdownReporter outputs the plan as a markdown document, for pull
// request comments and runbooks.
type MarkdownReporter struct {
	w io.Writer
}

func (r *MarkdownReporter) Report(ctx context.Context, p *plan.ReconfigurationPlan, stats *plan.Statistics, meta ReportMeta) error {
	fmt.Fprintf(r.w, "# Reconfiguration Plan\n\n")
	fmt.Fprintf(r.w, "- **Source:** %s\n", meta.Source)
	if meta.RunID != "" {
		fmt.Fprintf(r.w, "- **Run:** `%s`\n", meta.RunID)
	}
	fmt.Fprintf(r.w, "- **Elements:** %d nodes, %d VMs\n", meta.Nodes, meta.VMs)
	fmt.Fprintf(r.w, "- **Constraints:** %d\n", meta.Constraints)
	if meta.Objective != "" {
		fmt.Fprintf(r.w, "- **Objective:** %s\n", meta.Objective)
	}
	fmt.Fprintf(r.w, "\n")

	switch {
	case p == nil:
		fmt.Fprintf(r.w, "%s\n", outcome(stats))
	case p.Size() == 0:
		fmt.Fprintf(r.w, "No action needed.\n")
	default:
		fmt.Fprintf(r.w, "| Start | End | Action | VM | Node | Details |\n")
		fmt.Fprintf(r.w, "|------:|----:|--------|----|------|---------|\n")
		for _, a := range p.Actions() {
			fmt.Fprintf(r.w, "| %d | %d | %s | %s | %s | %s |\n",
				a.Start, a.End, a.Kind, a.VM, placement(a), details(a))
		}
		fmt.Fprintf(r.w, "\nTotal duration: **%d** over %d actions.\n", p.Duration(), p.Size())
	}

	if len(meta.Violations) > 0 {
		fmt.Fprintf(r.w, "\n## Violated constraints\n\n")
		for _, v := range meta.Violations {
			fmt.Fprintf(r.w, "- `%s`\n", v)
		}
	}

	if stats != nil {
		fmt.Fprintf(r.w, "\n## Search\n\n")
		fmt.Fprintf(r.w, "| Managed VMs | Build | Search | Nodes | Backtracks | Solutions | Completed |\n")
		fmt.Fprintf(r.w, "|---:|---:|---:|---:|---:|---:|:---:|\n")
		fmt.Fprintf(r.w, "| %d | %s | %s | %d | %d | %d | %t |\n",
			stats.ManagedVMs, stats.BuildDuration, stats.SearchDuration,
			stats.NodesExplored, stats.Backtracks, len(stats.Solutions), stats.Completed)
	}
	return nil
}
