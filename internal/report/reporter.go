package report

import (
	"context"
	"io"

	"github.com/guimove/replanner/internal/packing"
	"github.com/guimove/replanner/internal/plan"
)

// Reporter formats and writes a plan to an output destination.
type Reporter interface {
	// Report writes p, which is nil when no plan was found.
	Report(ctx context.Context, p *plan.ReconfigurationPlan, stats *plan.Statistics, meta ReportMeta) error
}

// ReportMeta contains contextual metadata for the report.
type ReportMeta struct {
	RunID       string   `json:"run_id,omitempty"`
	Source      string   `json:"source"`
	Nodes       int      `json:"nodes"`
	VMs         int      `json:"vms"`
	Constraints int      `json:"constraints"`
	Objective   string   `json:"objective,omitempty"`
	Partitions  int      `json:"partitions,omitempty"`
	Violations  []string `json:"violations,omitempty"`

	// Fragmentation of the resulting model, nil when unknown.
	Fragmentation *packing.FragmentationReport `json:"fragmentation,omitempty"`
}

// NewReporter creates a reporter for the given format writing to w.
func NewReporter(format string, w io.Writer) Reporter {
	switch format {
	case "json":
		return &JSONReporter{w: w}
	case "markdown":
		return &MarkdownReporter{w: w}
	default:
		return &TableReporter{w: w}
	}
}

// outcome describes a missing plan.
func outcome(stats *plan.Statistics) string {
	if stats != nil && stats.Completed {
		return "No solution: the constraints cannot be satisfied."
	}
	return "No solution found within the search limits."
}

// placement renders where an action takes place.
func placement(a *plan.Action) string {
	switch {
	case a.Dst != "" && a.Node != "":
		return string(a.Node) + " -> " + string(a.Dst)
	case a.Node != "":
		return string(a.Node)
	}
	return "-"
}
