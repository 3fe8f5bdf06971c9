package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/guimove/replanner/internal/plan"
)

// JSONReporter outputs the plan as JSON.
type JSONReporter struct {
	w io.Writer
}

type jsonOutput struct {
	Meta       ReportMeta       `json:"meta"`
	Solved     bool             `json:"solved"`
	Duration   int              `json:"duration,omitempty"`
	Actions    []*plan.Action   `json:"actions"`
	Statistics *plan.Statistics `json:"statistics,omitempty"`
}

func (r *JSONReporter) Report(ctx context.Context, p *plan.ReconfigurationPlan, stats *plan.Statistics, meta ReportMeta) error {
	output := jsonOutput{
		Meta:       meta,
		Solved:     p != nil,
		Actions:    []*plan.Action{},
		Statistics: stats,
	}
	if p != nil {
		output.Duration = p.Duration()
		output.Actions = p.Actions()
	}

	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
