package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/plan"
)

func testPlan(t *testing.T) *plan.ReconfigurationPlan {
	t.Helper()
	mo := model.New()
	mo.Mapping.AddOnlineNode("n1")
	mo.Mapping.AddOnlineNode("n2")
	if err := mo.Mapping.AddRunningVM("vm1", "n1"); err != nil {
		t.Fatal(err)
	}
	p := plan.New(mo)
	p.Add(plan.NewMigrateVM("vm1", "n1", "n2", 0, 4, 1000))
	p.Add(plan.NewShutdownNode("n1", 4, 5))
	return p
}

func TestNewReporter_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"json", "*report.JSONReporter"},
		{"markdown", "*report.MarkdownReporter"},
		{"table", "*report.TableReporter"},
		{"", "*report.TableReporter"},
	}
	for _, tt := range tests {
		if got := fmt.Sprintf("%T", NewReporter(tt.format, &bytes.Buffer{})); got != tt.want {
			t.Errorf("NewReporter(%q) = %s, want %s", tt.format, got, tt.want)
		}
	}
}

func TestTableReporter(t *testing.T) {
	var buf bytes.Buffer
	meta := ReportMeta{Source: "scenario.yaml", Nodes: 2, VMs: 1, Objective: "minMTTR"}
	stats := &plan.Statistics{Completed: true, Solutions: []plan.SolutionStatistics{{Objective: 5}}}
	if err := NewReporter("table", &buf).Report(context.Background(), testPlan(t), stats, meta); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"migrateVM", "n1 -> n2", "bw=1000", "shutdownNode", "Duration: 5 (2 actions)", "Objective:    5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestTableReporter_NoSolution(t *testing.T) {
	tests := []struct {
		name      string
		completed bool
		want      string
	}{
		{"infeasible", true, "cannot be satisfied"},
		{"budget", false, "within the search limits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := NewReporter("table", &buf).Report(context.Background(), nil, &plan.Statistics{Completed: tt.completed}, ReportMeta{})
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output lacks %q:\n%s", tt.want, buf.String())
			}
		})
	}
}

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewReporter("json", &buf).Report(context.Background(), testPlan(t), nil, ReportMeta{Source: "s"}); err != nil {
		t.Fatal(err)
	}
	var out struct {
		Solved   bool `json:"solved"`
		Duration int  `json:"duration"`
		Actions  []struct {
			Kind string `json:"kind"`
		} `json:"actions"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if !out.Solved || out.Duration != 5 || len(out.Actions) != 2 || out.Actions[0].Kind != "migrateVM" {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestMarkdownReporter_Violations(t *testing.T) {
	var buf bytes.Buffer
	meta := ReportMeta{Violations: []string{"spread(vm1, vm2)"}}
	if err := NewReporter("markdown", &buf).Report(context.Background(), testPlan(t), nil, meta); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "| 0 | 4 | migrateVM | vm1 | n1 -> n2 | bw=1000 |") {
		t.Errorf("missing action row:\n%s", out)
	}
	if !strings.Contains(out, "`spread(vm1, vm2)`") {
		t.Errorf("missing violation:\n%s", out)
	}
}
