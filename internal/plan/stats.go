package plan

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// SolutionStatistics describes one solution met during the search.
type SolutionStatistics struct {
	Time      time.Duration `json:"time"`
	Nodes     int           `json:"nodes"`
	Objective int           `json:"objective"`
	Optimized bool          `json:"optimized"`
}

// Statistics summarizes one solving process.
type Statistics struct {
	RunID          string        `json:"run_id"`
	Nodes          int           `json:"nodes"`
	VMs            int           `json:"vms"`
	Constraints    int           `json:"constraints"`
	ManagedVMs     int           `json:"managed_vms"`
	TimeLimit      time.Duration `json:"time_limit"`
	Optimize       bool          `json:"optimize"`
	BuildDuration  time.Duration `json:"build_duration"`
	SearchDuration time.Duration `json:"search_duration"`
	NodesExplored  int           `json:"nodes_explored"`
	Backtracks     int           `json:"backtracks"`
	Fails          int           `json:"fails"`
	// Completed tells the search explored the whole tree: the last solution
	// is optimal, or the problem has no solution when there is none.
	Completed bool                 `json:"completed"`
	Solutions []SolutionStatistics `json:"solutions"`
}

// Solved tells whether at least one solution was found.
func (s *Statistics) Solved() bool { return len(s.Solutions) > 0 }

// Last returns the last, thus best, solution.
func (s *Statistics) Last() (SolutionStatistics, bool) {
	if len(s.Solutions) == 0 {
		return SolutionStatistics{}, false
	}
	return s.Solutions[len(s.Solutions)-1], true
}

// Add accumulates o into s. Durations and counters are summed; the result
// is completed only if both are.
func (s *Statistics) Add(o *Statistics) {
	s.Nodes += o.Nodes
	s.VMs += o.VMs
	s.Constraints += o.Constraints
	s.ManagedVMs += o.ManagedVMs
	s.BuildDuration += o.BuildDuration
	s.SearchDuration = max(s.SearchDuration, o.SearchDuration)
	s.NodesExplored += o.NodesExplored
	s.Backtracks += o.Backtracks
	s.Fails += o.Fails
	s.Completed = s.Completed && o.Completed
	s.Solutions = append(s.Solutions, o.Solutions...)
}

var csvHeader = []string{
	"managedVMs", "buildMs", "searchMs", "nodes", "backtracks", "solutions", "completed",
}

// WriteCSV writes a header then one ';' separated line.
func (s *Statistics) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	completed := "0"
	if s.Completed {
		completed = "1"
	}
	rows := [][]string{csvHeader, {
		strconv.Itoa(s.ManagedVMs),
		strconv.FormatInt(s.BuildDuration.Milliseconds(), 10),
		strconv.FormatInt(s.SearchDuration.Milliseconds(), 10),
		strconv.Itoa(s.NodesExplored),
		strconv.Itoa(s.Backtracks),
		strconv.Itoa(len(s.Solutions)),
		completed,
	}}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
