package metrics

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/guimove/replanner/internal/plan"
)

const namespace = "replanner"

// Exporter records the outcome of solves in a dedicated registry.
type Exporter struct {
	registry *prometheus.Registry

	actions       *prometheus.GaugeVec
	planDuration  prometheus.Gauge
	managedVMs    prometheus.Gauge
	nodesExplored prometheus.Gauge
	backtracks    prometheus.Gauge
	solutions     prometheus.Gauge
	completed     prometheus.Gauge
	buildSeconds  prometheus.Gauge
	searchSeconds prometheus.Gauge
	solvesTotal   *prometheus.CounterVec
	lastObjective prometheus.Gauge
}

func NewExporter() *Exporter {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "plan_actions", Help: "Actions of the last plan by kind.",
		}, []string{"kind"}),
		planDuration:  gauge("plan_duration", "Duration of the last plan in time units."),
		managedVMs:    gauge("managed_vms", "VMs managed by the last solve."),
		nodesExplored: gauge("search_nodes", "Search nodes explored by the last solve."),
		backtracks:    gauge("search_backtracks", "Backtracks of the last solve."),
		solutions:     gauge("search_solutions", "Solutions found by the last solve."),
		completed:     gauge("search_completed", "1 when the last search explored the whole tree."),
		buildSeconds:  gauge("build_seconds", "Time spent assembling the last problem."),
		searchSeconds: gauge("search_seconds", "Time spent searching during the last solve."),
		lastObjective: gauge("objective", "Objective value of the best solution."),
		solvesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "solves_total", Help: "Solves by outcome.",
		}, []string{"outcome"}),
	}
	e.registry.MustRegister(e.actions, e.planDuration, e.managedVMs, e.nodesExplored, e.backtracks,
		e.solutions, e.completed, e.buildSeconds, e.searchSeconds, e.lastObjective, e.solvesTotal)
	return e
}

// Registry exposes the registry, for an HTTP handler or tests.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Observe records a solve. p is nil when no plan was found.
func (e *Exporter) Observe(p *plan.ReconfigurationPlan, st *plan.Statistics) {
	e.actions.Reset()
	outcome := "solved"
	switch {
	case p != nil:
		for k := plan.BootVM; k <= plan.ShutdownNode; k++ {
			e.actions.WithLabelValues(k.String()).Set(float64(p.Count(k)))
		}
		e.planDuration.Set(float64(p.Duration()))
	case st.Completed:
		outcome = "infeasible"
	default:
		outcome = "unknown"
	}
	e.solvesTotal.WithLabelValues(outcome).Inc()

	e.managedVMs.Set(float64(st.ManagedVMs))
	e.nodesExplored.Set(float64(st.NodesExplored))
	e.backtracks.Set(float64(st.Backtracks))
	e.solutions.Set(float64(len(st.Solutions)))
	e.completed.Set(boolValue(st.Completed))
	e.buildSeconds.Set(st.BuildDuration.Seconds())
	e.searchSeconds.Set(st.SearchDuration.Seconds())
	if last, ok := st.Last(); ok {
		e.lastObjective.Set(float64(last.Objective))
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Write renders the registry in the text exposition format.
func (e *Exporter) Write(w io.Writer) error {
	families, err := e.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encoding %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteTextfile replaces path atomically, for the node exporter textfile
// collector.
func (e *Exporter) WriteTextfile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("creating textfile: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := e.Write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing textfile: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting textfile mode: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
