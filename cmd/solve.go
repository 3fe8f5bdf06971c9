package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guimove/replanner/internal/metrics"
	"github.com/guimove/replanner/internal/orchestrator"
	"github.com/guimove/replanner/internal/scenario"
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Compute a reconfiguration plan satisfying the constraints",
	Long: `Reads the source model from a scenario file or the cluster, fills VM
attributes from Prometheus or a static file, then searches for a plan that
satisfies every constraint of the scenario, optimizing its objective.

The plan can be saved as a scenario with --plan-out and checked later with
'replanner verify'.`,
	RunE: runSolve,
}

func init() {
	addSourceFlags(solveCmd)
	f := solveCmd.Flags()
	f.String("objective", "", "optimization objective: minMTTR, minMigrations")
	f.String("plan-out", "", "write the source model, constraints and plan to this scenario file")
	f.String("metrics-textfile", "", "write solve metrics in the Prometheus text format to this file")
	f.Bool("repair", false, "only manage the VMs that are misplaced or change state")

	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if r, _ := cmd.Flags().GetBool("repair"); cmd.Flags().Changed("repair") {
		cfg.Solver.Repair = r
	}
	if p, _ := cmd.Flags().GetString("metrics-textfile"); p != "" {
		cfg.Metrics.Textfile = p
	}

	mo, sc, source, err := loadSource(ctx, cmd, logger)
	if err != nil {
		return err
	}
	objective, _ := cmd.Flags().GetString("objective")
	req, err := buildRequest(mo, sc, source, objective)
	if err != nil {
		return err
	}

	attributes, _ := cmd.Flags().GetString("attributes")
	collector, cleanup, err := resolveCollector(ctx, attributes, logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	if collector != nil {
		if err := collector.Ping(ctx); err != nil {
			return err
		}
	}

	orch := orchestrator.New(cfg, logger)
	orch.Collector = collector
	orch.Exporter = metrics.NewExporter()
	// Attributes are collected into the model, keep the unmodified source for the export.
	export := scenario.FromModel(mo)

	out, err := orch.Solve(ctx, req)
	if err != nil {
		return err
	}
	if out.Plan == nil {
		return fmt.Errorf("no plan found")
	}
	if len(out.Violations) > 0 {
		return fmt.Errorf("plan violates %d constraint(s)", len(out.Violations))
	}

	if path, _ := cmd.Flags().GetString("plan-out"); path != "" {
		export.Constraints = sc.Constraints
		export.Objective = sc.Objective
		data, err := export.WithPlan(out.Plan).Encode()
		if err != nil {
			return fmt.Errorf("encoding plan: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing plan: %w", err)
		}
		logger.Info("plan saved", zap.String("path", path))
	}
	return nil
}
