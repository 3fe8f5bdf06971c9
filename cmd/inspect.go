package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guimove/replanner/internal/metrics"
	"github.com/guimove/replanner/internal/packing"
	"github.com/guimove/replanner/internal/scenario"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Collect and display the source model as a scenario",
	Long: `Reads the source model, fills VM attributes when a metrics source is
configured, and prints it as a scenario document. Useful for capturing a
cluster once and planning offline with 'replanner solve --scenario'.`,
	RunE: runInspect,
}

func init() {
	addSourceFlags(inspectCmd)
	inspectCmd.Flags().String("output-file", "", "write the scenario to file")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	mo, sc, _, err := loadSource(ctx, cmd, logger)
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
		err := collector.Collect(ctx, mo, metrics.CollectOptions{Window: cfg.Prometheus.Window})
		switch {
		case errors.Is(err, metrics.ErrNoMetricsFound):
			logger.Warn("no attributes collected", zap.Error(err))
		case err != nil:
			return fmt.Errorf("collecting attributes: %w", err)
		}
	}

	frag := packing.AnalyzeFragmentation(mo)
	logger.Info("source model",
		zap.Int("nodes", len(mo.Mapping.Nodes())),
		zap.Int("vms", len(mo.Mapping.VMs())),
		zap.Int("idle_nodes", frag.IdleNodes),
		zap.Float64("balance", frag.ResourceBalanceScore))

	out := scenario.FromModel(mo)
	out.Constraints = sc.Constraints
	out.Objective = sc.Objective
	data, err := out.Encode()
	if err != nil {
		return fmt.Errorf("encoding scenario: %w", err)
	}

	if path, _ := cmd.Flags().GetString("output-file"); path != "" {
		return os.WriteFile(path, data, 0o644)
	}
	_, err = os.Stdout.Write(data)
	return err
}
