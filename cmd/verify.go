package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guimove/replanner/internal/orchestrator"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a saved plan against the constraints of its scenario",
	Long: `Replays the plan section of a scenario over its source model and checks
each constraint: continuous ones at every step of the plan, discrete ones on
the resulting model. Exits with an error when a constraint is violated.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringP("scenario", "f", "", "scenario file with a plan section (required)")
	_ = verifyCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	mo, sc, source, err := loadSource(ctx, cmd, logger)
	if err != nil {
		return err
	}
	req, err := buildRequest(mo, sc, source, "")
	if err != nil {
		return err
	}
	p, err := sc.ReconfigurationPlan(mo)
	if err != nil {
		return err
	}

	out, err := orchestrator.New(cfg, logger).VerifyPlan(ctx, req, p)
	if err != nil {
		return err
	}
	if len(out.Violations) > 0 {
		return fmt.Errorf("plan violates %d constraint(s)", len(out.Violations))
	}
	return nil
}
