package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dsolanki/cohortrev/internal/pipeline"
)

// runCmd processes every cohort folder under the main folder.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process all cohort folders and write the revenue summary.",
	Long: `Scans the main folder for cohort subfolders, groups them into windows
of --window-size consecutive cohorts, queries pack revenue for each window,
and writes per-window detail files plus revenue_summary.xlsx to the output
folder. A trailing group smaller than the window size is skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		factory, err := backendFactory(appConfig)
		if err != nil {
			return err
		}

		orch := pipeline.NewOrchestrator(appConfig, factory, rootLogger)
		orch.ShowProgress = true

		results, err := orch.RunFull(ctx)
		if err != nil {
			return err
		}

		for _, res := range results {
			rootLogger.Info("Cohort window complete.",
				slog.String("cohort", res.Cohort),
				slog.Float64("total_revenue", res.TotalRevenue))
		}

		rootLogger.Info("Run complete.", slog.Int("windows", len(results)))

		return nil
	},
}
