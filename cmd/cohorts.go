package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dsolanki/cohortrev/internal/pipeline"
)

// cohortsCmd processes an explicit list of cohort folders.
var cohortsCmd = &cobra.Command{
	Use:   "cohorts <label> [label...]",
	Short: "Process specific cohort folders by name.",
	Long: `Processes only the named cohort folders, in the order given, grouped
into windows of --window-size. Unlike 'run', a trailing group smaller than
the window size is still processed.

Labels use the day_month form, e.g. 1_july or 15_aug.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		factory, err := backendFactory(appConfig)
		if err != nil {
			return err
		}

		orch := pipeline.NewOrchestrator(appConfig, factory, rootLogger)
		orch.ShowProgress = true

		results, err := orch.RunCohorts(ctx, args)
		if err != nil {
			return err
		}

		for _, res := range results {
			rootLogger.Info("Cohort window complete.",
				slog.String("cohort", res.Cohort),
				slog.Float64("total_revenue", res.TotalRevenue))
		}

		return nil
	},
}
