package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dsolanki/cohortrev/internal/cohort"
	"github.com/dsolanki/cohortrev/internal/rates"
)

// resolveCmd is a dry run for a single cohort label. No backend required.
var resolveCmd = &cobra.Command{
	Use:   "resolve <label>",
	Short: "Show the date window and exchange rate for a cohort label.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dr, err := cohort.Resolve(args[0], appConfig.WindowSize, time.Now())
		if err != nil {
			return fmt.Errorf("failed to resolve cohort %q: %w", args[0], err)
		}

		resolver := rates.NewResolver(appConfig.RateBaseURL, appConfig.FallbackRate, appConfig.UseLiveRates, rates.NewCache(), rootLogger)
		rate := resolver.Rate(cmd.Context(), dr)

		fmt.Printf("cohort:     %s\n", args[0])
		fmt.Printf("start date: %s\n", dr.StartISO())
		fmt.Printf("end date:   %s\n", dr.EndISO())
		fmt.Printf("usd to inr: %.4f\n", rate)

		return nil
	},
}
