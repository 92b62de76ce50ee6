package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dsolanki/cohortrev/internal/cohort"
	"github.com/dsolanki/cohortrev/internal/config"
	"github.com/dsolanki/cohortrev/internal/pack"
	"github.com/dsolanki/cohortrev/internal/rates"
)

// Aggregator processes one cohort window: resolves its date range and rate,
// fans pack processing out to a bounded worker pool, and merges pack
// revenues into a single result.
type Aggregator struct {
	cfg       config.Config
	rates     *rates.Resolver
	processor *pack.Processor
	logger    *slog.Logger
	now       func() time.Time
}

type packOutcome struct {
	field   string
	revenue float64
}

// ProcessWindow aggregates revenue for one cohort group. Date resolution
// failure drops the whole window (the only window-fatal condition); a pack
// worker failing records zero for that pack and the window still completes.
func (a *Aggregator) ProcessWindow(ctx context.Context, cohortGroup []string) (*cohort.Result, error) {
	label := cohortGroup[0]
	l := a.logger.With(slog.String("cohort", label))
	l.Info("Processing cohort group.", slog.Int("folders", len(cohortGroup)))

	dr, err := cohort.Resolve(label, a.cfg.WindowSize, a.now())
	if err != nil {
		return nil, fmt.Errorf("resolve dates for %s: %w", label, err)
	}

	l.Info("Resolved date range.", slog.String("range", dr.String()))

	rate := a.rates.Rate(ctx, dr)

	outputDir := filepath.Join(a.cfg.OutputFolder, label)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", outputDir, err)
	}

	catalog := a.cfg.PackCatalog

	jobs := make(chan string, len(catalog))
	outcomes := make(chan packOutcome, len(catalog))

	workers := a.cfg.PackWorkers
	if workers < 1 {
		workers = 1
	}

	if workers > len(catalog) {
		workers = len(catalog)
	}

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for fileName := range jobs {
				name := pack.Name(fileName)
				paths := pack.SourcePaths(a.cfg.MainFolder, cohortGroup, fileName)

				revenue, err := a.processPackSafe(ctx, name, paths, dr, rate, outputDir)
				if err != nil {
					l.Error("Pack processing failed, recording zero revenue.",
						slog.String("pack", name), slog.Any("error", err))

					revenue = 0
				}

				outcomes <- packOutcome{field: pack.DisplayField(name), revenue: revenue}
			}
		}()
	}

	for _, fileName := range catalog {
		jobs <- fileName
	}

	close(jobs)
	wg.Wait()
	close(outcomes)

	result := &cohort.Result{
		Cohort:      label,
		PackRevenue: make(map[string]float64, len(catalog)),
	}

	for outcome := range outcomes {
		result.PackRevenue[outcome.field] = outcome.revenue
		result.TotalRevenue += outcome.revenue
	}

	for _, fileName := range catalog {
		result.PackFields = append(result.PackFields, pack.DisplayField(pack.Name(fileName)))
	}

	l.Info("Completed cohort group.", slog.Float64("total_revenue", result.TotalRevenue))

	return result, nil
}

// processPackSafe converts a panicking pack worker into an error so one pack
// can never take down its siblings.
func (a *Aggregator) processPackSafe(ctx context.Context, name string, paths []string, dr cohort.DateRange, rate float64, outputDir string) (revenue float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			revenue = 0
			err = fmt.Errorf("pack %s panicked: %v", name, r)
		}
	}()

	return a.processor.Process(ctx, name, paths, dr, rate, outputDir)
}
