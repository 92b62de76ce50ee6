// Package pipeline orchestrates cohort revenue aggregation: sequential
// cohort windows, concurrent pack processing within each window.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/dsolanki/cohortrev/internal/backend"
	"github.com/dsolanki/cohortrev/internal/cohort"
	"github.com/dsolanki/cohortrev/internal/config"
	"github.com/dsolanki/cohortrev/internal/extract"
	"github.com/dsolanki/cohortrev/internal/pack"
	"github.com/dsolanki/cohortrev/internal/query"
	"github.com/dsolanki/cohortrev/internal/rates"
	"github.com/dsolanki/cohortrev/internal/runstate"
	"github.com/dsolanki/cohortrev/internal/summary"
)

// ErrNoCohortFolders aborts a full run when the main folder holds no cohort
// directories.
var ErrNoCohortFolders = errors.New("no cohort folders found")

// ErrNoCohortsSelected aborts a specific-cohorts run with an empty selection.
var ErrNoCohortsSelected = errors.New("no cohorts selected")

// BackendFactory builds the query backend at the start of a run. A factory
// error is fatal: no cohort processing starts without a live backend.
type BackendFactory func(ctx context.Context) (backend.Backend, error)

// Orchestrator drives cohort windows sequentially and owns the run-scoped
// caches and state. The identifier and rate caches live for the lifetime of
// the Orchestrator; run state is reinitialized at the start of each
// invocation.
type Orchestrator struct {
	cfg        config.Config
	factory    BackendFactory
	baseLogger *slog.Logger

	idCache   *extract.Cache
	rateCache *rates.Cache

	state *runstate.State

	// Now is the clock used for cohort year resolution and run timing.
	// Overridable in tests.
	Now func() time.Time

	// ShowProgress renders a terminal progress bar, one tick per window.
	ShowProgress bool
}

// NewOrchestrator creates an orchestrator for the given configuration.
func NewOrchestrator(cfg config.Config, factory BackendFactory, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		factory:    factory,
		baseLogger: logger,
		idCache:    extract.NewCache(),
		rateCache:  rates.NewCache(),
		Now:        time.Now,
	}
}

// State returns the current run's log and progress state.
func (o *Orchestrator) State() *runstate.State {
	return o.state
}

// begin resets run state and returns a logger that tees every record into it.
func (o *Orchestrator) begin() *slog.Logger {
	o.state = runstate.NewState(o.Now())
	return slog.New(runstate.NewTeeHandler(o.state, o.baseLogger.Handler()))
}

// RunFull discovers all cohort folders, groups them into windows of the
// configured size (dropping a trailing incomplete group), and processes every
// window sequentially.
func (o *Orchestrator) RunFull(ctx context.Context) ([]cohort.Result, error) {
	logger := o.begin()

	folders, err := o.cohortFolders(logger)
	if err != nil {
		return nil, err
	}

	groups := cohort.GroupWindows(folders, o.cfg.WindowSize, cohort.DropIncomplete)

	results, err := o.processGroups(ctx, logger, groups)
	if err != nil {
		return nil, err
	}

	logger.Info("Pipeline completed.", slog.Int("cohort_groups", len(results)))

	return results, nil
}

// RunCohorts processes an explicit ordered list of cohort folder names,
// grouped into windows of the configured size with no trailing-group drop.
func (o *Orchestrator) RunCohorts(ctx context.Context, selected []string) ([]cohort.Result, error) {
	logger := o.begin()

	if len(selected) == 0 {
		return nil, ErrNoCohortsSelected
	}

	groups := cohort.GroupWindows(selected, o.cfg.WindowSize, cohort.KeepIncomplete)

	results, err := o.processGroups(ctx, logger, groups)
	if err != nil {
		return nil, err
	}

	logger.Info("Specific cohorts pipeline completed.", slog.Int("cohort_groups", len(results)))

	return results, nil
}

// cohortFolders lists cohort directories under the main folder, sorted by
// their leading day prefix.
func (o *Orchestrator) cohortFolders(logger *slog.Logger) ([]string, error) {
	entries, err := os.ReadDir(o.cfg.MainFolder)
	if err != nil {
		return nil, fmt.Errorf("read main folder %s: %w", o.cfg.MainFolder, err)
	}

	var folders []string

	for _, entry := range entries {
		if entry.IsDir() {
			folders = append(folders, entry.Name())
		}
	}

	if len(folders) == 0 {
		return nil, fmt.Errorf("%s: %w", o.cfg.MainFolder, ErrNoCohortFolders)
	}

	cohort.SortByDayPrefix(folders)

	logger.Info("Found cohort folders.", slog.Int("count", len(folders)))

	return folders, nil
}

// processGroups initializes the backend, then runs all windows sequentially,
// updating run state after each completed window and persisting the summary
// when any result was produced.
func (o *Orchestrator) processGroups(ctx context.Context, logger *slog.Logger, groups [][]string) ([]cohort.Result, error) {
	be, err := o.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize query backend: %w", err)
	}
	defer be.Close()

	logger.Info("Query backend initialized.")

	if err := os.MkdirAll(o.cfg.OutputFolder, 0o755); err != nil {
		return nil, fmt.Errorf("create output folder %s: %w", o.cfg.OutputFolder, err)
	}

	aggregator := &Aggregator{
		cfg:   o.cfg,
		rates: rates.NewResolver(o.cfg.RateBaseURL, o.cfg.FallbackRate, o.cfg.UseLiveRates, o.rateCache, logger),
		processor: &pack.Processor{
			Extractor:    extract.NewExtractor(o.idCache, logger),
			Batcher:      &query.Batcher{Backend: be, ChunkSize: o.cfg.ChunkSize, Logger: logger},
			BatchSize:    o.cfg.BatchSize,
			DetailFormat: o.cfg.DetailFormat,
			Logger:       logger,
		},
		logger: logger,
		now:    o.Now,
	}

	total := len(groups)
	o.state.UpdateProgress(0, total, 0)

	var bar *progressbar.ProgressBar
	if o.ShowProgress {
		bar = progressbar.Default(int64(total))
	}

	var (
		results      []cohort.Result
		totalRevenue float64
		processed    int
	)

	// A window in flight is shielded from cancellation so its chunk queries
	// finish; the stop takes effect at the next window boundary.
	windowCtx := context.WithoutCancel(ctx)

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			logger.Warn("Run cancelled, stopping before next window.", slog.Any("error", err))
			break
		}

		result, err := aggregator.ProcessWindow(windowCtx, group)
		if err != nil {
			logger.Error("Skipping cohort window.", slog.String("cohort", group[0]), slog.Any("error", err))
			continue
		}

		results = append(results, *result)
		totalRevenue += result.TotalRevenue
		processed++
		o.state.UpdateProgress(processed, total, totalRevenue)

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if len(results) > 0 {
		if err := summary.Write(o.cfg.OutputFolder, results); err != nil {
			logger.Error("Failed to save summary.", slog.Any("error", err))
		} else {
			logger.Info("Summary saved.", slog.String("file", summary.FileName))
		}
	}

	return results, nil
}
