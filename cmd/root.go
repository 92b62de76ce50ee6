package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dsolanki/cohortrev/internal/backend"
	"github.com/dsolanki/cohortrev/internal/config"
	"github.com/dsolanki/cohortrev/internal/pipeline"
)

var (
	// Config flags - bound in init()
	mainFolder   string
	outputFolder string
	windowSize   int
	batchSize    int
	chunkSize    int
	packWorkers  int
	packCatalog  []string
	detailFormat string
	useLiveRates bool
	fallbackRate float64
	rateBaseURL  string
	backendKind  string
	credsFile    string
	projectID    string
	eventsTable  string
	duckdbPath   string
	logFormat    string
	logLevel     string
	logOutput    string

	// Global instances populated in PersistentPreRunE
	rootLogger *slog.Logger
	appConfig  config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cohortrev",
	Short: "Aggregate per-cohort pack revenue from a product events backend.",
	Long: `cohortrev joins locally provided user identifier lists against a remote
product events table, converts USD revenue to INR, and writes per-cohort
detail files plus a revenue summary spreadsheet.

The primary command is 'run', which processes every cohort folder under the
main input folder. 'cohorts' processes an explicit list of cohort folders,
and 'resolve' checks how a single cohort label resolves without querying.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level

		switch strings.ToLower(logLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		var logWriter io.Writer = os.Stderr

		if logOutput != "" && strings.ToLower(logOutput) != "stderr" {
			if strings.ToLower(logOutput) == "stdout" {
				logWriter = os.Stdout
			} else {
				f, err := os.OpenFile(logOutput, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
				if err != nil {
					return fmt.Errorf("failed to open log file %s: %w", logOutput, err)
				}
				// The OS reclaims the handle on exit; fine for a CLI.
				logWriter = f
			}
		}

		opts := &slog.HandlerOptions{Level: level}

		var handler slog.Handler
		if logFormat == "json" {
			handler = slog.NewJSONHandler(logWriter, opts)
		} else {
			handler = slog.NewTextHandler(logWriter, opts)
		}

		rootLogger = slog.New(handler)
		slog.SetDefault(rootLogger)

		appConfig = config.Config{
			MainFolder:      mainFolder,
			OutputFolder:    outputFolder,
			WindowSize:      windowSize,
			BatchSize:       batchSize,
			ChunkSize:       chunkSize,
			PackWorkers:     packWorkers,
			PackCatalog:     packCatalog,
			DetailFormat:    detailFormat,
			UseLiveRates:    useLiveRates,
			FallbackRate:    fallbackRate,
			RateBaseURL:     rateBaseURL,
			Backend:         backendKind,
			CredentialsFile: credsFile,
			ProjectID:       projectID,
			EventsTable:     eventsTable,
			DuckDBPath:      duckdbPath,
		}

		if appConfig.WindowSize < 1 {
			return fmt.Errorf("--window-size must be at least 1")
		}

		if appConfig.ChunkSize < 1 || appConfig.BatchSize < appConfig.ChunkSize {
			return fmt.Errorf("--batch-size must be >= --chunk-size, both positive")
		}

		switch appConfig.DetailFormat {
		case config.DetailFormatCSV, config.DetailFormatParquet:
		default:
			return fmt.Errorf("--detail-format must be %q or %q", config.DetailFormatCSV, config.DetailFormatParquet)
		}

		rootLogger.Debug("Configuration loaded.", slog.Any("config", appConfig))

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cohortsCmd)
	rootCmd.AddCommand(resolveCmd)

	if err := rootCmd.Execute(); err != nil {
		if rootLogger != nil {
			rootLogger.Error("Command execution failed.", slog.Any("error", err))
		} else {
			fmt.Fprintf(os.Stderr, "Command execution failed: %v\n", err)
		}

		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&mainFolder, "main-folder", "i", "./cohorts", "Folder containing one subfolder per cohort")
	rootCmd.PersistentFlags().StringVarP(&outputFolder, "output-folder", "o", "./output", "Folder for detail files and the summary spreadsheet")
	rootCmd.PersistentFlags().IntVarP(&windowSize, "window-size", "w", config.DefaultWindowSize, "Consecutive cohort folders grouped into one window")
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", config.DefaultBatchSize, "Outer identifier grouping per query batch")
	rootCmd.PersistentFlags().IntVar(&chunkSize, "chunk-size", config.DefaultChunkSize, "Identifier limit per backend query")
	rootCmd.PersistentFlags().IntVar(&packWorkers, "pack-workers", config.DefaultPackWorkers, "Concurrent pack workers per cohort window")
	rootCmd.PersistentFlags().StringSliceVar(&packCatalog, "pack", config.DefaultPackCatalog, "Pack source file name (can specify multiple)")
	rootCmd.PersistentFlags().StringVar(&detailFormat, "detail-format", config.DetailFormatCSV, "Detail file format (csv or parquet)")
	rootCmd.PersistentFlags().BoolVar(&useLiveRates, "use-live-rates", true, "Fetch USD/INR rates from the rate service")
	rootCmd.PersistentFlags().Float64Var(&fallbackRate, "fallback-rate", config.DefaultFallbackRate, "Static USD/INR rate when live rates are off or unavailable")
	rootCmd.PersistentFlags().StringVar(&rateBaseURL, "rate-url", config.DefaultRateBaseURL, "Base URL of the currency rate service")
	rootCmd.PersistentFlags().StringVar(&backendKind, "backend", config.BackendBigQuery, "Query backend (bigquery or duckdb)")
	rootCmd.PersistentFlags().StringVar(&credsFile, "credentials", "", "Service account JSON for the BigQuery backend")
	rootCmd.PersistentFlags().StringVar(&projectID, "project", "", "GCP project for the BigQuery backend")
	rootCmd.PersistentFlags().StringVar(&eventsTable, "events-table", "", "Fully qualified product events table (BigQuery backend)")
	rootCmd.PersistentFlags().StringVar(&duckdbPath, "duckdb-path", "./cohortrev.duckdb", "DuckDB file for the local backend")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format (text or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "stderr", "Log output destination (stderr, stdout, or file path)")

	rootCmd.Version = "0.1.0"
}

// backendFactory resolves the configured query backend. Construction is
// deferred to run time; an initialization failure aborts the whole run.
func backendFactory(cfg config.Config) (pipeline.BackendFactory, error) {
	switch cfg.Backend {
	case config.BackendBigQuery:
		if cfg.ProjectID == "" || cfg.EventsTable == "" {
			return nil, fmt.Errorf("--project and --events-table are required for the bigquery backend")
		}

		return func(ctx context.Context) (backend.Backend, error) {
			return backend.NewBigQueryBackend(ctx, cfg.ProjectID, cfg.CredentialsFile, cfg.EventsTable)
		}, nil
	case config.BackendDuckDB:
		return func(ctx context.Context) (backend.Backend, error) {
			return backend.NewDuckDBBackend(ctx, cfg.DuckDBPath)
		}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
