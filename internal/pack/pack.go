// Package pack drives identifier extraction and batched querying for one
// named user category within a cohort window.
package pack

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dsolanki/cohortrev/internal/backend"
	"github.com/dsolanki/cohortrev/internal/cohort"
	"github.com/dsolanki/cohortrev/internal/config"
	"github.com/dsolanki/cohortrev/internal/extract"
	"github.com/dsolanki/cohortrev/internal/query"
)

// Name derives the pack name from its catalog file name, e.g.
// "premium_packs_with_ad_ids.csv" -> "premium" and
// "stage1_top_25k_with_ad_ids.csv" -> "stage1_top_25k".
func Name(fileName string) string {
	if trimmed := strings.TrimSuffix(fileName, "_packs_with_ad_ids.csv"); trimmed != fileName {
		return trimmed
	}

	if trimmed := strings.TrimSuffix(fileName, "_with_ad_ids.csv"); trimmed != fileName {
		return trimmed
	}

	return strings.TrimSuffix(fileName, ".csv")
}

// DisplayField builds the summary column name for a pack. Only the first
// byte is upper-cased; multi-word names keep their separators verbatim, which
// downstream consumers of the summary file rely on.
func DisplayField(name string) string {
	if name == "" {
		return " Revenue"
	}

	return strings.ToUpper(name[:1]) + name[1:] + " Revenue"
}

// SourcePaths returns the per-cohort source file paths for one catalog entry
// across all folders of a window.
func SourcePaths(mainFolder string, cohortGroup []string, fileName string) []string {
	paths := make([]string, len(cohortGroup))
	for i, folder := range cohortGroup {
		paths[i] = filepath.Join(mainFolder, folder, fileName)
	}

	return paths
}

// Processor computes one pack's revenue for a cohort window and persists its
// detail rows.
type Processor struct {
	Extractor    *extract.Extractor
	Batcher      *query.Batcher
	BatchSize    int
	DetailFormat string
	Logger       *slog.Logger
}

// Process extracts the pack's identifiers, queries revenue in outer batches,
// sums the converted-value column, and writes the detail file under
// outputDir. An empty identifier set yields zero revenue with no query and no
// file. The returned error covers only detail persistence; query failures are
// absorbed chunk by chunk inside the batcher.
func (p *Processor) Process(ctx context.Context, name string, csvPaths []string, dr cohort.DateRange, rate float64, outputDir string) (float64, error) {
	l := p.Logger.With(slog.String("pack", name))
	l.Info("Processing pack.")

	res := p.Extractor.UniqueIDs(csvPaths)
	if len(res.IDs) == 0 {
		l.Warn("No user IDs for pack.")
		return 0, nil
	}

	var allRows []backend.RevenueRow

	for i := 0; i < len(res.IDs); i += p.BatchSize {
		end := i + p.BatchSize
		if end > len(res.IDs) {
			end = len(res.IDs)
		}

		rows := p.Batcher.Run(ctx, res.IDs[i:end], dr, rate)
		allRows = append(allRows, rows...)
	}

	if len(allRows) == 0 {
		l.Info("Pack revenue computed.", slog.Float64("revenue", 0))
		return 0, nil
	}

	var revenue float64
	for _, row := range allRows {
		revenue += row.ValueINR
	}

	var err error
	if p.DetailFormat == config.DetailFormatParquet {
		err = writeDetailParquet(filepath.Join(outputDir, name+".parquet"), allRows)
	} else {
		err = writeDetailCSV(filepath.Join(outputDir, name+".csv"), allRows)
	}

	if err != nil {
		return 0, err
	}

	l.Info("Pack revenue computed.", slog.Float64("revenue", revenue), slog.Int("rows", len(allRows)))

	return revenue, nil
}
