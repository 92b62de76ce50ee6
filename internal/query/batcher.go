// Package query splits large identifier sets into backend-sized chunks and
// stitches the partial result sets back together.
package query

import (
	"context"
	"log/slog"

	"github.com/dsolanki/cohortrev/internal/backend"
	"github.com/dsolanki/cohortrev/internal/cohort"
)

// Batcher issues one backend query per identifier chunk, respecting the
// backend's query-size limit. Chunks run sequentially; concurrency happens
// one level up, across packs.
type Batcher struct {
	Backend   backend.Backend
	ChunkSize int
	Logger    *slog.Logger
}

// Run queries revenue for all ids across the date range. A failing chunk is
// logged and skipped without aborting its siblings; results concatenate in
// chunk order. An empty input (or all chunks failing) yields no rows and no
// error.
func (b *Batcher) Run(ctx context.Context, ids []string, dr cohort.DateRange, rate float64) []backend.RevenueRow {
	if len(ids) == 0 {
		b.Logger.Warn("Empty user ID list, skipping query.")
		return nil
	}

	var results []backend.RevenueRow

	for i := 0; i < len(ids); i += b.ChunkSize {
		end := i + b.ChunkSize
		if end > len(ids) {
			end = len(ids)
		}

		chunk := ids[i:end]
		chunkNum := i/b.ChunkSize + 1

		b.Logger.Info("Running query chunk.", slog.Int("chunk", chunkNum), slog.Int("users", len(chunk)))

		rows, err := b.Backend.QueryRevenue(ctx, chunk, dr, rate)
		if err != nil {
			b.Logger.Error("Query chunk failed, skipping.", slog.Int("chunk", chunkNum), slog.Any("error", err))
			continue
		}

		results = append(results, rows...)
	}

	b.Logger.Info("Query completed.", slog.Int("records", len(results)))

	return results
}
