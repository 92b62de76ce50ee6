package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsolanki/cohortrev/internal/backend"
	"github.com/dsolanki/cohortrev/internal/cohort"
)

// fakeBackend records chunk sizes and returns one row per identifier, with an
// optional per-chunk failure.
type fakeBackend struct {
	chunks     [][]string
	failChunks map[int]bool // 0-based call index -> fail
}

func (f *fakeBackend) QueryRevenue(_ context.Context, ids []string, _ cohort.DateRange, rate float64) ([]backend.RevenueRow, error) {
	call := len(f.chunks)
	f.chunks = append(f.chunks, append([]string(nil), ids...))

	if f.failChunks[call] {
		return nil, errors.New("backend unavailable")
	}

	rows := make([]backend.RevenueRow, len(ids))
	for i, id := range ids {
		rows[i] = backend.RevenueRow{
			EventDate:    "2025-07-01",
			ProductID:    fmt.Sprintf("p%d", call),
			ProductValue: 1,
			ValueINR:     rate,
			UserPseudoID: id,
		}
	}

	return rows, nil
}

func (f *fakeBackend) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRange() cohort.DateRange {
	start := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	return cohort.DateRange{Start: start, End: start.AddDate(0, 0, 2)}
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("u%03d", i)
	}

	return out
}

func TestRunRespectsChunkSize(t *testing.T) {
	fb := &fakeBackend{}
	b := &Batcher{Backend: fb, ChunkSize: 10, Logger: discardLogger()}

	rows := b.Run(context.Background(), ids(25), testRange(), 86.0)

	require.Len(t, fb.chunks, 3)
	assert.Len(t, fb.chunks[0], 10)
	assert.Len(t, fb.chunks[1], 10)
	assert.Len(t, fb.chunks[2], 5)

	for _, chunk := range fb.chunks {
		assert.LessOrEqual(t, len(chunk), 10)
	}

	assert.Len(t, rows, 25)
}

func TestRunPreservesChunkOrder(t *testing.T) {
	fb := &fakeBackend{}
	b := &Batcher{Backend: fb, ChunkSize: 10, Logger: discardLogger()}

	rows := b.Run(context.Background(), ids(25), testRange(), 86.0)

	require.Len(t, rows, 25)
	// The fake stamps the chunk index into ProductID; concatenation must
	// follow submission order.
	assert.Equal(t, "p0", rows[0].ProductID)
	assert.Equal(t, "p1", rows[10].ProductID)
	assert.Equal(t, "p2", rows[20].ProductID)
	assert.Equal(t, "u000", rows[0].UserPseudoID)
	assert.Equal(t, "u024", rows[24].UserPseudoID)
}

func TestRunSkipsFailedChunk(t *testing.T) {
	fb := &fakeBackend{failChunks: map[int]bool{1: true}}
	b := &Batcher{Backend: fb, ChunkSize: 10, Logger: discardLogger()}

	rows := b.Run(context.Background(), ids(25), testRange(), 86.0)

	require.Len(t, fb.chunks, 3) // all chunks still attempted
	assert.Len(t, rows, 15)      // middle chunk's rows missing
	assert.Equal(t, "p0", rows[0].ProductID)
	assert.Equal(t, "p2", rows[10].ProductID)
}

func TestRunEmptyInput(t *testing.T) {
	fb := &fakeBackend{}
	b := &Batcher{Backend: fb, ChunkSize: 10, Logger: discardLogger()}

	rows := b.Run(context.Background(), nil, testRange(), 86.0)

	assert.Empty(t, rows)
	assert.Empty(t, fb.chunks, "no backend calls for empty input")
}

func TestRunAllChunksFail(t *testing.T) {
	fb := &fakeBackend{failChunks: map[int]bool{0: true, 1: true, 2: true}}
	b := &Batcher{Backend: fb, ChunkSize: 10, Logger: discardLogger()}

	rows := b.Run(context.Background(), ids(25), testRange(), 86.0)

	assert.Empty(t, rows)
}
