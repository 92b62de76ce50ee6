package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// idColumn is the required header naming the identifier column in every pack
// source file.
const idColumn = "user_pseudo_id"

// Result is the outcome of one extraction across a set of source files.
type Result struct {
	// IDs holds the deduplicated identifiers, sorted for deterministic
	// downstream chunking.
	IDs []string
	// FilesProcessed counts source files read successfully.
	FilesProcessed int
}

// Cache memoizes extraction results keyed by the sorted tuple of input paths.
// Safe for concurrent use by pack workers.
type Cache struct {
	mu      sync.Mutex
	results map[string]Result
}

// NewCache creates an empty extraction cache.
func NewCache() *Cache {
	return &Cache{results: make(map[string]Result)}
}

func (c *Cache) key(paths []string) string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	return strings.Join(sorted, "\x1f")
}

// getOrCompute returns the cached result for paths, computing and storing it
// on first use. The compute function runs outside the lock so one slow read
// does not stall workers extracting other path sets; concurrent first calls
// for the same key may both compute, last write wins.
func (c *Cache) getOrCompute(paths []string, compute func() Result) Result {
	key := c.key(paths)

	c.mu.Lock()
	if res, ok := c.results[key]; ok {
		c.mu.Unlock()
		return res
	}
	c.mu.Unlock()

	res := compute()

	c.mu.Lock()
	c.results[key] = res
	c.mu.Unlock()

	return res
}

// Extractor reads identifier source files, deduplicating across all of them.
type Extractor struct {
	cache  *Cache
	logger *slog.Logger
}

// NewExtractor creates an extractor backed by the given cache.
func NewExtractor(cache *Cache, logger *slog.Logger) *Extractor {
	return &Extractor{cache: cache, logger: logger}
}

// UniqueIDs returns the deduplicated identifiers found across all source
// files. A missing or unreadable file is logged and skipped, never fatal.
// Results are memoized by the exact set of input paths.
func (e *Extractor) UniqueIDs(paths []string) Result {
	return e.cache.getOrCompute(paths, func() Result {
		return e.readAll(paths)
	})
}

func (e *Extractor) readAll(paths []string) Result {
	seen := make(map[string]struct{})
	processed := 0

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			e.logger.Warn("Source CSV not found, skipping.", slog.String("path", path))
			continue
		}

		fileIDs, count, err := readIDs(path)
		if err != nil {
			e.logger.Error("Failed to read source CSV, skipping.", slog.String("path", path), slog.Any("error", err))
			continue
		}

		for id := range fileIDs {
			seen[id] = struct{}{}
		}

		processed++

		e.logger.Info("Processed source CSV.", slog.String("file", filepath.Base(path)), slog.Int("rows", count))
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	e.logger.Info("Extracted unique user IDs.", slog.Int("ids", len(ids)), slog.Int("files", processed))

	return Result{IDs: ids, FilesProcessed: processed}
}

// readIDs reads one CSV fully, collecting trimmed non-empty identifier
// values. A read error part-way discards the whole file so a malformed file
// contributes nothing. Returns the identifiers and the number of data rows.
func readIDs(path string) (map[string]struct{}, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged rows, only the ID column matters

	header, err := r.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header of %s: %w", path, err)
	}

	idx := -1

	for i, col := range header {
		if strings.TrimSpace(col) == idColumn {
			idx = i
			break
		}
	}

	if idx < 0 {
		return nil, 0, fmt.Errorf("%s: required column %q not found", path, idColumn)
	}

	ids := make(map[string]struct{})
	rows := 0

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, rows, fmt.Errorf("read %s: %w", path, err)
		}

		rows++

		if idx >= len(rec) {
			continue
		}

		id := strings.TrimSpace(rec[idx])
		if id == "" {
			continue
		}

		ids[id] = struct{}{}
	}

	return ids, rows, nil
}
