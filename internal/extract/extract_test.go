package extract

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestUniqueIDsDeduplicatesAndTrims(t *testing.T) {
	dir := t.TempDir()
	a := writeCSV(t, dir, "a.csv", "user_pseudo_id,other\nu1,x\n u2 ,y\nu1,z\n,blank\n   ,ws\n")
	b := writeCSV(t, dir, "b.csv", "other,user_pseudo_id\nx,u2\ny,u3\n")

	e := NewExtractor(NewCache(), discardLogger())
	res := e.UniqueIDs([]string{a, b})

	assert.Equal(t, []string{"u1", "u2", "u3"}, res.IDs)
	assert.Equal(t, 2, res.FilesProcessed)
}

func TestUniqueIDsSkipsMissingFile(t *testing.T) {
	dir := t.TempDir()
	a := writeCSV(t, dir, "a.csv", "user_pseudo_id\nu1\n")
	missing := filepath.Join(dir, "nope.csv")

	e := NewExtractor(NewCache(), discardLogger())
	res := e.UniqueIDs([]string{a, missing})

	assert.Equal(t, []string{"u1"}, res.IDs)
	assert.Equal(t, 1, res.FilesProcessed)
}

func TestUniqueIDsSkipsFileWithoutRequiredColumn(t *testing.T) {
	dir := t.TempDir()
	a := writeCSV(t, dir, "a.csv", "some_other_column\nu1\n")
	b := writeCSV(t, dir, "b.csv", "user_pseudo_id\nu2\n")

	e := NewExtractor(NewCache(), discardLogger())
	res := e.UniqueIDs([]string{a, b})

	assert.Equal(t, []string{"u2"}, res.IDs)
	assert.Equal(t, 1, res.FilesProcessed)
}

func TestUniqueIDsDiscardsMalformedFileEntirely(t *testing.T) {
	dir := t.TempDir()
	bad := writeCSV(t, dir, "bad.csv", "user_pseudo_id\nleak1\nleak2\n\"unclosed\n")
	good := writeCSV(t, dir, "good.csv", "user_pseudo_id\nok1\n")

	e := NewExtractor(NewCache(), discardLogger())
	res := e.UniqueIDs([]string{bad, good})

	assert.Equal(t, []string{"ok1"}, res.IDs)
	assert.Equal(t, 1, res.FilesProcessed)
}

func TestUniqueIDsAllSourcesMissing(t *testing.T) {
	dir := t.TempDir()

	e := NewExtractor(NewCache(), discardLogger())
	res := e.UniqueIDs([]string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")})

	assert.Empty(t, res.IDs)
	assert.Zero(t, res.FilesProcessed)
}

func TestCacheComputeDoesNotBlockOtherKeys(t *testing.T) {
	c := NewCache()

	release := make(chan struct{})
	slowStarted := make(chan struct{})
	done := make(chan Result)

	go func() {
		done <- c.getOrCompute([]string{"slow.csv"}, func() Result {
			close(slowStarted)
			<-release

			return Result{FilesProcessed: 1}
		})
	}()

	<-slowStarted

	// A different key must compute while the slow one is still in flight.
	fast := c.getOrCompute([]string{"fast.csv"}, func() Result {
		return Result{FilesProcessed: 2}
	})
	assert.Equal(t, 2, fast.FilesProcessed)

	close(release)
	assert.Equal(t, 1, (<-done).FilesProcessed)
}

func TestUniqueIDsMemoized(t *testing.T) {
	dir := t.TempDir()
	a := writeCSV(t, dir, "a.csv", "user_pseudo_id\nu1\nu2\n")
	b := writeCSV(t, dir, "b.csv", "user_pseudo_id\nu3\n")

	e := NewExtractor(NewCache(), discardLogger())
	first := e.UniqueIDs([]string{a, b})
	require.Equal(t, []string{"u1", "u2", "u3"}, first.IDs)

	// Rewriting the source after the first call must not change the result:
	// the path set is identical, so the cache serves it without re-reading.
	require.NoError(t, os.WriteFile(a, []byte("user_pseudo_id\nchanged\n"), 0o644))

	second := e.UniqueIDs([]string{b, a}) // order must not matter for the key
	assert.Equal(t, first, second)
}
