package summary

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dsolanki/cohortrev/internal/cohort"
)

func TestColumnsUnionAcrossResults(t *testing.T) {
	results := []cohort.Result{
		{
			Cohort:      "1_july",
			PackRevenue: map[string]float64{"Premium Revenue": 10},
			PackFields:  []string{"Premium Revenue"},
		},
		{
			Cohort:      "4_july",
			PackRevenue: map[string]float64{"Premium Revenue": 5, "Career Revenue": 7},
			PackFields:  []string{"Premium Revenue", "Career Revenue"},
		},
	}

	// Union of fields, not just the first record's.
	assert.Equal(t, []string{"Cohort", "Total Revenue", "Premium Revenue", "Career Revenue"}, Columns(results))
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()

	results := []cohort.Result{
		{
			Cohort:       "1_july",
			TotalRevenue: 17,
			PackRevenue:  map[string]float64{"Premium Revenue": 10, "Career Revenue": 7},
			PackFields:   []string{"Premium Revenue", "Career Revenue"},
		},
		{
			Cohort:       "4_july",
			TotalRevenue: 3,
			PackRevenue:  map[string]float64{"Career Revenue": 3},
			PackFields:   []string{"Career Revenue"},
		},
	}

	require.NoError(t, Write(dir, results))

	f, err := excelize.OpenFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Cohort", "Total Revenue", "Premium Revenue", "Career Revenue"}, rows[0])
	assert.Equal(t, []string{"1_july", "17", "10", "7"}, rows[1])
	// Missing field fills as zero.
	assert.Equal(t, []string{"4_july", "3", "0", "3"}, rows[2])
}

func TestWriteUnwritableFolder(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "does", "not", "exist"), []cohort.Result{{Cohort: "1_july"}})
	assert.Error(t, err)
}
