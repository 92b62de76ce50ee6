// Package summary persists the final per-cohort revenue table as a
// spreadsheet.
package summary

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/dsolanki/cohortrev/internal/cohort"
)

// FileName is the summary workbook written under the output folder.
const FileName = "revenue_summary.xlsx"

const sheetName = "Sheet1"

// Columns returns the summary header: the fixed leading columns followed by
// the union of pack revenue fields across all results, in first-observed
// order.
func Columns(results []cohort.Result) []string {
	columns := []string{"Cohort", "Total Revenue"}

	seen := make(map[string]struct{})

	for _, res := range results {
		for _, field := range res.PackFields {
			if _, ok := seen[field]; ok {
				continue
			}

			seen[field] = struct{}{}
			columns = append(columns, field)
		}
	}

	return columns
}

// Write persists results as revenue_summary.xlsx under outputFolder. A cohort
// missing one of the union's fields records 0 for it.
func Write(outputFolder string, results []cohort.Result) error {
	columns := Columns(results)

	f := excelize.NewFile()
	defer f.Close()

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("header cell %d: %w", i+1, err)
		}

		if err := f.SetCellValue(sheetName, cell, col); err != nil {
			return fmt.Errorf("set header %q: %w", col, err)
		}
	}

	for rowIdx, res := range results {
		values := make([]any, len(columns))
		values[0] = res.Cohort
		values[1] = res.TotalRevenue

		for i, field := range columns[2:] {
			values[i+2] = res.PackRevenue[field]
		}

		for colIdx, value := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("cell (%d,%d): %w", colIdx+1, rowIdx+2, err)
			}

			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	path := filepath.Join(outputFolder, FileName)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save summary %s: %w", path, err)
	}

	return nil
}
