package pack

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/dsolanki/cohortrev/internal/backend"
)

var detailColumns = []string{"event_date", "product_id", "product_value", "product_value_inr", "user_pseudo_id"}

func rowStrings(row backend.RevenueRow) []string {
	return []string{
		row.EventDate,
		row.ProductID,
		strconv.FormatFloat(row.ProductValue, 'f', -1, 64),
		strconv.FormatFloat(row.ValueINR, 'f', -1, 64),
		row.UserPseudoID,
	}
}

func writeDetailCSV(path string, rows []backend.RevenueRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create detail file %s: %w", path, err)
	}

	w := csv.NewWriter(f)

	if err := w.Write(detailColumns); err != nil {
		f.Close()
		return fmt.Errorf("write detail header: %w", err)
	}

	for _, row := range rows {
		if err := w.Write(rowStrings(row)); err != nil {
			f.Close()
			return fmt.Errorf("write detail row: %w", err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush detail file %s: %w", path, err)
	}

	return f.Close()
}

var detailParquetMeta = []string{
	"name=event_date, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
	"name=product_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
	"name=product_value, type=DOUBLE, repetitiontype=OPTIONAL",
	"name=product_value_inr, type=DOUBLE, repetitiontype=OPTIONAL",
	"name=user_pseudo_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
}

func writeDetailParquet(path string, rows []backend.RevenueRow) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet file %s: %w", path, err)
	}

	pw, err := writer.NewCSVWriter(detailParquetMeta, fw, 4)
	if err != nil {
		fw.Close()
		return fmt.Errorf("init parquet writer for %s: %w", path, err)
	}

	for _, row := range rows {
		values := rowStrings(row)

		recPtrs := make([]*string, len(values))
		for i := range values {
			recPtrs[i] = &values[i]
		}

		if err := pw.WriteString(recPtrs); err != nil {
			fw.Close()
			return fmt.Errorf("write parquet row to %s: %w", path, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("stop parquet writer for %s: %w", path, err)
	}

	return fw.Close()
}
