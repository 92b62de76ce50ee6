package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	"github.com/dsolanki/cohortrev/internal/cohort"
)

// DuckDBTable is the local product events table name.
const DuckDBTable = "product_events"

const createEventsTableSQL = `
CREATE TABLE IF NOT EXISTS ` + DuckDBTable + ` (
	event_date     VARCHAR NOT NULL,
	product_id     VARCHAR NOT NULL,
	product_value  DOUBLE  NOT NULL,
	user_pseudo_id VARCHAR NOT NULL
);`

// DuckDBBackend runs revenue queries against a local DuckDB file, for
// development and tests without BigQuery access. database/sql pools
// connections, so concurrent pack workers are fine over one handle.
type DuckDBBackend struct {
	db *sql.DB
}

// NewDuckDBBackend opens (or creates) the database at path, verifies the
// connection, and ensures the events table exists.
func NewDuckDBBackend(ctx context.Context, path string) (*DuckDBBackend, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb database (%s): %w", path, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb database (%s): %w", path, err)
	}

	if _, err := db.ExecContext(ctx, createEventsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize events table: %w", err)
	}

	return &DuckDBBackend{db: db}, nil
}

func (b *DuckDBBackend) QueryRevenue(ctx context.Context, ids []string, dr cohort.DateRange, rate float64) ([]RevenueRow, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	queryString := fmt.Sprintf(`
		SELECT
			event_date,
			product_id,
			product_value,
			ROUND(product_value * ?, 0) AS product_value_inr,
			user_pseudo_id
		FROM %s
		WHERE event_date BETWEEN ? AND ?
		AND user_pseudo_id IN (%s)
		ORDER BY event_date, user_pseudo_id, product_id`, DuckDBTable, placeholders)

	args := make([]any, 0, len(ids)+3)
	args = append(args, rate, dr.StartISO(), dr.EndISO())

	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := b.db.QueryContext(ctx, queryString, args...)
	if err != nil {
		return nil, fmt.Errorf("run revenue query: %w", err)
	}
	defer rows.Close()

	var results []RevenueRow

	for rows.Next() {
		var row RevenueRow

		if err := rows.Scan(&row.EventDate, &row.ProductID, &row.ProductValue, &row.ValueINR, &row.UserPseudoID); err != nil {
			return nil, fmt.Errorf("scan revenue row: %w", err)
		}

		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revenue rows: %w", err)
	}

	return results, nil
}

func (b *DuckDBBackend) Close() error {
	return b.db.Close()
}
