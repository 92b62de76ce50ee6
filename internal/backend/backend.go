// Package backend abstracts the tabular-query service holding product events.
// Implementations answer one membership-filtered revenue query per identifier
// chunk; batching across chunks lives in the query package.
package backend

import (
	"context"

	"github.com/dsolanki/cohortrev/internal/cohort"
)

// RevenueRow is one product event row projected by a revenue query. The
// converted value is computed in-query: ROUND(product_value * rate, 0).
type RevenueRow struct {
	EventDate    string  `bigquery:"event_date"`
	ProductID    string  `bigquery:"product_id"`
	ProductValue float64 `bigquery:"product_value"`
	ValueINR     float64 `bigquery:"product_value_inr"`
	UserPseudoID string  `bigquery:"user_pseudo_id"`
}

// Backend executes one synchronous revenue query for a set of identifiers.
// It must tolerate concurrent calls from multiple pack workers over a single
// handle.
type Backend interface {
	// QueryRevenue returns all product events for ids whose event date falls
	// within dr, with the converted value column computed at rate.
	QueryRevenue(ctx context.Context, ids []string, dr cohort.DateRange, rate float64) ([]RevenueRow, error)
	Close() error
}
