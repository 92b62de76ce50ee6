package backend

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dsolanki/cohortrev/internal/cohort"
)

// BigQueryBackend runs revenue queries against a BigQuery table. The client
// is safe for concurrent queries from multiple pack workers.
type BigQueryBackend struct {
	client *bigquery.Client
	table  string
}

// NewBigQueryBackend builds a client from a service account JSON file. An
// empty credentialsFile falls back to application default credentials.
func NewBigQueryBackend(ctx context.Context, projectID, credentialsFile, table string) (*BigQueryBackend, error) {
	var opts []option.ClientOption

	if credentialsFile != "" {
		data, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file %s: %w", credentialsFile, err)
		}

		opts = append(opts, option.WithCredentialsJSON(data))
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}

	return &BigQueryBackend{client: client, table: table}, nil
}

func (b *BigQueryBackend) QueryRevenue(ctx context.Context, ids []string, dr cohort.DateRange, rate float64) ([]RevenueRow, error) {
	queryString := fmt.Sprintf(`
		SELECT
			event_date,
			product_id,
			product_value,
			ROUND(product_value * @rate, 0) AS product_value_inr,
			user_pseudo_id
		FROM `+"`%s`"+`
		WHERE event_date BETWEEN @start_date AND @end_date
		AND user_pseudo_id IN UNNEST(@user_ids)
	`, b.table)

	query := b.client.Query(queryString)
	query.Parameters = []bigquery.QueryParameter{
		{Name: "rate", Value: rate},
		{Name: "start_date", Value: dr.StartISO()},
		{Name: "end_date", Value: dr.EndISO()},
		{Name: "user_ids", Value: ids},
	}
	query.JobIDConfig = bigquery.JobIDConfig{
		JobID:          "cohortrev-revenue",
		AddJobIDSuffix: true,
	}

	it, err := query.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("run revenue query: %w", err)
	}

	var rows []RevenueRow

	for {
		var row RevenueRow

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read revenue row: %w", err)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func (b *BigQueryBackend) Close() error {
	return b.client.Close()
}
