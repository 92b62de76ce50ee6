package config

// DefaultPackCatalog lists the source CSV expected inside every cohort folder,
// one entry per pack.
var DefaultPackCatalog = []string{
	"premium_packs_with_ad_ids.csv",
	"career_packs_with_ad_ids.csv",
	"event_packs_with_ad_ids.csv",
	"micro_packs_with_ad_ids.csv",
	"npl_packs_with_ad_ids.csv",
	"stage1_top_25k_with_ad_ids.csv",
}

const (
	// DefaultWindowSize is the number of consecutive cohort folders grouped
	// into one processing window.
	DefaultWindowSize = 3

	// DefaultBatchSize is the outer identifier grouping handed to the query
	// batcher in one call.
	DefaultBatchSize = 50000

	// DefaultChunkSize is the per-query identifier limit.
	DefaultChunkSize = 1000

	// DefaultFallbackRate is the static USD to INR rate used when live rates
	// are disabled or unavailable.
	DefaultFallbackRate = 86.191

	// DefaultPackWorkers bounds concurrent pack processing within one window.
	DefaultPackWorkers = 6

	// DefaultRateBaseURL is the time-series endpoint of the currency rate
	// service.
	DefaultRateBaseURL = "https://api.frankfurter.app"
)

// Backend kinds accepted by the --backend flag.
const (
	BackendBigQuery = "bigquery"
	BackendDuckDB   = "duckdb"
)

// Detail file formats accepted by the --detail-format flag.
const (
	DetailFormatCSV     = "csv"
	DetailFormatParquet = "parquet"
)

// Config holds application settings.
type Config struct {
	MainFolder   string
	OutputFolder string

	WindowSize   int
	BatchSize    int
	ChunkSize    int
	PackWorkers  int
	PackCatalog  []string
	DetailFormat string

	UseLiveRates bool
	FallbackRate float64
	RateBaseURL  string

	// Query backend selection and connection settings.
	Backend         string
	CredentialsFile string // BigQuery service account JSON path
	ProjectID       string
	EventsTable     string // fully qualified table holding product events
	DuckDBPath      string
}
