package cohort

// Result is the revenue summary for one cohort window.
type Result struct {
	// Cohort is the window label (first member of the cohort group).
	Cohort string
	// TotalRevenue is the sum of all pack revenues; never computed
	// independently of PackRevenue.
	TotalRevenue float64
	// PackRevenue maps display fields (e.g. "Premium Revenue") to the pack's
	// converted revenue.
	PackRevenue map[string]float64
	// PackFields lists PackRevenue keys in catalog order, for deterministic
	// summary columns.
	PackFields []string
}
