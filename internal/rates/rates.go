package rates

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dsolanki/cohortrev/internal/cohort"
)

// requestTimeout bounds a single rate service call.
const requestTimeout = 10 * time.Second

// Cache memoizes resolved rates keyed by the exact (start, end) date pair.
// Safe for concurrent use by pack workers.
type Cache struct {
	mu    sync.Mutex
	rates map[string]float64
}

// NewCache creates an empty rate cache.
func NewCache() *Cache {
	return &Cache{rates: make(map[string]float64)}
}

// getOrCompute runs compute outside the lock so one slow fetch does not
// stall lookups for other date ranges; concurrent first calls for the same
// key may both compute, last write wins.
func (c *Cache) getOrCompute(key string, compute func() float64) float64 {
	c.mu.Lock()
	if rate, ok := c.rates[key]; ok {
		c.mu.Unlock()
		return rate
	}
	c.mu.Unlock()

	rate := compute()

	c.mu.Lock()
	c.rates[key] = rate
	c.mu.Unlock()

	return rate
}

// timeseriesResponse matches the rate service payload:
// {"rates": {"2025-07-01": {"INR": 86.1}, ...}}
type timeseriesResponse struct {
	Rates map[string]map[string]float64 `json:"rates"`
}

// Resolver obtains a USD to INR conversion factor for a date range, averaging
// the service's daily rates, with a static fallback on any failure.
type Resolver struct {
	client       *resty.Client
	cache        *Cache
	logger       *slog.Logger
	fallbackRate float64
	useLiveRates bool
}

// NewResolver creates a rate resolver. baseURL is the time-series endpoint
// root; fallbackRate is returned whenever live rates are disabled or
// unavailable.
func NewResolver(baseURL string, fallbackRate float64, useLiveRates bool, cache *Cache, logger *slog.Logger) *Resolver {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("Accept", "application/json")

	return &Resolver{
		client:       client,
		cache:        cache,
		logger:       logger,
		fallbackRate: fallbackRate,
		useLiveRates: useLiveRates,
	}
}

// Rate returns the conversion factor for the date range. It never fails:
// any service error degrades to the configured fallback rate with a warning.
// Results are memoized per (start, end) pair.
func (r *Resolver) Rate(ctx context.Context, dr cohort.DateRange) float64 {
	if !r.useLiveRates {
		r.logger.Info("Using fallback exchange rate.", slog.Float64("rate", r.fallbackRate))
		return r.fallbackRate
	}

	return r.cache.getOrCompute(dr.String(), func() float64 {
		return r.fetch(ctx, dr)
	})
}

func (r *Resolver) fetch(ctx context.Context, dr cohort.DateRange) float64 {
	var payload timeseriesResponse

	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"from": "USD", "to": "INR"}).
		SetResult(&payload).
		Get(fmt.Sprintf("/%s..%s", dr.StartISO(), dr.EndISO()))
	if err != nil {
		r.logger.Warn("Exchange rate request failed, using fallback.", slog.Any("error", err), slog.Float64("fallback", r.fallbackRate))
		return r.fallbackRate
	}

	if resp.IsError() {
		r.logger.Warn("Exchange rate service returned an error, using fallback.",
			slog.Int("status", resp.StatusCode()), slog.Float64("fallback", r.fallbackRate))
		return r.fallbackRate
	}

	var sum float64

	count := 0

	for _, daily := range payload.Rates {
		if inr, ok := daily["INR"]; ok {
			sum += inr
			count++
		}
	}

	if count == 0 {
		r.logger.Warn("No INR rates in service response, using fallback.", slog.Float64("fallback", r.fallbackRate))
		return r.fallbackRate
	}

	avg := sum / float64(count)
	r.logger.Info("Resolved average USD to INR rate.", slog.String("range", dr.String()), slog.Float64("rate", avg))

	return avg
}
