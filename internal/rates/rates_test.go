package rates

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsolanki/cohortrev/internal/cohort"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRange() cohort.DateRange {
	start := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	return cohort.DateRange{Start: start, End: start.AddDate(0, 0, 2)}
}

func TestRateLiveDisabledReturnsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("rate service should not be called when live rates are disabled")
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, 86.191, false, NewCache(), discardLogger())

	assert.Equal(t, 86.191, r.Rate(context.Background(), testRange()))
}

func TestRateAveragesDailyRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/2025-07-01..2025-07-03", req.URL.Path)
		assert.Equal(t, "USD", req.URL.Query().Get("from"))
		assert.Equal(t, "INR", req.URL.Query().Get("to"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rates":{
			"2025-07-01":{"INR":80},
			"2025-07-02":{"INR":90},
			"2025-07-03":{"INR":100}
		}}`))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, 86.191, true, NewCache(), discardLogger())

	assert.InDelta(t, 90.0, r.Rate(context.Background(), testRange()), 1e-9)
}

func TestRateServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, 86.191, true, NewCache(), discardLogger())

	assert.Equal(t, 86.191, r.Rate(context.Background(), testRange()))
}

func TestRateEmptyResponseFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rates":{}}`))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, 86.191, true, NewCache(), discardLogger())

	assert.Equal(t, 86.191, r.Rate(context.Background(), testRange()))
}

func TestRateUnreachableServiceFallsBack(t *testing.T) {
	// Closed server: transport error rather than an HTTP status.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	r := NewResolver(srv.URL, 86.191, true, NewCache(), discardLogger())

	assert.Equal(t, 86.191, r.Rate(context.Background(), testRange()))
}

func TestCacheComputeDoesNotBlockOtherKeys(t *testing.T) {
	c := NewCache()

	release := make(chan struct{})
	slowStarted := make(chan struct{})
	done := make(chan float64)

	go func() {
		done <- c.getOrCompute("2025-07-01..2025-07-03", func() float64 {
			close(slowStarted)
			<-release

			return 80
		})
	}()

	<-slowStarted

	// A different key must compute while the slow one is still in flight.
	assert.Equal(t, 90.0, c.getOrCompute("2025-07-04..2025-07-06", func() float64 {
		return 90
	}))

	close(release)
	assert.Equal(t, 80.0, <-done)
}

func TestRateMemoizedPerDateRange(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rates":{"2025-07-01":{"INR":85}}}`))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, 86.191, true, NewCache(), discardLogger())

	first := r.Rate(context.Background(), testRange())
	second := r.Rate(context.Background(), testRange())

	require.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}
