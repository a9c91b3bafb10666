package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		Timeout:    5 * time.Second,
		MaxRetries: 3,
	})
}

func TestDownload_Basic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "climate-cli/1.0", r.Header.Get("User-Agent"))
		w.Write([]byte(`[["P001001"],["919040"]]`))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, `[["P001001"],["919040"]]`, string(data))
}

func TestDownload_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDownload_ExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(HTTPOptions{MaxRetries: 2}).Download(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestDownload_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Download(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("COUNTY_FIPS\n36029\n"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "counties.csv")
	n, err := newTestFetcher().DownloadToFile(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.Equal(t, int64(18), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "COUNTY_FIPS\n36029\n", string(data))
}

func TestDefaultRateLimiters_KnownHosts(t *testing.T) {
	limiters := DefaultRateLimiters()
	assert.Contains(t, limiters, "api.census.gov")
	assert.Contains(t, limiters, "www2.census.gov")
	assert.Contains(t, limiters, "api.bls.gov")
}

func TestConfiguredRateLimiters_CapsCensusHost(t *testing.T) {
	limiters := ConfiguredRateLimiters(2)
	assert.Equal(t, rate.Limit(2), limiters["api.census.gov"].Limit())
	// Other hosts keep their defaults.
	assert.Equal(t, rate.Limit(4), limiters["www2.census.gov"].Limit())

	// Zero and negative keep the default census rate.
	assert.Equal(t, rate.Limit(5), ConfiguredRateLimiters(0)["api.census.gov"].Limit())
}

func TestAdaptiveLimiter_TunesOnFeedback(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)
	assert.Equal(t, rate.Limit(10), lim.Limit())

	lim.OnSuccess()
	assert.InDelta(t, 12, float64(lim.Limit()), 0.001)

	// Rate caps at 2x initial.
	for range 10 {
		lim.OnSuccess()
	}
	assert.Equal(t, rate.Limit(20), lim.Limit())

	lim.OnRateLimit()
	assert.Equal(t, rate.Limit(10), lim.Limit())

	// Rate floors at initial/4.
	for range 10 {
		lim.OnRateLimit()
	}
	assert.Equal(t, rate.Limit(2.5), lim.Limit())
}
