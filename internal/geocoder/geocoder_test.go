package geocoder_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/osint-ingest/internal/domain"
	"github.com/couchcryptid/osint-ingest/internal/geocoder"
	"github.com/couchcryptid/osint-ingest/internal/observability"
)

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nilWriter{}, nil))
}

func testMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func TestClient_Geocode_EmptyNameReturnsNoMatchWithoutCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := geocoder.NewClient("test-agent", testMetrics(), discardLogger())
	result, found, err := c.Geocode(context.Background(), "  ")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, result)
	assert.False(t, called)
}

func TestClient_Geocode_HTTPErrorYieldsNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := geocoder.NewClient("test-agent", testMetrics(), discardLogger())
	result, found, err := c.Geocode(context.Background(), "Berlin")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, result)
}

// fakeGeocoder counts calls and returns a fixed result for "found" names.
type fakeGeocoder struct {
	calls int32
	found map[string]domain.GeoResult
	err   error
}

func (f *fakeGeocoder) Geocode(ctx context.Context, name string) (domain.GeoResult, bool, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return domain.GeoResult{}, false, f.err
	}
	result, ok := f.found[name]
	return result, ok, nil
}

func TestCachedGeocoder_CachesHit(t *testing.T) {
	inner := &fakeGeocoder{found: map[string]domain.GeoResult{
		"berlin": {DisplayName: "Berlin, Germany", Latitude: 52.52, Longitude: 13.405},
	}}
	cached := geocoder.NewCachedGeocoder(inner, 10, testMetrics())

	for i := 0; i < 3; i++ {
		result, found, err := cached.Geocode(context.Background(), "berlin")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "Berlin, Germany", result.DisplayName)
	}

	assert.EqualValues(t, 1, inner.calls)
}

func TestCachedGeocoder_CachesNegativeResult(t *testing.T) {
	inner := &fakeGeocoder{found: map[string]domain.GeoResult{}}
	cached := geocoder.NewCachedGeocoder(inner, 10, testMetrics())

	for i := 0; i < 3; i++ {
		_, found, err := cached.Geocode(context.Background(), "nowhereville")
		require.NoError(t, err)
		assert.False(t, found)
	}

	assert.EqualValues(t, 1, inner.calls)
}

func TestCachedGeocoder_EvictsOldestOnOverflow(t *testing.T) {
	inner := &fakeGeocoder{found: map[string]domain.GeoResult{
		"a": {DisplayName: "A"},
		"b": {DisplayName: "B"},
		"c": {DisplayName: "C"},
	}}
	cached := geocoder.NewCachedGeocoder(inner, 2, testMetrics())

	_, _, _ = cached.Geocode(context.Background(), "a")
	_, _, _ = cached.Geocode(context.Background(), "b")
	_, _, _ = cached.Geocode(context.Background(), "c") // evicts "a"
	_, _, _ = cached.Geocode(context.Background(), "a") // miss again

	assert.EqualValues(t, 4, inner.calls)
}

func TestCachedGeocoder_PropagatesError(t *testing.T) {
	inner := &fakeGeocoder{err: errors.New("boom")}
	cached := geocoder.NewCachedGeocoder(inner, 10, testMetrics())

	_, _, err := cached.Geocode(context.Background(), "anywhere")
	require.Error(t, err)
	assert.EqualValues(t, 1, inner.calls)
}

func TestRateLimiter_EnforcesMinimumInterval(t *testing.T) {
	limiter := geocoder.NewRateLimiter(20 * time.Millisecond)

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	require.NoError(t, limiter.Wait(context.Background()))
	require.NoError(t, limiter.Wait(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestRateLimiter_ContextCancellationUnblocks(t *testing.T) {
	limiter := geocoder.NewRateLimiter(time.Hour)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	require.Error(t, err)
}
