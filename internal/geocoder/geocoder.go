// Package geocoder resolves place names to coordinates via the Nominatim
// HTTP API, behind an in-process LRU cache and a minimum inter-request
// rate limiter.
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/osint-ingest/internal/domain"
	"github.com/couchcryptid/osint-ingest/internal/observability"
)

// Geocoder resolves a place name to coordinates, or reports no match.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (domain.GeoResult, bool, error)
}

// Client implements Geocoder against the Nominatim search endpoint.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim geocoding client. Nominatim's usage policy
// requires an identifying User-Agent on every request.
func NewClient(userAgent string, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    "https://nominatim.openstreetmap.org/search",
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		metrics:    metrics,
		logger:     logger,
	}
}

// Geocode issues a single Nominatim search request. Any HTTP failure,
// timeout, or unparseable response is reported as "no match" rather than
// an error, per the geocoder's error-handling contract.
func (c *Client) Geocode(ctx context.Context, name string) (domain.GeoResult, bool, error) {
	if strings.TrimSpace(name) == "" {
		return domain.GeoResult{}, false, nil
	}

	params := url.Values{
		"q":              {name},
		"format":         {"jsonv2"},
		"limit":          {"1"},
		"addressdetails": {"1"},
	}
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.GeoResult{}, false, nil
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("geocoder: request failed", "name", name, "error", err)
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeoResult{}, false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("geocoder: non-200 response", "name", name, "status", resp.StatusCode, "body", string(body))
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeoResult{}, false, nil
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		c.logger.Warn("geocoder: unparseable response", "name", name, "error", err)
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeoResult{}, false, nil
	}
	if len(results) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("miss").Inc()
		return domain.GeoResult{}, false, nil
	}

	r := results[0]
	lat, errLat := strconv.ParseFloat(r.Lat, 64)
	lon, errLon := strconv.ParseFloat(r.Lon, 64)
	if errLat != nil || errLon != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeoResult{}, false, nil
	}

	c.metrics.GeocodeRequests.WithLabelValues("hit").Inc()
	return domain.GeoResult{
		DisplayName: r.DisplayName,
		Latitude:    lat,
		Longitude:   lon,
		Country:     r.Address.Country,
		Region:      r.Address.State,
	}, true, nil
}

type nominatimResult struct {
	DisplayName string  `json:"display_name"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Address     address `json:"address"`
}

type address struct {
	Country string `json:"country"`
	State   string `json:"state"`
}

// RateLimiter enforces a minimum interval between calls to Wait, blocking
// concurrent callers until the interval has elapsed since the previous
// call returned.
type RateLimiter struct {
	interval time.Duration
	mu       sync.Mutex
	last     time.Time
	now      func() time.Time
}

// NewRateLimiter creates a rate limiter enforcing the given minimum
// interval between successive requests.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval, now: time.Now}
}

// Wait blocks, if necessary, until at least the configured interval has
// elapsed since the previous call's completion, then records the current
// time. It holds its mutex for the full wait so concurrent callers are
// serialized and cannot circumvent the interval.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.last.IsZero() {
		elapsed := r.now().Sub(r.last)
		if wait := r.interval - elapsed; wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	r.last = r.now()
	return nil
}
