package geocoder

import (
	"context"

	"github.com/couchcryptid/osint-ingest/internal/domain"
)

// RateLimitedGeocoder enforces a minimum inter-request interval before
// delegating to an inner Geocoder. It is meant to wrap the raw HTTP
// client; place it inside a CachedGeocoder so cache hits never wait.
type RateLimitedGeocoder struct {
	inner   Geocoder
	limiter *RateLimiter
}

// NewRateLimitedGeocoder wraps inner with a rate limiter enforcing the
// given minimum interval between requests.
func NewRateLimitedGeocoder(inner Geocoder, limiter *RateLimiter) *RateLimitedGeocoder {
	return &RateLimitedGeocoder{inner: inner, limiter: limiter}
}

func (g *RateLimitedGeocoder) Geocode(ctx context.Context, name string) (domain.GeoResult, bool, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return domain.GeoResult{}, false, err
	}
	return g.inner.Geocode(ctx, name)
}
