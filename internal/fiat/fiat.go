// Package fiat defines the fiat-rate collaborator, explicitly out of
// scope per spec.md §1 ("fiat-rate scraping"). The engine only needs a
// thin cache in front of whatever provider is configured, honoring
// FIAT_RATE_FETCH_INTERVAL / FIAT_RATE_MAX_LOOK_BACK_TIME (spec.md §6).
package fiat

import (
	"fmt"
	"sync"
	"time"
)

// Rate is one fiat-rate sample.
type Rate struct {
	Code      string
	Provider  string
	Value     float64
	FetchedOn time.Time
}

// Provider fetches a live fiat rate. The real scraping implementation is
// out of scope; tests use a stub and walletd serve wires NopProvider.
type Provider interface {
	Fetch(code, provider string) (float64, error)
}

// NopProvider always errors; wire a real Provider in production.
type NopProvider struct{}

func (NopProvider) Fetch(code, provider string) (float64, error) {
	return 0, fmt.Errorf("fiat: no provider configured for %s/%s", code, provider)
}

// Cache serves fiat-rate lookups, refreshing at most once per
// fetchInterval and refusing to serve samples older than maxLookBack.
type Cache struct {
	provider     Provider
	fetchInterval time.Duration
	maxLookBack   time.Duration

	mu    sync.Mutex
	rates map[string]Rate // "code|provider" -> latest sample
}

// New constructs a fiat-rate cache in front of provider.
func New(provider Provider, fetchInterval, maxLookBack time.Duration) *Cache {
	return &Cache{provider: provider, fetchInterval: fetchInterval, maxLookBack: maxLookBack, rates: make(map[string]Rate)}
}

// Get returns the rate for (code, provider) as of ts, refreshing from the
// provider if the cached sample is older than fetchInterval, and failing
// if no sample within maxLookBack of ts exists.
func (c *Cache) Get(code, provider string, ts time.Time) (Rate, error) {
	key := code + "|" + provider
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.rates[key]
	if !ok || time.Since(r.FetchedOn) > c.fetchInterval {
		v, err := c.provider.Fetch(code, provider)
		if err != nil {
			if ok && ts.Sub(r.FetchedOn) <= c.maxLookBack {
				return r, nil
			}
			return Rate{}, err
		}
		r = Rate{Code: code, Provider: provider, Value: v, FetchedOn: time.Now()}
		c.rates[key] = r
	}
	if ts.Sub(r.FetchedOn) > c.maxLookBack {
		return Rate{}, fmt.Errorf("fiat: no rate for %s/%s within lookback window", code, provider)
	}
	return r, nil
}
