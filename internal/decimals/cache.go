// Package decimals caches each token's on-chain decimal exponent. The
// orchestrator resolves a Solana-like token's exponent through it before
// flooring an order amount; amounts are already in base units, so the
// exponent is not applied to them. Adapted from the teacher's token.Resolver
// (internal/token/resolver.go), which resolved token names to mint
// addresses from a static cache; here the same cache-first, fetch-on-miss
// shape resolves mint/address to decimal count instead.
package decimals

import (
	"context"
	"fmt"
	"sync"
)

// Fetcher retrieves the decimal exponent for a token from its chain.
// solanaMintFetcher (solana_fetcher.go) is the only implementation: EVM
// amounts arrive from calldata/log decoding already in base units, so
// nothing on that side ever needs a decimals() lookup.
type Fetcher interface {
	FetchDecimals(ctx context.Context, token string) (int32, error)
}

// Cache is a concurrency-safe, in-memory decimals lookup. It never persists
// across restarts, matching the bot's no-persistence non-goal; a cold start
// simply re-fetches on first use.
type Cache struct {
	fetch Fetcher

	mu   sync.RWMutex
	byID map[string]int32
}

// New creates a Cache backed by fetch for cache misses.
func New(fetch Fetcher) *Cache {
	return &Cache{
		fetch: fetch,
		byID:  make(map[string]int32),
	}
}

// Get returns the cached decimal count for token, fetching and caching it
// on first request.
func (c *Cache) Get(ctx context.Context, token string) (int32, error) {
	c.mu.RLock()
	d, ok := c.byID[token]
	c.mu.RUnlock()
	if ok {
		return d, nil
	}

	d, err := c.fetch.FetchDecimals(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("decimals: fetch %s: %w", token, err)
	}

	c.mu.Lock()
	c.byID[token] = d
	c.mu.Unlock()

	return d, nil
}

// Put seeds the cache directly, bypassing Fetcher, for tokens whose
// decimals are already known (native SOL, WETH) and never need a lookup.
func (c *Cache) Put(token string, exponent int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[token] = exponent
}
