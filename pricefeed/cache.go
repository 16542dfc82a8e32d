package pricefeed

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FallbackETHPriceUSD is used until the first successful refresh. Conservative
// rather than zero so gas-cost conversion never divides the world by nothing.
const FallbackETHPriceUSD = 3000.0

// DefaultRefreshInterval is how often RefreshLoop callers typically poll.
const DefaultRefreshInterval = time.Minute

// Fetcher is the price source behind the cache.
type Fetcher interface {
	FetchETHPriceUSD(ctx context.Context) (float64, error)
}

// Cache holds the last known reference price. Reads and updates go through a
// mutex so the value is always observed whole; a failed refresh keeps the
// previous value.
type Cache struct {
	mu        sync.RWMutex
	priceUSD  float64
	updatedAt time.Time
	fetcher   Fetcher
	logger    *zap.Logger
}

// NewCache creates a price cache seeded with the fallback price.
func NewCache(fetcher Fetcher, logger *zap.Logger) *Cache {
	return &Cache{
		priceUSD: FallbackETHPriceUSD,
		fetcher:  fetcher,
		logger:   logger,
	}
}

// Read returns the cached price.
func (c *Cache) Read() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.priceUSD
}

// UpdatedAt returns when the cache last refreshed successfully.
func (c *Cache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Refresh fetches a fresh price. On failure the cached value is retained and
// the error returned, so callers can log without losing the last reading.
func (c *Cache) Refresh(ctx context.Context) error {
	price, err := c.fetcher.FetchETHPriceUSD(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.priceUSD = price
	c.updatedAt = time.Now()
	c.mu.Unlock()

	c.logger.Debug("Updated ETH price", zap.Float64("usd", price))
	return nil
}

// RefreshLoop refreshes the cache on the given interval until ctx is done.
// Failures are logged at warning level; the previous value stays in place.
func (c *Cache) RefreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("Failed to refresh ETH price, keeping cached value",
					zap.Float64("cached_usd", c.Read()),
					zap.Error(err))
			}
		}
	}
}
