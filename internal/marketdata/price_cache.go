package marketdata

import (
	"sync"
	"time"
)

type priceEntry struct {
	price float64
	at    time.Time
}

// PriceCache memoizes the last live price per symbol for a fixed TTL.
type PriceCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]priceEntry
	now     func() time.Time
}

func NewPriceCache(ttl time.Duration) *PriceCache {
	return &PriceCache{
		ttl:     ttl,
		entries: make(map[string]priceEntry),
		now:     time.Now,
	}
}

// Get returns the cached price and when it was stored, if still fresh.
func (c *PriceCache) Get(symbol string) (float64, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[symbol]
	if !ok || c.now().Sub(e.at) >= c.ttl {
		return 0, time.Time{}, false
	}
	return e.price, e.at, true
}

func (c *PriceCache) Set(symbol string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[symbol] = priceEntry{price: price, at: c.now()}
}
