// Package price memoizes current-price lookups so that one evaluation
// cycle makes at most one provider call per symbol.
package price

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"stock-target-bot/internal/marketdata"
)

// Quote is one cached spot price.
type Quote struct {
	Symbol    string
	Price     float64
	FetchedAt time.Time
}

type Cache struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	ttl    time.Duration
	now    func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		quotes: make(map[string]Quote),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Get returns the cached price for a symbol. Entries older than the TTL
// are treated as absent.
func (c *Cache) Get(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q, ok := c.quotes[symbol]
	if !ok || c.now().Sub(q.FetchedAt) >= c.ttl {
		return 0, false
	}
	return q.Price, true
}

func (c *Cache) Put(symbol string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.quotes[symbol] = Quote{Symbol: symbol, Price: price, FetchedAt: c.now()}
}

// Resolve returns the cached price or fetches it through the provider.
// Failed fetches are never cached, so a symbol that was temporarily
// unavailable is retried on every cycle.
func (c *Cache) Resolve(ctx context.Context, provider marketdata.Provider, symbol string) (float64, error) {
	if p, ok := c.Get(symbol); ok {
		return p, nil
	}

	p, err := provider.CurrentPrice(ctx, symbol)
	if err != nil {
		log.Debugf("price fetch miss for %s: %v", symbol, err)
		return 0, err
	}

	c.Put(symbol, p)
	return p, nil
}
