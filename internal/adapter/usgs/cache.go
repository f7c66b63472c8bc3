package usgs

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/river-flow-service/internal/domain"
	"github.com/couchcryptid/river-flow-service/internal/observability"
)

// CachedGaugeClient wraps a GaugeClient with a short-TTL reading cache. The
// key space is the dam table, so a plain map needs no eviction. Failures are
// never cached; a dam with a flapping gauge retries on every query.
type CachedGaugeClient struct {
	inner   domain.GaugeClient
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	reading domain.GaugeReading
	fetched time.Time
}

// NewCachedGaugeClient creates a TTL cache decorator around a gauge client.
func NewCachedGaugeClient(inner domain.GaugeClient, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedGaugeClient {
	return &CachedGaugeClient{
		inner:   inner,
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
		entries: make(map[string]cacheEntry),
	}
}

func (c *CachedGaugeClient) Latest(ctx context.Context, gaugeID string) (domain.GaugeReading, error) {
	now := c.clock.Now()

	c.mu.Lock()
	e, ok := c.entries[gaugeID]
	c.mu.Unlock()

	if ok && now.Sub(e.fetched) < c.ttl {
		c.metrics.GaugeCache.WithLabelValues("hit").Inc()
		return e.reading, nil
	}
	c.metrics.GaugeCache.WithLabelValues("miss").Inc()

	reading, err := c.inner.Latest(ctx, gaugeID)
	if err != nil {
		return domain.GaugeReading{}, err
	}

	c.mu.Lock()
	c.entries[gaugeID] = cacheEntry{reading: reading, fetched: now}
	c.mu.Unlock()
	return reading, nil
}
